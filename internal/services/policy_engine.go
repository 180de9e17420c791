package services

import (
	"context"
	"strings"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/models"
	"golang.org/x/text/cases"
)

// Verdict is the result of a content policy check.
type Verdict struct {
	Allowed         bool   `json:"allowed"`
	ViolatedKeyword string `json:"violated_keyword,omitempty"`
}

// PolicyEngine matches submitted content against a community's banned
// keywords. Matching is a case-folded substring search; the first keyword in
// configured order wins.
type PolicyEngine struct {
	audit *AuditLog
}

func NewPolicyEngine(audit *AuditLog) *PolicyEngine {
	return &PolicyEngine{audit: audit}
}

// Evaluate checks content. On a violation it writes exactly one auto_flagged
// entry before returning; if that write fails the error is returned and the
// verdict must not be trusted.
func (p *PolicyEngine) Evaluate(ctx context.Context, communityID, actorID, content string, settings *models.CommunityModerationSettings) (Verdict, error) {
	keyword, ok := MatchKeyword(content, settings.BannedKeywords)
	if !ok {
		return Verdict{Allowed: true}, nil
	}

	err := p.audit.Record(ctx, &models.ModerationLog{
		CommunityID: communityID,
		ActorID:     models.AutoModerationActor,
		Action:      models.ActionAutoFlagged,
		TargetType:  models.TargetTypeContent,
		TargetID:    actorID,
		Details: map[string]interface{}{
			"keyword":      keyword,
			"content":      content,
			"submitted_by": actorID,
		},
	})
	if err != nil {
		return Verdict{}, err
	}

	policyViolations.Inc()
	return Verdict{Allowed: false, ViolatedKeyword: keyword}, nil
}

// MatchKeyword returns the first keyword contained in content, ignoring
// case. Blank keywords never match.
func MatchKeyword(content string, keywords []string) (string, bool) {
	fold := cases.Fold()
	folded := fold.String(content)
	for _, kw := range keywords {
		trimmed := strings.TrimSpace(kw)
		if trimmed == "" {
			continue
		}
		if strings.Contains(folded, fold.String(trimmed)) {
			return trimmed, true
		}
	}
	return "", false
}
