package services

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/models"
)

// RejectReason names why an action was not admitted. Empty means allowed.
type RejectReason string

const (
	ReasonAuthenticationMissing RejectReason = "AuthenticationMissing"
	ReasonRestrictionActive     RejectReason = "RestrictionActive"
	ReasonPolicyViolation       RejectReason = "PolicyViolation"
	ReasonRateLimited           RejectReason = "RateLimited"
	ReasonBackendUnavailable    RejectReason = "BackendUnavailable"
)

// AdmitRequest is one gated user action. Content is nil for actions that
// carry no text.
type AdmitRequest struct {
	ActorID     string  `json:"actor_id"`
	CommunityID string  `json:"community_id"`
	ActionType  string  `json:"action_type"`
	Content     *string `json:"content,omitempty"`
}

type Decision struct {
	Allowed bool                   `json:"allowed"`
	Reason  RejectReason           `json:"reason,omitempty"`
	Detail  map[string]interface{} `json:"detail,omitempty"`
}

func reject(reason RejectReason, detail map[string]interface{}) *Decision {
	return &Decision{Allowed: false, Reason: reason, Detail: detail}
}

func unavailable(stage string) *Decision {
	return reject(ReasonBackendUnavailable, map[string]interface{}{"stage": stage})
}

// Admission carries one request through the stages. Settings are loaded on
// first use and shared by later stages.
type Admission struct {
	Request AdmitRequest

	settingsSvc *SettingsService
	settings    *models.CommunityModerationSettings
	detail      map[string]interface{}
}

func (a *Admission) Settings(ctx context.Context) (*models.CommunityModerationSettings, error) {
	if a.settings != nil {
		return a.settings, nil
	}
	s, err := a.settingsSvc.Get(ctx, a.Request.CommunityID)
	if err != nil {
		return nil, err
	}
	a.settings = s
	return s, nil
}

// Annotate adds a key to the detail of the final Allow decision.
func (a *Admission) Annotate(key string, value interface{}) {
	if a.detail == nil {
		a.detail = map[string]interface{}{}
	}
	a.detail[key] = value
}

// Stage is one step of the admission pipeline. Check returns nil to pass
// the request on, or the rejection that ends it.
type Stage interface {
	Name() string
	Check(ctx context.Context, a *Admission) *Decision
}

// Gateway runs every gated action through an ordered list of stages. The
// first rejection wins; later stages do not run.
type Gateway struct {
	settings *SettingsService
	stages   []Stage
}

// NewGateway builds the standard pipeline: actor, restriction, content
// policy, rate limit.
func NewGateway(settings *SettingsService, restrictions *RestrictionService, policy *PolicyEngine, limiter RateLimiter, opts ...Option) *Gateway {
	o := buildOptions(opts)
	return NewGatewayWithStages(settings, []Stage{
		ActorStage{},
		RestrictionStage{Restrictions: restrictions},
		PolicyStage{Policy: policy},
		NewRateLimitStage(limiter, o.now),
	})
}

func NewGatewayWithStages(settings *SettingsService, stages []Stage) *Gateway {
	return &Gateway{settings: settings, stages: stages}
}

// Admit decides whether the action may proceed. It is not cancellable: the
// store calls outlive ctx cancellation.
func (g *Gateway) Admit(ctx context.Context, req AdmitRequest) *Decision {
	start := time.Now()
	ctx = context.WithoutCancel(ctx)

	a := &Admission{Request: req, settingsSvc: g.settings}
	decision := g.run(ctx, a)

	reason := string(decision.Reason)
	if decision.Allowed {
		reason = "allowed"
		slog.Debug("action admitted",
			"community_id", req.CommunityID, "actor_id", req.ActorID, "action", req.ActionType)
	} else {
		slog.Info("action rejected",
			"community_id", req.CommunityID, "actor_id", req.ActorID, "action", req.ActionType,
			"reason", decision.Reason)
	}
	gatewayDecisions.WithLabelValues(req.ActionType, reason).Inc()
	gatewayDuration.WithLabelValues(reason).Observe(time.Since(start).Seconds())
	return decision
}

func (g *Gateway) run(ctx context.Context, a *Admission) *Decision {
	for _, stage := range g.stages {
		if d := stage.Check(ctx, a); d != nil {
			return d
		}
	}
	return &Decision{Allowed: true, Detail: a.detail}
}

// ActorStage rejects requests without an actor.
type ActorStage struct{}

func (ActorStage) Name() string { return "actor" }

func (ActorStage) Check(_ context.Context, a *Admission) *Decision {
	if strings.TrimSpace(a.Request.ActorID) == "" {
		return reject(ReasonAuthenticationMissing, nil)
	}
	return nil
}

// RestrictionStage rejects actors with an active restriction covering the
// action, reporting the most severe one.
type RestrictionStage struct {
	Restrictions *RestrictionService
}

func (RestrictionStage) Name() string { return "restriction" }

func (s RestrictionStage) Check(ctx context.Context, a *Admission) *Decision {
	settings, err := a.Settings(ctx)
	if err != nil {
		slog.Error("failed to load moderation settings", "community_id", a.Request.CommunityID, "error", err)
		return unavailable(s.Name())
	}
	r, err := s.Restrictions.PrimaryRestriction(ctx, a.Request.ActorID, a.Request.ActionType, a.Request.Content != nil, settings)
	if err != nil {
		slog.Error("restriction check failed", "community_id", a.Request.CommunityID, "error", err)
		return unavailable(s.Name())
	}
	if r == nil {
		return nil
	}
	detail := map[string]interface{}{
		"type":   r.Type,
		"reason": r.Reason,
	}
	if r.ExpiresAt != nil {
		detail["expires_at"] = r.ExpiresAt.Format(time.RFC3339)
	}
	return reject(ReasonRestrictionActive, detail)
}

// PolicyStage checks submitted content against the banned keywords. Only
// requests carrying content are checked.
type PolicyStage struct {
	Policy *PolicyEngine
}

func (PolicyStage) Name() string { return "policy" }

func (s PolicyStage) Check(ctx context.Context, a *Admission) *Decision {
	if a.Request.Content == nil {
		return nil
	}
	settings, err := a.Settings(ctx)
	if err != nil {
		slog.Error("failed to load moderation settings", "community_id", a.Request.CommunityID, "error", err)
		return unavailable(s.Name())
	}
	verdict, err := s.Policy.Evaluate(ctx, a.Request.CommunityID, a.Request.ActorID, *a.Request.Content, settings)
	if err != nil {
		slog.Error("policy evaluation failed", "community_id", a.Request.CommunityID, "error", err)
		return unavailable(s.Name())
	}
	if verdict.Allowed {
		return nil
	}
	return reject(ReasonPolicyViolation, map[string]interface{}{"keyword": verdict.ViolatedKeyword})
}

// RateLimitStage applies the community's policy for the action, falling back
// to the "*" policy. Actions with neither are not limited.
type RateLimitStage struct {
	Limiter RateLimiter
	now     Clock
}

func NewRateLimitStage(limiter RateLimiter, clock Clock) RateLimitStage {
	return RateLimitStage{Limiter: limiter, now: clock}
}

func (RateLimitStage) Name() string { return "rate_limit" }

func (s RateLimitStage) Check(ctx context.Context, a *Admission) *Decision {
	settings, err := a.Settings(ctx)
	if err != nil {
		slog.Error("failed to load moderation settings", "community_id", a.Request.CommunityID, "error", err)
		return unavailable(s.Name())
	}
	policy, ok := settings.PolicyFor(a.Request.ActionType)
	if !ok {
		return nil
	}
	d, err := s.Limiter.CheckAndRecord(ctx, a.Request.ActorID, a.Request.CommunityID, a.Request.ActionType, policy)
	if err != nil {
		slog.Error("rate limit check failed", "community_id", a.Request.CommunityID, "error", err)
		return unavailable(s.Name())
	}
	if !d.Allowed {
		now := systemClock()
		if s.now != nil {
			now = s.now()
		}
		return reject(ReasonRateLimited, map[string]interface{}{
			"reset_time":          d.ResetTime.Format(time.RFC3339),
			"retry_after_seconds": retryAfter(d.ResetTime, now),
		})
	}
	a.Annotate("remaining", d.Remaining)
	return nil
}

func retryAfter(reset, now time.Time) int {
	secs := int(math.Ceil(reset.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
