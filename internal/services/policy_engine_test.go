package services_test

import (
	"context"
	"testing"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/models"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/services"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settingsWithKeywords(keywords ...string) *models.CommunityModerationSettings {
	s := services.NewSettings(community)
	s.BannedKeywords = keywords
	return s
}

func TestEvaluateFlagsBannedKeyword(t *testing.T) {
	e := newEnv(t)

	verdict, err := e.policy.Evaluate(context.Background(), community, "u1",
		"check out this spam-link now", settingsWithKeywords("spam-link"))
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, "spam-link", verdict.ViolatedKeyword)

	flagged := e.logs(t, models.ActionAutoFlagged)
	require.Len(t, flagged, 1)
	assert.Equal(t, models.AutoModerationActor, flagged[0].ActorID)
	assert.Equal(t, community, flagged[0].CommunityID)
	assert.Equal(t, models.TargetTypeContent, flagged[0].TargetType)
	assert.Equal(t, "spam-link", flagged[0].Details["keyword"])
	assert.Equal(t, "check out this spam-link now", flagged[0].Details["content"])
	assert.Equal(t, "u1", flagged[0].Details["submitted_by"])
}

func TestEvaluateAllowedContentWritesNothing(t *testing.T) {
	e := newEnv(t)

	verdict, err := e.policy.Evaluate(context.Background(), community, "u1",
		"a perfectly fine post", settingsWithKeywords("spam-link"))
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
	assert.Empty(t, verdict.ViolatedKeyword)
	assert.Empty(t, e.logs(t, models.ActionAutoFlagged))
}

func TestMatchKeyword(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		keywords []string
		want     string
		match    bool
	}{
		{"case insensitive", "BUY CHEAP Pills", []string{"cheap pills"}, "cheap pills", true},
		{"unicode folding", "ÜBER deals", []string{"über"}, "über", true},
		{"substring", "visit spammy-site.example", []string{"spammy"}, "spammy", true},
		{"first configured wins", "alpha then beta", []string{"beta", "alpha"}, "beta", true},
		{"blank keywords ignored", "anything", []string{"", "   "}, "", false},
		{"padded keyword reported trimmed", "buy spam now", []string{" spam "}, "spam", true},
		{"no keywords", "anything", nil, "", false},
		{"no match", "hello", []string{"bye"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := services.MatchKeyword(tt.content, tt.keywords)
			assert.Equal(t, tt.match, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateOneEntryPerViolation(t *testing.T) {
	e := newEnv(t)
	settings := settingsWithKeywords("spam", "scam")

	for i := 0; i < 3; i++ {
		_, err := e.policy.Evaluate(context.Background(), community, "u1", "spam and scam", settings)
		require.NoError(t, err)
	}
	assert.Len(t, e.logs(t, models.ActionAutoFlagged), 3)
}

func TestEvaluateFailsWhenLogCannotBeWritten(t *testing.T) {
	db := testutil.NewDB(t)
	policy := services.NewPolicyEngine(services.NewAuditLog(db))
	testutil.CloseDB(t, db)

	_, err := policy.Evaluate(context.Background(), community, "u1", "spam", settingsWithKeywords("spam"))
	assert.ErrorIs(t, err, services.ErrBackendUnavailable)
}
