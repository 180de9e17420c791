package services_test

import (
	"context"
	"testing"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/models"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestSettingsDefaults(t *testing.T) {
	e := newEnv(t)

	s, err := e.settings.Get(context.Background(), community)
	require.NoError(t, err)
	assert.Equal(t, community, s.CommunityID)
	assert.Empty(t, s.BannedKeywords)
	assert.Equal(t, services.DefaultMutedActions, []string(s.MutedActions))
	_, ok := s.PolicyFor("post")
	assert.False(t, ok)
}

func TestSettingsUpdate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// Prime the cache so the update has to invalidate it.
	_, err := e.settings.Get(ctx, community)
	require.NoError(t, err)

	e.configure(t, services.SettingsUpdate{
		BannedKeywords: ptr([]string{"spam-link", " ", "scam"}),
		ActionPolicies: ptr(map[string]models.ActionPolicy{
			"post": {MaxActions: 3, WindowMinutes: 10},
			"*":    {MaxActions: 100, WindowMinutes: 60},
		}),
	})

	s, err := e.settings.Get(ctx, community)
	require.NoError(t, err)
	assert.Equal(t, []string{"spam-link", "scam"}, []string(s.BannedKeywords))

	p, ok := s.PolicyFor("post")
	require.True(t, ok)
	assert.Equal(t, models.ActionPolicy{MaxActions: 3, WindowMinutes: 10}, p)
	p, ok = s.PolicyFor("invite")
	require.True(t, ok)
	assert.Equal(t, 100, p.MaxActions)

	// Fields not named in the update are kept.
	e.configure(t, services.SettingsUpdate{MutedActions: ptr([]string{"post"})})
	s, err = e.settings.Get(ctx, community)
	require.NoError(t, err)
	assert.Equal(t, []string{"spam-link", "scam"}, []string(s.BannedKeywords))
	assert.Equal(t, []string{"post"}, []string(s.MutedActions))

	assert.Len(t, e.logs(t, models.ActionSettingsUpdated), 2)
}

func TestSettingsRejectsInvalidPolicy(t *testing.T) {
	e := newEnv(t)

	_, err := e.settings.Update(context.Background(), community, "owner-1", services.SettingsUpdate{
		ActionPolicies: ptr(map[string]models.ActionPolicy{"post": {MaxActions: 0, WindowMinutes: 10}}),
	})
	assert.ErrorIs(t, err, services.ErrInvalidInput)
}

func TestSeedDefaultsKeepsExistingSettings(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.configure(t, services.SettingsUpdate{BannedKeywords: ptr([]string{"configured"})})

	seeded := services.NewSettings(community)
	seeded.BannedKeywords = datatypes.JSONSlice[string]{"seeded"}
	fresh := services.NewSettings("fresh")
	fresh.BannedKeywords = datatypes.JSONSlice[string]{"seeded"}
	require.NoError(t, e.settings.SeedDefaults(ctx, []*models.CommunityModerationSettings{seeded, fresh}))

	s, err := e.settings.Get(ctx, community)
	require.NoError(t, err)
	assert.Equal(t, []string{"configured"}, []string(s.BannedKeywords))

	s, err = e.settings.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, []string{"seeded"}, []string(s.BannedKeywords))
}

func TestSeedDefaultsRejectsUnenforceablePolicy(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	good := services.NewSettings("good")
	bad := services.NewSettings(community)
	bad.ActionPolicies = datatypes.NewJSONType(map[string]models.ActionPolicy{
		"post": {MaxActions: 0, WindowMinutes: 10},
	})

	err := e.settings.SeedDefaults(ctx, []*models.CommunityModerationSettings{good, bad})
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	var count int64
	require.NoError(t, e.db.Model(&models.CommunityModerationSettings{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSeedDefaultsCleansKeywords(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	seeded := services.NewSettings(community)
	seeded.BannedKeywords = datatypes.JSONSlice[string]{" spam ", "", "scam"}
	require.NoError(t, e.settings.SeedDefaults(ctx, []*models.CommunityModerationSettings{seeded}))

	s, err := e.settings.Get(ctx, community)
	require.NoError(t, err)
	assert.Equal(t, []string{"spam", "scam"}, []string(s.BannedKeywords))
}
