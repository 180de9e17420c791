package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogRoundTrip(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	entry := &models.ModerationLog{
		CommunityID: community,
		ActorID:     "mod-1",
		Action:      models.ActionRestrictionCreated,
		TargetType:  models.TargetTypeUser,
		TargetID:    "u1",
		Details:     map[string]interface{}{"type": "ban", "reason": "spam"},
	}
	require.NoError(t, e.audit.Record(ctx, entry))
	assert.NotEmpty(t, entry.ID)
	assert.True(t, entry.Timestamp.Equal(t0))

	logs, err := e.audit.List(ctx, community, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	got := logs[0]
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, entry.CommunityID, got.CommunityID)
	assert.Equal(t, entry.ActorID, got.ActorID)
	assert.Equal(t, entry.Action, got.Action)
	assert.Equal(t, entry.TargetType, got.TargetType)
	assert.Equal(t, entry.TargetID, got.TargetID)
	assert.Equal(t, "ban", got.Details["type"])
	assert.Equal(t, "spam", got.Details["reason"])
	assert.True(t, got.Timestamp.Equal(entry.Timestamp))
}

func TestAuditLogListNewestFirst(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for _, action := range []string{"first", "second", "third"} {
		require.NoError(t, e.audit.Record(ctx, &models.ModerationLog{
			CommunityID: community, ActorID: "mod-1", Action: action,
		}))
		e.clock.Advance(time.Second)
	}
	require.NoError(t, e.audit.Record(ctx, &models.ModerationLog{
		CommunityID: "other", ActorID: "mod-1", Action: "elsewhere",
	}))

	logs, err := e.audit.List(ctx, community, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "third", logs[0].Action)
	assert.Equal(t, "second", logs[1].Action)
}

func TestAuditLogSubscribe(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	sub := e.audit.Subscribe(community, 5)
	defer sub.Cancel()
	assert.Empty(t, recv(t, sub.C))

	require.NoError(t, e.audit.Record(ctx, &models.ModerationLog{
		CommunityID: community, ActorID: "mod-1", Action: models.ActionSettingsUpdated,
	}))
	logs := recv(t, sub.C)
	require.Len(t, logs, 1)
	assert.Equal(t, models.ActionSettingsUpdated, logs[0].Action)
}
