package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/eventbus"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/models"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/services"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const community = "makers"

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type env struct {
	db    *gorm.DB
	clock *testutil.Clock
	bus   *eventbus.Bus

	audit        *services.AuditLog
	settings     *services.SettingsService
	restrictions *services.RestrictionService
	reports      *services.ReportService
	moderators   *services.ModeratorService
	policy       *services.PolicyEngine
	limiter      *services.DBRateLimiter
	gateway      *services.Gateway
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db := testutil.NewDB(t)
	clock := testutil.NewClock(t0)
	bus := eventbus.New()
	t.Cleanup(bus.Close)

	opts := []services.Option{services.WithClock(clock.Now), services.WithBus(bus)}
	audit := services.NewAuditLog(db, opts...)
	settings := services.NewSettingsService(db, audit, 16, time.Minute, opts...)
	restrictions := services.NewRestrictionService(db, audit, opts...)
	policy := services.NewPolicyEngine(audit)
	limiter := services.NewDBRateLimiter(db, opts...)

	return &env{
		db:           db,
		clock:        clock,
		bus:          bus,
		audit:        audit,
		settings:     settings,
		restrictions: restrictions,
		reports:      services.NewReportService(db, audit, opts...),
		moderators:   services.NewModeratorService(db, audit, opts...),
		policy:       policy,
		limiter:      limiter,
		gateway:      services.NewGateway(settings, restrictions, policy, limiter, opts...),
	}
}

func (e *env) logs(t *testing.T, action string) []models.ModerationLog {
	t.Helper()
	var logs []models.ModerationLog
	require.NoError(t, e.db.Where("action = ?", action).Order("timestamp ASC").Find(&logs).Error)
	return logs
}

func (e *env) configure(t *testing.T, in services.SettingsUpdate) {
	t.Helper()
	_, err := e.settings.Update(context.Background(), community, "owner-1", in)
	require.NoError(t, err)
}

func ptr[T any](v T) *T { return &v }

func hours(n int) *time.Duration {
	d := time.Duration(n) * time.Hour
	return &d
}

const waitFor = 2 * time.Second

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for snapshot")
	}
	var zero T
	return zero
}
