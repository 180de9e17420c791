package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RateDecision is the outcome of one CheckAndRecord call. ResetTime is when
// the oldest counted event leaves the window and one slot frees up.
type RateDecision struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"reset_time"`
}

// RateLimiter counts gated actions in a trailing window. An allowed call is
// recorded; a rejected one is not.
type RateLimiter interface {
	CheckAndRecord(ctx context.Context, userID, communityID, action string, policy models.ActionPolicy) (*RateDecision, error)
}

// DBRateLimiter keeps one row per admitted action. The count and the insert
// are separate statements, so concurrent callers for the same key may both
// be admitted at the boundary.
type DBRateLimiter struct {
	db *gorm.DB
	options
}

func NewDBRateLimiter(db *gorm.DB, opts ...Option) *DBRateLimiter {
	return &DBRateLimiter{db: db, options: buildOptions(opts)}
}

func (l *DBRateLimiter) CheckAndRecord(ctx context.Context, userID, communityID, action string, policy models.ActionPolicy) (*RateDecision, error) {
	if !policy.Valid() {
		return nil, invalid("rate policy needs positive max_actions and window_minutes")
	}

	now := l.now()
	window := policy.Window()
	inWindow := l.db.WithContext(ctx).Model(&models.RateLimitEvent{}).
		Where("user_id = ? AND community_id = ? AND action = ? AND timestamp >= ?",
			userID, communityID, action, now.Add(-window)).
		Session(&gorm.Session{})

	var count int64
	if err := inWindow.Count(&count).Error; err != nil {
		rateLimitChecks.WithLabelValues("error").Inc()
		return nil, storeErr("count rate events", err)
	}

	if int(count) >= policy.MaxActions {
		var oldest models.RateLimitEvent
		if err := inWindow.Order("timestamp ASC").First(&oldest).Error; err != nil {
			rateLimitChecks.WithLabelValues("error").Inc()
			return nil, storeErr("load oldest rate event", err)
		}
		rateLimitChecks.WithLabelValues("limited").Inc()
		return &RateDecision{
			Allowed:   false,
			Remaining: 0,
			ResetTime: oldest.Timestamp.Add(window),
		}, nil
	}

	event := models.RateLimitEvent{
		ID:          uuid.New(),
		UserID:      userID,
		CommunityID: communityID,
		Action:      action,
		Timestamp:   now,
	}
	if err := l.db.WithContext(ctx).Create(&event).Error; err != nil {
		rateLimitChecks.WithLabelValues("error").Inc()
		return nil, storeErr("record rate event", err)
	}

	reset := now.Add(window)
	if count > 0 {
		var oldest models.RateLimitEvent
		if err := inWindow.Order("timestamp ASC").First(&oldest).Error; err == nil {
			reset = oldest.Timestamp.Add(window)
		}
	}

	rateLimitChecks.WithLabelValues("allowed").Inc()
	return &RateDecision{
		Allowed:   true,
		Remaining: policy.MaxActions - int(count) - 1,
		ResetTime: reset,
	}, nil
}

// PruneRateEvents deletes events older than retention and returns how many
// rows were removed.
func (l *DBRateLimiter) PruneRateEvents(ctx context.Context, retention time.Duration) (int64, error) {
	result := l.db.WithContext(ctx).
		Where("timestamp < ?", l.now().Add(-retention)).
		Delete(&models.RateLimitEvent{})
	if result.Error != nil {
		return 0, storeErr("prune rate events", result.Error)
	}
	return result.RowsAffected, nil
}

// StartRateEventCleanup prunes expired rate events every hour until ctx is
// done. retention must cover the longest configured policy window.
func (l *DBRateLimiter) StartRateEventCleanup(ctx context.Context, retention time.Duration) {
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()

		l.pruneOnce(ctx, retention)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.pruneOnce(ctx, retention)
			}
		}
	}()
}

func (l *DBRateLimiter) pruneOnce(ctx context.Context, retention time.Duration) {
	n, err := l.PruneRateEvents(ctx, retention)
	if err != nil {
		slog.Error("failed to prune rate events", "error", err)
		return
	}
	if n > 0 {
		slog.Info("pruned rate events", "count", n)
	}
}
