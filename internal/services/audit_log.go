package services

import (
	"context"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/eventbus"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/models"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditLog is the append-only record of moderation decisions. It exposes no
// update or delete.
type AuditLog struct {
	db *gorm.DB
	options
}

func NewAuditLog(db *gorm.DB, opts ...Option) *AuditLog {
	return &AuditLog{db: db, options: buildOptions(opts)}
}

// Record appends entry. ID and Timestamp are assigned by the log.
func (a *AuditLog) Record(ctx context.Context, entry *models.ModerationLog) error {
	entry.ID = uuid.New()
	entry.Timestamp = a.now()
	if entry.Details == nil {
		entry.Details = map[string]interface{}{}
	}
	if err := a.db.WithContext(ctx).Create(entry).Error; err != nil {
		return storeErr("record moderation log", err)
	}
	a.publish(ctx, eventbus.LogsTopic(entry.CommunityID))
	return nil
}

// List returns the newest entries of a community first.
func (a *AuditLog) List(ctx context.Context, communityID string, limit int) ([]models.ModerationLog, error) {
	var logs []models.ModerationLog
	err := a.db.WithContext(ctx).
		Scopes(tenant.ForCommunity(communityID)).
		Order("timestamp DESC").
		Limit(clampLimit(limit)).
		Find(&logs).Error
	if err != nil {
		return nil, storeErr("list moderation logs", err)
	}
	return logs, nil
}

// Subscribe streams the newest entries of a community on every append.
func (a *AuditLog) Subscribe(communityID string, limit int) *eventbus.Subscription[[]models.ModerationLog] {
	return eventbus.Register(a.bus, eventbus.Query[[]models.ModerationLog]{
		Topic: eventbus.LogsTopic(communityID),
		Load: func(ctx context.Context) ([]models.ModerationLog, error) {
			return a.List(ctx, communityID, limit)
		},
	})
}
