package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AutoModerationActor is the actor id used for entries written by the
// policy engine.
const AutoModerationActor = "auto-moderation"

// Audit log actions.
const (
	ActionAutoFlagged        = "auto_flagged"
	ActionRestrictionCreated = "restriction_created"
	ActionRestrictionRevoked = "restriction_revoked"
	ActionReportUpdated      = "report_updated"
	ActionModeratorAdded     = "moderator_added"
	ActionModeratorRemoved   = "moderator_removed"
	ActionSettingsUpdated    = "settings_updated"
)

// ModerationLog is an append-only audit entry. Rows are never updated or
// deleted.
type ModerationLog struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	CommunityID string            `gorm:"size:100;not null;index:idx_moderation_logs_community_ts,priority:1" json:"community_id"`
	ActorID     string            `gorm:"size:255;not null;index" json:"actor_id"`
	Action      string            `gorm:"size:50;not null;index" json:"action"`
	TargetType  string            `gorm:"size:20" json:"target_type"`
	TargetID    string            `gorm:"size:255" json:"target_id,omitempty"`
	Details     datatypes.JSONMap `json:"details"`
	Timestamp   time.Time         `gorm:"not null;index:idx_moderation_logs_community_ts,priority:2" json:"timestamp"`
}

func (l *ModerationLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

func (ModerationLog) TableName() string {
	return "moderation_logs"
}
