package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RateLimitEvent records one admitted gated action.
type RateLimitEvent struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      string    `gorm:"size:255;not null;index:idx_rate_events_key,priority:1" json:"user_id"`
	CommunityID string    `gorm:"size:100;not null;index:idx_rate_events_key,priority:2" json:"community_id"`
	Action      string    `gorm:"size:50;not null;index:idx_rate_events_key,priority:3" json:"action"`
	Timestamp   time.Time `gorm:"not null;index:idx_rate_events_key,priority:4" json:"timestamp"`
}

func (e *RateLimitEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (RateLimitEvent) TableName() string {
	return "rate_limit_events"
}
