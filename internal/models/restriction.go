package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Restriction types, highest precedence first.
const (
	RestrictionBan      = "ban"
	RestrictionMute     = "mute"
	RestrictionRestrict = "restrict"
)

// RestrictionPrecedence orders restriction types from most to least severe.
var RestrictionPrecedence = map[string]int{
	RestrictionBan:      0,
	RestrictionMute:     1,
	RestrictionRestrict: 2,
}

// Restriction is a time-bounded ban, mute or restrict record. There is one
// row per (community, user, type); re-creating a restriction overwrites it.
type Restriction struct {
	ID          uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	CommunityID string                      `gorm:"size:100;not null;uniqueIndex:idx_restrictions_key,priority:1" json:"community_id"`
	UserID      string                      `gorm:"size:255;not null;uniqueIndex:idx_restrictions_key,priority:2" json:"user_id"`
	Type        string                      `gorm:"size:20;not null;uniqueIndex:idx_restrictions_key,priority:3" json:"type"`
	Reason      string                      `gorm:"size:1000" json:"reason"`
	Actions     datatypes.JSONSlice[string] `json:"actions,omitempty"`
	CreatedBy   string                      `gorm:"size:255" json:"created_by"`
	CreatedAt   time.Time                   `json:"created_at"`
	ExpiresAt   *time.Time                  `gorm:"index" json:"expires_at,omitempty"`
}

func (r *Restriction) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ActiveAt reports whether the restriction is in force at t. A nil
// ExpiresAt means permanent.
func (r *Restriction) ActiveAt(t time.Time) bool {
	return r.ExpiresAt == nil || r.ExpiresAt.After(t)
}

// IsPermanent reports whether the restriction has no expiry.
func (r *Restriction) IsPermanent() bool {
	return r.ExpiresAt == nil
}

func (Restriction) TableName() string {
	return "restrictions"
}
