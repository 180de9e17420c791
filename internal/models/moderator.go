package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Moderator roles.
const (
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
	RoleOwner     = "owner"
)

// Moderator permissions.
const (
	PermManageReports      = "manage_reports"
	PermManageRestrictions = "manage_restrictions"
	PermManageModerators   = "manage_moderators"
	PermViewLogs           = "view_logs"
	PermManageSettings     = "manage_settings"
)

// DefaultPermissions lists the permissions granted when a moderator is added
// without an explicit list.
var DefaultPermissions = map[string][]string{
	RoleModerator: {PermManageReports, PermManageRestrictions, PermViewLogs},
	RoleAdmin:     {PermManageReports, PermManageRestrictions, PermViewLogs, PermManageModerators},
	RoleOwner:     {PermManageReports, PermManageRestrictions, PermViewLogs, PermManageModerators, PermManageSettings},
}

// Moderator assigns a moderation role in one community. Revocation is soft.
type Moderator struct {
	ID          uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	CommunityID string                      `gorm:"size:100;not null;index:idx_moderators_community_user,priority:1" json:"community_id"`
	UserID      string                      `gorm:"size:255;not null;index:idx_moderators_community_user,priority:2" json:"user_id"`
	Role        string                      `gorm:"size:20;not null;default:'moderator'" json:"role"`
	Permissions datatypes.JSONSlice[string] `json:"permissions"`
	AssignedBy  string                      `gorm:"size:255" json:"assigned_by"`
	AssignedAt  time.Time                   `json:"assigned_at"`
	IsActive    bool                        `gorm:"not null;default:true;index" json:"is_active"`
}

func (m *Moderator) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Has reports whether the moderator holds perm.
func (m *Moderator) Has(perm string) bool {
	for _, p := range m.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

func (Moderator) TableName() string {
	return "moderators"
}
