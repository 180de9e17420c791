package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Report statuses. Resolved and dismissed are terminal.
const (
	ReportStatusPending   = "pending"
	ReportStatusReviewing = "reviewing"
	ReportStatusResolved  = "resolved"
	ReportStatusDismissed = "dismissed"
)

// Report target types.
const (
	TargetTypeContent = "content"
	TargetTypeUser    = "user"
)

// Report is a user-filed complaint about content or another user.
type Report struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CommunityID string    `gorm:"size:100;not null;index:idx_reports_community_created,priority:1" json:"community_id"`
	ReporterID  string    `gorm:"size:255;not null;index" json:"reporter_id"`
	TargetType  string    `gorm:"size:20;not null" json:"target_type"`
	TargetID    string    `gorm:"size:255;not null;index" json:"target_id"`
	Reason      string    `gorm:"size:1000;not null" json:"reason"`
	Status      string    `gorm:"size:20;not null;default:'pending';index" json:"status"`
	Resolution  *string   `gorm:"size:2000" json:"resolution,omitempty"`
	ReviewedBy  *string   `gorm:"size:255" json:"reviewed_by,omitempty"`
	CreatedAt   time.Time `gorm:"index:idx_reports_community_created,priority:2" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// IsTerminal reports whether no further status change is allowed.
func (r *Report) IsTerminal() bool {
	return IsTerminalReportStatus(r.Status)
}

func IsTerminalReportStatus(status string) bool {
	return status == ReportStatusResolved || status == ReportStatusDismissed
}

func (Report) TableName() string {
	return "reports"
}
