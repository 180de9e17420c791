package dto

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/models"
)

// AdmitRequest is the body of a gate check. The actor comes from the JWT and
// the community from X-Community-ID.
type AdmitRequest struct {
	ActionType string  `json:"action_type"`
	Content    *string `json:"content,omitempty"`
}

type CreateReportRequest struct {
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	Reason     string `json:"reason"`
}

type UpdateReportRequest struct {
	Status     *string `json:"status"`
	Resolution *string `json:"resolution"`
	Reason     *string `json:"reason"`
}

type CreateRestrictionRequest struct {
	UserID        string   `json:"user_id"`
	Type          string   `json:"type"`
	Reason        string   `json:"reason"`
	DurationHours *float64 `json:"duration_hours,omitempty"`
	Actions       []string `json:"actions,omitempty"`
}

// Duration converts DurationHours; nil means permanent.
func (r *CreateRestrictionRequest) Duration() *time.Duration {
	if r.DurationHours == nil {
		return nil
	}
	d := time.Duration(*r.DurationHours * float64(time.Hour))
	return &d
}

type AddModeratorRequest struct {
	UserID      string   `json:"user_id"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
}

type UpdateSettingsRequest struct {
	BannedKeywords    *[]string                       `json:"banned_keywords"`
	ActionPolicies    *map[string]models.ActionPolicy `json:"action_policies"`
	RestrictedActions *[]string                       `json:"restricted_actions"`
	MutedActions      *[]string                       `json:"muted_actions"`
}

type IDResponse struct {
	ID string `json:"id"`
}

type UserRestrictionsResponse struct {
	UserID       string               `json:"user_id"`
	Restrictions []models.Restriction `json:"restrictions"`
}
