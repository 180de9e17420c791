package models

import (
	"time"

	"gorm.io/datatypes"
)

// FallbackPolicyKey is the action_policies key used when an action has no
// policy of its own.
const FallbackPolicyKey = "*"

// ActionPolicy bounds how many times an action may be taken in a trailing
// window.
type ActionPolicy struct {
	MaxActions    int `json:"max_actions"`
	WindowMinutes int `json:"window_minutes"`
}

// Valid reports whether the policy can be enforced: both bounds must be
// positive.
func (p ActionPolicy) Valid() bool {
	return p.MaxActions > 0 && p.WindowMinutes > 0
}

// Window returns the policy window as a duration.
func (p ActionPolicy) Window() time.Duration {
	return time.Duration(p.WindowMinutes) * time.Minute
}

// CommunityModerationSettings stores per-community moderation configuration.
type CommunityModerationSettings struct {
	CommunityID       string                                       `gorm:"size:100;primaryKey" json:"community_id"`
	BannedKeywords    datatypes.JSONSlice[string]                  `json:"banned_keywords"`
	ActionPolicies    datatypes.JSONType[map[string]ActionPolicy] `json:"action_policies"`
	RestrictedActions datatypes.JSONSlice[string]                  `json:"restricted_actions"`
	MutedActions      datatypes.JSONSlice[string]                  `json:"muted_actions"`
	UpdatedAt         time.Time                                    `json:"updated_at"`
}

// PolicyFor returns the rate-limit policy for action, falling back to the
// "*" entry. ok is false when neither exists.
func (s *CommunityModerationSettings) PolicyFor(action string) (ActionPolicy, bool) {
	policies := s.ActionPolicies.Data()
	if p, ok := policies[action]; ok {
		return p, true
	}
	p, ok := policies[FallbackPolicyKey]
	return p, ok
}

func (CommunityModerationSettings) TableName() string {
	return "community_moderation_settings"
}
