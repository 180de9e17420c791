package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/models"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Default action scopes used when a community has not configured its own.
var (
	DefaultMutedActions      = []string{"post", "comment", "message", "reply"}
	DefaultRestrictedActions = []string{"post", "create_event", "create_opportunity", "invite"}
)

// SettingsUpdate replaces the listed fields; nil fields are left unchanged.
type SettingsUpdate struct {
	BannedKeywords    *[]string                       `json:"banned_keywords"`
	ActionPolicies    *map[string]models.ActionPolicy `json:"action_policies"`
	RestrictedActions *[]string                       `json:"restricted_actions"`
	MutedActions      *[]string                       `json:"muted_actions"`
}

// SettingsService reads and writes per-community moderation settings behind a
// short-lived cache.
type SettingsService struct {
	db    *gorm.DB
	audit *AuditLog
	cache *expirable.LRU[string, *models.CommunityModerationSettings]
	options
}

func NewSettingsService(db *gorm.DB, audit *AuditLog, cacheSize int, cacheTTL time.Duration, opts ...Option) *SettingsService {
	return &SettingsService{
		db:      db,
		audit:   audit,
		cache:   expirable.NewLRU[string, *models.CommunityModerationSettings](cacheSize, nil, cacheTTL),
		options: buildOptions(opts),
	}
}

// NewSettings returns empty settings for a community: no keywords, no rate
// limits, default action scopes.
func NewSettings(communityID string) *models.CommunityModerationSettings {
	return &models.CommunityModerationSettings{
		CommunityID:       communityID,
		BannedKeywords:    datatypes.JSONSlice[string]{},
		ActionPolicies:    datatypes.NewJSONType(map[string]models.ActionPolicy{}),
		RestrictedActions: datatypes.JSONSlice[string](DefaultRestrictedActions),
		MutedActions:      datatypes.JSONSlice[string](DefaultMutedActions),
	}
}

// Get returns the settings of a community, or defaults when none are stored.
// The result is shared and must not be modified.
func (s *SettingsService) Get(ctx context.Context, communityID string) (*models.CommunityModerationSettings, error) {
	if cached, ok := s.cache.Get(communityID); ok {
		return cached, nil
	}

	var settings models.CommunityModerationSettings
	err := s.db.WithContext(ctx).Where("community_id = ?", communityID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		defaults := NewSettings(communityID)
		s.cache.Add(communityID, defaults)
		return defaults, nil
	}
	if err != nil {
		return nil, storeErr("load moderation settings", err)
	}

	s.cache.Add(communityID, &settings)
	return &settings, nil
}

// Update applies in to the stored settings and records the change.
func (s *SettingsService) Update(ctx context.Context, communityID, actorID string, in SettingsUpdate) (*models.CommunityModerationSettings, error) {
	if err := validateSettingsUpdate(in); err != nil {
		return nil, err
	}

	s.cache.Remove(communityID)
	current, err := s.Get(ctx, communityID)
	if err != nil {
		return nil, err
	}
	next := *current
	if in.BannedKeywords != nil {
		next.BannedKeywords = cleanList(*in.BannedKeywords)
	}
	if in.ActionPolicies != nil {
		next.ActionPolicies = datatypes.NewJSONType(*in.ActionPolicies)
	}
	if in.RestrictedActions != nil {
		next.RestrictedActions = cleanList(*in.RestrictedActions)
	}
	if in.MutedActions != nil {
		next.MutedActions = cleanList(*in.MutedActions)
	}
	next.UpdatedAt = s.now()

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "community_id"}},
		UpdateAll: true,
	}).Create(&next).Error
	s.cache.Remove(communityID)
	if err != nil {
		return nil, storeErr("save moderation settings", err)
	}

	if err := s.audit.Record(ctx, &models.ModerationLog{
		CommunityID: communityID,
		ActorID:     actorID,
		Action:      models.ActionSettingsUpdated,
		TargetType:  "settings",
		TargetID:    communityID,
		Details: map[string]interface{}{
			"banned_keywords": len(next.BannedKeywords),
			"action_policies": len(next.ActionPolicies.Data()),
		},
	}); err != nil {
		return nil, err
	}
	return &next, nil
}

// SeedDefaults stores settings for communities that have none yet. Lists are
// cleaned like Update does, and an unenforceable policy rejects the whole
// seed before anything is written.
func (s *SettingsService) SeedDefaults(ctx context.Context, defaults []*models.CommunityModerationSettings) error {
	for _, d := range defaults {
		if err := validatePolicies(d.ActionPolicies.Data()); err != nil {
			return fmt.Errorf("community %s: %w", d.CommunityID, err)
		}
	}
	for _, d := range defaults {
		d.BannedKeywords = cleanList(d.BannedKeywords)
		d.RestrictedActions = cleanList(d.RestrictedActions)
		d.MutedActions = cleanList(d.MutedActions)
		d.UpdatedAt = s.now()
		err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(d).Error
		if err != nil {
			return storeErr("seed moderation settings", err)
		}
	}
	return nil
}

func validateSettingsUpdate(in SettingsUpdate) error {
	if in.ActionPolicies == nil {
		return nil
	}
	return validatePolicies(*in.ActionPolicies)
}

func validatePolicies(policies map[string]models.ActionPolicy) error {
	for action, p := range policies {
		if !p.Valid() {
			return invalid(fmt.Sprintf("policy %q needs positive max_actions and window_minutes", action))
		}
	}
	return nil
}

// cleanList trims entries and drops empty ones, keeping order.
func cleanList(in []string) datatypes.JSONSlice[string] {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func mutedActions(s *models.CommunityModerationSettings) []string {
	if len(s.MutedActions) == 0 {
		return DefaultMutedActions
	}
	return s.MutedActions
}

func restrictedActions(s *models.CommunityModerationSettings) []string {
	if len(s.RestrictedActions) == 0 {
		return DefaultRestrictedActions
	}
	return s.RestrictedActions
}
