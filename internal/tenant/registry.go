package tenant

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/models"
	"github.com/goccy/go-json"
	"gorm.io/datatypes"
)

// CommunityConfig is one entry of communities.json.
type CommunityConfig struct {
	CommunityID string             `json:"community_id"`
	Name        string             `json:"name"`
	Moderation  ModerationDefaults `json:"moderation"`
}

// ModerationDefaults seeds a community's settings the first time it starts.
type ModerationDefaults struct {
	BannedKeywords    []string                       `json:"banned_keywords"`
	ActionPolicies    map[string]models.ActionPolicy `json:"action_policies"`
	RestrictedActions []string                       `json:"restricted_actions"`
	MutedActions      []string                       `json:"muted_actions"`
}

func (m ModerationDefaults) validate() error {
	for action, p := range m.ActionPolicies {
		if !p.Valid() {
			return fmt.Errorf("action policy %q needs positive max_actions and window_minutes", action)
		}
	}
	return nil
}

type CommunitiesFile struct {
	Communities []CommunityConfig `json:"communities"`
}

type Registry struct {
	mu          sync.RWMutex
	communities map[string]*CommunityConfig
}

func NewRegistry() *Registry {
	return &Registry{
		communities: make(map[string]*CommunityConfig),
	}
}

func LoadFromFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read communities config: %w", err)
	}

	var file CommunitiesFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse communities config: %w", err)
	}

	registry := NewRegistry()
	for i := range file.Communities {
		if file.Communities[i].CommunityID == "" {
			return nil, fmt.Errorf("communities config entry %d has no community_id", i)
		}
		if err := file.Communities[i].Moderation.validate(); err != nil {
			return nil, fmt.Errorf("community %s: %w", file.Communities[i].CommunityID, err)
		}
		registry.Register(&file.Communities[i])
	}
	return registry, nil
}

func (r *Registry) Register(cfg *CommunityConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.communities[cfg.CommunityID] = cfg
}

func (r *Registry) Get(communityID string) *CommunityConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.communities[communityID]
}

func (r *Registry) Exists(communityID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.communities[communityID]
	return ok
}

func (r *Registry) All() []*CommunityConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*CommunityConfig, 0, len(r.communities))
	for _, cfg := range r.communities {
		result = append(result, cfg)
	}
	return result
}

// DefaultSettings converts every registered community's moderation block to
// a settings row.
func (r *Registry) DefaultSettings() []*models.CommunityModerationSettings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*models.CommunityModerationSettings, 0, len(r.communities))
	for id, cfg := range r.communities {
		m := cfg.Moderation
		policies := m.ActionPolicies
		if policies == nil {
			policies = map[string]models.ActionPolicy{}
		}
		result = append(result, &models.CommunityModerationSettings{
			CommunityID:       id,
			BannedKeywords:    cleanList(m.BannedKeywords),
			ActionPolicies:    datatypes.NewJSONType(policies),
			RestrictedActions: cleanList(m.RestrictedActions),
			MutedActions:      cleanList(m.MutedActions),
		})
	}
	return result
}

// cleanList trims entries and drops blank ones. The result is never nil.
func cleanList(in []string) datatypes.JSONSlice[string] {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
