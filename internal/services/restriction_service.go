package services

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/eventbus"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/models"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateRestrictionInput describes a new ban, mute or restrict. A nil
// Duration makes it permanent.
type CreateRestrictionInput struct {
	CommunityID string
	UserID      string
	Type        string
	Reason      string
	CreatedBy   string
	Duration    *time.Duration
	Actions     []string
}

// RestrictionService stores restrictions and evaluates which are active.
// Activity is computed from expires_at on every read; nothing is swept.
type RestrictionService struct {
	db    *gorm.DB
	audit *AuditLog
	options
}

func NewRestrictionService(db *gorm.DB, audit *AuditLog, opts ...Option) *RestrictionService {
	return &RestrictionService{db: db, audit: audit, options: buildOptions(opts)}
}

// CreateRestriction stores the restriction for (community, user, type),
// replacing any earlier record for that key, and returns its id.
func (s *RestrictionService) CreateRestriction(ctx context.Context, in CreateRestrictionInput) (uuid.UUID, error) {
	if strings.TrimSpace(in.CommunityID) == "" || strings.TrimSpace(in.UserID) == "" {
		return uuid.Nil, invalid("community_id and user_id are required")
	}
	if _, ok := models.RestrictionPrecedence[in.Type]; !ok {
		return uuid.Nil, invalid("type must be ban, mute or restrict")
	}
	if in.Duration != nil && *in.Duration <= 0 {
		return uuid.Nil, invalid("duration must be positive")
	}

	now := s.now()
	restriction := models.Restriction{
		ID:          uuid.New(),
		CommunityID: in.CommunityID,
		UserID:      in.UserID,
		Type:        in.Type,
		Reason:      in.Reason,
		Actions:     cleanList(in.Actions),
		CreatedBy:   in.CreatedBy,
		CreatedAt:   now,
	}
	if in.Duration != nil {
		expires := now.Add(*in.Duration)
		restriction.ExpiresAt = &expires
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "community_id"}, {Name: "user_id"}, {Name: "type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"reason", "actions", "created_by", "created_at", "expires_at",
		}),
	}).Create(&restriction).Error
	if err != nil {
		return uuid.Nil, storeErr("create restriction", err)
	}

	// On conflict the existing row keeps its id.
	var stored models.Restriction
	err = s.db.WithContext(ctx).
		Scopes(tenant.ForMember(in.CommunityID, in.UserID)).
		Where("type = ?", in.Type).
		First(&stored).Error
	if err != nil {
		return uuid.Nil, storeErr("load restriction", err)
	}

	details := map[string]interface{}{
		"type":   stored.Type,
		"reason": stored.Reason,
	}
	if stored.ExpiresAt != nil {
		details["expires_at"] = stored.ExpiresAt.Format(time.RFC3339)
	}
	if err := s.audit.Record(ctx, &models.ModerationLog{
		CommunityID: stored.CommunityID,
		ActorID:     in.CreatedBy,
		Action:      models.ActionRestrictionCreated,
		TargetType:  models.TargetTypeUser,
		TargetID:    stored.UserID,
		Details:     details,
	}); err != nil {
		return uuid.Nil, err
	}

	s.publish(ctx, eventbus.RestrictionsTopic(stored.CommunityID))
	return stored.ID, nil
}

func (s *RestrictionService) Get(ctx context.Context, id uuid.UUID) (*models.Restriction, error) {
	var restriction models.Restriction
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&restriction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRestrictionNotFound
	}
	if err != nil {
		return nil, storeErr("load restriction", err)
	}
	return &restriction, nil
}

// Revoke ends a restriction now. Revoking an inactive restriction is a no-op.
func (s *RestrictionService) Revoke(ctx context.Context, id uuid.UUID, actorID string) error {
	restriction, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	now := s.now()
	if !restriction.ActiveAt(now) {
		return nil
	}

	result := s.db.WithContext(ctx).Model(&models.Restriction{}).
		Where("id = ? AND (expires_at IS NULL OR expires_at > ?)", id, now).
		Update("expires_at", now)
	if result.Error != nil {
		return storeErr("revoke restriction", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil
	}

	if err := s.audit.Record(ctx, &models.ModerationLog{
		CommunityID: restriction.CommunityID,
		ActorID:     actorID,
		Action:      models.ActionRestrictionRevoked,
		TargetType:  models.TargetTypeUser,
		TargetID:    restriction.UserID,
		Details: map[string]interface{}{
			"type":           restriction.Type,
			"restriction_id": restriction.ID.String(),
		},
	}); err != nil {
		return err
	}

	s.publish(ctx, eventbus.RestrictionsTopic(restriction.CommunityID))
	return nil
}

// GetActiveRestrictions returns the restrictions in force for a user, most
// severe first (ban, mute, restrict).
func (s *RestrictionService) GetActiveRestrictions(ctx context.Context, userID, communityID string) ([]models.Restriction, error) {
	var restrictions []models.Restriction
	err := s.db.WithContext(ctx).
		Scopes(tenant.ForMember(communityID, userID)).
		Where("expires_at IS NULL OR expires_at > ?", s.now()).
		Find(&restrictions).Error
	if err != nil {
		return nil, storeErr("load active restrictions", err)
	}
	sortByPrecedence(restrictions)
	return restrictions, nil
}

// PrimaryRestriction returns the most severe active restriction covering
// action, or nil.
func (s *RestrictionService) PrimaryRestriction(ctx context.Context, userID, action string, hasContent bool, settings *models.CommunityModerationSettings) (*models.Restriction, error) {
	active, err := s.GetActiveRestrictions(ctx, userID, settings.CommunityID)
	if err != nil {
		return nil, err
	}
	for i := range active {
		if Covers(&active[i], action, hasContent, settings) {
			return &active[i], nil
		}
	}
	return nil, nil
}

// ListActive returns every active restriction of a community, newest first.
func (s *RestrictionService) ListActive(ctx context.Context, communityID string) ([]models.Restriction, error) {
	var restrictions []models.Restriction
	err := s.db.WithContext(ctx).
		Scopes(tenant.ForCommunity(communityID)).
		Where("expires_at IS NULL OR expires_at > ?", s.now()).
		Order("created_at DESC").
		Find(&restrictions).Error
	if err != nil {
		return nil, storeErr("list restrictions", err)
	}
	return restrictions, nil
}

// SubscribeActive streams the active restrictions of a community.
func (s *RestrictionService) SubscribeActive(communityID string) *eventbus.Subscription[[]models.Restriction] {
	return eventbus.Register(s.bus, eventbus.Query[[]models.Restriction]{
		Topic: eventbus.RestrictionsTopic(communityID),
		Load: func(ctx context.Context) ([]models.Restriction, error) {
			return s.ListActive(ctx, communityID)
		},
	})
}

// Covers reports whether r blocks action. A ban blocks everything; a mute
// blocks the community's muted actions and any submission with content; a
// restrict blocks its own action list, or the community's restricted
// actions when it has none.
func Covers(r *models.Restriction, action string, hasContent bool, settings *models.CommunityModerationSettings) bool {
	switch r.Type {
	case models.RestrictionBan:
		return true
	case models.RestrictionMute:
		return hasContent || slices.Contains(mutedActions(settings), action)
	case models.RestrictionRestrict:
		if len(r.Actions) > 0 {
			return slices.Contains([]string(r.Actions), action)
		}
		return slices.Contains(restrictedActions(settings), action)
	}
	return false
}

func sortByPrecedence(restrictions []models.Restriction) {
	slices.SortStableFunc(restrictions, func(a, b models.Restriction) int {
		return models.RestrictionPrecedence[a.Type] - models.RestrictionPrecedence[b.Type]
	})
}
