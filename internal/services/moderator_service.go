package services

import (
	"context"
	"errors"
	"strings"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/models"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AddModeratorInput assigns a role. Permissions default to the role's set
// when empty.
type AddModeratorInput struct {
	CommunityID string
	UserID      string
	Role        string
	Permissions []string
	AssignedBy  string
}

// ModeratorService manages the moderator roster. It records assignments but
// does not decide who may call it; that is checked at the HTTP layer via
// HasPermission.
type ModeratorService struct {
	db    *gorm.DB
	audit *AuditLog
	options
}

func NewModeratorService(db *gorm.DB, audit *AuditLog, opts ...Option) *ModeratorService {
	return &ModeratorService{db: db, audit: audit, options: buildOptions(opts)}
}

func (s *ModeratorService) Add(ctx context.Context, in AddModeratorInput) (uuid.UUID, error) {
	if strings.TrimSpace(in.CommunityID) == "" || strings.TrimSpace(in.UserID) == "" {
		return uuid.Nil, invalid("community_id and user_id are required")
	}
	role := in.Role
	if role == "" {
		role = models.RoleModerator
	}
	defaults, ok := models.DefaultPermissions[role]
	if !ok {
		return uuid.Nil, invalid("role must be moderator, admin or owner")
	}
	perms := cleanList(in.Permissions)
	if len(perms) == 0 {
		perms = append(perms, defaults...)
	}

	var existing int64
	err := s.db.WithContext(ctx).Model(&models.Moderator{}).
		Scopes(tenant.ForMember(in.CommunityID, in.UserID)).
		Where("is_active = ?", true).
		Count(&existing).Error
	if err != nil {
		return uuid.Nil, storeErr("check moderator", err)
	}
	if existing > 0 {
		return uuid.Nil, ErrAlreadyModerator
	}

	moderator := models.Moderator{
		ID:          uuid.New(),
		CommunityID: in.CommunityID,
		UserID:      in.UserID,
		Role:        role,
		Permissions: perms,
		AssignedBy:  in.AssignedBy,
		AssignedAt:  s.now(),
		IsActive:    true,
	}
	if err := s.db.WithContext(ctx).Create(&moderator).Error; err != nil {
		return uuid.Nil, storeErr("create moderator", err)
	}

	if err := s.audit.Record(ctx, &models.ModerationLog{
		CommunityID: moderator.CommunityID,
		ActorID:     in.AssignedBy,
		Action:      models.ActionModeratorAdded,
		TargetType:  models.TargetTypeUser,
		TargetID:    moderator.UserID,
		Details: map[string]interface{}{
			"role":        role,
			"permissions": []string(perms),
		},
	}); err != nil {
		return uuid.Nil, err
	}
	return moderator.ID, nil
}

// Remove deactivates a moderator. Removing an inactive moderator is a no-op.
func (s *ModeratorService) Remove(ctx context.Context, id uuid.UUID, actorID string) error {
	var moderator models.Moderator
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&moderator).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrModeratorNotFound
	}
	if err != nil {
		return storeErr("load moderator", err)
	}
	if !moderator.IsActive {
		return nil
	}

	result := s.db.WithContext(ctx).Model(&models.Moderator{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if result.Error != nil {
		return storeErr("remove moderator", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil
	}

	return s.audit.Record(ctx, &models.ModerationLog{
		CommunityID: moderator.CommunityID,
		ActorID:     actorID,
		Action:      models.ActionModeratorRemoved,
		TargetType:  models.TargetTypeUser,
		TargetID:    moderator.UserID,
		Details:     map[string]interface{}{"role": moderator.Role},
	})
}

// Get returns a moderator record by id, active or not.
func (s *ModeratorService) Get(ctx context.Context, id uuid.UUID) (*models.Moderator, error) {
	var moderator models.Moderator
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&moderator).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrModeratorNotFound
	}
	if err != nil {
		return nil, storeErr("load moderator", err)
	}
	return &moderator, nil
}

// List returns the active moderators of a community.
func (s *ModeratorService) List(ctx context.Context, communityID string) ([]models.Moderator, error) {
	var moderators []models.Moderator
	err := s.db.WithContext(ctx).
		Scopes(tenant.ForCommunity(communityID)).
		Where("is_active = ?", true).
		Order("assigned_at ASC").
		Find(&moderators).Error
	if err != nil {
		return nil, storeErr("list moderators", err)
	}
	return moderators, nil
}

// HasPermission reports whether userID is an active moderator of the
// community holding perm.
func (s *ModeratorService) HasPermission(ctx context.Context, communityID, userID, perm string) (bool, error) {
	var moderator models.Moderator
	err := s.db.WithContext(ctx).
		Scopes(tenant.ForMember(communityID, userID)).
		Where("is_active = ?", true).
		First(&moderator).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeErr("load moderator", err)
	}
	return moderator.Has(perm), nil
}
