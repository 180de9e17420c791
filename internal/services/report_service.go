package services

import (
	"context"
	"errors"
	"strings"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/eventbus"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/models"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreateReportInput struct {
	CommunityID string
	ReporterID  string
	TargetType  string
	TargetID    string
	Reason      string
}

// ReportUpdate changes the listed fields; nil fields are left unchanged.
type ReportUpdate struct {
	Status     *string `json:"status"`
	Resolution *string `json:"resolution"`
	Reason     *string `json:"reason"`
}

// reportTransitions lists the statuses reachable from each non-terminal
// status.
var reportTransitions = map[string][]string{
	models.ReportStatusPending:   {models.ReportStatusReviewing, models.ReportStatusResolved, models.ReportStatusDismissed},
	models.ReportStatusReviewing: {models.ReportStatusResolved, models.ReportStatusDismissed},
}

// CanTransition reports whether a report may move from one status to
// another. Staying in a non-terminal status is allowed.
func CanTransition(from, to string) bool {
	if models.IsTerminalReportStatus(from) {
		return false
	}
	if from == to {
		return true
	}
	for _, s := range reportTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type ReportService struct {
	db    *gorm.DB
	audit *AuditLog
	options
}

func NewReportService(db *gorm.DB, audit *AuditLog, opts ...Option) *ReportService {
	return &ReportService{db: db, audit: audit, options: buildOptions(opts)}
}

func (s *ReportService) Create(ctx context.Context, in CreateReportInput) (uuid.UUID, error) {
	if in.TargetType != models.TargetTypeContent && in.TargetType != models.TargetTypeUser {
		return uuid.Nil, invalid("target_type must be content or user")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return uuid.Nil, invalid("reason is required")
	}
	if strings.TrimSpace(in.CommunityID) == "" || strings.TrimSpace(in.ReporterID) == "" || strings.TrimSpace(in.TargetID) == "" {
		return uuid.Nil, invalid("community_id, reporter_id and target_id are required")
	}

	now := s.now()
	report := models.Report{
		ID:          uuid.New(),
		CommunityID: in.CommunityID,
		ReporterID:  in.ReporterID,
		TargetType:  in.TargetType,
		TargetID:    in.TargetID,
		Reason:      strings.TrimSpace(in.Reason),
		Status:      models.ReportStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&report).Error; err != nil {
		return uuid.Nil, storeErr("create report", err)
	}

	s.publish(ctx, eventbus.ReportsTopic(report.CommunityID))
	return report.ID, nil
}

func (s *ReportService) Get(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	var report models.Report
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, storeErr("load report", err)
	}
	return &report, nil
}

// Update applies in to a report. The write only succeeds if the status is
// still the one that was read, so a concurrent change can never move a
// report out of a terminal status.
func (s *ReportService) Update(ctx context.Context, id uuid.UUID, in ReportUpdate, actorID string) (*models.Report, error) {
	report, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if report.IsTerminal() {
		return nil, ErrReportClosed
	}

	next := report.Status
	if in.Status != nil {
		next = *in.Status
	}
	if !CanTransition(report.Status, next) {
		return nil, ErrInvalidTransition
	}

	updates := map[string]interface{}{
		"status":     next,
		"updated_at": s.now(),
	}
	if in.Resolution != nil {
		updates["resolution"] = *in.Resolution
	}
	if in.Reason != nil {
		if strings.TrimSpace(*in.Reason) == "" {
			return nil, invalid("reason cannot be empty")
		}
		updates["reason"] = strings.TrimSpace(*in.Reason)
	}
	if next != report.Status {
		updates["reviewed_by"] = actorID
	}

	result := s.db.WithContext(ctx).Model(&models.Report{}).
		Where("id = ? AND status = ?", id, report.Status).
		Updates(updates)
	if result.Error != nil {
		return nil, storeErr("update report", result.Error)
	}
	if result.RowsAffected == 0 {
		current, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.IsTerminal() {
			return nil, ErrReportClosed
		}
		return nil, ErrReportConflict
	}

	if err := s.audit.Record(ctx, &models.ModerationLog{
		CommunityID: report.CommunityID,
		ActorID:     actorID,
		Action:      models.ActionReportUpdated,
		TargetType:  "report",
		TargetID:    report.ID.String(),
		Details: map[string]interface{}{
			"from_status": report.Status,
			"to_status":   next,
		},
	}); err != nil {
		return nil, err
	}

	s.publish(ctx, eventbus.ReportsTopic(report.CommunityID))
	return s.Get(ctx, id)
}

// List returns one page of a community's reports, newest first, with the
// total matching count.
func (s *ReportService) List(ctx context.Context, communityID, status string, limit, offset int) ([]models.Report, int64, error) {
	var reports []models.Report
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Report{}).Scopes(tenant.ForCommunity(communityID))
	if status != "" {
		query = query.Where("status = ?", status)
	}
	query = query.Session(&gorm.Session{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, storeErr("count reports", err)
	}
	if offset < 0 {
		offset = 0
	}

	if err := query.Order("created_at DESC").Limit(clampLimit(limit)).Offset(offset).Find(&reports).Error; err != nil {
		return nil, 0, storeErr("list reports", err)
	}
	return reports, total, nil
}

// Subscribe streams every report of a community, optionally filtered by
// status, newest first. Snapshots are not paged.
func (s *ReportService) Subscribe(communityID, status string) *eventbus.Subscription[[]models.Report] {
	return eventbus.Register(s.bus, eventbus.Query[[]models.Report]{
		Topic: eventbus.ReportsTopic(communityID),
		Load: func(ctx context.Context) ([]models.Report, error) {
			return s.all(ctx, communityID, status)
		},
	})
}

func (s *ReportService) all(ctx context.Context, communityID, status string) ([]models.Report, error) {
	var reports []models.Report
	query := s.db.WithContext(ctx).Scopes(tenant.ForCommunity(communityID))
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Order("created_at DESC").Find(&reports).Error; err != nil {
		return nil, storeErr("load reports", err)
	}
	return reports, nil
}
