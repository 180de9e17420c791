package handlers

import (
	"strconv"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/dto"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/services"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/tenant"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ModerationHandler struct {
	reports      *services.ReportService
	restrictions *services.RestrictionService
}

func NewModerationHandler(reports *services.ReportService, restrictions *services.RestrictionService) *ModerationHandler {
	return &ModerationHandler{reports: reports, restrictions: restrictions}
}

func (h *ModerationHandler) CreateReport(c *fiber.Ctx) error {
	communityID := tenant.GetCommunityID(c)
	reporterID, err := tenant.GetActorID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.CreateReportRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	id, err := h.reports.Create(c.UserContext(), services.CreateReportInput{
		CommunityID: communityID,
		ReporterID:  reporterID,
		TargetType:  req.TargetType,
		TargetID:    req.TargetID,
		Reason:      req.Reason,
	})
	if err != nil {
		return serviceError(c, err, "Failed to create report")
	}

	return c.Status(fiber.StatusCreated).JSON(dto.IDResponse{ID: id.String()})
}

func (h *ModerationHandler) ListReports(c *fiber.Ctx) error {
	communityID := tenant.GetCommunityID(c)
	status := c.Query("status", "")
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	if limit > 100 {
		limit = 100
	}

	reports, total, err := h.reports.List(c.UserContext(), communityID, status, limit, offset)
	if err != nil {
		return serviceError(c, err, "Failed to fetch reports")
	}

	return c.JSON(fiber.Map{
		"reports": reports,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

func (h *ModerationHandler) GetReport(c *fiber.Ctx) error {
	reportID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid report ID")
	}

	report, err := h.reports.Get(c.UserContext(), reportID)
	if err == nil && report.CommunityID != tenant.GetCommunityID(c) {
		err = services.ErrReportNotFound
	}
	if err != nil {
		return serviceError(c, err, "Failed to fetch report")
	}
	return c.JSON(report)
}

func (h *ModerationHandler) UpdateReport(c *fiber.Ctx) error {
	actorID, ok := moderatorActor(c)
	if !ok {
		return unauthorized(c)
	}
	reportID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid report ID")
	}

	var req dto.UpdateReportRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	existing, err := h.reports.Get(c.UserContext(), reportID)
	if err == nil && existing.CommunityID != tenant.GetCommunityID(c) {
		err = services.ErrReportNotFound
	}
	if err != nil {
		return serviceError(c, err, "Failed to update report")
	}

	report, err := h.reports.Update(c.UserContext(), reportID, services.ReportUpdate{
		Status:     req.Status,
		Resolution: req.Resolution,
		Reason:     req.Reason,
	}, actorID)
	if err != nil {
		return serviceError(c, err, "Failed to update report")
	}
	return c.JSON(report)
}

func (h *ModerationHandler) StreamReports(c *fiber.Ctx) error {
	sub := h.reports.Subscribe(tenant.GetCommunityID(c), c.Query("status", ""))
	return streamSnapshots(c, sub)
}

func (h *ModerationHandler) ListRestrictions(c *fiber.Ctx) error {
	restrictions, err := h.restrictions.ListActive(c.UserContext(), tenant.GetCommunityID(c))
	if err != nil {
		return serviceError(c, err, "Failed to fetch restrictions")
	}
	return c.JSON(fiber.Map{"restrictions": restrictions})
}

func (h *ModerationHandler) UserRestrictions(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	restrictions, err := h.restrictions.GetActiveRestrictions(c.UserContext(), userID, tenant.GetCommunityID(c))
	if err != nil {
		return serviceError(c, err, "Failed to fetch restrictions")
	}
	return c.JSON(dto.UserRestrictionsResponse{UserID: userID, Restrictions: restrictions})
}

func (h *ModerationHandler) CreateRestriction(c *fiber.Ctx) error {
	actorID, ok := moderatorActor(c)
	if !ok {
		return unauthorized(c)
	}

	var req dto.CreateRestrictionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	id, err := h.restrictions.CreateRestriction(c.UserContext(), services.CreateRestrictionInput{
		CommunityID: tenant.GetCommunityID(c),
		UserID:      req.UserID,
		Type:        req.Type,
		Reason:      req.Reason,
		CreatedBy:   actorID,
		Duration:    req.Duration(),
		Actions:     req.Actions,
	})
	if err != nil {
		return serviceError(c, err, "Failed to create restriction")
	}
	return c.Status(fiber.StatusCreated).JSON(dto.IDResponse{ID: id.String()})
}

func (h *ModerationHandler) RevokeRestriction(c *fiber.Ctx) error {
	actorID, ok := moderatorActor(c)
	if !ok {
		return unauthorized(c)
	}
	restrictionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid restriction ID")
	}

	existing, err := h.restrictions.Get(c.UserContext(), restrictionID)
	if err == nil && existing.CommunityID != tenant.GetCommunityID(c) {
		err = services.ErrRestrictionNotFound
	}
	if err != nil {
		return serviceError(c, err, "Failed to revoke restriction")
	}

	if err := h.restrictions.Revoke(c.UserContext(), restrictionID, actorID); err != nil {
		return serviceError(c, err, "Failed to revoke restriction")
	}
	return c.JSON(fiber.Map{"message": "Restriction revoked"})
}

func (h *ModerationHandler) StreamRestrictions(c *fiber.Ctx) error {
	return streamSnapshots(c, h.restrictions.SubscribeActive(tenant.GetCommunityID(c)))
}
