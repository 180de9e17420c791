package handlers

import (
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/dto"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/services"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/tenant"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ModeratorHandler struct {
	moderators *services.ModeratorService
}

func NewModeratorHandler(moderators *services.ModeratorService) *ModeratorHandler {
	return &ModeratorHandler{moderators: moderators}
}

func (h *ModeratorHandler) List(c *fiber.Ctx) error {
	moderators, err := h.moderators.List(c.UserContext(), tenant.GetCommunityID(c))
	if err != nil {
		return serviceError(c, err, "Failed to fetch moderators")
	}
	return c.JSON(fiber.Map{"moderators": moderators})
}

func (h *ModeratorHandler) Add(c *fiber.Ctx) error {
	actorID, ok := moderatorActor(c)
	if !ok {
		return unauthorized(c)
	}

	var req dto.AddModeratorRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	id, err := h.moderators.Add(c.UserContext(), services.AddModeratorInput{
		CommunityID: tenant.GetCommunityID(c),
		UserID:      req.UserID,
		Role:        req.Role,
		Permissions: req.Permissions,
		AssignedBy:  actorID,
	})
	if err != nil {
		return serviceError(c, err, "Failed to add moderator")
	}
	return c.Status(fiber.StatusCreated).JSON(dto.IDResponse{ID: id.String()})
}

func (h *ModeratorHandler) Remove(c *fiber.Ctx) error {
	actorID, ok := moderatorActor(c)
	if !ok {
		return unauthorized(c)
	}
	moderatorID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid moderator ID")
	}

	existing, err := h.moderators.Get(c.UserContext(), moderatorID)
	if err == nil && existing.CommunityID != tenant.GetCommunityID(c) {
		err = services.ErrModeratorNotFound
	}
	if err != nil {
		return serviceError(c, err, "Failed to remove moderator")
	}

	if err := h.moderators.Remove(c.UserContext(), moderatorID, actorID); err != nil {
		return serviceError(c, err, "Failed to remove moderator")
	}
	return c.JSON(fiber.Map{"message": "Moderator removed"})
}
