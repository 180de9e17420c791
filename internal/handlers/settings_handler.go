package handlers

import (
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/dto"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/services"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

type SettingsHandler struct {
	settings *services.SettingsService
}

func NewSettingsHandler(settings *services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// Get returns the community's moderation settings, or the defaults when
// none are stored.
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	settings, err := h.settings.Get(c.UserContext(), tenant.GetCommunityID(c))
	if err != nil {
		return serviceError(c, err, "Failed to fetch settings")
	}
	return c.JSON(settings)
}

// Update replaces the fields present in the body.
func (h *SettingsHandler) Update(c *fiber.Ctx) error {
	actorID, ok := moderatorActor(c)
	if !ok {
		return unauthorized(c)
	}

	var req dto.UpdateSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	settings, err := h.settings.Update(c.UserContext(), tenant.GetCommunityID(c), actorID, services.SettingsUpdate{
		BannedKeywords:    req.BannedKeywords,
		ActionPolicies:    req.ActionPolicies,
		RestrictedActions: req.RestrictedActions,
		MutedActions:      req.MutedActions,
	})
	if err != nil {
		return serviceError(c, err, "Failed to update settings")
	}
	return c.JSON(settings)
}
