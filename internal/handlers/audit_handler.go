package handlers

import (
	"strconv"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/services"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

// AuditHandler exposes the moderation log read-only. Entries are written by
// the services, never through HTTP.
type AuditHandler struct {
	audit *services.AuditLog
}

func NewAuditHandler(audit *services.AuditLog) *AuditHandler {
	return &AuditHandler{audit: audit}
}

func (h *AuditHandler) List(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	logs, err := h.audit.List(c.UserContext(), tenant.GetCommunityID(c), limit)
	if err != nil {
		return serviceError(c, err, "Failed to fetch moderation logs")
	}
	return c.JSON(fiber.Map{"logs": logs})
}

func (h *AuditHandler) Stream(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	return streamSnapshots(c, h.audit.Subscribe(tenant.GetCommunityID(c), limit))
}
