package handlers

import (
	"strconv"
	"strings"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/dto"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/services"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

type GatewayHandler struct {
	gateway *services.Gateway
}

func NewGatewayHandler(gateway *services.Gateway) *GatewayHandler {
	return &GatewayHandler{gateway: gateway}
}

// Admit runs one gated action through the gateway. A missing token is not
// an HTTP error here; the gateway reports it as AuthenticationMissing.
func (h *GatewayHandler) Admit(c *fiber.Ctx) error {
	var req dto.AdmitRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.ActionType) == "" {
		return badRequest(c, "action_type is required")
	}

	actorID, _ := tenant.GetActorID(c)
	decision := h.gateway.Admit(c.UserContext(), services.AdmitRequest{
		ActorID:     actorID,
		CommunityID: tenant.GetCommunityID(c),
		ActionType:  req.ActionType,
		Content:     req.Content,
	})

	if secs, ok := decision.Detail["retry_after_seconds"].(int); ok && decision.Reason == services.ReasonRateLimited {
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
	}
	return c.Status(decisionStatus(decision)).JSON(decision)
}

func decisionStatus(d *services.Decision) int {
	if d.Allowed {
		return fiber.StatusOK
	}
	switch d.Reason {
	case services.ReasonAuthenticationMissing:
		return fiber.StatusUnauthorized
	case services.ReasonRestrictionActive:
		return fiber.StatusForbidden
	case services.ReasonPolicyViolation:
		return fiber.StatusUnprocessableEntity
	case services.ReasonRateLimited:
		return fiber.StatusTooManyRequests
	case services.ReasonBackendUnavailable:
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusForbidden
}
