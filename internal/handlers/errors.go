package handlers

import (
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/dto"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/services"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

// serviceError writes the response for an error returned by a service.
// Unexpected errors are logged and reported as 500 with msg.
func serviceError(c *fiber.Ctx, err error, msg string) error {
	status := fiber.StatusInternalServerError
	message := msg
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		status, message = fiber.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrNotFound):
		status, message = fiber.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrReportClosed),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrReportConflict),
		errors.Is(err, services.ErrAlreadyModerator):
		status, message = fiber.StatusConflict, err.Error()
	case errors.Is(err, services.ErrBackendUnavailable):
		status, message = fiber.StatusServiceUnavailable, "Storage temporarily unavailable, retry later"
		slog.Error(msg, "path", c.Path(), "error", err)
	default:
		slog.Error(msg, "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: message})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: msg})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: true, Message: "Unauthorized"})
}

// moderatorActor returns the id recorded as actor for a moderator request:
// the JWT subject, or the admin token marker.
func moderatorActor(c *fiber.Ctx) (string, bool) {
	if sub, err := tenant.GetActorID(c); err == nil {
		return sub, true
	}
	if admin := tenant.GetAdminActor(c); admin != "" {
		return admin, true
	}
	return "", false
}
