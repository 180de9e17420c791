package middleware

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/config"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/dto"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

// PermissionChecker answers whether a user holds a moderator permission in a
// community.
type PermissionChecker interface {
	HasPermission(ctx context.Context, communityID, userID, perm string) (bool, error)
}

// RequirePermission allows the request when the caller:
// 1. presented the admin token
// 2. is listed in ADMIN_USER_IDS
// 3. is an active moderator of the community holding perm
func RequirePermission(checker PermissionChecker, cfg *config.Config, perm string) fiber.Handler {
	adminUserIDs := parseCSV(cfg.AdminUserIDs)

	return func(c *fiber.Ctx) error {
		if tenant.GetAdminActor(c) != "" {
			return c.Next()
		}

		sub, err := tenant.GetActorID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		if contains(adminUserIDs, sub) {
			return c.Next()
		}

		ok, err := checker.HasPermission(c.UserContext(), tenant.GetCommunityID(c), sub, perm)
		if err != nil {
			slog.Error("permission check failed", "user_id", sub, "permission", perm, "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
				Error: true, Message: "Permission check unavailable",
			})
		}
		if !ok {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: "Missing permission: " + perm,
			})
		}
		return c.Next()
	}
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func contains(list []string, val string) bool {
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}
