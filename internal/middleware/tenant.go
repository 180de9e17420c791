package middleware

import (
	"strings"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/dto"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

// Paths that don't require a community.
var communitySkipPaths = []string{
	"/api/health",
	"/metrics",
}

// CommunityMiddleware extracts community_id from the X-Community-ID header or
// query param and checks it against the registry.
func CommunityMiddleware(registry *tenant.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()

		for _, skip := range communitySkipPaths {
			if strings.HasPrefix(path, skip) {
				return c.Next()
			}
		}

		communityID := c.Get("X-Community-ID")
		if communityID == "" {
			// Query param for EventSource clients, which cannot set headers.
			communityID = c.Query("community_id")
		}
		if communityID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "X-Community-ID header is required",
			})
		}

		if !registry.Exists(communityID) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "Unknown community: " + communityID,
			})
		}

		c.Locals("community_id", communityID)
		return c.Next()
	}
}
