package middleware

import (
	"crypto/subtle"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/config"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/dto"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
)

func JWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{Key: []byte(cfg.JWTSecret)},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "Unauthorized: invalid or expired token",
			})
		},
	})
}

// OptionalJWT validates a bearer token when one is sent. Requests without a
// valid token continue with no user in context.
func OptionalJWT(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{Key: []byte(cfg.JWTSecret)},
		Filter: func(c *fiber.Ctx) bool {
			return c.Get(fiber.HeaderAuthorization) == ""
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			c.Locals("user", nil)
			return c.Next()
		},
	})
}

// JWTOrAdminToken accepts either a valid JWT or the configured X-Admin-Token.
func JWTOrAdminToken(cfg *config.Config) fiber.Handler {
	jwt := JWTProtected(cfg)
	return func(c *fiber.Ctx) error {
		if validAdminToken(c, cfg) {
			c.Locals("admin_actor", "admin-token")
			return c.Next()
		}
		return jwt(c)
	}
}

func validAdminToken(c *fiber.Ctx, cfg *config.Config) bool {
	if cfg.AdminToken == "" {
		return false
	}
	got := c.Get("X-Admin-Token")
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(cfg.AdminToken)) == 1
}
