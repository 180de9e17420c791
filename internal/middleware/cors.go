package middleware

import (
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/config"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORS lets browser moderator panels call the API. Retry-After is exposed
// so clients can back off after a 429 from the gate.
func CORS(cfg *config.Config) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:  cfg.CORSOrigins,
		AllowHeaders:  "Origin, Content-Type, Authorization, Accept, X-Community-ID, X-Admin-Token, Last-Event-ID",
		AllowMethods:  "GET, POST, PUT, DELETE, OPTIONS",
		ExposeHeaders: "Retry-After, X-Request-ID",
		MaxAge:        600,
	})
}
