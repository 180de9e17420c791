package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/config"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Health     *handlers.HealthHandler
	Gateway    *handlers.GatewayHandler
	Moderation *handlers.ModerationHandler
	Moderators *handlers.ModeratorHandler
	Audit      *handlers.AuditHandler
	Settings   *handlers.SettingsHandler
}

func Setup(
	app *fiber.App,
	cfg *config.Config,
	permissions middleware.PermissionChecker,
	h Handlers,
) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP. Gate checks are called by
	// product services on every user action and have their own limits.
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/api/health" || c.Path() == "/api/gate/admit"
		},
	}))

	// Health (no community required)
	api.Get("/health", h.Health.Check)

	// Gateway (actor optional; a missing actor is a gateway rejection)
	api.Post("/gate/admit", middleware.OptionalJWT(cfg), h.Gateway.Admit)

	// Reports — user endpoint (protected)
	api.Post("/reports", middleware.JWTProtected(cfg), h.Moderation.CreateReport)

	// Moderator panel (protected + per-route permission)
	mod := api.Group("/mod", middleware.JWTOrAdminToken(cfg))
	perm := func(p string) fiber.Handler {
		return middleware.RequirePermission(permissions, cfg, p)
	}

	mod.Get("/reports", perm(models.PermManageReports), h.Moderation.ListReports)
	mod.Get("/reports/stream", perm(models.PermManageReports), h.Moderation.StreamReports)
	mod.Get("/reports/:id", perm(models.PermManageReports), h.Moderation.GetReport)
	mod.Put("/reports/:id", perm(models.PermManageReports), h.Moderation.UpdateReport)

	mod.Get("/restrictions", perm(models.PermManageRestrictions), h.Moderation.ListRestrictions)
	mod.Get("/restrictions/stream", perm(models.PermManageRestrictions), h.Moderation.StreamRestrictions)
	mod.Get("/restrictions/user/:user_id", perm(models.PermManageRestrictions), h.Moderation.UserRestrictions)
	mod.Post("/restrictions", perm(models.PermManageRestrictions), h.Moderation.CreateRestriction)
	mod.Delete("/restrictions/:id", perm(models.PermManageRestrictions), h.Moderation.RevokeRestriction)

	mod.Get("/moderators", perm(models.PermManageModerators), h.Moderators.List)
	mod.Post("/moderators", perm(models.PermManageModerators), h.Moderators.Add)
	mod.Delete("/moderators/:id", perm(models.PermManageModerators), h.Moderators.Remove)

	mod.Get("/logs", perm(models.PermViewLogs), h.Audit.List)
	mod.Get("/logs/stream", perm(models.PermViewLogs), h.Audit.Stream)

	mod.Get("/settings", perm(models.PermManageSettings), h.Settings.Get)
	mod.Put("/settings", perm(models.PermManageSettings), h.Settings.Update)
}
