package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/config"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/database"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/eventbus"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/logging"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/routes"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/services"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/tenant"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout)
	level := logging.ParseLevel(cfg.LogLevel)
	logging.Setup(level)

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBDriver != "sqlite" && cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Community registry
	registry, err := tenant.LoadFromFile(cfg.CommunitiesConfigPath)
	if err != nil {
		slog.Error("failed to load community registry", "path", cfg.CommunitiesConfigPath, "error", err)
		os.Exit(1)
	}
	slog.Info("community registry loaded", "communities", len(registry.All()))

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(database.DB); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// System log sink (ERROR+ async batch)
	dbLogHandler := logging.AttachDB(database.DB, level)

	// Log cleanup (30-day retention)
	logging.StartCleanup(ctx, database.DB)

	// Redis (optional)
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		slog.Info("redis connected")
	}

	// Event bus
	busOpts := []eventbus.Option{eventbus.WithPollInterval(cfg.EventBusPollInterval)}
	if rdb != nil {
		busOpts = append(busOpts, eventbus.WithRelay(eventbus.NewRedisRelay(rdb, "")))
	}
	bus := eventbus.New(busOpts...)
	busDone := make(chan struct{})
	go func() {
		defer close(busDone)
		if err := bus.Run(ctx); err != nil {
			slog.Error("event relay stopped", "error", err)
		}
	}()

	// Services
	opts := []services.Option{services.WithBus(bus)}
	auditLog := services.NewAuditLog(database.DB, opts...)
	settingsService := services.NewSettingsService(database.DB, auditLog, cfg.SettingsCacheSize, cfg.SettingsCacheTTL, opts...)
	restrictionService := services.NewRestrictionService(database.DB, auditLog, opts...)
	reportService := services.NewReportService(database.DB, auditLog, opts...)
	moderatorService := services.NewModeratorService(database.DB, auditLog, opts...)
	policyEngine := services.NewPolicyEngine(auditLog)

	var limiter services.RateLimiter
	if cfg.UsesRedisLimiter() {
		limiter = services.NewRedisRateLimiter(rdb, opts...)
		slog.Info("rate limiter backend", "backend", "redis")
	} else {
		dbLimiter := services.NewDBRateLimiter(database.DB, opts...)
		dbLimiter.StartRateEventCleanup(ctx, cfg.RateEventRetention)
		limiter = dbLimiter
		slog.Info("rate limiter backend", "backend", "database")
	}
	gateway := services.NewGateway(settingsService, restrictionService, policyEngine, limiter, opts...)

	// Seed default moderation settings
	slog.Info("seeding moderation settings defaults")
	if err := settingsService.SeedDefaults(ctx, registry.DefaultSettings()); err != nil {
		slog.Error("failed to seed moderation settings", "error", err)
	}

	// Handlers
	var healthRedis redis.UniversalClient
	if rdb != nil {
		healthRedis = rdb
	}
	h := routes.Handlers{
		Health:     handlers.NewHealthHandler(registry, database.Ping, healthRedis),
		Gateway:    handlers.NewGatewayHandler(gateway),
		Moderation: handlers.NewModerationHandler(reportService, restrictionService),
		Moderators: handlers.NewModeratorHandler(moderatorService),
		Audit:      handlers.NewAuditHandler(auditLog),
		Settings:   handlers.NewSettingsHandler(settingsService),
	}

	// Sentry error tracking
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      os.Getenv("APP_ENV"),
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})
	app.Use(middleware.CommunityMiddleware(registry))

	// Routes
	routes.Setup(app, cfg, moderatorService, h)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server...")

	// Ends every open stream so the server can drain.
	bus.Close()
	<-busDone

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	dbLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if rdb != nil {
		if err := rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			slog.Error("redis close error", "error", err)
		}
	}

	// Close database connections
	if err := database.Close(); err != nil {
		slog.Error("database close error", "error", err)
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
