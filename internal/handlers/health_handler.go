package handlers

import (
	"context"
	"time"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/dto"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/tenant"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

type HealthHandler struct {
	registry *tenant.Registry
	ping     func() error
	redis    redis.UniversalClient
}

// NewHealthHandler reports on the database through ping and, when rdb is not
// nil, on redis.
func NewHealthHandler(registry *tenant.Registry, ping func() error, rdb redis.UniversalClient) *HealthHandler {
	return &HealthHandler{registry: registry, ping: ping, redis: rdb}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	dbStatus := "ok"
	if err := h.ping(); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	}

	resp := dto.HealthResponse{
		Status:         "ok",
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		DB:             dbStatus,
		CommunityCount: len(h.registry.All()),
	}
	if h.redis != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		resp.Redis = "ok"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			resp.Redis = "unhealthy: " + err.Error()
		}
	}
	return c.JSON(resp)
}
