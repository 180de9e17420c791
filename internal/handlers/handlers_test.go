package handlers_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/config"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/eventbus"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/routes"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/services"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/tenant"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/testutil"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	community   = "makers"
	jwtSecret   = "test-secret"
	adminToken  = "test-admin-token"
	adminUserID = "platform-admin"
)

type testServer struct {
	app          *fiber.App
	db           *gorm.DB
	restrictions *services.RestrictionService
	reports      *services.ReportService
	moderators   *services.ModeratorService
	settings     *services.SettingsService
}

func newServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		JWTSecret:    jwtSecret,
		AdminToken:   adminToken,
		AdminUserIDs: adminUserID,
		CORSOrigins:  "*",
	}
	registry := tenant.NewRegistry()
	registry.Register(&tenant.CommunityConfig{CommunityID: community, Name: "Makers"})

	db := testutil.NewDB(t)
	bus := eventbus.New()
	t.Cleanup(bus.Close)

	opts := []services.Option{services.WithBus(bus)}
	audit := services.NewAuditLog(db, opts...)
	settings := services.NewSettingsService(db, audit, 16, time.Minute, opts...)
	restrictions := services.NewRestrictionService(db, audit, opts...)
	reports := services.NewReportService(db, audit, opts...)
	moderators := services.NewModeratorService(db, audit, opts...)
	gateway := services.NewGateway(settings, restrictions, services.NewPolicyEngine(audit),
		services.NewDBRateLimiter(db, opts...), opts...)

	app := fiber.New()
	app.Use(middleware.CommunityMiddleware(registry))
	routes.Setup(app, cfg, moderators, routes.Handlers{
		Health:     handlers.NewHealthHandler(registry, func() error { return nil }, nil),
		Gateway:    handlers.NewGatewayHandler(gateway),
		Moderation: handlers.NewModerationHandler(reports, restrictions),
		Moderators: handlers.NewModeratorHandler(moderators),
		Audit:      handlers.NewAuditHandler(audit),
		Settings:   handlers.NewSettingsHandler(settings),
	})

	return &testServer{
		app:          app,
		db:           db,
		restrictions: restrictions,
		reports:      reports,
		moderators:   moderators,
		settings:     settings,
	}
}

func token(t *testing.T, sub string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return signed
}

type request struct {
	method string
	path   string
	body   interface{}
	sub    string
	header map[string]string
}

func (s *testServer) do(t *testing.T, r request) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(r.method, r.path, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Community-ID", community)
	if r.sub != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, r.sub))
	}
	for k, v := range r.header {
		req.Header.Set(k, v)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func (s *testServer) addModerator(t *testing.T, userID string, perms ...string) {
	t.Helper()
	_, err := s.moderators.Add(context.Background(), services.AddModeratorInput{
		CommunityID: community, UserID: userID, Permissions: perms, AssignedBy: "owner-1",
	})
	require.NoError(t, err)
}

func (s *testServer) configure(t *testing.T, in services.SettingsUpdate) {
	t.Helper()
	_, err := s.settings.Update(context.Background(), community, "owner-1", in)
	require.NoError(t, err)
}

func ptr[T any](v T) *T { return &v }
