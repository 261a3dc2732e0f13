package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pharmacy-realtime-api/internal/dto"
	"github.com/noah-isme/pharmacy-realtime-api/internal/handler"
	"github.com/noah-isme/pharmacy-realtime-api/internal/middleware"
	"github.com/noah-isme/pharmacy-realtime-api/internal/models"
	"github.com/noah-isme/pharmacy-realtime-api/internal/repository"
)

type stubPresenceService struct {
	users map[uint]dto.PresenceResponse
}

func (s *stubPresenceService) Online(context.Context, uint) (models.Role, bool) {
	return models.RoleStaff, true
}

func (s *stubPresenceService) Offline(context.Context, uint) {}

func (s *stubPresenceService) Get(_ context.Context, userID uint) (dto.PresenceResponse, error) {
	presence, ok := s.users[userID]
	if !ok {
		return dto.PresenceResponse{}, repository.ErrNotFound
	}
	return presence, nil
}

func (s *stubPresenceService) ListOnline(context.Context) ([]dto.PresenceResponse, error) {
	out := make([]dto.PresenceResponse, 0, len(s.users))
	for _, presence := range s.users {
		if presence.IsOnlineNow {
			out = append(out, presence)
		}
	}
	return out, nil
}

func newPresenceApp() *fiber.App {
	svc := &stubPresenceService{users: map[uint]dto.PresenceResponse{
		1: {UserID: 1, Username: "rina", Role: models.RoleStaff, Status: models.PresenceOnline, IsOnlineNow: true},
		2: {UserID: 2, Username: "budi", Role: models.RoleAdministrator, Status: models.PresenceOffline},
	}}

	app := fiber.New()
	handler.NewPresenceHandler(svc, zerolog.Nop()).Register(app.Group("/api/v1/presence", middleware.OptionalJWT(testJWTSecret)))
	return app
}

func TestPresenceHandlerListsOnlineUsers(t *testing.T) {
	app := newPresenceApp()

	resp := doRequest(t, app, http.MethodGet, "/api/v1/presence/online", tokenFor(t, 2, "administrator"), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data []dto.PresenceResponse `json:"data"`
		Meta map[string]int         `json:"meta"`
	}
	decodeResponse(t, resp, &body)
	require.Len(t, body.Data, 1)
	require.Equal(t, "rina", body.Data[0].Username)
	require.Equal(t, 1, body.Meta["count"])
}

func TestPresenceHandlerGetUser(t *testing.T) {
	app := newPresenceApp()
	token := tokenFor(t, 1, "pharmacist")

	resp := doRequest(t, app, http.MethodGet, "/api/v1/presence/2", token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body struct {
		Data dto.PresenceResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, models.PresenceOffline, body.Data.Status)

	resp = doRequest(t, app, http.MethodGet, "/api/v1/presence/99", token, nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, app, http.MethodGet, "/api/v1/presence/zero", token, nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPresenceHandlerRequiresStaffRole(t *testing.T) {
	app := newPresenceApp()

	resp := doRequest(t, app, http.MethodGet, "/api/v1/presence/online", "", nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, app, http.MethodGet, "/api/v1/presence/online", tokenFor(t, 9, "courier"), nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
