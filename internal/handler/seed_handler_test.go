package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pharmacy-realtime-api/internal/dto"
	"github.com/noah-isme/pharmacy-realtime-api/internal/handler"
	"github.com/noah-isme/pharmacy-realtime-api/internal/service"
)

type mockSeedService struct {
	err       error
	lastToken string
	lastUsers []dto.SeedUser
	affected  int64
}

func (m *mockSeedService) SeedUsers(_ context.Context, token string, items []dto.SeedUser) (int64, error) {
	m.lastToken = token
	m.lastUsers = items
	if m.err != nil {
		return 0, m.err
	}
	return m.affected, nil
}

func newSeedApp(svc service.SeedService) *fiber.App {
	app := fiber.New()
	handler.NewSeedHandler(svc, zerolog.Nop()).Register(app.Group("/api/v1/seed"))
	return app
}

func seedRequest(body, token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/seed/users", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Seed-Token", token)
	}
	return req
}

func TestSeedHandlerSeedsUsers(t *testing.T) {
	svc := &mockSeedService{affected: 2}
	app := newSeedApp(svc)

	resp, err := app.Test(seedRequest(`{"items":[{"username":"rina","role":"pharmacist"},{"username":"budi","role":"admin"}]}`, "secret"), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success bool             `json:"success"`
		Data    map[string]int64 `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Equal(t, int64(2), body.Data["affected"])
	require.Equal(t, "secret", svc.lastToken)
	require.Len(t, svc.lastUsers, 2)
}

func TestSeedHandlerRejectsDisabledAndBadToken(t *testing.T) {
	svc := &mockSeedService{err: service.ErrSeedDisabled}
	app := newSeedApp(svc)

	resp, err := app.Test(seedRequest(`{"items":[]}`, "secret"), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	svc.err = service.ErrSeedUnauthorized
	resp, err = app.Test(seedRequest(`{"items":[]}`, "wrong"), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestSeedHandlerValidationAndFailures(t *testing.T) {
	validationErr := validator.New().Struct(dto.SeedUser{Username: "x", Role: "doctor"})
	require.Error(t, validationErr)

	svc := &mockSeedService{err: validationErr}
	app := newSeedApp(svc)

	resp, err := app.Test(seedRequest(`{"items":[{"username":"x","role":"doctor"}]}`, "secret"), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(seedRequest(`{"items":`, "secret"), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	svc.err = errors.New("database down")
	resp, err = app.Test(seedRequest(`{"items":[]}`, "secret"), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
