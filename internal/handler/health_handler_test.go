package handler_test

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pharmacy-realtime-api/internal/dto"
	"github.com/noah-isme/pharmacy-realtime-api/internal/handler"
	"github.com/noah-isme/pharmacy-realtime-api/internal/realtime"
)

func TestHealthCheckReportsConnections(t *testing.T) {
	registry := realtime.NewRegistry()
	require.NoError(t, registry.Connect(realtime.Connection{ID: "c1", Transport: realtime.TransportSSE, Sink: nopSink{}}))

	app := fiber.New()
	app.Get("/health", handler.HealthCheck(testConfig(), registry))

	resp := doRequest(t, app, http.MethodGet, "/health", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success bool                   `json:"success"`
		Data    handler.HealthResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Equal(t, "ok", body.Data.Status)
	require.Equal(t, "none", body.Data.Relay)
	require.Equal(t, 1, body.Data.Connections)
}

type nopSink struct{}

func (nopSink) Deliver(dto.Event) error { return nil }
