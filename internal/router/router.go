package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/pharmacy-realtime-api/internal/config"
	"github.com/noah-isme/pharmacy-realtime-api/internal/handler"
	"github.com/noah-isme/pharmacy-realtime-api/internal/middleware"
	"github.com/noah-isme/pharmacy-realtime-api/internal/observability"
	"github.com/noah-isme/pharmacy-realtime-api/internal/realtime"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	Registry        *realtime.Registry
	RealtimeHandler *handler.RealtimeHandler
	MessageHandler  *handler.MessageHandler
	PresenceHandler *handler.PresenceHandler
	AlertHandler    *handler.AlertHandler
	SeedHandler     *handler.SeedHandler
	// IdentityMiddleware resolves the caller. Requests without a token pass through
	// anonymously and each handler decides whether a user is required.
	IdentityMiddleware fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	identity := deps.IdentityMiddleware
	if identity == nil {
		identity = middleware.OptionalJWT(cfg.JWTSecret)
	}

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.Registry))

	if deps.SeedHandler != nil {
		deps.SeedHandler.Register(api.Group("/seed"))
	}

	if deps.RealtimeHandler != nil {
		deps.RealtimeHandler.Register(api.Group("/realtime", identity))
	}

	if deps.MessageHandler != nil {
		messages := api.Group("/messages", identity, middleware.RateLimit("messages", cfg.ChatRateLimit, cfg.ChatRateWindow))
		deps.MessageHandler.Register(messages)
	}

	if deps.PresenceHandler != nil {
		deps.PresenceHandler.Register(api.Group("/presence", identity))
	}

	if deps.AlertHandler != nil {
		deps.AlertHandler.Register(api, identity)
	}
}
