package middleware

import (
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
)

// Config customises the middleware registration pipeline.
type Config struct {
	Logger *zerolog.Logger
	// AccessLog adds fiber's plain-text access log next to the structured request log.
	AccessLog bool
}

var (
	corsHeaders = []string{
		fiber.HeaderOrigin,
		fiber.HeaderContentType,
		fiber.HeaderAccept,
		fiber.HeaderAuthorization,
		correlationHeader,
		"X-Seed-Token",
	}
	corsMethods = []string{fiber.MethodGet, fiber.MethodPost, fiber.MethodPatch, fiber.MethodOptions}
)

// Register installs the middleware shared by every route: panic recovery, correlation
// ids, request metrics and logging, and CORS.
func Register(app *fiber.App, cfg Config) {
	httpLogger := zerolog.New(io.Discard)
	if cfg.Logger != nil {
		httpLogger = cfg.Logger.With().Str("component", "http").Logger()
	}

	app.Use(recover.New(recover.Config{EnableStackTrace: cfg.AccessLog}))
	app.Use(CorrelationID())
	app.Use(Observability(httpLogger))
	if cfg.AccessLog {
		app.Use(logger.New())
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  strings.Join(corsHeaders, ", "),
		AllowMethods:  strings.Join(corsMethods, ","),
		ExposeHeaders: correlationHeader,
	}))
}
