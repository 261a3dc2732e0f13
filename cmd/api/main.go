package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pharmacy-realtime-api/internal/config"
	"github.com/noah-isme/pharmacy-realtime-api/internal/database"
	"github.com/noah-isme/pharmacy-realtime-api/internal/handler"
	"github.com/noah-isme/pharmacy-realtime-api/internal/middleware"
	"github.com/noah-isme/pharmacy-realtime-api/internal/realtime"
	"github.com/noah-isme/pharmacy-realtime-api/internal/repository"
	"github.com/noah-isme/pharmacy-realtime-api/internal/router"
	"github.com/noah-isme/pharmacy-realtime-api/internal/service"
)

func main() {
	bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := newLogger(cfg)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer func() {
			if err := natsConn.Drain(); err != nil {
				logger.Warn().Err(err).Msg("failed to drain nats connection")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New(validator.WithRequiredStructEnabled())

	registry := realtime.NewRegistry()
	dispatcher := realtime.NewDispatcher(registry, logger)

	nodeID := uuid.NewString()
	var relay realtime.Relay
	switch cfg.RealtimeRelay {
	case config.RelayRedis:
		relay = realtime.NewRedisRelay(redisClient, cfg.ChannelBase, nodeID, logger)
	case config.RelayNATS:
		relay = realtime.NewNATSRelay(natsConn, cfg.ChannelBase, nodeID, logger)
	}
	if relay != nil {
		if err := relay.Start(ctx, func(envelope realtime.Envelope) {
			dispatcher.DeliverLocal(envelope)
		}); err != nil {
			logger.Fatal().Err(err).Str("relay", cfg.RealtimeRelay).Msg("failed to start realtime relay")
		}
		dispatcher.UseRelay(relay)
		logger.Info().Str("relay", cfg.RealtimeRelay).Str("node_id", nodeID).Msg("realtime relay started")
	}

	userRepo := repository.NewUserRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	presenceService := service.NewPresenceService(userRepo, dispatcher, logger, nil)
	messageService := service.NewMessageService(messageRepo, dispatcher, redisClient, cfg.ChannelBase, cfg.UnreadCacheTTL, validate, logger)
	alertService := service.NewAlertService(dispatcher, validate, logger)
	seedService := service.NewSeedService(userRepo, validate, cfg.SeedEnabled, cfg.SeedToken, logger)

	hub := realtime.NewHub(registry, dispatcher, presenceService, messageService, validate, logger, realtime.HubOptions{
		SendBuffer: cfg.SendBufferSize,
		KeepAlive:  cfg.KeepAliveInterval,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{
		Logger:    &logger,
		AccessLog: cfg.AppEnv == "development",
	})
	router.Register(app, cfg, router.Dependencies{
		Registry:           registry,
		RealtimeHandler:    handler.NewRealtimeHandler(hub, logger, cfg.KeepAliveInterval),
		MessageHandler:     handler.NewMessageHandler(messageService, validate, logger),
		PresenceHandler:    handler.NewPresenceHandler(presenceService, logger),
		AlertHandler:       handler.NewAlertHandler(alertService, logger),
		SeedHandler:        handler.NewSeedHandler(seedService, logger),
		IdentityMiddleware: middleware.OptionalJWT(cfg.JWTSecret),
	})

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Msg("http server listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(ctx, app, logger)
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	return zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.AppName).
		Str("env", cfg.AppEnv).
		Logger()
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
