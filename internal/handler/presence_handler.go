package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pharmacy-realtime-api/internal/middleware"
	"github.com/noah-isme/pharmacy-realtime-api/internal/repository"
	"github.com/noah-isme/pharmacy-realtime-api/internal/service"
	"github.com/noah-isme/pharmacy-realtime-api/internal/utils"
)

// PresenceHandler exposes advisory presence lookups.
type PresenceHandler struct {
	service service.PresenceService
	logger  zerolog.Logger
}

// NewPresenceHandler constructs a presence handler.
func NewPresenceHandler(service service.PresenceService, logger zerolog.Logger) *PresenceHandler {
	return &PresenceHandler{
		service: service,
		logger:  logger.With().Str("component", "presence_handler").Logger(),
	}
}

// Register binds presence routes.
func (h *PresenceHandler) Register(router fiber.Router) {
	options := middleware.AuthOptions{Role: middleware.AuthRoleStaff}
	router.Get("/online", middleware.WithAuth(h.online, options))
	router.Get("/:userId", middleware.WithAuth(h.get, options))
}

func (h *PresenceHandler) online(c *fiber.Ctx) error {
	users, err := h.service.ListOnline(middleware.RequestContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list online users")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list online users")
	}
	return utils.OK(c, users, "online users", fiber.Map{"count": len(users)})
}

func (h *PresenceHandler) get(c *fiber.Ctx) error {
	userID, err := parseUintParam(c, "userId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid user id")
	}

	presence, err := h.service.Get(middleware.RequestContext(c), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "user not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Uint("user_id", userID).Msg("failed to load presence")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load presence")
	}

	return utils.SendSuccess(c, "presence", presence)
}
