package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pharmacy-realtime-api/internal/dto"
	"github.com/noah-isme/pharmacy-realtime-api/internal/middleware"
	"github.com/noah-isme/pharmacy-realtime-api/internal/service"
	"github.com/noah-isme/pharmacy-realtime-api/internal/utils"
)

// AlertHandler accepts inventory and sales alerts from producing subsystems.
type AlertHandler struct {
	service service.AlertService
	logger  zerolog.Logger
}

// NewAlertHandler constructs an alert handler.
func NewAlertHandler(service service.AlertService, logger zerolog.Logger) *AlertHandler {
	return &AlertHandler{
		service: service,
		logger:  logger.With().Str("component", "alert_handler").Logger(),
	}
}

// Register binds alert routes on the API root, behind the identity middleware. Producers
// must authenticate as administrators or staff.
func (h *AlertHandler) Register(router fiber.Router, identity fiber.Handler) {
	guard := middleware.RequireRole(middleware.AuthRoleAdministrator, middleware.AuthRoleStaff)
	router.Post("/alerts", identity, guard, h.publish)
	router.Post("/notifications", identity, guard, h.notify)
}

func (h *AlertHandler) publish(c *fiber.Ctx) error {
	var payload dto.AlertRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	resp, err := h.service.PublishAlert(middleware.RequestContext(c), payload)
	if err != nil {
		return h.writeError(c, err, "failed to publish alert")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "alert published", resp)
}

func (h *AlertHandler) notify(c *fiber.Ctx) error {
	var payload dto.NotificationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	resp, err := h.service.Notify(middleware.RequestContext(c), payload)
	if err != nil {
		return h.writeError(c, err, "failed to publish notification")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "notification published", resp)
}

func (h *AlertHandler) writeError(c *fiber.Ctx, err error, message string) error {
	if isValidationError(err) {
		return sendValidationError(c, err)
	}
	requestLogger(h.logger, c).Error().Err(err).Msg(message)
	return utils.SendError(c, fiber.StatusInternalServerError, message)
}
