package handler

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pharmacy-realtime-api/internal/dto"
	"github.com/noah-isme/pharmacy-realtime-api/internal/middleware"
	"github.com/noah-isme/pharmacy-realtime-api/internal/service"
	"github.com/noah-isme/pharmacy-realtime-api/internal/utils"
)

// MessageHandler exposes the REST side of direct messaging.
type MessageHandler struct {
	service   service.MessageService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewMessageHandler constructs a message handler.
func NewMessageHandler(service service.MessageService, validator *validator.Validate, logger zerolog.Logger) *MessageHandler {
	return &MessageHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "message_handler").Logger(),
	}
}

// Register binds message routes. Every route requires an authenticated user.
func (h *MessageHandler) Register(router fiber.Router) {
	authenticated := func(handler fiber.Handler) fiber.Handler {
		return middleware.WithAuth(handler, middleware.AuthOptions{RequireUser: true})
	}

	router.Post("/", authenticated(h.send))
	router.Get("/", authenticated(h.list))
	router.Get("/unread-count", authenticated(h.unreadCount))
	router.Get("/conversation/:userId", authenticated(h.conversation))
	router.Patch("/:id/read", authenticated(h.markRead))
	router.Post("/:id/reply", authenticated(h.reply))
	router.Patch("/:id/archive", authenticated(h.archive))
}

func (h *MessageHandler) send(c *fiber.Ctx) error {
	var payload dto.MessageSendRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	payload.FromUserID, _ = middleware.UserIDFromLocals(c)

	message, err := h.service.Send(middleware.RequestContext(c), payload.FromUserID, payload.ToUserID, payload.Text)
	if err != nil {
		return h.writeError(c, err, "failed to send message")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}

func (h *MessageHandler) list(c *fiber.Ctx) error {
	userID, _ := middleware.UserIDFromLocals(c)

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}

	messages, err := h.service.ListForUser(middleware.RequestContext(c), userID, limit, offset)
	if err != nil {
		return h.writeError(c, err, "failed to load messages")
	}

	return utils.OK(c, messages, "messages", fiber.Map{"limit": limit, "offset": offset, "count": len(messages)})
}

func (h *MessageHandler) unreadCount(c *fiber.Ctx) error {
	userID, _ := middleware.UserIDFromLocals(c)

	count, err := h.service.UnreadCount(middleware.RequestContext(c), userID)
	if err != nil {
		return h.writeError(c, err, "failed to count unread messages")
	}

	return utils.SendSuccess(c, "unread count", dto.UnreadCountResponse{UserID: userID, Count: count})
}

func (h *MessageHandler) conversation(c *fiber.Ctx) error {
	userID, _ := middleware.UserIDFromLocals(c)
	otherUserID, err := parseUintParam(c, "userId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid user id")
	}

	query := dto.ConversationQuery{UserID: userID, OtherUserID: otherUserID}
	if before := c.Query("before"); before != "" {
		parsed, err := time.Parse(time.RFC3339, before)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid before timestamp")
		}
		query.Before = &parsed
	}
	if query.Limit, err = parseQueryInt(c, "limit"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	messages, err := h.service.Conversation(middleware.RequestContext(c), query)
	if err != nil {
		return h.writeError(c, err, "failed to load conversation")
	}

	return utils.SendSuccess(c, "conversation history", messages)
}

func (h *MessageHandler) markRead(c *fiber.Ctx) error {
	messageID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid message id")
	}

	message, err := h.service.MarkRead(middleware.RequestContext(c), messageID)
	if err != nil {
		return h.writeError(c, err, "failed to mark message read")
	}
	if message == nil {
		return utils.SendError(c, fiber.StatusNotFound, "message not found")
	}

	return utils.SendSuccess(c, "message read", message)
}

func (h *MessageHandler) reply(c *fiber.Ctx) error {
	messageID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid message id")
	}

	var payload dto.MessageReplyRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	message, err := h.service.Reply(middleware.RequestContext(c), messageID, payload.Text)
	if err != nil {
		return h.writeError(c, err, "failed to reply to message")
	}
	if message == nil {
		return utils.SendError(c, fiber.StatusNotFound, "message not found")
	}

	return utils.SendSuccess(c, "reply stored", message)
}

func (h *MessageHandler) archive(c *fiber.Ctx) error {
	messageID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid message id")
	}

	message, err := h.service.Archive(middleware.RequestContext(c), messageID)
	if err != nil {
		return h.writeError(c, err, "failed to archive message")
	}
	if message == nil {
		return utils.SendError(c, fiber.StatusNotFound, "message not found")
	}

	return utils.SendSuccess(c, "message archived", message)
}

func (h *MessageHandler) writeError(c *fiber.Ctx, err error, message string) error {
	switch {
	case isValidationError(err):
		return sendValidationError(c, err)
	case errors.Is(err, service.ErrInvalidMessage):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(message)
		return utils.SendError(c, fiber.StatusInternalServerError, message)
	}
}
