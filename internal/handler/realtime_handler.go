package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pharmacy-realtime-api/internal/config"
	"github.com/noah-isme/pharmacy-realtime-api/internal/dto"
	"github.com/noah-isme/pharmacy-realtime-api/internal/middleware"
	"github.com/noah-isme/pharmacy-realtime-api/internal/realtime"
	"github.com/noah-isme/pharmacy-realtime-api/internal/utils"
)

// RealtimeHandler wires the websocket upgrade, the event stream and room lookups.
type RealtimeHandler struct {
	hub       *realtime.Hub
	logger    zerolog.Logger
	keepAlive time.Duration
}

// NewRealtimeHandler creates a realtime handler instance.
func NewRealtimeHandler(hub *realtime.Hub, logger zerolog.Logger, keepAlive time.Duration) *RealtimeHandler {
	switch {
	case keepAlive <= 0:
		keepAlive = 30 * time.Second
	case keepAlive < config.MinKeepAlive:
		keepAlive = config.MinKeepAlive
	}
	return &RealtimeHandler{
		hub:       hub,
		logger:    logger.With().Str("component", "realtime_handler").Logger(),
		keepAlive: keepAlive,
	}
}

// Register binds realtime routes under the provided router group.
func (h *RealtimeHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("request_ctx", middleware.RequestContext(c))
			c.Locals("identity", identityFromContext(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
	router.Get("/stream", h.stream)
	router.Get("/rooms/:userId", middleware.WithAuth(h.room, middleware.AuthOptions{RequireUser: true}))
}

func (h *RealtimeHandler) handleConnection(conn *websocket.Conn) {
	identity, _ := conn.Locals("identity").(realtime.Identity)
	ctx, _ := conn.Locals("request_ctx").(context.Context)
	if ctx == nil {
		ctx = context.Background()
	}

	h.logger.Info().Uint("user_id", identity.UserID).Msg("realtime websocket connected")
	if err := h.hub.Serve(ctx, conn, identity); err != nil {
		h.logger.Warn().Err(err).Uint("user_id", identity.UserID).Msg("realtime websocket rejected")
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "connection rejected"))
		_ = conn.Close()
		return
	}
	h.logger.Info().Uint("user_id", identity.UserID).Msg("realtime websocket disconnected")
}

func (h *RealtimeHandler) stream(c *fiber.Ctx) error {
	identity := identityFromContext(c)
	if identity.UserID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	// The stream outlives the request handler, so it must not inherit its cancellation.
	ctx := context.WithoutCancel(middleware.RequestContext(c))
	subscription, err := h.hub.Subscribe(ctx, identity)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to open event stream")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to open event stream")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	keepAliveInterval := h.keepAlive

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer subscription.Close()

		ticker := time.NewTicker(keepAliveInterval / 2)
		defer ticker.Stop()

		for {
			select {
			case event := <-subscription.Events:
				if err := writeStreamEvent(w, event); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write stream event")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write stream keepalive")
					return
				}
			}
		}
	})

	return nil
}

func (h *RealtimeHandler) room(c *fiber.Ctx) error {
	identity := identityFromContext(c)
	otherUserID, err := parseUintParam(c, "userId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid user id")
	}
	if otherUserID == identity.UserID {
		return utils.SendError(c, fiber.StatusBadRequest, "conversation peer must be another user")
	}

	return utils.SendSuccess(c, "conversation room", dto.RoomResponse{
		Room:        realtime.RoomName(identity.UserID, otherUserID),
		UserID:      identity.UserID,
		OtherUserID: otherUserID,
	})
}

func writeStreamEvent(w *bufio.Writer, event dto.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}
