package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/pharmacy-realtime-api/internal/dto"
	"github.com/noah-isme/pharmacy-realtime-api/internal/models"
	"github.com/noah-isme/pharmacy-realtime-api/internal/observability"
)

var (
	// ErrAnonymousConnection indicates an operation that requires a resolved identity.
	ErrAnonymousConnection = errors.New("connection has no resolved identity")
	// ErrInvalidPeer indicates a conversation peer that is missing or equal to the caller.
	ErrInvalidPeer = errors.New("conversation peer must be another user")
	// ErrMessageNotFound indicates a frame referencing an unknown message.
	ErrMessageNotFound = errors.New("message not found")
)

// Identity is the caller claimed by the transport before presence resolution.
type Identity struct {
	UserID uint
	Role   models.Role
}

// PresenceTracker records connection lifecycle transitions for users.
type PresenceTracker interface {
	Online(ctx context.Context, userID uint) (models.Role, bool)
	Offline(ctx context.Context, userID uint)
}

// MessageStore persists chat messages and emits their events.
type MessageStore interface {
	Send(ctx context.Context, fromUserID, toUserID uint, text string) (dto.MessageResponse, error)
	MarkRead(ctx context.Context, messageID uint) (*dto.MessageResponse, error)
	Reply(ctx context.Context, messageID uint, text string) (*dto.MessageResponse, error)
}

// HubOptions tunes per-connection buffers and keepalives.
type HubOptions struct {
	SendBuffer int
	KeepAlive  time.Duration
}

// Subscription is a pull-based connection used by the event stream endpoint.
type Subscription struct {
	Connection Connection
	Events     <-chan dto.Event
	Close      func()
}

// Hub drives the lifecycle of realtime connections: connecting, connected with an
// optional identity and room, and disconnected.
type Hub struct {
	registry   *Registry
	dispatcher *Dispatcher
	presence   PresenceTracker
	messages   MessageStore
	validator  *validator.Validate
	logger     zerolog.Logger
	options    HubOptions
}

// NewHub constructs a hub over an explicitly owned registry and dispatcher.
func NewHub(registry *Registry, dispatcher *Dispatcher, presence PresenceTracker, messages MessageStore, validate *validator.Validate, logger zerolog.Logger, options HubOptions) *Hub {
	return &Hub{
		registry:   registry,
		dispatcher: dispatcher,
		presence:   presence,
		messages:   messages,
		validator:  validate,
		logger:     logger.With().Str("component", "realtime_hub").Logger(),
		options:    options,
	}
}

// Registry exposes the connection registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Open registers a connection. Identified users are marked online and assigned to the
// group of their stored role; unresolvable users are accepted as anonymous.
func (h *Hub) Open(ctx context.Context, identity Identity, transport string, sink Sink) (Connection, error) {
	conn := Connection{
		ID:          uuid.NewString(),
		Transport:   transport,
		ConnectedAt: time.Now().UTC(),
		Sink:        sink,
	}

	if identity.UserID != 0 {
		var (
			role     models.Role
			resolved bool
		)
		h.safely("presence online", func() {
			role, resolved = h.presence.Online(ctx, identity.UserID)
		})
		if resolved {
			conn.UserID = identity.UserID
			conn.Role = role
			conn.Group, _ = GroupForRole(role)
		} else {
			h.logger.Info().Uint("user_id", identity.UserID).Msg("identity not resolved, connection accepted as anonymous")
		}
	}

	if err := h.registry.Connect(conn); err != nil {
		if !conn.Anonymous() {
			h.safely("presence offline", func() {
				h.presence.Offline(ctx, conn.UserID)
			})
		}
		return Connection{}, err
	}

	identityLabel := "identified"
	if conn.Anonymous() {
		identityLabel = "anonymous"
	}
	observability.ConnectionsActive().WithLabelValues(transport).Inc()
	observability.ConnectionsTotal().WithLabelValues(transport, identityLabel).Inc()

	h.logger.Debug().
		Str("connection_id", conn.ID).
		Uint("user_id", conn.UserID).
		Str("group", conn.Group).
		Str("transport", transport).
		Msg("realtime connection opened")

	_ = sink.Deliver(dto.NewEvent(dto.EventConnected, dto.ConnectedPayload{
		ConnectionID: conn.ID,
		UserID:       conn.UserID,
		Role:         conn.Role,
		Group:        conn.Group,
		Anonymous:    conn.Anonymous(),
	}))

	return conn, nil
}

// Close removes the connection from the registry and marks its user offline. Registry
// cleanup always happens, whatever presence persistence does.
func (h *Hub) Close(ctx context.Context, connID string) {
	conn, ok := h.registry.Disconnect(connID)
	if !ok {
		return
	}
	observability.ConnectionsActive().WithLabelValues(conn.Transport).Dec()

	h.logger.Debug().
		Str("connection_id", conn.ID).
		Uint("user_id", conn.UserID).
		Str("room", conn.Room).
		Msg("realtime connection closed")

	if conn.Anonymous() {
		return
	}
	h.safely("presence offline", func() {
		h.presence.Offline(ctx, conn.UserID)
	})
}

// JoinConversation places the connection in the room shared with otherUserID.
func (h *Hub) JoinConversation(connID string, otherUserID uint) (string, error) {
	conn, ok := h.registry.Lookup(connID)
	if !ok {
		return "", ErrConnectionNotFound
	}
	if conn.Anonymous() {
		return "", ErrAnonymousConnection
	}
	if otherUserID == 0 || otherUserID == conn.UserID {
		return "", ErrInvalidPeer
	}

	room := RoomName(conn.UserID, otherUserID)
	if err := h.registry.Join(connID, room); err != nil {
		return "", err
	}

	_ = conn.Sink.Deliver(dto.NewEvent(dto.EventConversationJoin, dto.RoomResponse{
		Room:        room,
		UserID:      conn.UserID,
		OtherUserID: otherUserID,
	}))
	return room, nil
}

// LeaveConversation removes the connection from its current room.
func (h *Hub) LeaveConversation(connID string) (string, bool) {
	room, ok := h.registry.Leave(connID)
	if !ok {
		return "", false
	}
	if conn, found := h.registry.Lookup(connID); found {
		_ = conn.Sink.Deliver(dto.NewEvent(dto.EventConversationLeave, dto.RoomResponse{
			Room:   room,
			UserID: conn.UserID,
		}))
	}
	return room, true
}

// Typing relays a typing indicator to the other members of the connection's room.
// Connections outside a room produce nothing.
func (h *Hub) Typing(ctx context.Context, connID string, isTyping bool) int {
	conn, ok := h.registry.Lookup(connID)
	if !ok || conn.Room == "" {
		return 0
	}

	eventType := dto.EventTypingStopped
	if isTyping {
		eventType = dto.EventTypingStarted
	}
	return h.dispatcher.ToRoom(ctx, conn.Room, connID, dto.NewEvent(eventType, dto.TypingPayload{
		UserID: conn.UserID,
		Room:   conn.Room,
	}))
}

// Handle processes one inbound frame. Failures are answered with an error event to the
// originating connection only and never end the connection.
func (h *Hub) Handle(ctx context.Context, connID string, frame dto.ClientFrame) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error().
				Str("connection_id", connID).
				Str("frame", frame.Type).
				Interface("panic", r).
				Msg("realtime frame handler panicked")
			h.replyError(connID, frame.Type, errors.New("internal error"))
		}
	}()

	if err := h.handle(ctx, connID, frame); err != nil {
		h.logger.Debug().Err(err).Str("connection_id", connID).Str("frame", frame.Type).Msg("realtime frame rejected")
		h.replyError(connID, frame.Type, err)
	}
}

func (h *Hub) handle(ctx context.Context, connID string, frame dto.ClientFrame) error {
	if h.validator != nil {
		if err := h.validator.Struct(frame); err != nil {
			return err
		}
	}

	conn, ok := h.registry.Lookup(connID)
	if !ok {
		return ErrConnectionNotFound
	}

	switch frame.Type {
	case dto.FramePing:
		return conn.Sink.Deliver(dto.NewEvent(dto.EventPong, nil))
	case dto.FrameJoinConversation:
		_, err := h.JoinConversation(connID, frame.PeerID())
		return err
	case dto.FrameLeaveConversation:
		h.LeaveConversation(connID)
		return nil
	case dto.FrameTyping:
		h.Typing(ctx, connID, frame.IsTyping)
		return nil
	}

	if conn.Anonymous() {
		return ErrAnonymousConnection
	}

	switch frame.Type {
	case dto.FrameSendMessage:
		_, err := h.messages.Send(ctx, conn.UserID, frame.PeerID(), frame.Text)
		return err
	case dto.FrameMarkRead:
		message, err := h.messages.MarkRead(ctx, frame.MessageID)
		if err != nil {
			return err
		}
		if message == nil {
			return ErrMessageNotFound
		}
		return nil
	case dto.FrameReply:
		message, err := h.messages.Reply(ctx, frame.MessageID, frame.Text)
		if err != nil {
			return err
		}
		if message == nil {
			return ErrMessageNotFound
		}
		return nil
	default:
		return fmt.Errorf("unsupported frame %q", frame.Type)
	}
}

// Serve runs a websocket connection until either side closes it.
func (h *Hub) Serve(ctx context.Context, ws wsConn, identity Identity) error {
	client := newWSClient(ws, h.options.SendBuffer, h.options.KeepAlive, h.logger)

	conn, err := h.Open(ctx, identity, TransportWebSocket, client)
	if err != nil {
		client.close()
		return err
	}
	defer h.Close(context.WithoutCancel(ctx), conn.ID)

	go client.writer()
	client.reader(func(frame dto.ClientFrame) {
		h.Handle(ctx, conn.ID, frame)
	})
	return nil
}

// Subscribe opens a pull-based connection whose events are read from a channel.
func (h *Hub) Subscribe(ctx context.Context, identity Identity) (Subscription, error) {
	sink := newStreamSink(h.options.SendBuffer)

	conn, err := h.Open(ctx, identity, TransportSSE, sink)
	if err != nil {
		sink.close()
		return Subscription{}, err
	}

	return Subscription{
		Connection: conn,
		Events:     sink.events,
		Close: func() {
			sink.close()
			h.Close(context.WithoutCancel(ctx), conn.ID)
		},
	}, nil
}

func (h *Hub) replyError(connID, frameType string, err error) {
	conn, ok := h.registry.Lookup(connID)
	if !ok {
		return
	}
	_ = conn.Sink.Deliver(dto.NewEvent(dto.EventError, dto.ErrorPayload{
		Frame:   frameType,
		Message: err.Error(),
	}))
}

func (h *Hub) safely(operation string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error().Str("operation", operation).Interface("panic", r).Msg("realtime lifecycle step panicked")
		}
	}()
	fn()
}
