package dto

import (
	"time"

	"github.com/noah-isme/pharmacy-realtime-api/internal/models"
)

// Event names delivered to realtime clients.
const (
	EventMessageReceived   = "message.received"
	EventMessageSent       = "message.sent"
	EventMessageRead       = "message.read"
	EventMessageReplied    = "message.replied"
	EventTypingStarted     = "typing.started"
	EventTypingStopped     = "typing.stopped"
	EventPresenceChanged   = "presence.changed"
	EventConversationJoin  = "conversation.joined"
	EventConversationLeave = "conversation.left"
	EventLowStockAlert     = "alert.low_stock"
	EventOutOfStockAlert   = "alert.out_of_stock"
	EventExpirationAlert   = "alert.expiration"
	EventSalesNotification = "sales.notification"
	EventNotification      = "notification"
	EventConnected         = "connected"
	EventPong              = "pong"
	EventError             = "error"
)

// Event is a named, addressed payload pushed to live connections.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	SentAt  time.Time   `json:"sent_at"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType string, payload interface{}) Event {
	return Event{Type: eventType, Payload: payload, SentAt: time.Now().UTC()}
}

// Frame types accepted from websocket clients.
const (
	FrameSendMessage       = "send_message"
	FrameJoinConversation  = "join_conversation"
	FrameLeaveConversation = "leave_conversation"
	FrameTyping            = "typing"
	FrameMarkRead          = "mark_read"
	FrameReply             = "reply"
	FramePing              = "ping"
)

// ClientFrame is an inbound websocket message.
type ClientFrame struct {
	Type      string `json:"type" validate:"required,oneof=send_message join_conversation leave_conversation typing mark_read reply ping"`
	ToUserID  uint   `json:"to_user_id,omitempty"`
	UserID    uint   `json:"user_id,omitempty"`
	MessageID uint   `json:"message_id,omitempty"`
	Text      string `json:"text,omitempty"`
	IsTyping  bool   `json:"is_typing,omitempty"`
}

// PeerID returns the other participant named by the frame.
func (f ClientFrame) PeerID() uint {
	if f.ToUserID != 0 {
		return f.ToUserID
	}
	return f.UserID
}

// TypingPayload is carried by typing events.
type TypingPayload struct {
	UserID uint   `json:"user_id"`
	Room   string `json:"room"`
}

// PresencePayload is carried by presence change events.
type PresencePayload struct {
	UserID      uint                  `json:"user_id"`
	Status      models.PresenceStatus `json:"status"`
	IsOnlineNow bool                  `json:"is_online_now"`
	LastSeenAt  time.Time             `json:"last_seen_at"`
}

// ConnectedPayload greets a freshly opened connection.
type ConnectedPayload struct {
	ConnectionID string      `json:"connection_id"`
	UserID       uint        `json:"user_id,omitempty"`
	Role         models.Role `json:"role,omitempty"`
	Group        string      `json:"group,omitempty"`
	Anonymous    bool        `json:"anonymous"`
}

// ErrorPayload describes a rejected client frame.
type ErrorPayload struct {
	Frame   string `json:"frame,omitempty"`
	Message string `json:"message"`
}
