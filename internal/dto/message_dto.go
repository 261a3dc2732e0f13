package dto

import (
	"time"

	"github.com/noah-isme/pharmacy-realtime-api/internal/models"
)

// MessageSendRequest is the payload used to send a direct message.
type MessageSendRequest struct {
	FromUserID uint   `json:"-" validate:"required"`
	ToUserID   uint   `json:"to_user_id" validate:"required,nefield=FromUserID"`
	Text       string `json:"message_text" validate:"required,min=1,max=1000"`
}

// MessageReplyRequest carries the text of a reply to an existing message.
type MessageReplyRequest struct {
	Text string `json:"reply_text" validate:"required,min=1,max=1000"`
}

// ConversationQuery filters the history between two users.
type ConversationQuery struct {
	UserID      uint       `validate:"required"`
	OtherUserID uint       `validate:"required,nefield=UserID"`
	Before      *time.Time `query:"before"`
	Limit       int        `query:"limit" validate:"omitempty,min=1,max=100"`
}

// MessageResponse is the serialized representation of a chat message.
type MessageResponse struct {
	ID             uint                 `json:"id"`
	FromUserID     uint                 `json:"from_user_id"`
	ToUserID       uint                 `json:"to_user_id"`
	ConversationID string               `json:"conversation_id"`
	MessageText    string               `json:"message_text"`
	MessageStatus  models.MessageStatus `json:"message_status"`
	ReadAt         *time.Time           `json:"read_at,omitempty"`
	ReplyText      *string              `json:"reply_text,omitempty"`
	RepliedAt      *time.Time           `json:"replied_at,omitempty"`
	IsArchived     bool                 `json:"is_archived"`
	CreatedAt      time.Time            `json:"created_at"`
}

// UnreadCountResponse reports the number of unread messages for a user.
type UnreadCountResponse struct {
	UserID uint  `json:"user_id"`
	Count  int64 `json:"count"`
}

// NewMessageResponse converts a model into a DTO.
func NewMessageResponse(message models.Message) MessageResponse {
	return MessageResponse{
		ID:             message.ID,
		FromUserID:     message.FromUserID,
		ToUserID:       message.ToUserID,
		ConversationID: message.ConversationID,
		MessageText:    message.MessageText,
		MessageStatus:  message.MessageStatus,
		ReadAt:         message.ReadAt,
		ReplyText:      message.ReplyText,
		RepliedAt:      message.RepliedAt,
		IsArchived:     message.IsArchived,
		CreatedAt:      message.CreatedAt,
	}
}

// NewMessageResponseSlice converts a slice of models into DTOs.
func NewMessageResponseSlice(messages []models.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewMessageResponse(message))
	}
	return out
}
