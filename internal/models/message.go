package models

import "time"

// MessageStatus tracks the read state of a chat message.
type MessageStatus string

const (
	MessageUnread   MessageStatus = "unread"
	MessageRead     MessageStatus = "read"
	MessageArchived MessageStatus = "archived"
)

// MessageTextMaxLength bounds message and reply text, counted in runes.
const MessageTextMaxLength = 1000

// Message is a direct chat message between two staff members. Rows are archived,
// never deleted.
type Message struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	FromUserID     uint          `gorm:"not null;index" json:"from_user_id"`
	ToUserID       uint          `gorm:"not null;index:idx_messages_recipient_status" json:"to_user_id"`
	ConversationID string        `gorm:"size:128;not null;index" json:"conversation_id"`
	MessageText    string        `gorm:"type:text;not null" json:"message_text"`
	MessageStatus  MessageStatus `gorm:"size:16;not null;default:unread;index:idx_messages_recipient_status" json:"message_status"`
	ReadAt         *time.Time    `json:"read_at"`
	ReplyText      *string       `gorm:"type:text" json:"reply_text"`
	RepliedAt      *time.Time    `json:"replied_at"`
	IsArchived     bool          `gorm:"not null;default:false" json:"is_archived"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}
