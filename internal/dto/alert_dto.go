package dto

import (
	"time"

	"gorm.io/datatypes"
)

// Alert kinds produced by the inventory and sales subsystems.
const (
	AlertLowStock   = "low_stock"
	AlertOutOfStock = "out_of_stock"
	AlertExpiration = "expiration"
	AlertSales      = "sales"
)

// AlertRequest is an inventory or sales alert to be fanned out to administrators.
type AlertRequest struct {
	Kind        string            `json:"kind" validate:"required,oneof=low_stock out_of_stock expiration sales"`
	ProductID   uint              `json:"product_id"`
	ProductName string            `json:"product_name" validate:"omitempty,max=255"`
	StockLevel  *int              `json:"stock_level,omitempty"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
	Message     string            `json:"message" validate:"omitempty,max=2000"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
}

// NotificationRequest targets a single user with a free-form notification.
type NotificationRequest struct {
	UserID   uint              `json:"user_id" validate:"required"`
	Title    string            `json:"title" validate:"required,max=255"`
	Message  string            `json:"message" validate:"required,min=1,max=2000"`
	Metadata datatypes.JSONMap `json:"metadata,omitempty"`
}

// AlertResponse reports how an alert was dispatched.
type AlertResponse struct {
	Event     string    `json:"event"`
	Target    string    `json:"target"`
	Delivered int       `json:"delivered"`
	SentAt    time.Time `json:"sent_at"`
}
