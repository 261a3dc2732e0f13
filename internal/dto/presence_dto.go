package dto

import (
	"time"

	"github.com/noah-isme/pharmacy-realtime-api/internal/models"
)

// PresenceResponse describes the advisory presence of a user.
type PresenceResponse struct {
	UserID      uint                  `json:"user_id"`
	Username    string                `json:"username"`
	Role        models.Role           `json:"role"`
	Status      models.PresenceStatus `json:"status"`
	IsOnlineNow bool                  `json:"is_online_now"`
	LastSeenAt  *time.Time            `json:"last_seen_at,omitempty"`
}

// NewPresenceResponse converts a user into its presence view.
func NewPresenceResponse(user models.User) PresenceResponse {
	return PresenceResponse{
		UserID:      user.ID,
		Username:    user.Username,
		Role:        user.Role,
		Status:      user.Status,
		IsOnlineNow: user.IsOnlineNow,
		LastSeenAt:  user.LastSeenAt,
	}
}

// NewPresenceResponseSlice converts users into presence views.
func NewPresenceResponseSlice(users []models.User) []PresenceResponse {
	out := make([]PresenceResponse, 0, len(users))
	for _, user := range users {
		out = append(out, NewPresenceResponse(user))
	}
	return out
}

// RoomResponse tells a client which conversation room a pair of users shares.
type RoomResponse struct {
	Room        string `json:"room"`
	UserID      uint   `json:"user_id"`
	OtherUserID uint   `json:"other_user_id"`
}

// SeedUser describes a staff account created by the seeding endpoint.
type SeedUser struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	FullName string `json:"full_name" validate:"omitempty,max=255"`
	Role     string `json:"role" validate:"required,oneof=administrator admin staff pharmacist cashier"`
}
