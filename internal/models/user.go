package models

import (
	"strings"
	"time"
)

// Role is the closed set of staff roles known to the pharmacy.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleStaff         Role = "staff"
)

// ParseRole normalises a role label; unknown labels yield false.
func ParseRole(value string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "administrator", "admin":
		return RoleAdministrator, true
	case "staff", "pharmacist", "cashier":
		return RoleStaff, true
	default:
		return "", false
	}
}

// PresenceStatus describes whether a user currently holds a live connection.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
)

// User is a pharmacy staff member. Presence columns are only written by connection
// lifecycle events.
type User struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Username    string         `gorm:"size:64;uniqueIndex;not null" json:"username"`
	FullName    string         `gorm:"size:255" json:"full_name"`
	Role        Role           `gorm:"size:32;not null;default:staff" json:"role"`
	Status      PresenceStatus `gorm:"size:16;not null;default:offline;index" json:"status"`
	IsOnlineNow bool           `gorm:"not null;default:false" json:"is_online_now"`
	LastSeenAt  *time.Time     `json:"last_seen_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
