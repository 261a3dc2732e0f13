package realtime

import (
	"fmt"

	"github.com/noah-isme/pharmacy-realtime-api/internal/models"
)

// Role groups receiving broadcast traffic.
const (
	GroupAdmins = "Admins"
	GroupStaff  = "Staff"
)

// RoomName returns the canonical conversation room shared by two users. Both
// participants compute the same name whatever the argument order.
func RoomName(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("conversation_%d_%d", a, b)
}

// GroupForRole maps a resolved role onto its broadcast group. It is evaluated once
// when a connection opens; later role changes apply on reconnect.
func GroupForRole(role models.Role) (string, bool) {
	switch role {
	case models.RoleAdministrator:
		return GroupAdmins, true
	case models.RoleStaff:
		return GroupStaff, true
	default:
		return "", false
	}
}
