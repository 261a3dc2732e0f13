package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/pharmacy-realtime-api/internal/utils"
)

// RequireRole admits callers whose role is one of roles. Aliases such as "admin" or
// "pharmacist" are folded onto stored role names on both sides.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := canonicalRole(role); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		if _, ok := allowed[currentRole(c)]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

func currentRole(c *fiber.Ctx) string {
	var raw string
	switch v := c.Locals(localUserRole).(type) {
	case nil:
		return ""
	case string:
		raw = v
	case fmt.Stringer:
		raw = v.String()
	default:
		raw = fmt.Sprintf("%v", v)
	}
	return canonicalRole(strings.TrimSpace(raw))
}
