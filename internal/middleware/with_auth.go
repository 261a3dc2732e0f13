package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/pharmacy-realtime-api/internal/models"
	"github.com/noah-isme/pharmacy-realtime-api/internal/utils"
)

// Roles understood by WithAuth. AuthRoleAny only checks authentication.
const (
	AuthRoleAny           = "any"
	AuthRoleAdministrator = string(models.RoleAdministrator)
	AuthRoleStaff         = string(models.RoleStaff)
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	Role        string
	RequireUser bool
}

// WithAuth guards a single handler. Naming a role implies RequireUser, and the staff
// role admits administrators as well.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := canonicalRole(opts.Role)
	if role == "" {
		role = AuthRoleAny
	}
	requireUser := opts.RequireUser || role != AuthRoleAny

	return func(c *fiber.Ctx) error {
		if _, ok := UserIDFromLocals(c); requireUser && !ok {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}
		if role != AuthRoleAny && !roleSatisfies(currentRole(c), role) {
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
		}
		return handler(c)
	}
}

// roleSatisfies reports whether the caller's role meets the required one.
func roleSatisfies(have, want string) bool {
	if have == want {
		return true
	}
	return want == AuthRoleStaff && have == AuthRoleAdministrator
}
