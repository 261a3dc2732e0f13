package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/pharmacy-realtime-api/internal/models"
	"github.com/noah-isme/pharmacy-realtime-api/internal/utils"
)

// AccessTokenQuery is the query parameter browsers use to pass a token on upgrade
// requests, where custom headers cannot be set.
const AccessTokenQuery = "access_token"

// Fiber locals populated by authenticate.
const (
	localUserID   = "user_id"
	localUserRole = "user_role"
)

var (
	errMissingToken = errors.New("authorization header missing")
	errInvalidToken = errors.New("invalid token")
)

// JWTProtected returns a middleware that rejects requests without a valid bearer token.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := authenticate(c, secret); err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}
		return c.Next()
	}
}

// OptionalJWT resolves the caller when a token is present and lets anonymous requests
// through. A token that is present but invalid is still rejected.
func OptionalJWT(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := authenticate(c, secret)
		if err != nil && !errors.Is(err, errMissingToken) {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}
		return c.Next()
	}
}

// UserIDFromLocals returns the authenticated user id, if any.
func UserIDFromLocals(c *fiber.Ctx) (uint, bool) {
	switch v := c.Locals(localUserID).(type) {
	case uint:
		return v, v != 0
	case int:
		return uint(v), v > 0
	case float64:
		return uint(v), v > 0
	default:
		return 0, false
	}
}

// RoleFromLocals returns the role claimed by the token, normalised to the closed role set.
func RoleFromLocals(c *fiber.Ctx) models.Role {
	role, _ := models.ParseRole(currentRole(c))
	return role
}

func authenticate(c *fiber.Ctx, secret string) error {
	tokenString, err := extractToken(c)
	if err != nil {
		return err
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return errors.New("invalid token claims")
	}

	if userID := extractUserIDFromClaims(claims); userID != nil {
		c.Locals(localUserID, *userID)
	}
	if role := extractUserRoleFromClaims(claims); role != "" {
		c.Locals(localUserRole, role)
	}
	return nil
}

func extractToken(c *fiber.Ctx) (string, error) {
	authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if authorization == "" {
		if query := strings.TrimSpace(c.Query(AccessTokenQuery)); query != "" {
			return query, nil
		}
		return "", errMissingToken
	}

	const bearer = "Bearer "
	if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization header")
	}

	tokenString := strings.TrimSpace(authorization[len(bearer):])
	if tokenString == "" {
		return "", errInvalidToken
	}
	return tokenString, nil
}

func extractUserIDFromClaims(claims jwt.MapClaims) *uint {
	keys := []string{"sub", "user_id", "id"}
	for _, key := range keys {
		if value, ok := claims[key]; ok {
			if normalized, err := normalizeUserID(value); err == nil && normalized != 0 {
				return &normalized
			}
		}
	}

	return nil
}

func normalizeUserID(value interface{}) (uint, error) {
	switch v := value.(type) {
	case float64:
		if v < 0 {
			return 0, fmt.Errorf("invalid subject")
		}
		return uint(v), nil
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, err
		}
		return uint(parsed), nil
	default:
		return 0, fmt.Errorf("unsupported subject type")
	}
}

func extractUserRoleFromClaims(claims jwt.MapClaims) string {
	candidates := []string{"role", "roles"}
	for _, key := range candidates {
		if value, ok := claims[key]; ok {
			if role := normalizeRole(value); role != "" {
				return role
			}
		}
	}
	return ""
}

func normalizeRole(value interface{}) string {
	switch v := value.(type) {
	case string:
		return canonicalRole(v)
	case []interface{}:
		for _, item := range v {
			if str, ok := item.(string); ok {
				if role := canonicalRole(str); role != "" {
					return role
				}
			}
		}
	}
	return ""
}

// canonicalRole maps role aliases such as "admin" or "pharmacist" onto the stored
// role names and keeps unknown labels lower-cased.
func canonicalRole(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if role, ok := models.ParseRole(normalized); ok {
		return string(role)
	}
	return normalized
}
