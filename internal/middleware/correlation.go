package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	correlationHeader = "X-Correlation-ID"
	correlationLocal  = "correlation_id"
)

// Headers checked, in order, for a caller supplied correlation id.
var correlationSources = []string{correlationHeader, "X-Request-ID"}

type correlationContextKey struct{}

// CorrelationID tags each request with a correlation id. The id is echoed in the
// response and travels in the user context so service logs and spans can carry it.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := incomingCorrelationID(c)
		if id == "" {
			id = uuid.NewString()
		}

		c.Locals(correlationLocal, id)
		c.Set(correlationHeader, id)
		c.SetUserContext(context.WithValue(c.UserContext(), correlationContextKey{}, id))

		return c.Next()
	}
}

func incomingCorrelationID(c *fiber.Ctx) string {
	for _, header := range correlationSources {
		if value := strings.TrimSpace(c.Get(header)); value != "" {
			return value
		}
	}
	return ""
}

// CorrelationIDFromContext returns the correlation id stored in ctx, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationContextKey{}).(string)
	return id
}

// GetCorrelationID returns the correlation id of the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals(correlationLocal).(string); ok {
		return id
	}
	return CorrelationIDFromContext(c.UserContext())
}

// RequestContext returns the context handed to services for the active request.
// Requests that skipped the CorrelationID middleware still get a usable context.
func RequestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if CorrelationIDFromContext(ctx) != "" {
		return ctx
	}
	if id := GetCorrelationID(c); id != "" {
		return context.WithValue(ctx, correlationContextKey{}, id)
	}
	return ctx
}
