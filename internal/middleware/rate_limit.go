package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/noah-isme/pharmacy-realtime-api/internal/utils"
)

// RateLimit throttles a route group to max requests per window. Authenticated users
// get their own bucket; anonymous callers share one per address.
func RateLimit(scope string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Second
	}

	return limiter.New(limiter.Config{
		Max:          max,
		Expiration:   window,
		KeyGenerator: rateLimitKey(scope),
		LimitReached: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(window.Seconds())))
			return utils.Fail(c, fiber.StatusTooManyRequests, "rate limit exceeded", fiber.Map{"scope": scope})
		},
	})
}

func rateLimitKey(scope string) func(*fiber.Ctx) string {
	return func(c *fiber.Ctx) string {
		if userID, ok := UserIDFromLocals(c); ok {
			return scope + ":user:" + strconv.FormatUint(uint64(userID), 10)
		}
		return scope + ":ip:" + c.IP()
	}
}
