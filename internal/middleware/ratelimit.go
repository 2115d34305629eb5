package middleware

import (
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/casefile/internal/ratelimit"
	"github.com/localnerve/casefile/internal/types"
)

// RateLimit admits at most limit requests per client IP per window for the named scope.
// A limiter failure lets the request through.
func RateLimit(limiter ratelimit.Limiter, scope string, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limiter == nil || limit <= 0 {
			return c.Next()
		}

		decision, err := limiter.Allow(c.UserContext(), scope+":"+c.IP(), limit, window)
		if err != nil {
			log.Printf("Rate limiter error for %s: %v", scope, err)
			return c.Next()
		}

		c.Set("RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Set("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if !decision.ResetAt.IsZero() {
			c.Set("RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		}
		if !decision.Allowed {
			retryAfter := max(int64(time.Until(decision.ResetAt).Seconds()), 0)
			c.Set(fiber.HeaderRetryAfter, strconv.FormatInt(retryAfter, 10))
			return &types.CustomError{
				Code:    fiber.StatusTooManyRequests,
				Message: "Too many requests, try again later",
				Type:    "ratelimit." + scope,
			}
		}
		return c.Next()
	}
}
