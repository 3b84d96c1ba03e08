package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
)

// RateLimiter provides Redis-backed fixed window rate limiting per client IP.
type RateLimiter struct {
	rdb       *redis.Client
	maxReqs   int
	windowSec int
}

// NewRateLimiter creates a rate limiter.
func NewRateLimiter(rdb *redis.Client, maxReqs, windowSec int) *RateLimiter {
	return &RateLimiter{
		rdb:       rdb,
		maxReqs:   maxReqs,
		windowSec: windowSec,
	}
}

// Handler returns a Fiber middleware handler for rate limiting. Without a
// Redis client every request passes.
func (rl *RateLimiter) Handler() fiber.Handler {
	return func(c fiber.Ctx) error {
		if rl.rdb == nil {
			return c.Next()
		}

		key := fmt.Sprintf("ratelimit:%s", c.IP())
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		count, err := rl.rdb.Incr(ctx, key).Result()
		if err != nil {
			// If Redis fails, allow the request (fail-open)
			slog.Warn("rate limiter unavailable", "error", err)
			return c.Next()
		}

		// Set expiry on first request in the window
		if count == 1 {
			rl.rdb.Expire(ctx, key, time.Duration(rl.windowSec)*time.Second)
		}

		ttl, _ := rl.rdb.TTL(ctx, key).Result()
		resetSec := int(ttl.Seconds())
		if resetSec < 0 {
			resetSec = rl.windowSec
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(rl.maxReqs))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(max(0, int64(rl.maxReqs)-count), 10))
		c.Set("X-RateLimit-Reset", strconv.Itoa(resetSec))

		if count > int64(rl.maxReqs) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "rate limit exceeded",
				"retry_after": resetSec,
			})
		}

		return c.Next()
	}
}
