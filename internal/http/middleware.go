package http

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"agentsight/internal/config"
)

// telemetryRateLimit enforces a simple per-minute fixed-window rate
// limit per site using Redis. Telemetry is browser-originated and
// unauthenticated, so the site identifier is the only stable key.
func telemetryRateLimit(cfg *config.Config, rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := cfg.RateLimit.TelemetryPerMinute
		if limit <= 0 {
			return c.Next()
		}

		var req TelemetryRequest
		if err := c.BodyParser(&req); err != nil || req.SiteID == "" {
			// Let the handler produce the validation error.
			return c.Next()
		}

		now := time.Now().UTC()
		window := now.Format("200601021504") // YYYYMMDDHHMM minute window
		key := fmt.Sprintf("agentsight:rl:%s:%s", req.SiteID, window)

		ctx := c.Context()
		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			// Redis being down should not drop telemetry.
			return c.Next()
		}
		if count == 1 {
			// First hit in this window; set TTL
			_ = rdb.Expire(ctx, key, time.Minute)
		}

		if count > int64(limit) {
			return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
				Error: "Rate limit exceeded, try again later",
			})
		}

		return c.Next()
	}
}
