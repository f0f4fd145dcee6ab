package middleware

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	fiberredis "github.com/gofiber/storage/redis/v3"
	"github.com/redis/go-redis/v9"

	"github.com/Alijeyrad/rookie_backend/config"
)

func NewLimiterWithRedis(rdb *redis.Client, cfg config.RateLimitConfig) fiber.Handler {
	max := cfg.RequestsPerWindow
	if max <= 0 {
		max = 60
	}
	window := time.Duration(cfg.WindowSeconds) * time.Second
	if window <= 0 {
		window = time.Minute
	}

	return limiter.New(limiter.Config{
		Storage: fiberredis.NewFromConnection(rdb),

		// sliding window
		Max:               max,
		Expiration:        window,
		LimiterMiddleware: limiter.SlidingWindow{},
		Next: func(c fiber.Ctx) bool {
			// processors retry on 429, which would only delay reconciliation
			return c.Path() == "/api/v1/webhooks/payments"
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many requests"})
		},
	})
}
