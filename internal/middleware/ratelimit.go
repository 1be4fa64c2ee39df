package middleware

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
)

// RateLimit allows max requests per client IP in each window and answers
// 429 with a message body once the budget is spent.
func RateLimit(name string, max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c fiber.Ctx) string {
			return name + ":" + c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			slog.Warn("rate limit exceeded", "limiter", name, "ip", c.IP(), "path", c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"message":     "Too many requests. Limit: " + strconv.Itoa(max) + " requests per " + window.String(),
				"retry_after": int(window.Seconds()),
			})
		},
	})
}
