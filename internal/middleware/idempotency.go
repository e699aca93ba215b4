package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/netlinkisp/ispadmin/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// CorrelationHeader carries the client-chosen idempotency key
const CorrelationHeader = "X-Correlation-ID"

// IdempotencyMiddleware replays the stored response of a mutating request
// when the same X-Correlation-ID arrives again within ttl. Keys are
// namespaced by the caller so two users can't collide on one id.
func IdempotencyMiddleware(redisClient *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodPost, fiber.MethodPatch, fiber.MethodPut:
		default:
			return c.Next()
		}

		correlationID := c.Get(CorrelationHeader)
		if correlationID == "" {
			return c.Next()
		}

		key := fmt.Sprintf("idempotency:%s:%s:%s", UserIDFrom(c), c.Path(), correlationID)
		ctx := c.UserContext()

		cached, err := redisClient.HGetAll(ctx, key).Result()
		if err == nil && cached["body"] != "" {
			telemetry.AddSpanEvent(c, "idempotent_replay", attribute.String("correlation_id", correlationID))
			c.Set("X-Idempotent-Replay", "true")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			status := fiber.StatusOK
			if s, ok := cached["status"]; ok {
				fmt.Sscanf(s, "%d", &status)
			}
			return c.Status(status).SendString(cached["body"])
		}
		if err != nil && err != redis.Nil {
			logger.Warn("idempotency lookup failed, processing request", "error", err)
		}

		if err := c.Next(); err != nil {
			return err
		}

		// only successful responses are replayed
		statusCode := c.Response().StatusCode()
		if statusCode < 200 || statusCode >= 300 {
			return nil
		}
		body := append([]byte(nil), c.Response().Body()...)
		if len(body) == 0 {
			return nil
		}

		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		pipe := redisClient.TxPipeline()
		pipe.HSet(storeCtx, key, "status", statusCode, "body", body)
		pipe.Expire(storeCtx, key, ttl)
		if _, err := pipe.Exec(storeCtx); err != nil {
			logger.Warn("failed to store idempotent response", "error", err)
		}

		return nil
	}
}
