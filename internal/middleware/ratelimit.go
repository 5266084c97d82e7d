package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/makeasinger/compute-worker/pkg/response"
)

// anyCommand buckets submissions whose body names no command
const anyCommand = "any"

type RateLimiter struct {
	redis *redis.Client
	log   *logrus.Entry
	now   func() time.Time
}

func NewRateLimiter(redisClient *redis.Client, logger *logrus.Entry) *RateLimiter {
	return &RateLimiter{
		redis: redisClient,
		log:   logger.WithField("component", "ratelimit"),
		now:   time.Now,
	}
}

// Limit counts requests per host and per key in fixed Redis windows. The
// window index is part of the key, so every window starts from zero.
func (rl *RateLimiter) Limit(keyPrefix string, keyFn func(c *fiber.Ctx) string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		hostID := GetHostID(c)
		if hostID == "" {
			return c.Next() // auth middleware rejects anonymous callers
		}

		now := rl.now()
		bucket := now.UnixNano() / int64(window)
		key := windowKey(keyPrefix, hostID, keyFn(c), bucket)
		ctx := context.Background()

		pipe := rl.redis.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, window)
		if _, err := pipe.Exec(ctx); err != nil {
			// If Redis fails, allow the request but log the error
			rl.log.WithError(err).WithField("key", key).Warn("rate limit check failed")
			return c.Next()
		}
		count := incr.Val()

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", maxRequests))
		if count > int64(maxRequests) {
			reset := time.Unix(0, (bucket+1)*int64(window))
			c.Set("Retry-After", fmt.Sprintf("%d", retryAfter(now, reset)))
			c.Set("X-RateLimit-Remaining", "0")
			return response.RateLimited(c)
		}

		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", maxRequests-int(count)))
		return c.Next()
	}
}

// TasksLimit limits task submissions per host and per command per minute,
// so a flood of one command does not starve a host's other commands.
func (rl *RateLimiter) TasksLimit(maxPerMin int) fiber.Handler {
	return rl.Limit("tasks", commandKey, maxPerMin, time.Minute)
}

func windowKey(prefix, hostID, sub string, bucket int64) string {
	return fmt.Sprintf("ratelimit:%s:%s:%s:%d", prefix, hostID, sub, bucket)
}

// commandKey reads the command name from a task submission body
func commandKey(c *fiber.Ctx) string {
	var body struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil || body.Command == "" {
		return anyCommand
	}
	return body.Command
}

// retryAfter rounds the wait up to whole seconds
func retryAfter(now, reset time.Time) int {
	wait := reset.Sub(now)
	secs := int((wait + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
