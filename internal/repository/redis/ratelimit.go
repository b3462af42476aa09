package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sectorlens/sectorlens/internal/config"
)

// RateLimiter enforces a fixed-window request budget in Redis. Each limiter
// owns a key scope so independent surfaces (e.g. share management) never
// share a budget.
type RateLimiter struct {
	client *Client
	prefix string
	limit  int64
	window time.Duration
}

// NewRateLimiter creates a limiter for the given scope from its configured
// budget. A non-positive window falls back to one minute.
func NewRateLimiter(client *Client, scope string, cfg config.RateLimitConfig) *RateLimiter {
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		client: client,
		prefix: fmt.Sprintf("ratelimit:%s:", scope),
		limit:  int64(cfg.Requests + cfg.Burst),
		window: window,
	}
}

// Allow checks if a request should be allowed based on rate limits
// Returns (allowed, remaining, resetTime, error)
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	fullKey := r.prefix + key
	windowEnd := time.Now().Truncate(r.window).Add(r.window)

	pipe := r.client.rdb.Pipeline()

	// Increment counter
	incrCmd := pipe.Incr(ctx, fullKey)

	// Set expiry if key is new
	pipe.ExpireNX(ctx, fullKey, r.window)

	_, err := pipe.Exec(ctx)
	if err != nil && err != redis.Nil {
		return false, 0, time.Time{}, fmt.Errorf("failed to execute rate limit check: %w", err)
	}

	count := incrCmd.Val()
	remaining := int(r.limit - count)
	if remaining < 0 {
		remaining = 0
	}

	return count <= r.limit, remaining, windowEnd, nil
}

// Reset resets the rate limit counter for a key
func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	return r.client.rdb.Del(ctx, r.prefix+key).Err()
}
