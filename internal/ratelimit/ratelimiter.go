package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"smartai_gateway/internal/utils"
)

// DefaultPrefix is prepended to every window key.
const DefaultPrefix = "smartai_ratelimit:"

// windowTTL bounds the lifetime of a per-minute counter.
const windowTTL = 60 * time.Second

// Status is the outcome of a limit check for one provider.
type Status struct {
	IsLimited    bool  `json:"is_limited"`
	CurrentCount int64 `json:"current_count"`
	Limit        int   `json:"limit"`
	Remaining    int64 `json:"remaining"`
}

// Limiter tracks per-provider request counts in fixed one-minute windows.
type Limiter interface {
	CheckLimit(ctx context.Context, provider string, limit int) Status
	Increment(ctx context.Context, provider string) (int64, error)
	Reset(ctx context.Context, provider string) error
}

// NoopLimiter never limits. Used when Redis is not configured.
type NoopLimiter struct{}

func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

func (l *NoopLimiter) CheckLimit(ctx context.Context, provider string, limit int) Status {
	return Status{Limit: limit, Remaining: int64(max(limit, 0))}
}

func (l *NoopLimiter) Increment(ctx context.Context, provider string) (int64, error) {
	return 0, nil
}

func (l *NoopLimiter) Reset(ctx context.Context, provider string) error {
	return nil
}

// RedisLimiter implements Limiter with INCR counters keyed by the current UTC minute.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	now    func() time.Time
	logger *utils.Logger
}

// NewRedisLimiter creates a limiter. An empty prefix selects DefaultPrefix.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		now:    time.Now,
		logger: utils.NewLogger("ratelimit"),
	}
}

// WindowKey returns the counter key for provider during the minute containing now.
func (rl *RedisLimiter) WindowKey(provider string, now time.Time) string {
	return rl.prefix + provider + ":" + now.UTC().Format("200601021504")
}

// CheckLimit reads the current window count without modifying it.
// Redis failures are logged and reported as not limited.
func (rl *RedisLimiter) CheckLimit(ctx context.Context, provider string, limit int) Status {
	key := rl.WindowKey(provider, rl.now())

	count, err := rl.client.Get(ctx, key).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		rl.logger.Warn("Rate limit check failed, allowing request", "provider", provider, "error", err)
		return Status{Limit: limit, Remaining: int64(max(limit, 0))}
	}

	return newStatus(count, limit)
}

// Increment bumps the current window counter and refreshes its TTL atomically.
func (rl *RedisLimiter) Increment(ctx context.Context, provider string) (int64, error) {
	key := rl.WindowKey(provider, rl.now())

	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, windowTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to increment rate counter: %w", err)
	}

	return incr.Val(), nil
}

// Reset deletes the current window counter for provider.
func (rl *RedisLimiter) Reset(ctx context.Context, provider string) error {
	key := rl.WindowKey(provider, rl.now())
	if err := rl.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to reset rate counter: %w", err)
	}
	return nil
}

// newStatus derives a Status from a window count. A limit <= 0 never limits.
func newStatus(count int64, limit int) Status {
	if limit <= 0 {
		return Status{CurrentCount: count, Limit: limit}
	}
	remaining := int64(limit) - count
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		IsLimited:    count >= int64(limit),
		CurrentCount: count,
		Limit:        limit,
		Remaining:    remaining,
	}
}
