// Package usage tracks estimated provider spend per month.
package usage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"smartai_gateway/internal/catalog"
)

// DefaultKeyPrefix is prepended to every monthly cost key.
const DefaultKeyPrefix = "smartai:cost:"

// costTTL keeps two months of totals around.
const costTTL = 60 * 24 * time.Hour

// charsPerToken is the rough ratio used to estimate token counts when
// providers do not report usage.
const charsPerToken = 4

// Tracker accumulates estimated provider spend per calendar month.
type Tracker interface {
	AddUsage(ctx context.Context, provider string, costUSD float64) error
	MonthlySpending(ctx context.Context, provider string) (float64, error)
	AllMonthlySpending(ctx context.Context) (map[string]float64, error)
}

// NoopTracker discards usage.
type NoopTracker struct{}

func NewNoopTracker() *NoopTracker {
	return &NoopTracker{}
}

func (t *NoopTracker) AddUsage(ctx context.Context, provider string, costUSD float64) error {
	return nil
}

func (t *NoopTracker) MonthlySpending(ctx context.Context, provider string) (float64, error) {
	return 0, nil
}

func (t *NoopTracker) AllMonthlySpending(ctx context.Context) (map[string]float64, error) {
	return map[string]float64{}, nil
}

// EstimateCost prices a call from its prompt and reply sizes using the
// catalog's per-1K-token rate. Free and unknown providers cost nothing.
func EstimateCost(provider string, inputChars, outputChars int) float64 {
	d, err := catalog.Lookup(provider)
	if err != nil || d.CostPer1K == 0 {
		return 0
	}
	tokens := float64(inputChars+outputChars) / charsPerToken
	return tokens / 1000 * d.CostPer1K
}

var addUsageScript = redis.NewScript(`
	local key = KEYS[1]
	local cost = tonumber(ARGV[1])
	local ttl = tonumber(ARGV[2])

	local current = tonumber(redis.call('GET', key)) or 0
	local new_total = current + cost

	redis.call('SET', key, new_total, 'EX', ttl)
	return tostring(new_total)
`)

// RedisTracker keeps monthly totals in Redis, one key per provider and month.
type RedisTracker struct {
	redis  *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisTracker(client *redis.Client, prefix string) *RedisTracker {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisTracker{
		redis:  client,
		prefix: prefix,
		now:    time.Now,
	}
}

// AddUsage adds cost to the provider's running total for the current month
func (t *RedisTracker) AddUsage(ctx context.Context, provider string, costUSD float64) error {
	if costUSD <= 0 {
		return nil
	}
	now := t.now().UTC()
	key := t.monthlyKey(provider, now.Year(), int(now.Month()))

	if err := addUsageScript.Run(ctx, t.redis, []string{key}, costUSD, int(costTTL.Seconds())).Err(); err != nil {
		return fmt.Errorf("failed to add usage: %w", err)
	}
	return nil
}

// MonthlySpending returns the current month's spending for a provider
func (t *RedisTracker) MonthlySpending(ctx context.Context, provider string) (float64, error) {
	now := t.now().UTC()
	return t.Spending(ctx, provider, now.Year(), int(now.Month()))
}

// Spending returns spending for a specific month
func (t *RedisTracker) Spending(ctx context.Context, provider string, year, month int) (float64, error) {
	val, err := t.redis.Get(ctx, t.monthlyKey(provider, year, month)).Float64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get spending: %w", err)
	}
	return val, nil
}

// AllMonthlySpending scans the current month's keys and returns spend by provider
func (t *RedisTracker) AllMonthlySpending(ctx context.Context) (map[string]float64, error) {
	now := t.now().UTC()
	suffix := fmt.Sprintf(":%d:%02d", now.Year(), int(now.Month()))
	pattern := t.prefix + "*" + suffix

	out := make(map[string]float64)
	var cursor uint64
	for {
		keys, next, err := t.redis.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}
		for _, key := range keys {
			val, err := t.redis.Get(ctx, key).Float64()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to get value for %s: %w", key, err)
			}
			provider := strings.TrimSuffix(strings.TrimPrefix(key, t.prefix), suffix)
			out[provider] = val
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

// ResetMonthlySpending resets spending for current month (admin use)
func (t *RedisTracker) ResetMonthlySpending(ctx context.Context, provider string) error {
	now := t.now().UTC()
	return t.redis.Del(ctx, t.monthlyKey(provider, now.Year(), int(now.Month()))).Err()
}

// monthlyKey generates the Redis key for monthly spending
func (t *RedisTracker) monthlyKey(provider string, year, month int) string {
	return fmt.Sprintf("%s%s:%d:%02d", t.prefix, provider, year, month)
}
