// Package queue buffers work for background writers.
//
// Two backends share one interface:
//
//   - MemoryQueue: buffered channel, lost on restart. Used when Redis is not configured.
//   - RedisQueue: Redis list, survives restarts and can be drained by any replica.
//
// Items that a worker cannot process after its retries land in a
// DeadLetterQueue, where operators can inspect or re-enqueue them.
//
//	chat call ──► Queue ──► UsageLogWorker ──► usage_logs
//	                              │
//	                              └─(retries exhausted)─► DLQ
package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces queue and DLQ keys in a shared Redis.
const DefaultKeyPrefix = "smartai:"

// Queue defines the interface for message queuing
type Queue interface {
	// Enqueue adds an item to the queue
	Enqueue(ctx context.Context, item any) error

	// Dequeue blocks until at least one item is available and returns up to maxItems
	Dequeue(ctx context.Context, maxItems int) ([]any, error)

	// DequeueWithTimeout returns an empty slice when nothing arrives before timeout
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]any, error)

	Length(ctx context.Context) (int, error)

	Close() error
}

// DeadLetterQueue holds items that exhausted their retries.
type DeadLetterQueue interface {
	Add(ctx context.Context, item any, err error) error

	// List returns up to maxItems entries, oldest first. maxItems <= 0 returns all.
	List(ctx context.Context, maxItems int) ([]DeadLetterItem, error)

	Remove(ctx context.Context, id string) error

	Close() error
}

// DeadLetterItem represents an item in the dead letter queue
type DeadLetterItem struct {
	ID        string    `json:"id"`
	Item      any       `json:"item"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
	Retries   int       `json:"retries"`
}

// Config holds queue configuration
type Config struct {
	// BatchSize is the maximum number of items to process in a batch
	BatchSize int

	// BatchTimeout is how long to wait before processing a partial batch
	BatchTimeout time.Duration

	// MaxRetries is the maximum number of retry attempts
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries
	RetryBackoff time.Duration

	// UseRedis selects the Redis backend when a client is available
	UseRedis bool

	// KeyPrefix is prepended to Redis keys
	KeyPrefix string

	// QueueName is the name/key for the queue
	QueueName string
}

// DefaultConfig returns default queue configuration
func DefaultConfig(queueName string) *Config {
	return &Config{
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
		UseRedis:     false,
		KeyPrefix:    DefaultKeyPrefix,
		QueueName:    queueName,
	}
}

// New builds a queue and its dead letter queue. The Redis backend is used only
// when config.UseRedis is set and client is non-nil.
func New(config *Config, client *redis.Client) (Queue, DeadLetterQueue) {
	if config == nil {
		config = DefaultConfig("default")
	}
	if config.UseRedis && client != nil {
		return NewRedisQueue(client, config), NewRedisDeadLetterQueue(client, config)
	}
	return NewMemoryQueue(config), NewMemoryDeadLetterQueue()
}
