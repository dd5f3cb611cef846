package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds configuration for the gateway.
type Config struct {
	HTTPPort           string
	SiteURL            string
	CORSAllowedOrigins []string
	JWTSecret          []byte
	JWTTTL             time.Duration
	EncryptionKey      []byte
	Database           DatabaseConfig
	BizData            BizDataConfig
	Cache              CacheConfig
	Redis              RedisConfig
	Gateway            GatewayConfig
	UsageQueue         UsageQueueConfig
	LoggingSink        LoggingSinkConfig
	MetricsEnabled     bool
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	AutoMigrate     bool // Apply the embedded schema at startup
}

// BizDataConfig points at the read-only ERPNext database used for chat context.
// An empty DSN disables context fetching.
type BizDataConfig struct {
	DSN          string
	MaxOpenConns int
	QueryTimeout time.Duration
}

// CacheConfig holds cache settings
type CacheConfig struct {
	SessionCacheSize int
	SessionCacheTTL  time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled      bool // When false, rate limits, usage totals and queues stay in-process
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// GatewayConfig holds chat pipeline settings
type GatewayConfig struct {
	MaxAttempts        int           // Providers tried per chat call
	ContextCharLimit   int           // Ceiling on serialized business context in the prompt
	RateLimitPrefix    string        // Redis key prefix for per-minute counters
	RequestTimeout     time.Duration // Default timeout for remote providers
	LocalTimeout       time.Duration // Timeout for on-box providers
	DefaultLanguage    string
	DefaultTemperature float64
	HealthThreshold    int           // Consecutive failures before a provider is reported unhealthy
	HealthCooldown     time.Duration // How long an unhealthy provider stays flagged
	SessionRetention   time.Duration // Closed sessions older than this are purged
	CleanupInterval    time.Duration
}

// UsageQueueConfig controls the async usage-log writer
type UsageQueueConfig struct {
	UseRedis     bool
	BatchSize    int
	BatchTimeout time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// LoggingSinkConfig holds configuration for the audit sink. S3 is used when a
// bucket is set, otherwise records go to rotated local files.
type LoggingSinkConfig struct {
	Enabled       bool          // Whether to enable audit logging
	BufferSize    int           // Records buffered by the file sink
	FlushSize     int           // Flush to S3 after this many records
	FlushInterval time.Duration // Flush to S3 after this duration
	S3Bucket      string        // S3 bucket name
	S3Region      string        // AWS region
	S3Prefix      string        // Prefix for S3 keys (e.g., "logs/")
	PodName       string        // Pod identifier for multi-pod deployments
	FileTemplate  string        // Local file template, %s receives a timestamp
	FileMaxSize   int64         // Rotate local files at this size in bytes
	FileMaxFiles  int           // Rotated local files to keep
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvFloat(key string, defaultValue float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// getEnvStringSlice splits a comma-separated variable, dropping blanks
func getEnvStringSlice(key string, defaultValue []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// defaultEncryptionKey is only suitable for local development.
const defaultEncryptionKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	encKey, err := ParseEncryptionKey(getEnvString("ENCRYPTION_KEY", defaultEncryptionKey))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPPort:           getEnvString("HTTP_PORT", "8080"),
		SiteURL:            getEnvString("SITE_URL", "http://localhost:8080"),
		CORSAllowedOrigins: getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		JWTSecret:          []byte(getEnvString("JWT_SECRET", "supersecretkey")),
		JWTTTL:             getEnvDuration("JWT_TTL", 12*time.Hour),
		EncryptionKey:      encKey,
		Database: DatabaseConfig{
			URL:             dbURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		BizData: BizDataConfig{
			DSN:          getEnvString("BIZDATA_DSN", ""),
			MaxOpenConns: getEnvInt("BIZDATA_MAX_OPEN_CONNS", 5),
			QueryTimeout: getEnvDuration("BIZDATA_QUERY_TIMEOUT", 5*time.Second),
		},
		Cache: CacheConfig{
			SessionCacheSize: getEnvInt("CACHE_SESSION_SIZE", 5000),
			SessionCacheTTL:  getEnvDuration("CACHE_SESSION_TTL", 2*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:      getEnvBool("REDIS_ENABLED", true),
			Address:      getEnvString("REDIS_ADDRESS", "localhost:6379"),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Gateway: GatewayConfig{
			MaxAttempts:        getEnvInt("GATEWAY_MAX_ATTEMPTS", 3),
			ContextCharLimit:   getEnvInt("GATEWAY_CONTEXT_CHAR_LIMIT", 2000),
			RateLimitPrefix:    getEnvString("RATE_LIMIT_PREFIX", "smartai_ratelimit:"),
			RequestTimeout:     getEnvDuration("PROVIDER_REQUEST_TIMEOUT", 30*time.Second),
			LocalTimeout:       getEnvDuration("LOCAL_PROVIDER_TIMEOUT", 60*time.Second),
			DefaultLanguage:    getEnvString("GATEWAY_DEFAULT_LANGUAGE", "English"),
			DefaultTemperature: getEnvFloat("PROVIDER_DEFAULT_TEMPERATURE", 0.7),
			HealthThreshold:    getEnvInt("PROVIDER_HEALTH_THRESHOLD", 3),
			HealthCooldown:     getEnvDuration("PROVIDER_HEALTH_COOLDOWN", 5*time.Minute),
			SessionRetention:   getEnvDuration("SESSION_RETENTION", 30*24*time.Hour),
			CleanupInterval:    getEnvDuration("SESSION_CLEANUP_INTERVAL", 24*time.Hour),
		},
		UsageQueue: UsageQueueConfig{
			UseRedis:     getEnvBool("USAGE_QUEUE_REDIS", true),
			BatchSize:    getEnvInt("USAGE_QUEUE_BATCH_SIZE", 100),
			BatchTimeout: getEnvDuration("USAGE_QUEUE_BATCH_TIMEOUT", 5*time.Second),
			MaxRetries:   getEnvInt("USAGE_QUEUE_MAX_RETRIES", 3),
			RetryBackoff: getEnvDuration("USAGE_QUEUE_RETRY_BACKOFF", 1*time.Second),
		},
		LoggingSink: LoggingSinkConfig{
			Enabled:       getEnvBool("LOGGING_SINK_ENABLED", false),
			BufferSize:    getEnvInt("LOGGING_SINK_BUFFER_SIZE", 10000),
			FlushSize:     getEnvInt("LOGGING_SINK_FLUSH_SIZE", 1000),
			FlushInterval: getEnvDuration("LOGGING_SINK_FLUSH_INTERVAL", 5*time.Minute),
			S3Bucket:      getEnvString("LOGGING_SINK_S3_BUCKET", ""),
			S3Region:      getEnvString("LOGGING_SINK_S3_REGION", "us-east-1"),
			S3Prefix:      getEnvString("LOGGING_SINK_S3_PREFIX", "chat-audit/"),
			PodName:       getEnvString("POD_NAME", "gateway-0"),
			FileTemplate:  getEnvString("LOGGING_SINK_FILE", ""),
			FileMaxSize:   int64(getEnvInt("LOGGING_SINK_FILE_MAX_SIZE", 100<<20)),
			FileMaxFiles:  getEnvInt("LOGGING_SINK_FILE_MAX_FILES", 10),
		},
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints that defaults cannot guarantee
func (c *Config) Validate() error {
	if c.Gateway.MaxAttempts < 1 {
		return fmt.Errorf("GATEWAY_MAX_ATTEMPTS must be at least 1, got %d", c.Gateway.MaxAttempts)
	}
	if c.Gateway.ContextCharLimit < 0 {
		return fmt.Errorf("GATEWAY_CONTEXT_CHAR_LIMIT must not be negative")
	}
	if c.Gateway.CleanupInterval <= 0 {
		return fmt.Errorf("SESSION_CLEANUP_INTERVAL must be positive")
	}
	if c.LoggingSink.Enabled && c.LoggingSink.S3Bucket == "" && c.LoggingSink.FileTemplate == "" {
		return fmt.Errorf("LOGGING_SINK_S3_BUCKET or LOGGING_SINK_FILE is required when the logging sink is enabled")
	}
	if c.LoggingSink.FileTemplate != "" && !strings.Contains(c.LoggingSink.FileTemplate, "%s") {
		return fmt.Errorf("LOGGING_SINK_FILE must contain a %%s placeholder")
	}
	return nil
}

// ParseEncryptionKey decodes a 64 hex character AES-256 key
func ParseEncryptionKey(hexKey string) ([]byte, error) {
	if len(hexKey) != 64 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be 64 hex characters (32 bytes)")
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be valid hex: %w", err)
	}
	return key, nil
}
