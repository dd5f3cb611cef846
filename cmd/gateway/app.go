package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"smartai_gateway/internal/auth"
	"smartai_gateway/internal/bizdata"
	"smartai_gateway/internal/config"
	"smartai_gateway/internal/gateway"
	"smartai_gateway/internal/health"
	"smartai_gateway/internal/httpapi"
	"smartai_gateway/internal/logging"
	"smartai_gateway/internal/metrics"
	"smartai_gateway/internal/providers"
	"smartai_gateway/internal/queue"
	"smartai_gateway/internal/ratelimit"
	"smartai_gateway/internal/selector"
	"smartai_gateway/internal/storage"
	"smartai_gateway/internal/usage"
	"smartai_gateway/internal/utils"
)

const statsInterval = 15 * time.Second

// openDB is replaced in tests
var openDB = storage.NewDB

// app owns every long-lived component of the gateway process
type app struct {
	cfg    *config.Config
	logger *utils.Logger

	db      *storage.DB
	redis   *storage.RedisClient
	fetcher *bizdata.SQLFetcher

	providerRepo *storage.ProviderConfigRepository
	usageRepo    *storage.UsageLogRepository
	encryption   *storage.Encryption
	limiter      ratelimit.Limiter
	health       *health.Tracker
	spending     usage.Tracker
	usageWorker  *storage.UsageLogWorker
	sink         logging.Sink
	metrics      *metrics.Metrics
	orchestrator *gateway.Orchestrator
	authService  *auth.Service

	wg sync.WaitGroup
}

// newApp connects every backing store and builds the pipeline. Anything
// already opened is closed again when a later step fails.
func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg, logger: utils.NewLogger("app")}
	defer func() {
		if err != nil {
			a.release()
		}
	}()

	db, err := openDB(storage.DBConfig{
		URL:              cfg.Database.URL,
		MaxOpenConns:     cfg.Database.MaxOpenConns,
		MaxIdleConns:     cfg.Database.MaxIdleConns,
		ConnMaxLifetime:  cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime:  cfg.Database.ConnMaxIdleTime,
		SessionCacheSize: cfg.Cache.SessionCacheSize,
		SessionCacheTTL:  cfg.Cache.SessionCacheTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.db = db

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return nil, err
		}
	}

	if cfg.Redis.Enabled {
		a.redis, err = storage.NewRedisClient(storage.RedisConfig{
			Address:      cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
	} else {
		a.logger.Warn("Redis disabled, rate limits and usage totals are not shared between instances")
	}

	a.encryption, err = storage.NewEncryption(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize encryption: %w", err)
	}

	if a.redis != nil {
		a.limiter = ratelimit.NewRedisLimiter(a.redis.Client(), cfg.Gateway.RateLimitPrefix)
		a.spending = usage.NewRedisTracker(a.redis.Client(), "")
	} else {
		a.limiter = ratelimit.NewNoopLimiter()
		a.spending = usage.NewNoopTracker()
	}

	var fetcher bizdata.Fetcher = bizdata.NoopFetcher{}
	if cfg.BizData.DSN != "" {
		a.fetcher, err = bizdata.OpenSQLFetcher(ctx, cfg.BizData.DSN, cfg.BizData.MaxOpenConns, cfg.BizData.QueryTimeout)
		if err != nil {
			return nil, err
		}
		fetcher = a.fetcher
	} else {
		a.logger.Info("BIZDATA_DSN not set, chat replies will not include business context")
	}

	a.providerRepo = storage.NewProviderConfigRepository(db)
	a.usageRepo = storage.NewUsageLogRepository(db)
	a.health = health.NewTracker(health.Config{
		FailureThreshold: cfg.Gateway.HealthThreshold,
		CooldownDuration: cfg.Gateway.HealthCooldown,
	})

	if cfg.MetricsEnabled {
		a.metrics = metrics.New()
	}

	if err := a.initUsageWorker(ctx); err != nil {
		return nil, err
	}
	if err := a.initSink(ctx); err != nil {
		return nil, err
	}

	registry := providers.NewRegistry(providers.Options{
		SiteURL:       cfg.SiteURL,
		RemoteTimeout: cfg.Gateway.RequestTimeout,
		LocalTimeout:  cfg.Gateway.LocalTimeout,
	})

	deps := gateway.Dependencies{
		Sessions:  storage.NewSessionRepository(db),
		Messages:  storage.NewMessageRepository(db),
		Selector:  selector.New(a.providerRepo, a.limiter),
		Adapters:  registry,
		Keys:      a.encryption,
		Limiter:   a.limiter,
		Fetcher:   fetcher,
		Health:    a.health,
		Usage:     a.spending,
		UsageLogs: a.usageWorker,
		Sink:      a.sink,
	}
	if a.metrics != nil {
		deps.Metrics = a.metrics
	}

	a.orchestrator = gateway.New(deps, gateway.Options{
		MaxAttempts:        cfg.Gateway.MaxAttempts,
		ContextCharLimit:   cfg.Gateway.ContextCharLimit,
		DefaultLanguage:    cfg.Gateway.DefaultLanguage,
		DefaultTemperature: cfg.Gateway.DefaultTemperature,
	})
	a.authService = auth.NewService(storage.NewAdminUserRepository(db), cfg.JWTSecret, cfg.JWTTTL)

	return a, nil
}

func (a *app) initUsageWorker(ctx context.Context) error {
	qcfg := queue.DefaultConfig("usage")
	qcfg.UseRedis = a.cfg.UsageQueue.UseRedis && a.redis != nil
	qcfg.BatchSize = a.cfg.UsageQueue.BatchSize
	qcfg.BatchTimeout = a.cfg.UsageQueue.BatchTimeout
	qcfg.MaxRetries = a.cfg.UsageQueue.MaxRetries
	qcfg.RetryBackoff = a.cfg.UsageQueue.RetryBackoff

	q, dlq := queue.New(qcfg, a.redisClient())
	a.usageWorker = storage.NewUsageLogWorker(q, dlq, a.usageRepo, qcfg)
	// Detached from the signal context; Stop drains the queue on shutdown.
	a.usageWorker.Start(context.WithoutCancel(ctx))
	return nil
}

// initSink picks the audit sink: S3 when a bucket is configured, rotated
// local files when a template is, otherwise none.
func (a *app) initSink(ctx context.Context) error {
	sc := a.cfg.LoggingSink
	if !sc.Enabled {
		a.sink = logging.NewNoopSink()
		return nil
	}

	if sc.S3Bucket != "" {
		qcfg := queue.DefaultConfig("audit")
		qcfg.UseRedis = a.redis != nil
		q, _ := queue.New(qcfg, a.redisClient())

		sink, err := logging.NewS3Sink(ctx, logging.S3SinkConfig{
			FlushSize:     sc.FlushSize,
			FlushInterval: sc.FlushInterval,
			S3Bucket:      sc.S3Bucket,
			S3Region:      sc.S3Region,
			S3Prefix:      sc.S3Prefix,
			PodName:       sc.PodName,
		}, q)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 audit sink: %w", err)
		}
		a.sink = sink
		a.logger.Info("Audit records go to S3", "bucket", sc.S3Bucket, "prefix", sc.S3Prefix)
		return nil
	}

	sink, err := logging.NewFileSink(logging.FileSinkConfig{
		FileTemplate:  sc.FileTemplate,
		MaxSize:       sc.FileMaxSize,
		MaxFiles:      sc.FileMaxFiles,
		BufferSize:    sc.BufferSize,
		FlushInterval: time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize file audit sink: %w", err)
	}
	a.sink = sink
	a.logger.Info("Audit records go to local files", "template", sc.FileTemplate)
	return nil
}

func (a *app) httpDeps() *httpapi.Dependencies {
	deps := &httpapi.Dependencies{
		Chat:       a.orchestrator,
		Auth:       a.authService,
		Providers:  a.providerRepo,
		Encryption: a.encryption,
		RateLimit:  a.limiter,
		Health:     a.health,
		UsageStats: a.usageRepo,
		Spending:   a.spending,
		UsageQueue: a.usageWorker,
		DB:         a.db,
	}
	if a.redis != nil {
		deps.Redis = a.redis
	}
	if a.metrics != nil {
		deps.Metrics = a.metrics.Handler()
	}
	return deps
}

// startBackground runs the periodic maintenance loops until ctx is done
func (a *app) startBackground(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.cleanupLoop(ctx)
	}()

	if a.metrics != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.statsLoop(ctx)
		}()
	}
}

func (a *app) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Gateway.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.orchestrator.CleanupSessions(ctx, a.cfg.Gateway.SessionRetention); err != nil {
				a.logger.Warn("Session cleanup failed", "error", err)
			}
			if n := a.health.Cleanup(); n > 0 {
				a.logger.Debug("Dropped stale health records", "count", n)
			}
			a.db.CleanupExpiredCacheEntries()
		}
	}
}

func (a *app) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.recordStats(ctx)
		}
	}
}

func (a *app) recordStats(ctx context.Context) {
	a.metrics.SetDBStats(a.db.GetStats())

	length, err := a.usageWorker.QueueLength(ctx)
	if err != nil {
		return
	}
	dead, err := a.usageWorker.DeadLetterItems(ctx, 0)
	if err != nil {
		return
	}
	a.metrics.SetQueueStats(length, len(dead))
}

// shutdown stops workers before sinks so queued usage rows and audit
// records are flushed, then closes connections.
func (a *app) shutdown(ctx context.Context) {
	a.wg.Wait()

	if err := a.usageWorker.Stop(); err != nil {
		a.logger.Warn("Usage worker stopped with error", "error", err)
	}
	if err := a.sink.Shutdown(ctx); err != nil {
		a.logger.Warn("Failed to shutdown audit sink", "error", err)
	}

	a.release()
}

// release closes whatever connections have been opened so far. Stopping
// the usage worker twice is harmless.
func (a *app) release() {
	if a.usageWorker != nil {
		if err := a.usageWorker.Stop(); err != nil {
			a.logger.Warn("Usage worker stopped with error", "error", err)
		}
	}
	if a.fetcher != nil {
		a.fetcher.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

func (a *app) redisClient() *redis.Client {
	if a.redis == nil {
		return nil
	}
	return a.redis.Client()
}
