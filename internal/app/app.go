// Package app assembles the gateway from its configuration.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"market-gateway/config"
	"market-gateway/internal/archive"
	"market-gateway/internal/domain/actor"
	"market-gateway/internal/domain/queue"
	"market-gateway/internal/events"
	"market-gateway/internal/handler"
	"market-gateway/internal/materializer"
	"market-gateway/internal/redis"
	"market-gateway/internal/repository"
	"market-gateway/internal/repository/memory"
	"market-gateway/internal/retention"
	"market-gateway/internal/server"
	"market-gateway/internal/services"
	"market-gateway/internal/storage"
	"market-gateway/internal/telemetry"
	"market-gateway/pkg/database"
	"market-gateway/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// App holds the wired components and the resources to release on Close.
type App struct {
	Store     repository.Store
	Enqueuer  *services.MessageEnqueuer
	Peeker    *services.PeekService
	Dequeuer  *services.DequeueService
	Archive   *services.ArchiveService
	Retention *retention.Processor
	Handlers  *server.Handlers
	Limits    server.Limits
	Health    server.HealthCheck

	db    *sql.DB
	redis *goredis.Client
}

// Option adjusts how Build assembles the gateway.
type Option func(*buildOptions)

type buildOptions struct {
	meters metric.MeterProvider
}

// WithMeterProvider records the queue counters on p. Without it they go to
// the global OpenTelemetry meter provider, which is a no-op until the
// process installs one with otel.SetMeterProvider.
func WithMeterProvider(p metric.MeterProvider) Option {
	return func(o *buildOptions) {
		o.meters = p
	}
}

// QueueOptions are the bundling settings from cfg.
func QueueOptions(cfg *config.Config) []queue.Option {
	return []queue.Option{
		queue.WithBundleSizePolicy(queue.CategoryPolicy(cfg.AggregationsBundleMaxMessages, cfg.BundleMaxMessages)),
	}
}

// RateLimits are the per-actor peek and dequeue quotas from cfg.
func RateLimits(cfg *config.Config) redis.RateLimitConfig {
	return redis.RateLimitConfig{
		PeekLimit:    cfg.RateLimitPeek,
		DequeueLimit: cfg.RateLimitDequeue,
		Window:       cfg.RateLimitWindow,
	}
}

// Build connects to the configured backends and wires the services. With
// APP_STORE=memory no external service is contacted.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger, opts ...Option) (*App, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	hub, err := actor.NewReceiver(cfg.HubActorNumber, cfg.HubActorRole)
	if err != nil {
		return nil, fmt.Errorf("hub actor: %w", err)
	}
	metrics, err := telemetry.NewMetrics(o.meters)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	a := &App{}
	queueOpts := QueueOptions(cfg)

	if cfg.AppStore == config.StoreMemory {
		a.Store = memory.NewStore(queueOpts...)
		a.Health = a.Store.Ping
	} else {
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.Store = repository.NewPostgresStore(db, queueOpts...)
		a.Health = func(ctx context.Context) error { return database.HealthCheck(ctx, db) }

		a.redis, err = redis.NewClient(ctx, redis.Config{Host: cfg.RedisHost, Port: cfg.RedisPort, Password: cfg.RedisPassword})
		if err != nil {
			a.Close()
			return nil, err
		}
		limiter := redis.NewRateLimiter(a.redis, RateLimits(cfg))
		a.Limits = server.Limits{Peek: limiter.AllowPeek, Dequeue: limiter.AllowDequeue}
	}

	var blobs archive.BlobStore
	if cfg.S3Bucket != "" {
		blobs, err = storage.NewClient(ctx, storage.S3Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Endpoint:  cfg.S3Endpoint,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("s3: %w", err)
		}
	} else {
		log.Warn(ctx, "S3_BUCKET is not set, archived documents are kept in memory")
		blobs = archive.NewMemoryBlobStore()
	}
	archiver := archive.NewArchiver(blobs)

	var notifier *events.Notifier
	if a.redis != nil {
		notifier = events.NewNotifier(redis.NewPublisher(a.redis))
	}

	locks := services.NewReceiverLocker()
	svcOpts := []services.Option{
		services.WithNotifier(notifier),
		services.WithMetrics(metrics),
		services.WithLogger(log),
	}
	a.Enqueuer = services.NewMessageEnqueuer(a.Store, locks, svcOpts...)
	a.Peeker = services.NewPeekService(a.Store, locks, hub, materializer.DefaultRegistry(), archiver, svcOpts...)
	a.Dequeuer = services.NewDequeueService(a.Store, locks, svcOpts...)
	a.Archive = services.NewArchiveService(a.Store, archiver)
	a.Retention = retention.DefaultProcessor(a.Store.Retention(), metrics, cfg)
	a.Handlers = &server.Handlers{
		Queue: handler.NewQueueHandler(a.Enqueuer, a.Peeker, a.Dequeuer, a.Archive),
	}

	log.Info(ctx, "gateway assembled",
		zap.String("store", cfg.AppStore),
		zap.Stringer("hub", hub),
		zap.Bool("notifications", notifier != nil))
	return a, nil
}

func (a *App) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
