package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/audit"
	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/config"
	"github.com/noah-isme/toko-storefront/internal/health"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/ratelimit"
	"github.com/noah-isme/toko-storefront/internal/tasks"
)

// Dependencies holds the long lived clients shared by the API and the worker.
type Dependencies struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Redis      *redis.Client
	DB         *pgxpool.Pool
	Backend    *backend.Client
	Validator  *validator.Validate
	TaskClient *asynq.Client
	Tasks      tasks.Dispatcher
	Audit      *audit.Service

	PublicLimiter   ratelimit.Limiter
	CheckoutLimiter ratelimit.Limiter
}

// New connects Redis, the optional audit database and the backend client.
// Close must be called on the result even when New returns an error.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Dependencies, error) {
	d := &Dependencies{
		Config:    cfg,
		Logger:    logger,
		Validator: validator.New(validator.WithRequiredStructEnabled()),
		Audit:     &audit.Service{},
	}

	rdb, err := NewRedis(ctx, cfg.RedisURL, cfg.MetricsEnabled)
	if err != nil {
		return d, err
	}
	d.Redis = rdb

	if cfg.AuditEnabled() {
		if err := audit.Migrate(cfg.DatabaseURL); err != nil {
			return d, fmt.Errorf("migrate audit schema: %w", err)
		}
		pool, err := NewPool(ctx, cfg.DatabaseURL, "toko-storefront")
		if err != nil {
			return d, err
		}
		d.DB = pool
		d.Audit = &audit.Service{Store: audit.PGStore{Pool: pool}, Enabled: true, SamplingRate: 1}
	}

	d.Backend, err = NewBackend(cfg, logger)
	if err != nil {
		return d, err
	}

	connOpt, err := RedisConnOpt(cfg.RedisURL)
	if err != nil {
		return d, err
	}
	d.TaskClient = asynq.NewClient(connOpt)
	d.Tasks = tasks.Dispatcher{Client: d.TaskClient, MaxRetry: cfg.TaskMaxRetry, UniqueTTL: cfg.TaskUniqueTTL}

	store, err := ratelimit.NewRedisStore(rdb, "rl:public")
	if err != nil {
		return d, fmt.Errorf("limiter store: %w", err)
	}
	if d.PublicLimiter, err = ratelimit.NewFixed(cfg.RateLimit, store); err != nil {
		return d, err
	}
	if d.CheckoutLimiter, err = ratelimit.NewSlidingWindow(rdb, "rl:checkout", cfg.CheckoutRateLimit); err != nil {
		return d, err
	}
	return d, nil
}

// NewBackend builds the commerce API client from configuration.
func NewBackend(cfg *config.Config, logger zerolog.Logger) (*backend.Client, error) {
	return backend.New(backend.Config{
		BaseURL:        cfg.BackendBaseURL,
		Timeout:        cfg.BackendTimeout,
		MaxAttempts:    cfg.BackendMaxAttempts,
		Backoff:        cfg.BackendBackoff,
		BreakerMin:     cfg.BackendBreakerMin,
		BreakerOpenFor: cfg.BackendBreakerOpen,
		Logger:         logger.With().Str("component", "backend").Logger(),
	})
}

// NewRedis opens an instrumented Redis client and verifies the connection.
func NewRedis(ctx context.Context, url string, metrics bool) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("instrument redis tracing: %w", err)
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("instrument redis metrics: %w", err)
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewPool opens a traced pgx pool.
func NewPool(ctx context.Context, databaseURL, appName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = appName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// RedisConnOpt converts a redis:// URL into asynq connection options.
func RedisConnOpt(url string) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(url)
	if err != nil {
		return nil, fmt.Errorf("parse task queue url: %w", err)
	}
	return opt, nil
}

// HealthChecks lists the readiness probes for the configured dependencies.
func (d *Dependencies) HealthChecks() []health.Check {
	checks := make([]health.Check, 0, 3)
	if d.Redis != nil {
		checks = append(checks, health.RedisCheck(d.Redis, 300*time.Millisecond))
	}
	if d.DB != nil {
		checks = append(checks, health.DBCheck(d.DB, 500*time.Millisecond))
	}
	if d.Backend != nil {
		checks = append(checks, health.BreakerCheck("backend", d.Backend.Breaker()))
	}
	return checks
}

// Close releases every client that was opened.
func (d *Dependencies) Close() error {
	var errs []error
	if d.TaskClient != nil {
		errs = append(errs, d.TaskClient.Close())
	}
	if d.DB != nil {
		d.DB.Close()
	}
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	return errors.Join(errs...)
}
