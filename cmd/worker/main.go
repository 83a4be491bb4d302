package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/dukanlabs/checkout-api/internal/config"
	"github.com/dukanlabs/checkout-api/internal/events"
	"github.com/dukanlabs/checkout-api/internal/lock"
	"github.com/dukanlabs/checkout-api/internal/obs"
	"github.com/dukanlabs/checkout-api/internal/store"
	"github.com/dukanlabs/checkout-api/internal/sweep"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "checkout")
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	db := store.New(pool)
	bus := &events.Bus{Store: db}
	sweeper := &sweep.Sweeper{
		Q:         db,
		Events:    bus,
		Lock:      lock.Locker{R: rdb, RetryBackoff: cfg.LockRetryBackoff},
		LockTTL:   cfg.LockTTL,
		TTL:       cfg.GatewayOrderTTL,
		BatchSize: int32(cfg.SweepBatchSize),
		Logger:    &logger,
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(sweep.TypeExpireGatewayOrders, sweeper.HandleExpireTask)

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{"default": 1},
	})

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{})
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	if _, err := scheduler.Register("@every "+interval.String(), sweep.NewExpireTask()); err != nil {
		logger.Fatal().Err(err).Msg("register sweep schedule")
	}

	errCh := make(chan error, 2)
	go func() { errCh <- srv.Run(mux) }()
	go func() { errCh <- scheduler.Run() }()

	logger.Info().Dur("interval", interval).Msg("worker starting")
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("worker stopped with error")
		}
	}
	scheduler.Shutdown()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
