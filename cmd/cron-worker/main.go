package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/plusonehq/plusone-backend/internal/cron"
	"github.com/plusonehq/plusone-backend/internal/ledger"
	"github.com/plusonehq/plusone-backend/pkg/config"
	"github.com/plusonehq/plusone-backend/pkg/db"
	"github.com/plusonehq/plusone-backend/pkg/logger"
	"github.com/plusonehq/plusone-backend/pkg/metrics"
	"github.com/plusonehq/plusone-backend/pkg/migrate"
	"github.com/plusonehq/plusone-backend/pkg/outbox"
	"github.com/plusonehq/plusone-backend/pkg/redis"
)

const serviceKind = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})
	if err := run(logg); err != nil {
		logg.Error(context.Background(), "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(logg *logger.Logger) error {
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = serviceKind

	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	boot := context.Background()
	dbClient, err := db.New(boot, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(boot, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(boot, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(boot, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(boot, "error closing redis", err)
		}
	}()

	service, err := buildService(cfg, logg, dbClient, redisClient)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
	return nil
}

// buildService assembles the retention jobs behind a per-environment
// distributed lock.
func buildService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*cron.Service, error) {
	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+env), 0)
	if err != nil {
		return nil, fmt.Errorf("create cron lock: %w", err)
	}

	historyPrune, err := cron.NewHistoryPruneJob(cron.HistoryPruneJobParams{
		Logger:     logg,
		Repository: ledger.NewRepository(dbClient.DB()),
		Retention:  cfg.Cron.HistoryRetentionDays,
	})
	if err != nil {
		return nil, fmt.Errorf("create history prune job: %w", err)
	}

	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		Retention:  cfg.Cron.OutboxRetentionDays,
	})
	if err != nil {
		return nil, fmt.Errorf("create outbox retention job: %w", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(historyPrune, outboxRetention),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return nil, fmt.Errorf("create cron service: %w", err)
	}
	return service, nil
}
