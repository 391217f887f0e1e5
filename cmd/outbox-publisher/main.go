package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/plusonehq/plusone-backend/pkg/config"
	"github.com/plusonehq/plusone-backend/pkg/db"
	"github.com/plusonehq/plusone-backend/pkg/logger"
	"github.com/plusonehq/plusone-backend/pkg/migrate"
	"github.com/plusonehq/plusone-backend/pkg/outbox"
	"github.com/plusonehq/plusone-backend/pkg/pubsub"
)

const serviceKind = "outbox-publisher"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})
	if err := run(logg); err != nil {
		logg.Error(context.Background(), "outbox publisher stopped unexpectedly", err)
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

	pubsubClient, err := pubsub.NewClient(boot, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(boot, "error closing pubsub client", err)
		}
	}()

	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		PubSub:     pubsubClient,
		Repository: outbox.NewRepository(dbClient.DB()),
	})
	if err != nil {
		return fmt.Errorf("create outbox publisher: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
	})

	logg.Info(ctx, "starting outbox publisher")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "outbox publisher shutting down gracefully")
	return nil
}
