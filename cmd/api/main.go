package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/plusonehq/plusone-backend/api/routes"
	"github.com/plusonehq/plusone-backend/internal/ledger"
	"github.com/plusonehq/plusone-backend/internal/orders"
	"github.com/plusonehq/plusone-backend/pkg/config"
	"github.com/plusonehq/plusone-backend/pkg/db"
	"github.com/plusonehq/plusone-backend/pkg/logger"
	"github.com/plusonehq/plusone-backend/pkg/metrics"
	"github.com/plusonehq/plusone-backend/pkg/migrate"
	"github.com/plusonehq/plusone-backend/pkg/outbox"
	"github.com/plusonehq/plusone-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})
	if err := run(logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
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

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	registry := prometheus.NewRegistry()
	intakeMetrics := metrics.NewIntakeMetrics(registry)
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	ordersService, err := orders.NewService(
		orders.NewRepository(dbClient.DB()),
		dbClient,
		outboxService,
		intakeMetrics,
	)
	if err != nil {
		return fmt.Errorf("create orders service: %w", err)
	}

	ledgerService, err := ledger.NewService(
		ledger.NewRepository(dbClient.DB()),
		dbClient,
		outboxService,
		intakeMetrics,
	)
	if err != nil {
		return fmt.Errorf("create ledger service: %w", err)
	}

	// Cloud Run style: the platform injects PORT, config supplies the
	// local default.
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:        cfg,
			Logger:        logg,
			DBPinger:      dbClient,
			Redis:         redisClient,
			OrdersService: ordersService,
			LedgerService: ledgerService,
			Metrics:       registry,
		}),
	}

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
