package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/plusonehq/plusone-backend/pkg/config"
	"github.com/plusonehq/plusone-backend/pkg/db"
	"github.com/plusonehq/plusone-backend/pkg/logger"
	"github.com/plusonehq/plusone-backend/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "migration command: up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", opts.cmd, err)
		os.Exit(1)
	}
}

func run(opts options) error {
	_ = godotenv.Load()

	// create and validate only touch the checkout, no config or DB needed
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return fmt.Errorf("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil

	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": opts.cmd,
		"dir": opts.dir,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	switch opts.cmd {
	case "up", "down", "status":
		return migrate.Run(ctx, sqlDB, opts.dir, opts.cmd)
	case "version":
		if opts.version == "" {
			return fmt.Errorf("missing -version for version command")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, opts.dir, opts.version)
	default:
		return fmt.Errorf("unknown -cmd value %q", opts.cmd)
	}
}
