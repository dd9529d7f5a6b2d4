// Command manuals-schema applies the manuals schema to a self-hosted PostgreSQL
// used in direct-database mode.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/troubleshooter/internal/config"
	"github.com/and161185/troubleshooter/internal/migrate"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main resolves the DSN from flags or configuration and runs goose in the requested direction.
func main() {
	cfgPath := flag.String("config", "", "config file")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides data.dsn)")
	down := flag.Bool("down", false, "roll back the latest migration")
	status := flag.Bool("status", false, "print migration status")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
	)

	if *dsn == "" {
		cfg, err := config.Load(*cfgPath)
		if err != nil {
			logger.Fatal("load config", zap.Error(err))
		}
		*dsn = cfg.Data.DSN
	}
	if *dsn == "" {
		logger.Fatal("missing database DSN (--dsn or data.dsn)")
	}

	dir := migrate.Up
	switch {
	case *down && *status:
		logger.Fatal("--down and --status are exclusive")
	case *down:
		dir = migrate.Down
	case *status:
		dir = migrate.Status
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := migrate.Run(ctx, *dsn, dir); err != nil {
		logger.Error("migrate", zap.String("direction", string(dir)), zap.Error(err))
		os.Exit(1)
	}
	logger.Info("migrations done", zap.String("direction", string(dir)))
}
