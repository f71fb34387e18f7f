// Command sweep removes recycle bin records past their retention window once
// and exits. It is meant for deployments that schedule the sweep externally.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go-charity-backoffice/internal/app"
	"go-charity-backoffice/internal/config"
	"go-charity-backoffice/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	removed, err := app.Sweep(ctx, cfg)
	app.ExitOnError("retention sweep failed", err)

	slog.Info("retention sweep finished", "removed", removed, "retention_days", cfg.RetentionDays)
}
