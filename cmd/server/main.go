package main

import (
	"log/slog"
	"os"

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

	application, err := app.New(cfg)
	app.ExitOnError("failed to initialize application", err)

	app.ExitOnError("application run failed", application.Run())
}
