package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"folio/internal/app"
	"folio/internal/platform/config"
	"folio/internal/platform/httpserver"
	"folio/internal/platform/logger"
)

// main loads configuration, wires the services and runs the HTTP server until
// SIGINT or SIGTERM. Business logic lives in the internal packages.
func main() {
	if err := config.LoadDotEnv(); err != nil {
		logger.New(slog.LevelInfo, false).Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.IsDevelopment())

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg config.Server, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	log.Info("initializing folio",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"chatbot_enabled", cfg.ChatbotEnabled,
		"messaging_enabled", cfg.MessagingEnabled,
		"allowed_origins", len(cfg.AllowedOrigins),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.Build(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer svc.Close()

	svc.StartWorkers(ctx)

	return httpserver.Run(ctx, httpserver.New(cfg.Addr, svc.Router), cfg.ShutdownTimeout, log)
}
