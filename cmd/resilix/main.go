// Resilix orchestrator server — ingests alert webhooks, drives the incident
// pipeline, and exposes the incident and approval HTTP API.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/resilix/resilix/pkg/api"
	"github.com/resilix/resilix/pkg/cleanup"
	"github.com/resilix/resilix/pkg/config"
	"github.com/resilix/resilix/pkg/orchestrator"
	"github.com/resilix/resilix/pkg/session"
	"github.com/resilix/resilix/pkg/version"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	configureLogging(cfg.LogLevel)

	slog.Info("Starting Resilix",
		"version", version.Full(),
		"http_port", cfg.HTTPPort,
		"session_backend", string(cfg.SessionBackend),
		"jira_mode", string(cfg.JiraIntegrationMode),
		"github_mode", string(cfg.GitHubIntegrationMode))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	store, closeStore, err := session.Open(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open session store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	orch := orchestrator.New(cfg, store, nil)
	server := api.NewServer(cfg, store, orch)
	if pg, ok := store.(*session.PostgresStore); ok {
		server.WithDatabase(pg.DB())
	}

	if cfg.RetentionEnabled {
		sweeper := cleanup.NewSweeper(store, cfg.RetentionMaxAge, cfg.RetentionInterval)
		go sweeper.Run(ctx)
		slog.Info("Retention sweeper started",
			"max_age", cfg.RetentionMaxAge.String(),
			"interval", cfg.RetentionInterval.String())
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-errCh:
		slog.Error("HTTP server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	slog.Info("Shutdown complete")
}

func configureLogging(level string) {
	var slogLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn", "warning":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(handler))
}
