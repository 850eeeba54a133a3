package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"gastos/internal/cli"
	"gastos/internal/client"
	"gastos/internal/dashboard"
	applog "gastos/internal/log"
	"gastos/internal/ui"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentDashboard)
	logger.Info("Starting gastos dashboard", "api_url", cfg.APIURL, applog.FieldOperation, applog.OpStartup)

	api := client.New(cfg.APIURL)
	store := dashboard.NewStore(api, cli.Slog(logger, applog.ComponentDashboard))

	srv, err := ui.NewServer(ui.Config{
		Addr:               ":" + cfg.WebPort,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, store, logger)
	if err != nil {
		logger.Error("Failed to initialize dashboard", applog.FieldError, err)
		os.Exit(1)
	}
	srv.ReadTimeout = 60 * time.Second
	srv.WriteTimeout = 5 * time.Minute
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
	})

	logger.Info("Listening", "port", cfg.WebPort)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.WebPort)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Dashboard stopped gracefully")
}
