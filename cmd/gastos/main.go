package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"gastos/internal/amqp"
	"gastos/internal/cache"
	"gastos/internal/classifier"
	"gastos/internal/cli"
	apphttp "gastos/internal/http"
	applog "gastos/internal/log"
	"gastos/internal/services"
)

// classificationMemoTTL bounds how long a classification is reused for an
// identical description.
const classificationMemoTTL = 24 * time.Hour

func main() {
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentApp)
	logger.Info("Starting gastos API", applog.FieldOperation, applog.OpStartup)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx := context.Background()
	c, err := classifier.New(ctx, classifier.Settings{
		OllamaHost:      cfg.OllamaHost,
		OllamaModel:     cfg.OllamaModel,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		GeminiAPIKey:    cfg.GeminiAPIKey,
		GeminiModel:     cfg.GeminiModel,
	}, cli.Slog(logger, applog.ComponentClassifier))
	if err != nil {
		logger.Error("Failed to initialize classifier", applog.FieldError, err)
		os.Exit(1)
	}

	opts := []services.Option{
		services.WithKPICacheTTL(cfg.KPICacheTTL),
		services.WithConcurrency(cfg.ClassifyConcurrency),
		services.WithLogger(cli.Slog(logger, applog.ComponentExpense)),
	}

	// The publisher is optional: without AMQP no mirror is fed.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cli.Slog(logger, applog.ComponentAMQP))
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		opts = append(opts, services.WithPublisher(amqpClient))
		logger.Info("Publishing expense events", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	svc := services.NewExpenseService(repo, classifier.NewMemo(c, classificationMemoTTL), opts...)

	cacheManager := cache.NewManager(cli.Slog(logger, applog.ComponentCache))
	cacheManager.Register(svc.KPICache())
	cacheManager.StartCleanup(10 * time.Minute)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ReadyCheck:         repo.Ping,
		KPICache:           svc.KPICache(),
	}, svc, logger)

	// Imports of large files classify every row, so writes get more time.
	srv.ReadTimeout = 60 * time.Second
	srv.WriteTimeout = 5 * time.Minute
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("AMQP close error", applog.FieldError, err)
			}
		}
	})

	logger.Info("Listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
