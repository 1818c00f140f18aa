package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"flotta/internal/amqp"
	"flotta/internal/cache"
	"flotta/internal/cli"
	"flotta/internal/core"
	apphttp "flotta/internal/http"
	"flotta/internal/log"
	"flotta/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	if cfg.SeedDemo {
		if err := repo.SeedDemo(context.Background()); err != nil {
			logger.Warn("Demo seed failed", log.FieldError, err.Error())
		} else {
			logger.Info("Demo fleet seeded")
		}
	}

	vocab := core.DefaultVocabulary()
	if cfg.VocabularyPath != "" {
		loaded, err := core.LoadVocabulary(cfg.VocabularyPath)
		if err != nil {
			logger.Error("Failed to load vocabulary", log.FieldError, err.Error(), "path", cfg.VocabularyPath)
			os.Exit(1)
		}
		vocab = loaded
		logger.Info("Vocabulary loaded", "path", cfg.VocabularyPath, "sections", len(vocab.Sections))
	}

	vehicleService := services.NewVehicleService(repo)
	maintService := services.NewMaintenanceService(repo, vocab)

	cacheManager := cache.NewManager()
	maintService.RegisterCaches(cacheManager)
	cacheManager.StartCleanup(10 * time.Minute)
	defer cacheManager.Stop()

	// The outbox pump runs in-process when a mirror backend is configured.
	// Without one, writes skip the outbox entirely.
	var syncProcessor *services.SyncProcessor
	if cfg.MirrorEnabled() {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, sync events will wait in the outbox", log.FieldError, err.Error())
		} else {
			defer amqpClient.Close()

			syncConfig := services.DefaultSyncProcessorConfig()
			syncConfig.PollInterval = cfg.SyncPollInterval
			syncConfig.BatchSize = cfg.SyncBatchSize
			syncConfig.MaxRetries = cfg.SyncMaxRetries

			syncProcessor = services.NewSyncProcessor(repo, amqpClient, syncConfig)
			if err := syncProcessor.Start(context.Background()); err != nil {
				logger.Error("Failed to start sync processor", log.FieldError, err.Error())
				os.Exit(1)
			}
			logger.Info("Sync processor started", "poll_interval", syncConfig.PollInterval, "queue", cfg.AMQPQueue)
		}
	} else {
		maintService.DisableSync()
		logger.Info("Mirror disabled - maintenance data stays in SQLite only")
	}

	srv := apphttp.NewServer(":"+cfg.Port, vehicleService, maintService, logger, apphttp.Options{
		RateLimitRPM:   cfg.RateLimitRPM,
		TrustedProxies: splitTrustedProxies(cfg.TrustedProxies),
	})

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	// Serve until a signal arrives, then drain with a deadline.
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting flotta server", "port", cfg.Port, "mirror", cfg.MirrorBackend)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if syncProcessor != nil {
			if err := syncProcessor.Stop(shutdownCtx); err != nil {
				logger.Error("Sync processor shutdown error", log.FieldError, err.Error())
			}
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
	}

	logger.Info("Server stopped gracefully")
}

// splitTrustedProxies turns the comma-separated TRUSTED_PROXIES value into
// the CIDR list the security detector expects.
func splitTrustedProxies(raw string) []string {
	var proxies []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	return proxies
}
