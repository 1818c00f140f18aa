package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flotta/internal/amqp"
	"flotta/internal/backend"
	"flotta/internal/cli"
	"flotta/internal/config"
	"flotta/internal/log"
	"flotta/internal/worker"
)

// drainTimeout is how long a stopping worker waits for in-flight
// deliveries before abandoning them. Unacked messages get redelivered.
const drainTimeout = 10 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)

	logger.Info("Starting flotta-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.MirrorEnabled() {
		logger.Info("Mirror backend disabled - nothing to consume, exiting")
		return
	}

	if err := run(logger, cfg); err != nil {
		logger.Error("Worker failed", log.FieldError, err.Error())
		os.Exit(1)
	}
}

func run(logger *log.Logger, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		return fmt.Errorf("mirror backend configuration: %w", err)
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendConfig)
	if err != nil {
		return fmt.Errorf("create %s mirror backend: %w", cfg.MirrorBackend, err)
	}
	defer func() {
		if result.Cleanup == nil {
			return
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err.Error())
		}
	}()
	logger.Info("Mirror backend initialized", "backend", cfg.MirrorBackend)

	queue, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("connect to AMQP: %w", err)
	}
	defer queue.Close()

	syncWorker := worker.NewSyncWorker(queue, result.Backend)

	runErr := make(chan error, 1)
	go func() { runErr <- syncWorker.Run(ctx) }()

	select {
	case err := <-runErr:
		if err != nil {
			return fmt.Errorf("consume sync messages: %w", err)
		}
		logger.Info("Consumer closed, exiting")
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
		select {
		case <-runErr:
			logger.Info("Worker shutdown complete")
		case <-time.After(drainTimeout):
			logger.Warn("Shutdown timeout reached, abandoning in-flight deliveries")
		}
	}
	return nil
}
