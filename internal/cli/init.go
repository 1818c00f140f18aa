// Package cli holds the startup plumbing shared by the flotta binaries:
// env loading, logger setup, config validation, database init and shutdown
// signal wiring.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"flotta/internal/config"
	"flotta/internal/log"
	"flotta/internal/storage"
)

// LoadEnvFile reads .env when present. Production deployments set real
// environment variables, so a missing file is not an error.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the component-tagged logger from LOG_LEVEL and
// installs it as the process default.
func SetupLogger(component string) *log.Logger {
	if component == "" {
		component = log.ComponentApp
	}
	logger := log.New(log.Config{
		Level:     log.ParseLevel(os.Getenv("LOG_LEVEL")),
		Component: component,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads the configuration, exiting the process when
// validation fails. A daemon with a bad config has nothing useful to do.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Refusing to start on invalid configuration", log.FieldError, err.Error())
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the SQLite repository, running pending migrations, and
// exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	store, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("SQLite initialization failed", log.FieldError, err.Error(), "path", dbPath)
		os.Exit(1)
	}
	return store
}

// GracefulShutdown installs SIGINT/SIGTERM handling. On a signal, cleanup
// runs with at most timeout to finish, then the returned context is
// cancelled. done closes once the whole sequence is over.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer close(done)

		sig := <-sigCh
		logger.Info("Shutdown signal received", "signal", sig.String())

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup()
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-time.After(timeout):
			logger.Warn("Shutdown timeout reached")
		}
		cancel()
	}()

	return ctx, done
}

// WaitForShutdown blocks until the shutdown sequence started by
// GracefulShutdown has finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
