// Package cli holds the startup steps shared by cmd/potshare and
// cmd/potshare-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"potshare/internal/config"
	applog "potshare/internal/log"
	"potshare/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default. Unknown values fall back to text/info;
// Config.Validate reports them.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	level, _ := applog.ParseLevel(cfg.LogLevel)
	format, _ := applog.ParseFormat(cfg.LogFormat)

	logger := applog.New(applog.Config{
		Level:     level,
		Format:    format,
		Component: component,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration, sets up logging and validates.
// Exits the process on validation failure.
func LoadAndValidateConfig(component string) (*config.Config, *applog.Logger) {
	cfg := config.Load()
	logger := SetupLogger(cfg, component)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// InitRepository opens the configured database and applies migrations.
// Exits the process on failure.
func InitRepository(logger *applog.Logger, cfg *config.Config) *storage.Repository {
	var (
		repo *storage.Repository
		err  error
	)
	switch storage.Driver(cfg.DBDriver) {
	case storage.DriverPostgres:
		repo, err = storage.NewPostgresRepository(cfg.PostgresDSN)
	default:
		repo, err = storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	}
	if err != nil {
		logger.Error("Failed to initialize repository", applog.FieldError, err, "driver", cfg.DBDriver)
		os.Exit(1)
	}
	logger.Info("Repository ready", "driver", cfg.DBDriver)
	return repo
}

// GracefulShutdown returns a context cancelled on SIGINT/SIGTERM. After the
// signal, cleanup runs with a context bounded by timeout, then done closes.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
	}()

	return ctx, done
}

// WaitForShutdown blocks until the signal handler has finished cleanup.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
