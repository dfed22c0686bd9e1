// Package cli provides common CLI initialization utilities.
// This package consolidates the bootstrap shared by cmd/ledgerd and
// cmd/ledgerctl.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"myfinance/internal/amqp"
	"myfinance/internal/backend"
	"myfinance/internal/config"
	"myfinance/internal/log"
	"myfinance/internal/services"
	"myfinance/internal/storage"
	"myfinance/internal/storage/memory"
)

// SetupLogger builds the process logger from LOG_LEVEL / LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(cfg *config.Config) *log.Logger {
	logCfg := log.DefaultConfig()
	if cfg != nil {
		logCfg = log.ConfigFrom(cfg.LogLevel, cfg.LogFormat)
	}
	logger := log.New(logCfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenStore creates the store selected by cfg.
func OpenStore(cfg backend.Config) (backend.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Type {
	case backend.MemoryBackend:
		return memory.New(), nil
	case backend.SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store at %s: %w", cfg.SQLiteDBPath, err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}

// InitStore opens the configured store or exits the process on failure.
func InitStore(logger *log.Logger, appCfg *config.Config) backend.Store {
	cfg, err := backend.FromAppConfig(appCfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	store, err := OpenStore(cfg)
	if err != nil {
		logger.Error("Failed to initialize store", log.FieldError, err, log.FieldBackend, cfg.Type)
		os.Exit(1)
	}
	logger.WithComponent(log.ComponentStorage).Info("Store initialized", log.FieldBackend, store.Backend())
	return store
}

// InitAMQP connects the optional ledger event client. It returns nil when no
// AMQP URL is configured or the broker is unreachable; the ledger works
// without it.
func InitAMQP(logger *log.Logger, cfg *config.Config) *amqp.Client {
	if cfg.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
		logger.WithComponent(log.ComponentAMQP).Logger)
	if err != nil {
		logger.Warn("AMQP unavailable, ledger events disabled", log.FieldError, err)
		return nil
	}
	logger.Info("AMQP client connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// NewLedger wires the ledger service with the configured cache and, when
// present, the AMQP publisher.
func NewLedger(logger *log.Logger, cfg *config.Config, store backend.Store, publisher *amqp.Client) *services.Ledger {
	opts := []services.Option{
		services.WithLogger(logger),
		services.WithCategoryCache(cfg.CategoryCacheSize, cfg.CategoryCacheTTL),
	}
	if publisher != nil {
		opts = append(opts, services.WithPublisher(publisher))
	}
	return services.NewLedger(store, opts...)
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
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
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
