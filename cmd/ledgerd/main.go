package main

import (
	"context"
	"time"

	"myfinance/internal/cache"
	"myfinance/internal/cli"
	"myfinance/internal/log"
	"myfinance/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	bootLogger := cli.SetupLogger(nil)
	cfg := cli.LoadAndValidateConfig(bootLogger)
	logger := cli.SetupLogger(cfg)

	logger.Info("Starting ledgerd", log.FieldBackend, cfg.DataBackend)

	store := cli.InitStore(logger, cfg)
	defer store.Close()

	publisher := cli.InitAMQP(logger, cfg)
	if publisher != nil {
		defer publisher.Close()
	}

	ledger := cli.NewLedger(logger, cfg, store, publisher)

	cacheManager := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	cacheManager.Register(ledger.CategoryCache())
	cacheManager.StartCleanup(cfg.CategoryCacheTTL)
	defer cacheManager.Stop()

	backups := worker.NewBackupWorker(ledger, store, worker.BackupWorkerConfig{
		CheckInterval: cfg.BackupCheckInterval,
		Dir:           cfg.BackupDir,
		OwnerIDs:      cfg.BackupOwnerIDs,
	}, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		logger.Info("Stopping backup worker...")
		if err := backups.Stop(ctx); err != nil {
			logger.Error("Failed to stop backup worker", log.FieldError, err)
		}
	})

	// Catch up on anything that fell due while the daemon was down.
	if err := backups.RunDue(ctx); err != nil {
		logger.Warn("Startup backup check reported failures", log.FieldError, err)
	}

	if err := backups.Start(ctx); err != nil {
		logger.Error("Failed to start backup worker", log.FieldError, err)
		return
	}

	cli.WaitForShutdown(ctx, done)
}
