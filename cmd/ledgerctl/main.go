// Command ledgerctl runs one-off ledger maintenance tasks against the
// configured store.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"myfinance/internal/amqp"
	"myfinance/internal/cli"
	"myfinance/internal/config"
	"myfinance/internal/log"
	"myfinance/internal/services"
	"myfinance/internal/worker"
)

const usage = `usage: ledgerctl <command> [flags]

commands:
  export       write an owner's snapshot as JSON
  import       replace an owner's data with a snapshot
  backup-now   write a backup file for an owner immediately
  stats        print an owner's category usage
  balances     print an owner's account balances
  tail-events  print ledger events from the AMQP queue
`

// app bundles what the subcommands need.
type app struct {
	cfg    *config.Config
	ledger *services.Ledger
	backup *worker.BackupWorker
	events *amqp.Client
	out    io.Writer
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cli.LoadEnvFile()
	bootLogger := cli.SetupLogger(nil)
	cfg := cli.LoadAndValidateConfig(bootLogger)
	logger := cli.SetupLogger(cfg).WithComponent(log.ComponentCLI)

	store := cli.InitStore(logger, cfg)
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = log.WithContext(ctx, logger)

	a := &app{
		cfg:    cfg,
		ledger: cli.NewLedger(logger, cfg, store, nil),
		out:    os.Stdout,
	}
	a.backup = worker.NewBackupWorker(a.ledger, store, worker.BackupWorkerConfig{Dir: cfg.BackupDir}, logger)
	if os.Args[1] == "tail-events" {
		a.events = cli.InitAMQP(logger, cfg)
		if a.events != nil {
			defer a.events.Close()
		}
	}

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("Command failed", log.FieldOperation, os.Args[1], log.FieldError, err)
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, name string, args []string) error {
	switch name {
	case "export":
		return a.export(ctx, args)
	case "import":
		return a.importSnapshot(ctx, args)
	case "backup-now":
		return a.backupNow(ctx, args)
	case "stats":
		return a.stats(ctx, args)
	case "balances":
		return a.balances(ctx, args)
	case "tail-events":
		return a.tailEvents(ctx, args)
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q", name)
	}
}
