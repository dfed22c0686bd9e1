package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"myfinance/internal/amqp"
	"myfinance/internal/core"
	"myfinance/internal/log"
)

func (a *app) newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	owner := fs.String("owner", a.cfg.DefaultOwnerID, "owner id")
	return fs, owner
}

func requireOwner(owner string) error {
	if owner == "" {
		return errors.New("-owner is required (or set DEFAULT_OWNER_ID)")
	}
	return nil
}

func (a *app) export(ctx context.Context, args []string) error {
	fs, owner := a.newFlagSet("export")
	out := fs.String("out", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireOwner(*owner); err != nil {
		return err
	}

	body, err := a.ledger.ExportJSON(ctx, *owner)
	if err != nil {
		return err
	}
	if *out == "" {
		_, err = fmt.Fprintln(a.out, string(body))
		return err
	}
	if err := os.WriteFile(*out, body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	log.FromContext(ctx).InfoContext(ctx, "Snapshot exported", log.FieldOwnerID, *owner, log.FieldPath, *out)
	return nil
}

func (a *app) importSnapshot(ctx context.Context, args []string) error {
	fs, owner := a.newFlagSet("import")
	in := fs.String("in", "", "snapshot file to import")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireOwner(*owner); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("-in is required")
	}

	body, err := os.ReadFile(*in)
	if err != nil {
		return fmt.Errorf("read %s: %w", *in, err)
	}
	counts, err := a.ledger.ImportJSON(ctx, *owner, body)
	if err != nil {
		return err
	}
	return writeJSON(a.out, counts)
}

func (a *app) backupNow(ctx context.Context, args []string) error {
	fs, owner := a.newFlagSet("backup-now")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireOwner(*owner); err != nil {
		return err
	}

	path, err := a.backup.RunNow(ctx, *owner)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, path)
	return err
}

func (a *app) stats(ctx context.Context, args []string) error {
	fs, owner := a.newFlagSet("stats")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireOwner(*owner); err != nil {
		return err
	}

	stats, err := a.ledger.CategoryStats(ctx, *owner)
	if err != nil {
		return err
	}
	return writeJSON(a.out, stats)
}

func (a *app) balances(ctx context.Context, args []string) error {
	fs, owner := a.newFlagSet("balances")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireOwner(*owner); err != nil {
		return err
	}

	accounts, err := a.ledger.ListAccounts(ctx, *owner)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, acc := range accounts {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", acc.Name, acc.Currency, core.FormatAmount(acc.CurrentBalance, acc.Currency))
	}
	return tw.Flush()
}

func (a *app) tailEvents(ctx context.Context, args []string) error {
	fs, owner := a.newFlagSet("tail-events")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if a.events == nil {
		return errors.New("AMQP_URL is not configured or the broker is unreachable")
	}

	err := a.events.ConsumeLedgerEvents(ctx, func(msg *amqp.LedgerEventMessage) error {
		if *owner != "" && msg.Event.OwnerID != *owner {
			return nil
		}
		return writeJSON(a.out, msg.Event)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
