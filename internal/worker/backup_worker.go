// Package worker runs the periodic auto-backup of owner ledgers.
package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"myfinance/internal/core"
	"myfinance/internal/log"
)

const (
	backupFilePrefix = "my-finance-backup-"
	backupFileSuffix = ".json"
	backupStampFmt   = "20060102_150405"
)

// BackupWorkerConfig holds configuration for the backup worker
type BackupWorkerConfig struct {
	// CheckInterval is how often owner schedules are checked (default: 60s)
	CheckInterval time.Duration

	// Dir is the root backup directory; each owner gets a subdirectory.
	Dir string

	// OwnerIDs limits the owners that are backed up. Empty means every
	// owner the store knows about.
	OwnerIDs []string

	// Concurrency bounds how many owners are exported at once (default: 4)
	Concurrency int
}

// DefaultBackupWorkerConfig returns sensible defaults
func DefaultBackupWorkerConfig() BackupWorkerConfig {
	return BackupWorkerConfig{
		CheckInterval: 60 * time.Second,
		Dir:           "./data/backups",
		Concurrency:   4,
	}
}

// Ledger is the part of the ledger service the worker needs.
type Ledger interface {
	Settings(ctx context.Context, ownerID string) (core.AppSettings, error)
	ExportJSON(ctx context.Context, ownerID string) ([]byte, error)
	MarkBackupRun(ctx context.Context, ownerID string, at time.Time) error
}

// OwnerLister enumerates owners with stored state.
type OwnerLister interface {
	Owners(ctx context.Context) ([]string, error)
}

// ErrorReporter receives every failed backup. The loop keeps running
// regardless of what it does.
type ErrorReporter interface {
	ReportBackupError(ctx context.Context, ownerID string, err error)
}

// ErrorReporterFunc adapts a function to ErrorReporter.
type ErrorReporterFunc func(ctx context.Context, ownerID string, err error)

func (f ErrorReporterFunc) ReportBackupError(ctx context.Context, ownerID string, err error) {
	f(ctx, ownerID, err)
}

// BackupWorker exports due owners to JSON files on a ticker.
type BackupWorker struct {
	ledger   Ledger
	owners   OwnerLister
	config   BackupWorkerConfig
	logger   *log.Logger
	ops      *log.StructuredLogger
	reporter ErrorReporter
	now      func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewBackupWorker creates a backup worker. owners may be nil when
// config.OwnerIDs is set.
func NewBackupWorker(ledger Ledger, owners OwnerLister, config BackupWorkerConfig, logger *log.Logger) *BackupWorker {
	defaults := DefaultBackupWorkerConfig()
	if config.CheckInterval <= 0 {
		config.CheckInterval = defaults.CheckInterval
	}
	if config.Dir == "" {
		config.Dir = defaults.Dir
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentBackup)
	w := &BackupWorker{
		ledger: ledger,
		owners: owners,
		config: config,
		logger: logger,
		ops:    log.NewStructuredLogger(logger),
		now:    time.Now,
	}
	w.reporter = ErrorReporterFunc(w.logFailure)
	return w
}

// WithErrorReporter replaces the default log-only reporter.
func (w *BackupWorker) WithErrorReporter(r ErrorReporter) *BackupWorker {
	if r != nil {
		w.reporter = r
	}
	return w
}

// WithClock replaces the time source; used by tests.
func (w *BackupWorker) WithClock(now func() time.Time) *BackupWorker {
	w.now = now
	return w
}

func (w *BackupWorker) logFailure(ctx context.Context, ownerID string, err error) {
	w.ops.LogError(ctx, "Auto-backup failed", err, log.OpBackup, log.NewFields().WithOwner(ownerID))
}

// Start begins the backup loop. Returns an error if already running.
func (w *BackupWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("backup worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	w.logger.InfoContext(ctx, "Backup worker started",
		"check_interval", w.config.CheckInterval,
		log.FieldPath, w.config.Dir)
	return nil
}

// Stop signals the loop and waits for the current cycle to finish.
func (w *BackupWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.running = false
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		w.logger.InfoContext(ctx, "Backup worker stopped gracefully")
		return nil
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Backup worker stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the worker loop is active
func (w *BackupWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *BackupWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Failures are reported per owner inside RunDue; the ticker
			// re-arms either way.
			_ = w.RunDue(ctx)
		}
	}
}

// RunDue backs up every owner whose schedule is due. Each failure is handed
// to the error reporter; the joined failures are also returned.
func (w *BackupWorker) RunDue(ctx context.Context) error {
	owners, err := w.ownerIDs(ctx)
	if err != nil {
		w.reporter.ReportBackupError(ctx, "", err)
		return err
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.config.Concurrency)
	for _, ownerID := range owners {
		g.Go(func() error {
			if err := w.backupIfDue(gctx, ownerID); err != nil {
				w.reporter.ReportBackupError(gctx, ownerID, err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("owner %s: %w", ownerID, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (w *BackupWorker) ownerIDs(ctx context.Context) ([]string, error) {
	if len(w.config.OwnerIDs) > 0 {
		return w.config.OwnerIDs, nil
	}
	if w.owners == nil {
		return nil, nil
	}
	owners, err := w.owners.Owners(ctx)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	return owners, nil
}

func (w *BackupWorker) backupIfDue(ctx context.Context, ownerID string) error {
	settings, err := w.ledger.Settings(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if !settings.BackupDue(w.now()) {
		return nil
	}
	_, err = w.backup(ctx, ownerID, settings.AutoBackupRetentionDays)
	return err
}

// RunNow backs up ownerID immediately, regardless of its schedule, and
// returns the written file path.
func (w *BackupWorker) RunNow(ctx context.Context, ownerID string) (string, error) {
	settings, err := w.ledger.Settings(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}
	return w.backup(ctx, ownerID, settings.AutoBackupRetentionDays)
}

// backup exports under the store's read unit, then writes the file with no
// ledger lock held.
func (w *BackupWorker) backup(ctx context.Context, ownerID string, retentionDays int) (string, error) {
	started := time.Now()
	body, err := w.ledger.ExportJSON(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}

	at := w.now().UTC()
	dir := w.ownerDir(ownerID)
	path, err := writeBackupFile(dir, at, body)
	if err != nil {
		return "", err
	}

	if err := w.ledger.MarkBackupRun(ctx, ownerID, at); err != nil {
		return path, fmt.Errorf("mark backup run: %w", err)
	}

	removed, err := pruneBackups(dir, at.Add(-time.Duration(retentionDays)*24*time.Hour))
	if err != nil {
		w.logger.WarnContext(ctx, "Failed to prune old backups", log.FieldOwnerID, ownerID, log.FieldError, err)
	}

	fields := log.NewFields().WithOwner(ownerID).WithCount(removed)
	fields[log.FieldPath] = path
	fields[log.FieldDuration] = time.Since(started).Milliseconds()
	w.logger.InfoContext(ctx, "Backup written", fields.ToSlice()...)
	return path, nil
}

func (w *BackupWorker) ownerDir(ownerID string) string {
	return filepath.Join(w.config.Dir, safeDirName(ownerID))
}

// BackupFileName returns the file name used for a backup taken at at.
func BackupFileName(at time.Time) string {
	return backupFilePrefix + at.UTC().Format(backupStampFmt) + backupFileSuffix
}

func writeBackupFile(dir string, at time.Time, body []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}
	path := filepath.Join(dir, BackupFileName(at))

	tmp, err := os.CreateTemp(dir, ".backup-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write backup: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close backup: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename backup: %w", err)
	}
	return path, nil
}

// pruneBackups removes backup files taken before cutoff. The time comes from
// the file name, falling back to the modification time.
func pruneBackups(dir string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read backup directory: %w", err)
	}

	removed := 0
	var errs []error
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, backupFilePrefix) || !strings.HasSuffix(name, backupFileSuffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, backupFilePrefix), backupFileSuffix)
		takenAt, err := time.Parse(backupStampFmt, stamp)
		if err != nil {
			info, infoErr := entry.Info()
			if infoErr != nil {
				errs = append(errs, infoErr)
				continue
			}
			takenAt = info.ModTime()
		}
		if !takenAt.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// safeDirName maps an owner id to a directory name. Ids that need rewriting
// get a short hash of the original appended, so distinct owners never share
// a directory.
func safeDirName(ownerID string) string {
	var b strings.Builder
	for _, r := range ownerID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := b.String()
	if name == ownerID && name != "" && name != "." && name != ".." {
		return name
	}
	sum := sha256.Sum256([]byte(ownerID))
	return name + "-" + hex.EncodeToString(sum[:4])
}
