package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"myfinance/internal/backend"
	"myfinance/internal/cache"
	"myfinance/internal/core"
	"myfinance/internal/log"
)

const (
	DefaultCategoryCacheSize = 256
	DefaultCategoryCacheTTL  = 5 * time.Minute
)

// EventPublisher receives committed ledger mutations. The AMQP client is the
// production implementation.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev core.LedgerEvent) error
}

// Clock returns the current time.
type Clock func() time.Time

// Ledger applies the balance rules over a backend.Store. Every mutation runs
// inside one Store.Update so rows and balances commit together.
type Ledger struct {
	store     backend.Store
	now       Clock
	newID     func() string
	publisher EventPublisher
	logger    *log.Logger
	ops       *log.StructuredLogger
	stats     *cache.LRUCache[core.CategoryStats]
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithClock(c Clock) Option {
	return func(l *Ledger) { l.now = c }
}

// WithIDGenerator replaces uuid generation, mostly for tests.
func WithIDGenerator(gen func() string) Option {
	return func(l *Ledger) { l.newID = gen }
}

func WithPublisher(p EventPublisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

func WithLogger(logger *log.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithCategoryCache sizes the per-owner category stats cache.
func WithCategoryCache(size int, ttl time.Duration) Option {
	return func(l *Ledger) { l.stats = cache.NewLRUCache[core.CategoryStats](size, ttl) }
}

func NewLedger(store backend.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = log.Discard()
	}
	l.logger = l.logger.WithComponent(log.ComponentLedger)
	l.ops = log.NewStructuredLogger(l.logger)
	if l.stats == nil {
		l.stats = cache.NewLRUCache[core.CategoryStats](DefaultCategoryCacheSize, DefaultCategoryCacheTTL)
	}
	return l
}

// Backend names the storage engine behind the ledger.
func (l *Ledger) Backend() string { return l.store.Backend() }

// CategoryCache exposes the stats cache so a cache.Manager can sweep it.
func (l *Ledger) CategoryCache() *cache.LRUCache[core.CategoryStats] { return l.stats }

func (l *Ledger) timestamp() time.Time { return l.now().UTC() }

// update runs fn as one unit of work, then invalidates derived views and
// publishes ev when the unit committed.
func (l *Ledger) update(ctx context.Context, op, ownerID string, fn func(backend.Tx) error, ev func() core.LedgerEvent) error {
	started := time.Now()
	if err := validateOwner(ownerID); err != nil {
		return err
	}
	err := core.WrapStorage(op, l.store.Update(ctx, ownerID, fn))
	l.ops.LogOperation(ctx, op, ownerID, started, err, nil)
	if err != nil {
		return err
	}
	l.stats.Delete(ownerID)
	if ev != nil {
		l.publish(ctx, ev())
	}
	return nil
}

func (l *Ledger) view(ctx context.Context, op, ownerID string, fn func(backend.Tx) error) error {
	if err := validateOwner(ownerID); err != nil {
		return err
	}
	return core.WrapStorage(op, l.store.View(ctx, ownerID, fn))
}

func (l *Ledger) publish(ctx context.Context, ev core.LedgerEvent) {
	if l.publisher == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = l.timestamp()
	}
	if err := l.publisher.PublishLedgerEvent(ctx, ev); err != nil {
		l.logger.WarnContext(ctx, "Failed to publish ledger event",
			log.FieldOperation, log.OpPublish,
			log.FieldOwnerID, ev.OwnerID,
			"type", ev.Type,
			log.FieldError, err)
	}
}

func validateOwner(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return core.NewValidationError("ownerId", "is required")
	}
	return nil
}

// applyDelta adds delta to the account's current balance.
func applyDelta(tx backend.Tx, accountID string, delta decimal.Decimal, now time.Time) error {
	acc, err := tx.GetAccount(accountID)
	if err != nil {
		return err
	}
	acc.CurrentBalance = acc.CurrentBalance.Add(delta)
	acc.UpdatedAt = now
	return tx.PutAccount(acc)
}

// recomputeBalance rebuilds the current balance from the initial balance and
// every attributed transaction.
func recomputeBalance(tx backend.Tx, acc *core.Account) error {
	txs, err := tx.ListTransactionsByAccount(acc.ID)
	if err != nil {
		return err
	}
	balance := acc.InitialBalance
	for _, t := range txs {
		balance = balance.Add(t.SignedAmount())
	}
	acc.CurrentBalance = balance
	return nil
}

func sortAccounts(accounts []core.Account) {
	sort.SliceStable(accounts, func(i, j int) bool {
		if !accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].CreatedAt.After(accounts[j].CreatedAt)
		}
		return accounts[i].ID < accounts[j].ID
	})
}

func sortTransactions(txs []core.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].OccurredAt.Equal(txs[j].OccurredAt) {
			return txs[i].OccurredAt.After(txs[j].OccurredAt)
		}
		return txs[i].ID < txs[j].ID
	})
}
