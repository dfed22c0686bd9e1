package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"myfinance/internal/backend"
	"myfinance/internal/core"
	"myfinance/internal/log"
)

// CreateTransaction records a transaction, expanding a recurring request
// into its full series. All rows and their balance deltas commit together;
// the first occurrence is returned.
func (l *Ledger) CreateTransaction(ctx context.Context, ownerID string, in core.TransactionInput) (core.Transaction, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	rows := BuildSeries(ownerID, in, l.timestamp(), l.newID)
	err := l.update(ctx, log.OpCreateTransaction, ownerID, func(tx backend.Tx) error {
		if _, err := tx.GetAccount(in.AccountID); err != nil {
			return err
		}
		delta := decimal.Zero
		for _, t := range rows {
			if err := tx.PutTransaction(t); err != nil {
				return err
			}
			delta = delta.Add(t.SignedAmount())
		}
		return applyDelta(tx, in.AccountID, delta, l.timestamp())
	}, func() core.LedgerEvent {
		return core.LedgerEvent{
			Type:           core.EventTransactionCreated,
			OwnerID:        ownerID,
			AccountIDs:     []string{in.AccountID},
			TransactionIDs: transactionIDs(rows),
		}
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	if len(rows) > 1 {
		l.logger.InfoContext(ctx, "Recurring series created",
			log.FieldOwnerID, ownerID,
			log.FieldAccountID, in.AccountID,
			log.FieldRecurringID, *rows[0].RecurringGroupID,
			log.FieldCount, len(rows))
	}
	return rows[0], nil
}

// GetTransaction returns one transaction of the owner.
func (l *Ledger) GetTransaction(ctx context.Context, ownerID, transactionID string) (core.Transaction, error) {
	var t core.Transaction
	err := l.view(ctx, log.OpGetTransaction, ownerID, func(tx backend.Tx) error {
		var err error
		t, err = tx.GetTransaction(transactionID)
		return err
	})
	return t, err
}

// ListTransactions returns the owner's transactions, most recent first.
func (l *Ledger) ListTransactions(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	var txs []core.Transaction
	err := l.view(ctx, log.OpListTransactions, ownerID, func(tx backend.Tx) error {
		var err error
		txs, err = tx.ListTransactions()
		return err
	})
	if err != nil {
		return nil, err
	}
	sortTransactions(txs)
	return txs, nil
}

// UpdateTransaction merges patch into the transaction. The old contribution
// is removed from the old account and the new one applied to the new
// account in the same unit.
func (l *Ledger) UpdateTransaction(ctx context.Context, ownerID, transactionID string, patch core.TransactionPatch) (core.Transaction, error) {
	patch.Normalize()
	if err := patch.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var (
		updated  core.Transaction
		accounts []string
	)
	err := l.update(ctx, log.OpUpdateTransaction, ownerID, func(tx backend.Tx) error {
		old, err := tx.GetTransaction(transactionID)
		if err != nil {
			return err
		}
		updated = old
		if v, ok := patch.AccountID.Get(); ok {
			updated.AccountID = v
		}
		if v, ok := patch.Direction.Get(); ok {
			updated.Direction = v
		}
		if v, ok := patch.Amount.Get(); ok {
			updated.Amount = v
		}
		if v, ok := patch.Currency.Get(); ok {
			updated.Currency = v
		}
		if v, ok := patch.OccurredAt.Get(); ok {
			updated.OccurredAt = v
		}
		patch.Category.Apply(&updated.Category)
		patch.Note.Apply(&updated.Note)

		now := l.timestamp()
		updated.UpdatedAt = now

		if updated.AccountID == old.AccountID {
			accounts = []string{old.AccountID}
			delta := updated.SignedAmount().Sub(old.SignedAmount())
			if err := applyDelta(tx, old.AccountID, delta, now); err != nil {
				return err
			}
		} else {
			accounts = []string{old.AccountID, updated.AccountID}
			if _, err := tx.GetAccount(updated.AccountID); err != nil {
				return err
			}
			if err := applyDelta(tx, old.AccountID, old.SignedAmount().Neg(), now); err != nil {
				return err
			}
			if err := applyDelta(tx, updated.AccountID, updated.SignedAmount(), now); err != nil {
				return err
			}
		}
		return tx.PutTransaction(updated)
	}, func() core.LedgerEvent {
		return core.LedgerEvent{
			Type:           core.EventTransactionUpdated,
			OwnerID:        ownerID,
			AccountIDs:     accounts,
			TransactionIDs: []string{transactionID},
		}
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	return updated, nil
}

// DeleteTransaction reverses the transaction's contribution and removes it.
// Deleting one leg of a transfer leaves the other leg in place.
func (l *Ledger) DeleteTransaction(ctx context.Context, ownerID, transactionID string) error {
	var accountID string
	err := l.update(ctx, log.OpDeleteTransaction, ownerID, func(tx backend.Tx) error {
		t, err := tx.GetTransaction(transactionID)
		if err != nil {
			return err
		}
		accountID = t.AccountID
		return removeTransaction(tx, t, l.timestamp())
	}, func() core.LedgerEvent {
		return core.LedgerEvent{
			Type:           core.EventTransactionDeleted,
			OwnerID:        ownerID,
			AccountIDs:     []string{accountID},
			TransactionIDs: []string{transactionID},
		}
	})
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

func removeTransaction(tx backend.Tx, t core.Transaction, now time.Time) error {
	if err := applyDelta(tx, t.AccountID, t.SignedAmount().Neg(), now); err != nil {
		return err
	}
	return tx.DeleteTransaction(t.ID)
}

func transactionIDs(txs []core.Transaction) []string {
	ids := make([]string, len(txs))
	for i, t := range txs {
		ids[i] = t.ID
	}
	return ids
}
