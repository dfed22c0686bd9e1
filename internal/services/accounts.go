package services

import (
	"context"
	"fmt"
	"strings"

	"myfinance/internal/backend"
	"myfinance/internal/core"
	"myfinance/internal/log"
)

// CreateAccount opens an account whose current balance starts at the
// initial balance.
func (l *Ledger) CreateAccount(ctx context.Context, ownerID string, in core.AccountInput) (core.Account, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Account{}, err
	}

	now := l.timestamp()
	acc := core.Account{
		ID:               l.newID(),
		OwnerID:          ownerID,
		Name:             in.Name,
		AccountType:      in.AccountType,
		Currency:         in.Currency,
		InitialBalance:   in.InitialBalance,
		InitialBalanceAt: now,
		CurrentBalance:   in.InitialBalance,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if in.InitialBalanceAt != nil {
		acc.InitialBalanceAt = *in.InitialBalanceAt
	}

	err := l.update(ctx, log.OpCreateAccount, ownerID, func(tx backend.Tx) error {
		return tx.PutAccount(acc)
	}, func() core.LedgerEvent {
		return core.LedgerEvent{Type: core.EventAccountCreated, OwnerID: ownerID, AccountIDs: []string{acc.ID}}
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	return acc, nil
}

// GetAccount returns one account of the owner.
func (l *Ledger) GetAccount(ctx context.Context, ownerID, accountID string) (core.Account, error) {
	var acc core.Account
	err := l.view(ctx, log.OpGetAccount, ownerID, func(tx backend.Tx) error {
		var err error
		acc, err = tx.GetAccount(accountID)
		return err
	})
	return acc, err
}

// ListAccounts returns the owner's accounts, newest first.
func (l *Ledger) ListAccounts(ctx context.Context, ownerID string) ([]core.Account, error) {
	var accounts []core.Account
	err := l.view(ctx, log.OpListAccounts, ownerID, func(tx backend.Tx) error {
		var err error
		accounts, err = tx.ListAccounts()
		return err
	})
	if err != nil {
		return nil, err
	}
	sortAccounts(accounts)
	return accounts, nil
}

// UpdateAccount merges patch into the account. A new initial balance
// rebuilds the current balance from every attributed transaction.
func (l *Ledger) UpdateAccount(ctx context.Context, ownerID, accountID string, patch core.AccountPatch) (core.Account, error) {
	patch.Normalize()
	if err := patch.Validate(); err != nil {
		return core.Account{}, err
	}

	var acc core.Account
	err := l.update(ctx, log.OpUpdateAccount, ownerID, func(tx backend.Tx) error {
		var err error
		acc, err = tx.GetAccount(accountID)
		if err != nil {
			return err
		}
		if v, ok := patch.Name.Get(); ok {
			acc.Name = v
		}
		if v, ok := patch.AccountType.Get(); ok {
			acc.AccountType = v
		}
		if v, ok := patch.Currency.Get(); ok {
			acc.Currency = v
		}
		if v, ok := patch.InitialBalanceAt.Get(); ok {
			acc.InitialBalanceAt = v
		}
		if v, ok := patch.InitialBalance.Get(); ok {
			acc.InitialBalance = v
			if err := recomputeBalance(tx, &acc); err != nil {
				return err
			}
		}
		acc.UpdatedAt = l.timestamp()
		return tx.PutAccount(acc)
	}, func() core.LedgerEvent {
		return core.LedgerEvent{Type: core.EventAccountUpdated, OwnerID: ownerID, AccountIDs: []string{accountID}}
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("update account: %w", err)
	}
	return acc, nil
}

// DeleteAccount removes the account and its transactions. With
// DeleteTransferBalance the remaining balance is first booked onto the
// target account as a transaction, keeping the target consistent.
func (l *Ledger) DeleteAccount(ctx context.Context, ownerID, accountID string, action core.AccountDeleteAction, targetAccountID string) error {
	if !action.IsValid() {
		return core.NewValidationError("action", "unsupported action %q", action)
	}
	targetAccountID = strings.TrimSpace(targetAccountID)
	if action == core.DeleteTransferBalance {
		if targetAccountID == "" {
			return core.NewValidationError("targetAccountId", "is required for %s", action)
		}
		if targetAccountID == accountID {
			return core.NewValidationError("targetAccountId", "must be different from the deleted account")
		}
	}

	var removed []string
	touched := []string{accountID}
	err := l.update(ctx, log.OpDeleteAccount, ownerID, func(tx backend.Tx) error {
		acc, err := tx.GetAccount(accountID)
		if err != nil {
			return err
		}
		var target core.Account
		if action == core.DeleteTransferBalance {
			if target, err = tx.GetAccount(targetAccountID); err != nil {
				return err
			}
			if !acc.CurrentBalance.IsZero() && target.Currency != acc.Currency {
				return core.NewValidationError("targetAccountId",
					"cannot move a %s balance into a %s account", acc.Currency, target.Currency)
			}
		}

		txs, err := tx.ListTransactionsByAccount(accountID)
		if err != nil {
			return err
		}
		for _, t := range txs {
			if err := tx.DeleteTransaction(t.ID); err != nil {
				return err
			}
			removed = append(removed, t.ID)
		}
		if err := tx.DeleteAccount(accountID); err != nil {
			return err
		}

		if action != core.DeleteTransferBalance || acc.CurrentBalance.IsZero() {
			return nil
		}
		touched = append(touched, target.ID)
		return l.bookBalanceTransfer(tx, acc, target.ID)
	}, func() core.LedgerEvent {
		return core.LedgerEvent{Type: core.EventAccountDeleted, OwnerID: ownerID, AccountIDs: touched, TransactionIDs: removed}
	})
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	l.logger.InfoContext(ctx, "Account deleted",
		log.FieldOwnerID, ownerID,
		log.FieldAccountID, accountID,
		"action", action,
		log.FieldCount, len(removed))
	return nil
}

// bookBalanceTransfer records the closing balance of from as a transaction on
// the target account.
func (l *Ledger) bookBalanceTransfer(tx backend.Tx, from core.Account, targetID string) error {
	now := l.timestamp()
	direction := core.Income
	if from.CurrentBalance.IsNegative() {
		direction = core.Expense
	}
	note := fmt.Sprintf("Balance transferred from %s", from.Name)
	t := core.Transaction{
		ID:         l.newID(),
		OwnerID:    tx.OwnerID(),
		AccountID:  targetID,
		Direction:  direction,
		Amount:     from.CurrentBalance.Abs(),
		Currency:   from.Currency,
		OccurredAt: now,
		Note:       &note,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := tx.PutTransaction(t); err != nil {
		return err
	}
	return applyDelta(tx, targetID, t.SignedAmount(), now)
}
