// Package storetest holds the contract suite every backend.Store must pass.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"myfinance/internal/backend"
	"myfinance/internal/core"
)

var errAbort = errors.New("abort")

// Run exercises newStore against the unit-of-work contract.
func Run(t *testing.T, newStore func(t *testing.T) backend.Store) {
	t.Run("AccountRoundTrip", func(t *testing.T) { testAccountRoundTrip(t, newStore(t)) })
	t.Run("TransactionRoundTrip", func(t *testing.T) { testTransactionRoundTrip(t, newStore(t)) })
	t.Run("RollbackOnError", func(t *testing.T) { testRollbackOnError(t, newStore(t)) })
	t.Run("OwnerIsolation", func(t *testing.T) { testOwnerIsolation(t, newStore(t)) })
	t.Run("ViewNotBlockedByOtherOwnerUpdate", func(t *testing.T) { testViewNotBlockedByOtherOwnerUpdate(t, newStore(t)) })
	t.Run("ViewIsReadOnly", func(t *testing.T) { testViewIsReadOnly(t, newStore(t)) })
	t.Run("SettingsLocalesRecords", func(t *testing.T) { testSettingsLocalesRecords(t, newStore(t)) })
	t.Run("Truncate", func(t *testing.T) { testTruncate(t, newStore(t)) })
}

func sampleAccount(name string) core.Account {
	now := time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)
	return core.Account{
		ID:               uuid.NewString(),
		Name:             name,
		AccountType:      core.DefaultAccountType,
		Currency:         "CZK",
		InitialBalance:   decimal.RequireFromString("100.25"),
		InitialBalanceAt: now,
		CurrentBalance:   decimal.RequireFromString("100.25"),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func sampleTransaction(accountID string) core.Transaction {
	now := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	cat := "Food"
	freq := core.Monthly
	idx := 2
	day := 31
	policy := core.WeekendFriday
	group := uuid.NewString()
	return core.Transaction{
		ID:                     uuid.NewString(),
		AccountID:              accountID,
		Direction:              core.Expense,
		Amount:                 decimal.RequireFromString("0.10"),
		Currency:               "CZK",
		OccurredAt:             now,
		Category:               &cat,
		RecurringGroupID:       &group,
		RecurringFrequency:     &freq,
		RecurringIndex:         &idx,
		RecurringDayOfMonth:    &day,
		RecurringWeekendPolicy: &policy,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
}

func testAccountRoundTrip(t *testing.T, s backend.Store) {
	ctx := context.Background()
	acc := sampleAccount("Main")

	require.NoError(t, s.Update(ctx, "alice", func(tx backend.Tx) error {
		return tx.PutAccount(acc)
	}))

	require.NoError(t, s.View(ctx, "alice", func(tx backend.Tx) error {
		got, err := tx.GetAccount(acc.ID)
		require.NoError(t, err)
		require.Equal(t, "alice", got.OwnerID)
		require.Equal(t, acc.Name, got.Name)
		require.True(t, acc.InitialBalance.Equal(got.InitialBalance))
		require.True(t, acc.CreatedAt.Equal(got.CreatedAt))

		list, err := tx.ListAccounts()
		require.NoError(t, err)
		require.Len(t, list, 1)
		return nil
	}))

	acc.Name = "Renamed"
	acc.CurrentBalance = decimal.RequireFromString("-3.5")
	require.NoError(t, s.Update(ctx, "alice", func(tx backend.Tx) error {
		return tx.PutAccount(acc)
	}))
	require.NoError(t, s.View(ctx, "alice", func(tx backend.Tx) error {
		got, err := tx.GetAccount(acc.ID)
		require.NoError(t, err)
		require.Equal(t, "Renamed", got.Name)
		require.True(t, decimal.RequireFromString("-3.5").Equal(got.CurrentBalance))
		return nil
	}))

	require.NoError(t, s.Update(ctx, "alice", func(tx backend.Tx) error {
		return tx.DeleteAccount(acc.ID)
	}))
	err := s.Update(ctx, "alice", func(tx backend.Tx) error {
		return tx.DeleteAccount(acc.ID)
	})
	require.ErrorIs(t, err, core.ErrNotFound)
}

func testTransactionRoundTrip(t *testing.T, s backend.Store) {
	ctx := context.Background()
	acc := sampleAccount("Main")
	other := sampleAccount("Other")
	tr := sampleTransaction(acc.ID)
	plain := sampleTransaction(other.ID)
	plain.Category = nil
	plain.RecurringGroupID = nil
	plain.RecurringFrequency = nil
	plain.RecurringIndex = nil
	plain.RecurringDayOfMonth = nil
	plain.RecurringWeekendPolicy = nil

	require.NoError(t, s.Update(ctx, "alice", func(tx backend.Tx) error {
		for _, a := range []core.Account{acc, other} {
			if err := tx.PutAccount(a); err != nil {
				return err
			}
		}
		if err := tx.PutTransaction(tr); err != nil {
			return err
		}
		return tx.PutTransaction(plain)
	}))

	require.NoError(t, s.View(ctx, "alice", func(tx backend.Tx) error {
		got, err := tx.GetTransaction(tr.ID)
		require.NoError(t, err)
		require.True(t, tr.Amount.Equal(got.Amount))
		require.Equal(t, "Food", *got.Category)
		require.Nil(t, got.Note)
		require.Equal(t, core.Monthly, *got.RecurringFrequency)
		require.Equal(t, 2, *got.RecurringIndex)
		require.Equal(t, 31, *got.RecurringDayOfMonth)
		require.Equal(t, core.WeekendFriday, *got.RecurringWeekendPolicy)
		require.Equal(t, *tr.RecurringGroupID, *got.RecurringGroupID)

		all, err := tx.ListTransactions()
		require.NoError(t, err)
		require.Len(t, all, 2)

		byAcc, err := tx.ListTransactionsByAccount(other.ID)
		require.NoError(t, err)
		require.Len(t, byAcc, 1)
		require.Equal(t, plain.ID, byAcc[0].ID)
		require.Nil(t, byAcc[0].RecurringFrequency)
		return nil
	}))

	require.NoError(t, s.Update(ctx, "alice", func(tx backend.Tx) error {
		return tx.DeleteTransaction(tr.ID)
	}))
	require.NoError(t, s.View(ctx, "alice", func(tx backend.Tx) error {
		_, err := tx.GetTransaction(tr.ID)
		require.ErrorIs(t, err, core.ErrNotFound)
		return nil
	}))
}

func testRollbackOnError(t *testing.T, s backend.Store) {
	ctx := context.Background()
	kept := sampleAccount("Kept")
	require.NoError(t, s.Update(ctx, "alice", func(tx backend.Tx) error {
		return tx.PutAccount(kept)
	}))

	dropped := sampleAccount("Dropped")
	err := s.Update(ctx, "alice", func(tx backend.Tx) error {
		if err := tx.PutAccount(dropped); err != nil {
			return err
		}
		if err := tx.DeleteAccount(kept.ID); err != nil {
			return err
		}
		// Writes are visible inside the unit.
		if _, err := tx.GetAccount(dropped.ID); err != nil {
			return err
		}
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	require.NoError(t, s.View(ctx, "alice", func(tx backend.Tx) error {
		list, err := tx.ListAccounts()
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, kept.ID, list[0].ID)
		return nil
	}))
}

func testOwnerIsolation(t *testing.T, s backend.Store) {
	ctx := context.Background()
	acc := sampleAccount("Alice")
	require.NoError(t, s.Update(ctx, "alice", func(tx backend.Tx) error {
		return tx.PutAccount(acc)
	}))

	require.NoError(t, s.View(ctx, "bob", func(tx backend.Tx) error {
		_, err := tx.GetAccount(acc.ID)
		require.ErrorIs(t, err, core.ErrNotFound)
		list, err := tx.ListAccounts()
		require.NoError(t, err)
		require.Empty(t, list)
		return nil
	}))

	// The same id may exist independently under another owner.
	bobs := acc
	bobs.Name = "Bob"
	require.NoError(t, s.Update(ctx, "bob", func(tx backend.Tx) error {
		return tx.PutAccount(bobs)
	}))
	require.NoError(t, s.View(ctx, "alice", func(tx backend.Tx) error {
		got, err := tx.GetAccount(acc.ID)
		require.NoError(t, err)
		require.Equal(t, "Alice", got.Name)
		return nil
	}))

	owners, err := s.Owners(ctx)
	require.NoError(t, err)
	sort.Strings(owners)
	require.Equal(t, []string{"alice", "bob"}, owners)
}

func testViewNotBlockedByOtherOwnerUpdate(t *testing.T, s backend.Store) {
	ctx := context.Background()
	bobs := sampleAccount("Bob")
	require.NoError(t, s.Update(ctx, "bob", func(tx backend.Tx) error {
		return tx.PutAccount(bobs)
	}))

	writing := make(chan struct{})
	release := make(chan struct{})
	updateDone := make(chan error, 1)
	go func() {
		updateDone <- s.Update(ctx, "alice", func(tx backend.Tx) error {
			if err := tx.PutAccount(sampleAccount("Alice")); err != nil {
				return err
			}
			close(writing)
			<-release
			return nil
		})
	}()

	select {
	case <-writing:
	case err := <-updateDone:
		t.Fatalf("alice update ended early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("alice update never started")
	}

	viewDone := make(chan error, 1)
	var names []string
	go func() {
		viewDone <- s.View(ctx, "bob", func(tx backend.Tx) error {
			list, err := tx.ListAccounts()
			for _, a := range list {
				names = append(names, a.Name)
			}
			return err
		})
	}()

	var viewErr error
	select {
	case viewErr = <-viewDone:
	case <-time.After(2 * time.Second):
		close(release)
		<-updateDone
		t.Fatal("bob view blocked behind alice's open update")
	}

	close(release)
	require.NoError(t, <-updateDone)
	require.NoError(t, viewErr)
	require.Equal(t, []string{"Bob"}, names)
}

func testViewIsReadOnly(t *testing.T, s backend.Store) {
	err := s.View(context.Background(), "alice", func(tx backend.Tx) error {
		return tx.PutAccount(sampleAccount("Nope"))
	})
	require.ErrorIs(t, err, core.ErrStorage)
}

func testSettingsLocalesRecords(t *testing.T, s backend.Store) {
	ctx := context.Background()
	settings := core.DefaultAppSettings()
	settings.AutoBackupEnabled = true
	last := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	settings.AutoBackupLastRunAt = &last

	rows := []json.RawMessage{
		json.RawMessage(`{"id":"v1","name":"Car"}`),
		json.RawMessage(`{"id":"v2","name":"Bike"}`),
	}

	require.NoError(t, s.View(ctx, "alice", func(tx backend.Tx) error {
		_, ok, err := tx.Settings()
		require.NoError(t, err)
		require.False(t, ok)
		return nil
	}))

	require.NoError(t, s.Update(ctx, "alice", func(tx backend.Tx) error {
		if err := tx.PutSettings(settings); err != nil {
			return err
		}
		if err := tx.ReplaceCustomLocales(map[string]map[string]string{"cs": {"hello": "ahoj"}}); err != nil {
			return err
		}
		return tx.ReplaceRecords(core.KindVehicles, rows)
	}))

	require.NoError(t, s.View(ctx, "alice", func(tx backend.Tx) error {
		got, ok, err := tx.Settings()
		require.NoError(t, err)
		require.True(t, ok)
		require.True(t, got.AutoBackupEnabled)
		require.True(t, last.Equal(*got.AutoBackupLastRunAt))

		locales, err := tx.CustomLocales()
		require.NoError(t, err)
		require.Equal(t, "ahoj", locales["cs"]["hello"])

		gotRows, err := tx.Records(core.KindVehicles)
		require.NoError(t, err)
		require.Len(t, gotRows, 2)
		require.JSONEq(t, string(rows[1]), string(gotRows[1]))

		empty, err := tx.Records(core.KindProperties)
		require.NoError(t, err)
		require.Empty(t, empty)
		return nil
	}))
}

func testTruncate(t *testing.T, s backend.Store) {
	ctx := context.Background()
	acc := sampleAccount("Main")
	require.NoError(t, s.Update(ctx, "alice", func(tx backend.Tx) error {
		if err := tx.PutAccount(acc); err != nil {
			return err
		}
		if err := tx.PutTransaction(sampleTransaction(acc.ID)); err != nil {
			return err
		}
		return tx.PutSettings(core.DefaultAppSettings())
	}))
	require.NoError(t, s.Update(ctx, "bob", func(tx backend.Tx) error {
		return tx.PutAccount(sampleAccount("Bob"))
	}))

	// Truncate then re-insert inside one unit, as a restore does.
	fresh := sampleAccount("Fresh")
	require.NoError(t, s.Update(ctx, "alice", func(tx backend.Tx) error {
		if err := tx.Truncate(); err != nil {
			return err
		}
		list, err := tx.ListAccounts()
		if err != nil {
			return err
		}
		require.Empty(t, list)
		return tx.PutAccount(fresh)
	}))

	require.NoError(t, s.View(ctx, "alice", func(tx backend.Tx) error {
		list, err := tx.ListAccounts()
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, fresh.ID, list[0].ID)
		txs, err := tx.ListTransactions()
		require.NoError(t, err)
		require.Empty(t, txs)
		_, ok, err := tx.Settings()
		require.NoError(t, err)
		require.False(t, ok)
		return nil
	}))
	require.NoError(t, s.View(ctx, "bob", func(tx backend.Tx) error {
		list, err := tx.ListAccounts()
		require.NoError(t, err)
		require.Len(t, list, 1)
		return nil
	}))
}
