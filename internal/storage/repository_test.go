package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"myfinance/internal/backend"
	"myfinance/internal/backend/storetest"
	"myfinance/internal/core"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSQLiteRepositoryContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) backend.Store { return newTestRepository(t) })
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	first, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, first.Update(context.Background(), "alice", func(tx backend.Tx) error {
		return tx.PutSettings(core.DefaultAppSettings())
	}))
	require.NoError(t, first.Close())

	second, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, second.View(context.Background(), "alice", func(tx backend.Tx) error {
		_, ok, err := tx.Settings()
		require.NoError(t, err)
		require.True(t, ok)
		return nil
	}))
}

func TestDecimalsStoredExactly(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Update(ctx, "alice", func(tx backend.Tx) error {
		return tx.PutTransaction(core.Transaction{
			ID:        "t1",
			AccountID: "a1",
			Direction: core.Income,
			Amount:    decimal.RequireFromString("0.10000000000000000001"),
			Currency:  "CZK",
		})
	}))

	var stored string
	require.NoError(t, repo.db.QueryRowContext(ctx, `SELECT amount FROM transactions WHERE id = 't1'`).Scan(&stored))
	require.Equal(t, "0.10000000000000000001", stored)
}
