package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"myfinance/internal/core"
)

func TestComputeCategoryStats(t *testing.T) {
	txs := []core.Transaction{
		{Category: ptr("food")},
		{Category: ptr(" Food ")},
		{Category: ptr("Food")},
		{Category: ptr("rent")},
		{Category: ptr("Bills")},
		{Category: ptr("   ")},
		{},
	}

	stats := computeCategoryStats(txs)

	want := []core.CategoryStat{
		{Category: "Food", UsageCount: 2},
		{Category: "Bills", UsageCount: 1},
		{Category: "food", UsageCount: 1},
		{Category: "rent", UsageCount: 1},
	}
	require.Equal(t, want, stats.Categories)
	require.NotNil(t, stats.MostUsedCategory)
	require.Equal(t, "Food", *stats.MostUsedCategory)
}

func TestComputeCategoryStatsEmpty(t *testing.T) {
	stats := computeCategoryStats(nil)
	require.Nil(t, stats.MostUsedCategory)
	require.Empty(t, stats.Categories)
}

func TestRenameCategory(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f ledgerFixture) {
		ctx := context.Background()
		acc := mustAccount(t, f.ledger, "alice", "Main", "100")
		for _, label := range []string{"Groceries", "Groceries", "Travel"} {
			mustTransaction(t, f.ledger, "alice", core.TransactionInput{AccountID: acc.ID, Amount: dec("1"), Category: ptr(label)})
		}

		before, err := f.ledger.CategoryStats(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, 2, before.Usage("Groceries"))

		after, err := f.ledger.RenameCategory(ctx, "alice", " Groceries ", "Food")
		require.NoError(t, err)
		require.Equal(t, 0, after.Usage("Groceries"))
		require.Equal(t, 2, after.Usage("Food"))
		require.Equal(t, "Food", *after.MostUsedCategory)

		txs, err := f.ledger.ListTransactions(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, txs, 3)

		_, err = f.ledger.RenameCategory(ctx, "alice", "Groceries", "Food")
		require.ErrorIs(t, err, core.ErrNotFound)
		_, err = f.ledger.RenameCategory(ctx, "alice", "Food", "  ")
		require.ErrorIs(t, err, core.ErrValidation)
		_, err = f.ledger.RenameCategory(ctx, "bob", "Food", "Meals")
		require.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestDeleteCategory(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f ledgerFixture) {
		ctx := context.Background()
		acc := mustAccount(t, f.ledger, "alice", "Main", "100")
		mustTransaction(t, f.ledger, "alice", core.TransactionInput{AccountID: acc.ID, Direction: core.Expense, Amount: dec("10"), Category: ptr("Fun")})
		mustTransaction(t, f.ledger, "alice", core.TransactionInput{AccountID: acc.ID, Direction: core.Expense, Amount: dec("5"), Category: ptr("Fun")})
		mustTransaction(t, f.ledger, "alice", core.TransactionInput{AccountID: acc.ID, Direction: core.Income, Amount: dec("20"), Category: ptr("Salary")})
		requireBalance(t, f.ledger, "alice", acc.ID, "105")

		t.Run("clear labels", func(t *testing.T) {
			stats, err := f.ledger.DeleteCategory(ctx, "alice", "Salary", false)
			require.NoError(t, err)
			require.Equal(t, 0, stats.Usage("Salary"))

			txs, err := f.ledger.ListTransactions(ctx, "alice")
			require.NoError(t, err)
			require.Len(t, txs, 3)
			requireBalance(t, f.ledger, "alice", acc.ID, "105")
		})

		t.Run("delete transactions", func(t *testing.T) {
			stats, err := f.ledger.DeleteCategory(ctx, "alice", "Fun", true)
			require.NoError(t, err)
			require.Nil(t, stats.MostUsedCategory)

			txs, err := f.ledger.ListTransactions(ctx, "alice")
			require.NoError(t, err)
			require.Len(t, txs, 1)
			requireBalance(t, f.ledger, "alice", acc.ID, "120")
			requireInvariant(t, f.ledger, "alice")
		})

		t.Run("unknown label", func(t *testing.T) {
			_, err := f.ledger.DeleteCategory(ctx, "alice", "Fun", true)
			require.ErrorIs(t, err, core.ErrNotFound)
		})
	})
}

func TestCategoryStatsCacheInvalidatedByMutations(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f ledgerFixture) {
		ctx := context.Background()
		acc := mustAccount(t, f.ledger, "alice", "Main", "0")

		stats, err := f.ledger.CategoryStats(ctx, "alice")
		require.NoError(t, err)
		require.Empty(t, stats.Categories)
		require.Equal(t, 1, f.ledger.CategoryCache().Size())

		mustTransaction(t, f.ledger, "alice", core.TransactionInput{AccountID: acc.ID, Amount: dec("1"), Category: ptr("Coffee")})

		stats, err = f.ledger.CategoryStats(ctx, "alice")
		require.NoError(t, err)
		require.Equal(t, 1, stats.Usage("Coffee"))
	})
}
