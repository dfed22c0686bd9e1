package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"myfinance/internal/backend"
	"myfinance/internal/core"
	"myfinance/internal/log"
)

// CategoryStats groups the owner's transactions by trimmed category label.
// Results are cached per owner until the next committed mutation.
func (l *Ledger) CategoryStats(ctx context.Context, ownerID string) (core.CategoryStats, error) {
	if stats, ok := l.stats.Get(ownerID); ok {
		return cloneStats(stats), nil
	}

	version := l.stats.Version(ownerID)
	var stats core.CategoryStats
	err := l.view(ctx, log.OpCategoryStats, ownerID, func(tx backend.Tx) error {
		txs, err := tx.ListTransactions()
		if err != nil {
			return err
		}
		stats = computeCategoryStats(txs)
		return nil
	})
	if err != nil {
		return core.CategoryStats{}, err
	}
	l.stats.SetIfVersion(ownerID, stats, version)
	return cloneStats(stats), nil
}

func cloneStats(s core.CategoryStats) core.CategoryStats {
	s.Categories = append(make([]core.CategoryStat, 0, len(s.Categories)), s.Categories...)
	s.MostUsedCategory = copyString(s.MostUsedCategory)
	return s
}

// RenameCategory moves every transaction labelled oldLabel to newLabel.
func (l *Ledger) RenameCategory(ctx context.Context, ownerID, oldLabel, newLabel string) (core.CategoryStats, error) {
	oldLabel = strings.TrimSpace(oldLabel)
	newLabel = strings.TrimSpace(newLabel)
	if err := core.ValidateCategoryLabel("category", oldLabel); err != nil {
		return core.CategoryStats{}, err
	}
	if err := core.ValidateCategoryLabel("newCategory", newLabel); err != nil {
		return core.CategoryStats{}, err
	}

	var changed []string
	err := l.update(ctx, log.OpRenameCategory, ownerID, func(tx backend.Tx) error {
		hits, err := transactionsInCategory(tx, oldLabel)
		if err != nil {
			return err
		}
		now := l.timestamp()
		for _, t := range hits {
			label := newLabel
			t.Category = &label
			t.UpdatedAt = now
			if err := tx.PutTransaction(t); err != nil {
				return err
			}
			changed = append(changed, t.ID)
		}
		return nil
	}, func() core.LedgerEvent {
		return core.LedgerEvent{Type: core.EventCategoryRenamed, OwnerID: ownerID, TransactionIDs: changed}
	})
	if err != nil {
		return core.CategoryStats{}, fmt.Errorf("rename category: %w", err)
	}
	return l.CategoryStats(ctx, ownerID)
}

// DeleteCategory either removes every transaction carrying label, reversing
// their balance contributions, or clears the label and keeps the rows.
func (l *Ledger) DeleteCategory(ctx context.Context, ownerID, label string, deleteTransactions bool) (core.CategoryStats, error) {
	label = strings.TrimSpace(label)
	if err := core.ValidateCategoryLabel("category", label); err != nil {
		return core.CategoryStats{}, err
	}

	var (
		changed  []string
		accounts []string
	)
	err := l.update(ctx, log.OpDeleteCategory, ownerID, func(tx backend.Tx) error {
		hits, err := transactionsInCategory(tx, label)
		if err != nil {
			return err
		}
		now := l.timestamp()
		seen := make(map[string]bool)
		for _, t := range hits {
			changed = append(changed, t.ID)
			if deleteTransactions {
				if !seen[t.AccountID] {
					seen[t.AccountID] = true
					accounts = append(accounts, t.AccountID)
				}
				if err := removeTransaction(tx, t, now); err != nil {
					return err
				}
				continue
			}
			t.Category = nil
			t.UpdatedAt = now
			if err := tx.PutTransaction(t); err != nil {
				return err
			}
		}
		return nil
	}, func() core.LedgerEvent {
		return core.LedgerEvent{Type: core.EventCategoryDeleted, OwnerID: ownerID, AccountIDs: accounts, TransactionIDs: changed}
	})
	if err != nil {
		return core.CategoryStats{}, fmt.Errorf("delete category: %w", err)
	}
	return l.CategoryStats(ctx, ownerID)
}

// transactionsInCategory returns the transactions whose trimmed label equals
// label exactly, or NotFound when there are none.
func transactionsInCategory(tx backend.Tx, label string) ([]core.Transaction, error) {
	txs, err := tx.ListTransactions()
	if err != nil {
		return nil, err
	}
	var hits []core.Transaction
	for _, t := range txs {
		if t.CategoryLabel() == label {
			hits = append(hits, t)
		}
	}
	if len(hits) == 0 {
		return nil, &core.NotFoundError{Entity: "category", ID: label}
	}
	return hits, nil
}

func computeCategoryStats(txs []core.Transaction) core.CategoryStats {
	counts := make(map[string]int)
	for _, t := range txs {
		if label := t.CategoryLabel(); label != "" {
			counts[label]++
		}
	}

	categories := make([]core.CategoryStat, 0, len(counts))
	for label, n := range counts {
		categories = append(categories, core.CategoryStat{Category: label, UsageCount: n})
	}
	sort.Slice(categories, func(i, j int) bool {
		if categories[i].UsageCount != categories[j].UsageCount {
			return categories[i].UsageCount > categories[j].UsageCount
		}
		li, lj := strings.ToLower(categories[i].Category), strings.ToLower(categories[j].Category)
		if li != lj {
			return li < lj
		}
		return categories[i].Category < categories[j].Category
	})

	stats := core.CategoryStats{Categories: categories}
	if len(categories) > 0 {
		top := categories[0].Category
		stats.MostUsedCategory = &top
	}
	return stats
}
