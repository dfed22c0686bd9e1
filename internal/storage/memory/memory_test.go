package memory

import (
	"context"
	"testing"

	"myfinance/internal/backend"
	"myfinance/internal/backend/storetest"
	"myfinance/internal/core"
)

func TestMemoryStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) backend.Store { return New() })
}

func TestMemoryStoreCancelledContextDiscardsWrites(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())

	err := s.Update(ctx, "alice", func(tx backend.Tx) error {
		if err := tx.PutAccount(core.Account{ID: "a1", Name: "Main", Currency: "CZK"}); err != nil {
			return err
		}
		cancel()
		return nil
	})
	if err == nil {
		t.Fatalf("expected context error")
	}

	err = s.View(context.Background(), "alice", func(tx backend.Tx) error {
		list, err := tx.ListAccounts()
		if err != nil {
			return err
		}
		if len(list) != 0 {
			t.Fatalf("expected no accounts, got %d", len(list))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := New()
	cat := "Food"
	ctx := context.Background()
	if err := s.Update(ctx, "alice", func(tx backend.Tx) error {
		return tx.PutTransaction(core.Transaction{ID: "t1", AccountID: "a1", Category: &cat})
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	cat = "Changed"

	_ = s.View(ctx, "alice", func(tx backend.Tx) error {
		got, err := tx.GetTransaction("t1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if *got.Category != "Food" {
			t.Fatalf("stored row aliased caller memory: %q", *got.Category)
		}
		*got.Category = "Mutated"
		again, _ := tx.GetTransaction("t1")
		if *again.Category != "Food" {
			t.Fatalf("returned row aliased store memory: %q", *again.Category)
		}
		return nil
	})
}

func TestMemoryStoreViewOfUnknownOwnerAddsNoPartition(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, owner := range []string{"ghost-1", "ghost-2", "ghost-3"} {
		err := s.View(ctx, owner, func(tx backend.Tx) error {
			list, err := tx.ListTransactions()
			if err != nil {
				return err
			}
			if len(list) != 0 {
				t.Fatalf("expected no transactions for %s, got %d", owner, len(list))
			}
			return nil
		})
		if err != nil {
			t.Fatalf("view %s: %v", owner, err)
		}
	}

	s.mu.Lock()
	n := len(s.parts)
	s.mu.Unlock()
	if n != 0 {
		t.Fatalf("len(parts) = %d after read-only views, want 0", n)
	}
}
