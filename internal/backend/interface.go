// Package backend defines the storage contract the ledger rules are written
// against. Every backend honours the same unit-of-work semantics so the
// balance invariant holds identically over all of them.
package backend

import (
	"context"
	"encoding/json"

	"myfinance/internal/core"
)

// Store is an owner-partitioned ledger store.
type Store interface {
	// Update runs fn as one atomic read-write unit for ownerID. If fn
	// returns an error nothing it wrote becomes visible.
	Update(ctx context.Context, ownerID string, fn func(Tx) error) error

	// View runs fn against a consistent read-only snapshot of ownerID.
	View(ctx context.Context, ownerID string, fn func(Tx) error) error

	// Owners lists every owner that has stored state.
	Owners(ctx context.Context) ([]string, error)

	Backend() string
	Close() error
}

// Tx is owner-scoped row access inside a unit of work. Lookups of ids that
// do not exist or belong to another owner fail with core.NotFoundError.
// Row order of the List methods is unspecified.
type Tx interface {
	OwnerID() string

	GetAccount(id string) (core.Account, error)
	ListAccounts() ([]core.Account, error)
	PutAccount(a core.Account) error
	DeleteAccount(id string) error

	GetTransaction(id string) (core.Transaction, error)
	ListTransactions() ([]core.Transaction, error)
	ListTransactionsByAccount(accountID string) ([]core.Transaction, error)
	PutTransaction(t core.Transaction) error
	DeleteTransaction(id string) error

	// Settings returns false when the owner never stored settings.
	Settings() (core.AppSettings, bool, error)
	PutSettings(s core.AppSettings) error

	CustomLocales() (map[string]map[string]string, error)
	ReplaceCustomLocales(locales map[string]map[string]string) error

	// Records returns the opaque rows of kind in insertion order.
	Records(kind core.RecordKind) ([]json.RawMessage, error)
	ReplaceRecords(kind core.RecordKind, rows []json.RawMessage) error

	// Truncate removes every row of the owner.
	Truncate() error
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, MemoryBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
