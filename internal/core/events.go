package core

import "time"

// LedgerEventType names a committed ledger mutation.
type LedgerEventType string

const (
	EventAccountCreated     LedgerEventType = "account.created"
	EventAccountUpdated     LedgerEventType = "account.updated"
	EventAccountDeleted     LedgerEventType = "account.deleted"
	EventTransactionCreated LedgerEventType = "transaction.created"
	EventTransactionUpdated LedgerEventType = "transaction.updated"
	EventTransactionDeleted LedgerEventType = "transaction.deleted"
	EventTransferCreated    LedgerEventType = "transfer.created"
	EventCategoryRenamed    LedgerEventType = "category.renamed"
	EventCategoryDeleted    LedgerEventType = "category.deleted"
	EventSettingsUpdated    LedgerEventType = "settings.updated"
	EventSnapshotImported   LedgerEventType = "snapshot.imported"
)

// LedgerEvent describes a mutation after it committed. It carries ids only;
// consumers read current state from the store.
type LedgerEvent struct {
	Type           LedgerEventType `json:"type"`
	OwnerID        string          `json:"ownerId"`
	AccountIDs     []string        `json:"accountIds,omitempty"`
	TransactionIDs []string        `json:"transactionIds,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}
