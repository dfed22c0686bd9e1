package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"myfinance/internal/backend"
	"myfinance/internal/core"
	"myfinance/internal/log"
)

// rateWatchlistKind stores the watchlist symbols as one record per symbol.
const rateWatchlistKind core.RecordKind = "rateWatchlist"

// Export captures the owner's full state in one consistent read.
func (l *Ledger) Export(ctx context.Context, ownerID string) (core.Snapshot, error) {
	snap := core.Snapshot{
		Meta: core.SnapshotMeta{
			Version:        core.SnapshotVersion,
			ExportedAt:     l.timestamp(),
			StorageBackend: l.store.Backend(),
		},
	}
	err := l.view(ctx, log.OpExport, ownerID, func(tx backend.Tx) error {
		data, err := readSnapshotData(tx)
		if err != nil {
			return err
		}
		snap.Data = data
		return nil
	})
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("export: %w", err)
	}
	return snap, nil
}

// ExportJSON renders Export as an indented JSON document.
func (l *Ledger) ExportJSON(ctx context.Context, ownerID string) ([]byte, error) {
	snap, err := l.Export(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return body, nil
}

func readSnapshotData(tx backend.Tx) (core.SnapshotData, error) {
	var data core.SnapshotData

	settings, err := loadSettings(tx)
	if err != nil {
		return data, err
	}
	data.AppSettings = &settings

	if data.CustomLocales, err = tx.CustomLocales(); err != nil {
		return data, err
	}
	if data.Accounts, err = tx.ListAccounts(); err != nil {
		return data, err
	}
	sortAccounts(data.Accounts)
	if data.Transactions, err = tx.ListTransactions(); err != nil {
		return data, err
	}
	sortTransactions(data.Transactions)

	data.Records = make(map[core.RecordKind][]json.RawMessage)
	for _, kind := range core.RecordKinds {
		rows, err := tx.Records(kind)
		if err != nil {
			return data, err
		}
		if len(rows) > 0 {
			data.Records[kind] = rows
		}
	}

	rows, err := tx.Records(rateWatchlistKind)
	if err != nil {
		return data, err
	}
	for _, row := range rows {
		var symbol string
		if err := json.Unmarshal(row, &symbol); err != nil {
			return data, fmt.Errorf("decode watchlist symbol: %w", err)
		}
		data.RateWatchlist = append(data.RateWatchlist, symbol)
	}
	return data, nil
}

// ImportJSON decodes a backup document and imports it.
func (l *Ledger) ImportJSON(ctx context.Context, ownerID string, body []byte) (core.ImportCounts, error) {
	var snap core.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			return core.ImportCounts{}, verr
		}
		return core.ImportCounts{}, core.NewValidationError("document", "invalid backup document: %v", err)
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return core.ImportCounts{}, core.NewValidationError("document", "invalid backup document: %v", err)
	}
	if raw, ok := envelope["data"]; !ok || string(raw) == "null" {
		return core.ImportCounts{}, core.NewValidationError("data", "is required")
	}
	return l.Import(ctx, ownerID, snap)
}

// Import replaces the owner's whole state with snap. The document is fully
// validated before anything is deleted; the replace then runs as one unit.
// Ids are kept, rows are re-owned to ownerID and balances are rebuilt from
// the imported transactions.
func (l *Ledger) Import(ctx context.Context, ownerID string, snap core.Snapshot) (core.ImportCounts, error) {
	if err := validateSnapshot(snap); err != nil {
		return core.ImportCounts{}, err
	}

	now := l.timestamp()
	data := snap.Data
	accounts := make([]core.Account, len(data.Accounts))
	byAccount := make(map[string][]core.Transaction)
	transactions := make([]core.Transaction, len(data.Transactions))
	for i, t := range data.Transactions {
		t.OwnerID = ownerID
		t.Currency = core.NormalizeCurrency(t.Currency)
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if t.UpdatedAt.IsZero() {
			t.UpdatedAt = t.CreatedAt
		}
		transactions[i] = t
		byAccount[t.AccountID] = append(byAccount[t.AccountID], t)
	}
	for i, a := range data.Accounts {
		a.OwnerID = ownerID
		a.Currency = core.NormalizeCurrency(a.Currency)
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = a.CreatedAt
		}
		if a.InitialBalanceAt.IsZero() {
			a.InitialBalanceAt = a.CreatedAt
		}
		balance := a.InitialBalance
		for _, t := range byAccount[a.ID] {
			balance = balance.Add(t.SignedAmount())
		}
		a.CurrentBalance = balance
		accounts[i] = a
	}

	watchlist := make([]json.RawMessage, 0, len(data.RateWatchlist))
	for _, symbol := range data.RateWatchlist {
		row, err := json.Marshal(symbol)
		if err != nil {
			return core.ImportCounts{}, fmt.Errorf("encode watchlist symbol: %w", err)
		}
		watchlist = append(watchlist, row)
	}

	counts := core.ImportCounts{
		Accounts:      len(accounts),
		Transactions:  len(transactions),
		CustomLocales: len(data.CustomLocales),
		Records:       make(map[core.RecordKind]int),
		RateWatchlist: len(watchlist),
	}
	for _, kind := range core.RecordKinds {
		counts.Records[kind] = len(data.Records[kind])
	}

	err := l.update(ctx, log.OpImport, ownerID, func(tx backend.Tx) error {
		if err := tx.Truncate(); err != nil {
			return err
		}
		if data.AppSettings != nil {
			if err := tx.PutSettings(*data.AppSettings); err != nil {
				return err
			}
		}
		if len(data.CustomLocales) > 0 {
			if err := tx.ReplaceCustomLocales(data.CustomLocales); err != nil {
				return err
			}
		}
		for _, a := range accounts {
			if err := tx.PutAccount(a); err != nil {
				return err
			}
		}
		for _, t := range transactions {
			if err := tx.PutTransaction(t); err != nil {
				return err
			}
		}
		for _, kind := range core.RecordKinds {
			if rows := data.Records[kind]; len(rows) > 0 {
				if err := tx.ReplaceRecords(kind, rows); err != nil {
					return err
				}
			}
		}
		if len(watchlist) > 0 {
			return tx.ReplaceRecords(rateWatchlistKind, watchlist)
		}
		return nil
	}, func() core.LedgerEvent {
		return core.LedgerEvent{
			Type:           core.EventSnapshotImported,
			OwnerID:        ownerID,
			AccountIDs:     accountIDs(accounts),
			TransactionIDs: transactionIDs(transactions),
		}
	})
	if err != nil {
		return core.ImportCounts{}, fmt.Errorf("import: %w", err)
	}

	l.logger.InfoContext(ctx, "Snapshot imported",
		log.FieldOwnerID, ownerID,
		"accounts", counts.Accounts,
		"transactions", counts.Transactions)
	return counts, nil
}

// validateSnapshot checks the whole document so a bad backup never reaches
// the truncate step.
func validateSnapshot(snap core.Snapshot) error {
	if snap.Meta.Version != core.SnapshotVersion {
		return core.NewValidationError("meta.version", "unsupported backup version %d", snap.Meta.Version)
	}
	data := snap.Data

	if data.AppSettings != nil {
		if err := data.AppSettings.Validate(); err != nil {
			return err
		}
	}

	accounts := make(map[string]bool, len(data.Accounts))
	for i, a := range data.Accounts {
		field := fmt.Sprintf("data.accounts[%d]", i)
		if strings.TrimSpace(a.ID) == "" {
			return core.NewValidationError(field+".id", "is required")
		}
		if accounts[a.ID] {
			return core.NewValidationError(field+".id", "duplicate account id %s", a.ID)
		}
		accounts[a.ID] = true
		if strings.TrimSpace(a.Name) == "" {
			return core.NewValidationError(field+".name", "must not be empty")
		}
		if err := core.ValidateCurrency(field+".currency", core.NormalizeCurrency(a.Currency)); err != nil {
			return err
		}
		if a.InitialBalance.IsNegative() {
			return core.NewValidationError(field+".initial_balance", "must be greater than or equal to 0")
		}
	}

	transactions := make(map[string]bool, len(data.Transactions))
	for i, t := range data.Transactions {
		field := fmt.Sprintf("data.transactions[%d]", i)
		if strings.TrimSpace(t.ID) == "" {
			return core.NewValidationError(field+".id", "is required")
		}
		if transactions[t.ID] {
			return core.NewValidationError(field+".id", "duplicate transaction id %s", t.ID)
		}
		transactions[t.ID] = true
		if !accounts[t.AccountID] {
			return core.NewValidationError(field+".account_id", "references unknown account %s", t.AccountID)
		}
		if !t.Direction.IsValid() {
			return core.NewValidationError(field+".direction", "direction must be income or expense")
		}
		if err := core.ValidateAmount(field+".amount", t.Amount); err != nil {
			return err
		}
		if err := core.ValidateCurrency(field+".currency", core.NormalizeCurrency(t.Currency)); err != nil {
			return err
		}
		if t.OccurredAt.IsZero() {
			return core.NewValidationError(field+".transaction_at", "is required")
		}
	}
	return nil
}

func accountIDs(accounts []core.Account) []string {
	ids := make([]string, len(accounts))
	for i, a := range accounts {
		ids[i] = a.ID
	}
	return ids
}
