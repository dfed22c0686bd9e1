// Package memory is an in-process ledger store. Each owner lives in its own
// partition with its own lock, so different owners never contend.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"myfinance/internal/backend"
	"myfinance/internal/core"
)

var errReadOnly = errors.New("write in read-only unit")

type Store struct {
	mu    sync.Mutex
	parts map[string]*partition
}

type partition struct {
	mu           sync.RWMutex
	accounts     map[string]core.Account
	transactions map[string]core.Transaction
	settings     *core.AppSettings
	locales      map[string]map[string]string
	records      map[core.RecordKind][]json.RawMessage
}

func New() *Store {
	return &Store{parts: make(map[string]*partition)}
}

func newPartition() *partition {
	return &partition{
		accounts:     make(map[string]core.Account),
		transactions: make(map[string]core.Transaction),
		locales:      make(map[string]map[string]string),
		records:      make(map[core.RecordKind][]json.RawMessage),
	}
}

func (s *Store) partition(ownerID string) *partition {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parts[ownerID]
	if !ok {
		p = newPartition()
		s.parts[ownerID] = p
	}
	return p
}

func (s *Store) lookup(ownerID string) (*partition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parts[ownerID]
	return p, ok
}

// Update stages every write in an overlay and applies it only when fn
// succeeds and ctx is still live.
func (s *Store) Update(ctx context.Context, ownerID string, fn func(backend.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := s.partition(ownerID)
	p.mu.Lock()
	defer p.mu.Unlock()

	t := newTx(ownerID, p, true)
	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.commit()
	return nil
}

// View reads an unknown owner through an empty, unregistered partition so
// lookups never grow the store.
func (s *Store) View(ctx context.Context, ownerID string, fn func(backend.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, ok := s.lookup(ownerID)
	if !ok {
		p = newPartition()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return fn(newTx(ownerID, p, false))
}

func (s *Store) Owners(_ context.Context) ([]string, error) {
	s.mu.Lock()
	parts := make(map[string]*partition, len(s.parts))
	for id, p := range s.parts {
		parts[id] = p
	}
	s.mu.Unlock()

	var out []string
	for id, p := range parts {
		p.mu.RLock()
		empty := len(p.accounts) == 0 && len(p.transactions) == 0 && p.settings == nil
		p.mu.RUnlock()
		if !empty {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Backend() string { return string(backend.MemoryBackend) }

func (s *Store) Close() error { return nil }

// tx reads through its overlay to the partition. A nil overlay entry marks
// a deletion.
type tx struct {
	owner    string
	base     *partition
	writable bool

	truncated    bool
	accounts     map[string]*core.Account
	transactions map[string]*core.Transaction
	settings     *core.AppSettings
	locales      map[string]map[string]string
	localesSet   bool
	records      map[core.RecordKind][]json.RawMessage
}

func newTx(owner string, base *partition, writable bool) *tx {
	return &tx{
		owner:        owner,
		base:         base,
		writable:     writable,
		accounts:     make(map[string]*core.Account),
		transactions: make(map[string]*core.Transaction),
		records:      make(map[core.RecordKind][]json.RawMessage),
	}
}

func (t *tx) OwnerID() string { return t.owner }

func (t *tx) checkWritable(op string) error {
	if !t.writable {
		return core.WrapStorage(op, errReadOnly)
	}
	return nil
}

func (t *tx) GetAccount(id string) (core.Account, error) {
	if a, ok := t.accounts[id]; ok {
		if a == nil {
			return core.Account{}, &core.NotFoundError{Entity: "account", ID: id}
		}
		return *a, nil
	}
	if !t.truncated {
		if a, ok := t.base.accounts[id]; ok {
			return a, nil
		}
	}
	return core.Account{}, &core.NotFoundError{Entity: "account", ID: id}
}

func (t *tx) ListAccounts() ([]core.Account, error) {
	out := make([]core.Account, 0, len(t.base.accounts)+len(t.accounts))
	if !t.truncated {
		for id, a := range t.base.accounts {
			if _, staged := t.accounts[id]; !staged {
				out = append(out, a)
			}
		}
	}
	for _, a := range t.accounts {
		if a != nil {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (t *tx) PutAccount(a core.Account) error {
	if err := t.checkWritable("put account"); err != nil {
		return err
	}
	a.OwnerID = t.owner
	t.accounts[a.ID] = &a
	return nil
}

func (t *tx) DeleteAccount(id string) error {
	if err := t.checkWritable("delete account"); err != nil {
		return err
	}
	if _, err := t.GetAccount(id); err != nil {
		return err
	}
	t.accounts[id] = nil
	return nil
}

func (t *tx) GetTransaction(id string) (core.Transaction, error) {
	if tr, ok := t.transactions[id]; ok {
		if tr == nil {
			return core.Transaction{}, &core.NotFoundError{Entity: "transaction", ID: id}
		}
		return cloneTransaction(*tr), nil
	}
	if !t.truncated {
		if tr, ok := t.base.transactions[id]; ok {
			return cloneTransaction(tr), nil
		}
	}
	return core.Transaction{}, &core.NotFoundError{Entity: "transaction", ID: id}
}

func (t *tx) ListTransactions() ([]core.Transaction, error) {
	return t.filterTransactions(func(core.Transaction) bool { return true }), nil
}

func (t *tx) ListTransactionsByAccount(accountID string) ([]core.Transaction, error) {
	return t.filterTransactions(func(tr core.Transaction) bool { return tr.AccountID == accountID }), nil
}

func (t *tx) filterTransactions(keep func(core.Transaction) bool) []core.Transaction {
	var out []core.Transaction
	if !t.truncated {
		for id, tr := range t.base.transactions {
			if _, staged := t.transactions[id]; !staged && keep(tr) {
				out = append(out, cloneTransaction(tr))
			}
		}
	}
	for _, tr := range t.transactions {
		if tr != nil && keep(*tr) {
			out = append(out, cloneTransaction(*tr))
		}
	}
	return out
}

func (t *tx) PutTransaction(tr core.Transaction) error {
	if err := t.checkWritable("put transaction"); err != nil {
		return err
	}
	tr = cloneTransaction(tr)
	tr.OwnerID = t.owner
	t.transactions[tr.ID] = &tr
	return nil
}

func (t *tx) DeleteTransaction(id string) error {
	if err := t.checkWritable("delete transaction"); err != nil {
		return err
	}
	if _, err := t.GetTransaction(id); err != nil {
		return err
	}
	t.transactions[id] = nil
	return nil
}

func (t *tx) Settings() (core.AppSettings, bool, error) {
	switch {
	case t.settings != nil:
		return cloneSettings(*t.settings), true, nil
	case !t.truncated && t.base.settings != nil:
		return cloneSettings(*t.base.settings), true, nil
	}
	return core.AppSettings{}, false, nil
}

func (t *tx) PutSettings(s core.AppSettings) error {
	if err := t.checkWritable("put settings"); err != nil {
		return err
	}
	s = cloneSettings(s)
	t.settings = &s
	return nil
}

func (t *tx) CustomLocales() (map[string]map[string]string, error) {
	if t.localesSet {
		return cloneLocales(t.locales), nil
	}
	if t.truncated {
		return map[string]map[string]string{}, nil
	}
	return cloneLocales(t.base.locales), nil
}

func (t *tx) ReplaceCustomLocales(locales map[string]map[string]string) error {
	if err := t.checkWritable("replace custom locales"); err != nil {
		return err
	}
	t.locales = cloneLocales(locales)
	t.localesSet = true
	return nil
}

func (t *tx) Records(kind core.RecordKind) ([]json.RawMessage, error) {
	if rows, ok := t.records[kind]; ok {
		return cloneRows(rows), nil
	}
	if t.truncated {
		return nil, nil
	}
	return cloneRows(t.base.records[kind]), nil
}

func (t *tx) ReplaceRecords(kind core.RecordKind, rows []json.RawMessage) error {
	if err := t.checkWritable("replace records"); err != nil {
		return err
	}
	t.records[kind] = cloneRows(rows)
	return nil
}

func (t *tx) Truncate() error {
	if err := t.checkWritable("truncate"); err != nil {
		return err
	}
	t.truncated = true
	t.accounts = make(map[string]*core.Account)
	t.transactions = make(map[string]*core.Transaction)
	t.settings = nil
	t.locales = nil
	t.localesSet = false
	t.records = make(map[core.RecordKind][]json.RawMessage)
	return nil
}

// commit applies the overlay. The caller holds the partition write lock.
func (t *tx) commit() {
	p := t.base
	if t.truncated {
		fresh := newPartition()
		p.accounts = fresh.accounts
		p.transactions = fresh.transactions
		p.settings = nil
		p.locales = fresh.locales
		p.records = fresh.records
	}
	for id, a := range t.accounts {
		if a == nil {
			delete(p.accounts, id)
			continue
		}
		p.accounts[id] = *a
	}
	for id, tr := range t.transactions {
		if tr == nil {
			delete(p.transactions, id)
			continue
		}
		p.transactions[id] = *tr
	}
	if t.settings != nil {
		s := *t.settings
		p.settings = &s
	}
	if t.localesSet {
		p.locales = t.locales
	}
	for kind, rows := range t.records {
		if len(rows) == 0 {
			delete(p.records, kind)
			continue
		}
		p.records[kind] = rows
	}
}

func cloneTransaction(tr core.Transaction) core.Transaction {
	tr.Category = clonePtr(tr.Category)
	tr.Note = clonePtr(tr.Note)
	tr.TransferGroupID = clonePtr(tr.TransferGroupID)
	tr.RecurringGroupID = clonePtr(tr.RecurringGroupID)
	tr.RecurringFrequency = clonePtr(tr.RecurringFrequency)
	tr.RecurringIndex = clonePtr(tr.RecurringIndex)
	tr.RecurringDayOfMonth = clonePtr(tr.RecurringDayOfMonth)
	tr.RecurringWeekendPolicy = clonePtr(tr.RecurringWeekendPolicy)
	return tr
}

func cloneSettings(s core.AppSettings) core.AppSettings {
	s.AutoBackupLastRunAt = clonePtr(s.AutoBackupLastRunAt)
	s.SessionTimeoutMinutes = clonePtr(s.SessionTimeoutMinutes)
	return s
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneLocales(in map[string]map[string]string) map[string]map[string]string {
	out := make(map[string]map[string]string, len(in))
	for locale, msgs := range in {
		m := make(map[string]string, len(msgs))
		for k, v := range msgs {
			m[k] = v
		}
		out[locale] = m
	}
	return out
}

func cloneRows(rows []json.RawMessage) []json.RawMessage {
	if rows == nil {
		return nil
	}
	out := make([]json.RawMessage, len(rows))
	for i, r := range rows {
		out[i] = append(json.RawMessage(nil), r...)
	}
	return out
}
