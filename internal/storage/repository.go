// Package storage is the SQLite ledger store. Each unit of work is one
// database transaction; decimals are persisted as exact text.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"myfinance/internal/backend"
	"myfinance/internal/core"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

const readerPoolSize = 4

// SQLiteRepository keeps two pools over one WAL database: a single writer
// connection that begins units with BEGIN IMMEDIATE, and a reader pool whose
// deferred transactions see a consistent snapshot while a write is open.
type SQLiteRepository struct {
	db     *sql.DB
	reader *sql.DB
	logger *slog.Logger
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// migrates it to the latest schema.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := buildDSN(dbPath)
	version, err := RunMigrations(dsn)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite admits one writer; queueing here avoids SQLITE_BUSY between units.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	reader, err := sql.Open("sqlite", buildReaderDSN(dbPath))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite reader: %w", err)
	}
	reader.SetMaxOpenConns(readerPoolSize)
	if err := reader.Ping(); err != nil {
		reader.Close()
		db.Close()
		return nil, fmt.Errorf("ping reader: %w", err)
	}

	logger := slog.Default().With("component", "sqlite_store")
	logger.Info("SQLite store ready", "db_path", dbPath, "schema_version", version)

	return &SQLiteRepository{db: db, reader: reader, logger: logger}, nil
}

func buildDSN(dbPath string) string {
	return "file:" + dbPath +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_txlock=immediate"
}

func buildReaderDSN(dbPath string) string {
	return "file:" + dbPath +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=query_only(1)"
}

func (r *SQLiteRepository) Close() error {
	var errs []error
	if r.reader != nil {
		errs = append(errs, r.reader.Close())
	}
	if r.db != nil {
		errs = append(errs, r.db.Close())
	}
	return errors.Join(errs...)
}

func (r *SQLiteRepository) Backend() string { return string(backend.SQLiteBackend) }

func (r *SQLiteRepository) Update(ctx context.Context, ownerID string, fn func(backend.Tx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.WrapStorage("begin", err)
	}
	return r.run(ctx, sqlTx, ownerID, false, fn)
}

func (r *SQLiteRepository) View(ctx context.Context, ownerID string, fn func(backend.Tx) error) error {
	sqlTx, err := r.reader.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return core.WrapStorage("begin read", err)
	}
	return r.run(ctx, sqlTx, ownerID, true, fn)
}

func (r *SQLiteRepository) run(ctx context.Context, sqlTx *sql.Tx, ownerID string, readOnly bool, fn func(backend.Tx) error) error {
	t := &tx{ctx: ctx, tx: sqlTx, owner: ownerID, readOnly: readOnly}
	if err := fn(t); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.logger.WarnContext(ctx, "Rollback failed", "owner_id", ownerID, "error", rbErr)
		}
		return err
	}
	if readOnly {
		return core.WrapStorage("end read", sqlTx.Rollback())
	}
	return core.WrapStorage("commit", sqlTx.Commit())
}

func (r *SQLiteRepository) Owners(ctx context.Context) ([]string, error) {
	rows, err := r.reader.QueryContext(ctx, `
		SELECT owner_id FROM accounts
		UNION SELECT owner_id FROM transactions
		UNION SELECT owner_id FROM app_settings
		ORDER BY owner_id`)
	if err != nil {
		return nil, core.WrapStorage("list owners", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, core.WrapStorage("scan owner", err)
		}
		out = append(out, id)
	}
	return out, core.WrapStorage("list owners", rows.Err())
}

type tx struct {
	ctx      context.Context
	tx       *sql.Tx
	owner    string
	readOnly bool
}

func (t *tx) OwnerID() string { return t.owner }

func (t *tx) exec(op, query string, args ...any) (sql.Result, error) {
	if t.readOnly {
		return nil, core.WrapStorage(op, errors.New("write in read-only unit"))
	}
	res, err := t.tx.ExecContext(t.ctx, query, args...)
	if err != nil {
		return nil, core.WrapStorage(op, err)
	}
	return res, nil
}

const accountColumns = `id, owner_id, name, account_type, currency, initial_balance,
	initial_balance_at, current_balance, created_at, updated_at`

func (t *tx) GetAccount(id string) (core.Account, error) {
	row := t.tx.QueryRowContext(t.ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE owner_id = ? AND id = ?`, t.owner, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, &core.NotFoundError{Entity: "account", ID: id}
	}
	return a, core.WrapStorage("get account", err)
}

func (t *tx) ListAccounts() ([]core.Account, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE owner_id = ?`, t.owner)
	if err != nil {
		return nil, core.WrapStorage("list accounts", err)
	}
	defer rows.Close()
	var out []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, core.WrapStorage("scan account", err)
		}
		out = append(out, a)
	}
	return out, core.WrapStorage("list accounts", rows.Err())
}

func (t *tx) PutAccount(a core.Account) error {
	_, err := t.exec("put account", `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, id) DO UPDATE SET
			name = excluded.name,
			account_type = excluded.account_type,
			currency = excluded.currency,
			initial_balance = excluded.initial_balance,
			initial_balance_at = excluded.initial_balance_at,
			current_balance = excluded.current_balance,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		a.ID, t.owner, a.Name, a.AccountType, a.Currency,
		a.InitialBalance.String(), formatTime(a.InitialBalanceAt), a.CurrentBalance.String(),
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	return err
}

func (t *tx) DeleteAccount(id string) error {
	res, err := t.exec("delete account", `DELETE FROM accounts WHERE owner_id = ? AND id = ?`, t.owner, id)
	if err != nil {
		return err
	}
	return affectedOne(res, "account", id)
}

const transactionColumns = `id, owner_id, account_id, direction, amount, currency, occurred_at,
	category, note, transfer_group_id, recurring_group_id, recurring_frequency,
	recurring_index, recurring_day_of_month, recurring_weekend_policy, created_at, updated_at`

func (t *tx) GetTransaction(id string) (core.Transaction, error) {
	row := t.tx.QueryRowContext(t.ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE owner_id = ? AND id = ?`, t.owner, id)
	tr, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, &core.NotFoundError{Entity: "transaction", ID: id}
	}
	return tr, core.WrapStorage("get transaction", err)
}

func (t *tx) ListTransactions() ([]core.Transaction, error) {
	return t.queryTransactions(`SELECT `+transactionColumns+` FROM transactions WHERE owner_id = ?`, t.owner)
}

func (t *tx) ListTransactionsByAccount(accountID string) ([]core.Transaction, error) {
	return t.queryTransactions(
		`SELECT `+transactionColumns+` FROM transactions WHERE owner_id = ? AND account_id = ?`,
		t.owner, accountID)
}

func (t *tx) queryTransactions(query string, args ...any) ([]core.Transaction, error) {
	rows, err := t.tx.QueryContext(t.ctx, query, args...)
	if err != nil {
		return nil, core.WrapStorage("list transactions", err)
	}
	defer rows.Close()
	var out []core.Transaction
	for rows.Next() {
		tr, err := scanTransaction(rows)
		if err != nil {
			return nil, core.WrapStorage("scan transaction", err)
		}
		out = append(out, tr)
	}
	return out, core.WrapStorage("list transactions", rows.Err())
}

func (t *tx) PutTransaction(tr core.Transaction) error {
	_, err := t.exec("put transaction", `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, id) DO UPDATE SET
			account_id = excluded.account_id,
			direction = excluded.direction,
			amount = excluded.amount,
			currency = excluded.currency,
			occurred_at = excluded.occurred_at,
			category = excluded.category,
			note = excluded.note,
			transfer_group_id = excluded.transfer_group_id,
			recurring_group_id = excluded.recurring_group_id,
			recurring_frequency = excluded.recurring_frequency,
			recurring_index = excluded.recurring_index,
			recurring_day_of_month = excluded.recurring_day_of_month,
			recurring_weekend_policy = excluded.recurring_weekend_policy,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		tr.ID, t.owner, tr.AccountID, string(tr.Direction), tr.Amount.String(), tr.Currency,
		formatTime(tr.OccurredAt), nullString(tr.Category), nullString(tr.Note),
		nullString(tr.TransferGroupID), nullString(tr.RecurringGroupID),
		nullString((*string)(tr.RecurringFrequency)), nullInt(tr.RecurringIndex),
		nullInt(tr.RecurringDayOfMonth), nullString((*string)(tr.RecurringWeekendPolicy)),
		formatTime(tr.CreatedAt), formatTime(tr.UpdatedAt))
	return err
}

func (t *tx) DeleteTransaction(id string) error {
	res, err := t.exec("delete transaction", `DELETE FROM transactions WHERE owner_id = ? AND id = ?`, t.owner, id)
	if err != nil {
		return err
	}
	return affectedOne(res, "transaction", id)
}

func (t *tx) Settings() (core.AppSettings, bool, error) {
	var body string
	err := t.tx.QueryRowContext(t.ctx, `SELECT body FROM app_settings WHERE owner_id = ?`, t.owner).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return core.AppSettings{}, false, nil
	}
	if err != nil {
		return core.AppSettings{}, false, core.WrapStorage("get settings", err)
	}
	var s core.AppSettings
	if err := json.Unmarshal([]byte(body), &s); err != nil {
		return core.AppSettings{}, false, core.WrapStorage("decode settings", err)
	}
	return s, true, nil
}

func (t *tx) PutSettings(s core.AppSettings) error {
	body, err := json.Marshal(s)
	if err != nil {
		return core.WrapStorage("encode settings", err)
	}
	_, err = t.exec("put settings", `
		INSERT INTO app_settings (owner_id, body) VALUES (?, ?)
		ON CONFLICT (owner_id) DO UPDATE SET body = excluded.body`, t.owner, string(body))
	return err
}

func (t *tx) CustomLocales() (map[string]map[string]string, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT locale, body FROM custom_locales WHERE owner_id = ?`, t.owner)
	if err != nil {
		return nil, core.WrapStorage("list custom locales", err)
	}
	defer rows.Close()
	out := make(map[string]map[string]string)
	for rows.Next() {
		var locale, body string
		if err := rows.Scan(&locale, &body); err != nil {
			return nil, core.WrapStorage("scan custom locale", err)
		}
		msgs := make(map[string]string)
		if err := json.Unmarshal([]byte(body), &msgs); err != nil {
			return nil, core.WrapStorage("decode custom locale", err)
		}
		out[locale] = msgs
	}
	return out, core.WrapStorage("list custom locales", rows.Err())
}

func (t *tx) ReplaceCustomLocales(locales map[string]map[string]string) error {
	if _, err := t.exec("clear custom locales", `DELETE FROM custom_locales WHERE owner_id = ?`, t.owner); err != nil {
		return err
	}
	for locale, msgs := range locales {
		body, err := json.Marshal(msgs)
		if err != nil {
			return core.WrapStorage("encode custom locale", err)
		}
		if _, err := t.exec("insert custom locale",
			`INSERT INTO custom_locales (owner_id, locale, body) VALUES (?, ?, ?)`,
			t.owner, locale, string(body)); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) Records(kind core.RecordKind) ([]json.RawMessage, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT body FROM records WHERE owner_id = ? AND kind = ? ORDER BY position`, t.owner, string(kind))
	if err != nil {
		return nil, core.WrapStorage("list records", err)
	}
	defer rows.Close()
	var out []json.RawMessage
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, core.WrapStorage("scan record", err)
		}
		out = append(out, json.RawMessage(body))
	}
	return out, core.WrapStorage("list records", rows.Err())
}

func (t *tx) ReplaceRecords(kind core.RecordKind, rows []json.RawMessage) error {
	if _, err := t.exec("clear records", `DELETE FROM records WHERE owner_id = ? AND kind = ?`, t.owner, string(kind)); err != nil {
		return err
	}
	for i, row := range rows {
		if _, err := t.exec("insert record",
			`INSERT INTO records (owner_id, kind, position, body) VALUES (?, ?, ?, ?)`,
			t.owner, string(kind), i, string(row)); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) Truncate() error {
	for _, table := range []string{"transactions", "accounts", "app_settings", "custom_locales", "records"} {
		if _, err := t.exec("truncate "+table, `DELETE FROM `+table+` WHERE owner_id = ?`, t.owner); err != nil {
			return err
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (core.Account, error) {
	var (
		a                               core.Account
		initial, current                string
		initialAt, createdAt, updatedAt string
	)
	if err := s.Scan(&a.ID, &a.OwnerID, &a.Name, &a.AccountType, &a.Currency,
		&initial, &initialAt, &current, &createdAt, &updatedAt); err != nil {
		return core.Account{}, err
	}
	var err error
	if a.InitialBalance, err = decimal.NewFromString(initial); err != nil {
		return core.Account{}, fmt.Errorf("initial_balance: %w", err)
	}
	if a.CurrentBalance, err = decimal.NewFromString(current); err != nil {
		return core.Account{}, fmt.Errorf("current_balance: %w", err)
	}
	if a.InitialBalanceAt, err = parseTime(initialAt); err != nil {
		return core.Account{}, err
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Account{}, err
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Account{}, err
	}
	return a, nil
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		tr                                  core.Transaction
		direction, amount                   string
		occurredAt, createdAt, updatedAt    string
		category, note, transferID, recurID sql.NullString
		frequency, policy                   sql.NullString
		index, dayOfMonth                   sql.NullInt64
	)
	if err := s.Scan(&tr.ID, &tr.OwnerID, &tr.AccountID, &direction, &amount, &tr.Currency,
		&occurredAt, &category, &note, &transferID, &recurID, &frequency,
		&index, &dayOfMonth, &policy, &createdAt, &updatedAt); err != nil {
		return core.Transaction{}, err
	}
	var err error
	tr.Direction = core.Direction(direction)
	if tr.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Transaction{}, fmt.Errorf("amount: %w", err)
	}
	if tr.OccurredAt, err = parseTime(occurredAt); err != nil {
		return core.Transaction{}, err
	}
	if tr.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Transaction{}, err
	}
	if tr.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Transaction{}, err
	}
	tr.Category = stringPtr(category)
	tr.Note = stringPtr(note)
	tr.TransferGroupID = stringPtr(transferID)
	tr.RecurringGroupID = stringPtr(recurID)
	if frequency.Valid {
		f := core.FrequencyType(frequency.String)
		tr.RecurringFrequency = &f
	}
	if policy.Valid {
		p := core.WeekendPolicy(policy.String)
		tr.RecurringWeekendPolicy = &p
	}
	tr.RecurringIndex = intPtr(index)
	tr.RecurringDayOfMonth = intPtr(dayOfMonth)
	return tr, nil
}

func affectedOne(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return core.WrapStorage("rows affected", err)
	}
	if n == 0 {
		return &core.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
