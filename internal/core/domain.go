package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  Direction = "income"
	Expense Direction = "expense"
)

const (
	FrequencyNone FrequencyType = "none"
	Daily         FrequencyType = "daily"
	Weekly        FrequencyType = "weekly"
	Monthly       FrequencyType = "monthly"
	Yearly        FrequencyType = "yearly"
)

const (
	WeekendExact    WeekendPolicy = "exact"
	WeekendMonday   WeekendPolicy = "monday"
	WeekendFriday   WeekendPolicy = "friday"
	WeekendThursday WeekendPolicy = "thursday"
)

const (
	DeleteTransferBalance    AccountDeleteAction = "transfer_balance"
	DeleteWithTransactions   AccountDeleteAction = "delete_transactions"
	DefaultAccountType                           = "checking"
	MaxAccountNameLength                         = 120
	MaxAccountTypeLength                         = 50
	MaxCategoryLength                            = 100
	MaxNoteLength                                = 1000
	MaxRecurringCount                            = 1000
)

type (
	Direction           string
	FrequencyType       string
	WeekendPolicy       string
	AccountDeleteAction string

	// Account is a balance holder. CurrentBalance always equals InitialBalance
	// plus the signed sum of the account's transactions.
	Account struct {
		ID               string          `json:"id"`
		OwnerID          string          `json:"user_id"`
		Name             string          `json:"name"`
		AccountType      string          `json:"account_type"`
		Currency         string          `json:"currency"`
		InitialBalance   decimal.Decimal `json:"initial_balance"`
		InitialBalanceAt time.Time       `json:"initial_balance_at"`
		CurrentBalance   decimal.Decimal `json:"current_balance"`
		CreatedAt        time.Time       `json:"created_at"`
		UpdatedAt        time.Time       `json:"updated_at"`
	}

	Transaction struct {
		ID                     string          `json:"id"`
		OwnerID                string          `json:"user_id"`
		AccountID              string          `json:"account_id"`
		Direction              Direction       `json:"direction"`
		Amount                 decimal.Decimal `json:"amount"`
		Currency               string          `json:"currency"`
		OccurredAt             time.Time       `json:"transaction_at"`
		Category               *string         `json:"category"`
		Note                   *string         `json:"note"`
		TransferGroupID        *string         `json:"transfer_group_id"`
		RecurringGroupID       *string         `json:"recurring_group_id"`
		RecurringFrequency     *FrequencyType  `json:"recurring_frequency"`
		RecurringIndex         *int            `json:"recurring_index"`
		RecurringDayOfMonth    *int            `json:"recurring_day_of_month"`
		RecurringWeekendPolicy *WeekendPolicy  `json:"recurring_weekend_policy"`
		CreatedAt              time.Time       `json:"created_at"`
		UpdatedAt              time.Time       `json:"updated_at"`
	}

	AccountInput struct {
		Name             string
		AccountType      string
		Currency         string
		InitialBalance   decimal.Decimal
		InitialBalanceAt *time.Time
	}

	// AccountPatch carries a partial update; unset fields are left alone.
	AccountPatch struct {
		Name             Patch[string]          `json:"name"`
		AccountType      Patch[string]          `json:"accountType"`
		Currency         Patch[string]          `json:"currency"`
		InitialBalance   Patch[decimal.Decimal] `json:"initialBalance"`
		InitialBalanceAt Patch[time.Time]       `json:"initialBalanceAt"`
	}

	TransactionInput struct {
		AccountID              string
		Direction              Direction
		Amount                 decimal.Decimal
		Currency               string
		OccurredAt             time.Time
		Category               *string
		Note                   *string
		RecurringFrequency     *FrequencyType
		RecurringCount         int
		RecurringDayOfMonth    *int
		RecurringWeekendPolicy *WeekendPolicy
	}

	TransactionPatch struct {
		AccountID  Patch[string]          `json:"accountId"`
		Direction  Patch[Direction]       `json:"direction"`
		Amount     Patch[decimal.Decimal] `json:"amount"`
		Currency   Patch[string]          `json:"currency"`
		OccurredAt Patch[time.Time]       `json:"occurredAt"`
		Category   Patch[string]          `json:"category"`
		Note       Patch[string]          `json:"note"`
	}

	TransferInput struct {
		FromAccountID string
		ToAccountID   string
		Amount        decimal.Decimal
		Currency      string
		OccurredAt    time.Time
		Category      *string
		Note          *string
	}

	TransferResult struct {
		TransferGroupID string
		Outgoing        Transaction
		Incoming        Transaction
	}
)

// Sign returns +1 for income and -1 for expense.
func (d Direction) Sign() decimal.Decimal {
	if d == Income {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(-1)
}

func (d Direction) IsValid() bool {
	return d == Income || d == Expense
}

func (f FrequencyType) IsValid() bool {
	switch f {
	case FrequencyNone, Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// AnchorsDay reports whether the frequency stores a day-of-month anchor.
func (f FrequencyType) AnchorsDay() bool {
	return f == Monthly || f == Yearly
}

func (p WeekendPolicy) IsValid() bool {
	switch p {
	case WeekendExact, WeekendMonday, WeekendFriday, WeekendThursday:
		return true
	}
	return false
}

func (a AccountDeleteAction) IsValid() bool {
	return a == DeleteTransferBalance || a == DeleteWithTransactions
}

// SignedAmount is the transaction's contribution to its account balance.
func (t Transaction) SignedAmount() decimal.Decimal {
	return t.Amount.Mul(t.Direction.Sign())
}

// CategoryLabel returns the trimmed category, empty when unset.
func (t Transaction) CategoryLabel() string {
	if t.Category == nil {
		return ""
	}
	return strings.TrimSpace(*t.Category)
}

// Normalize upper-cases the currency and fills defaults.
func (in *AccountInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.AccountType = strings.TrimSpace(in.AccountType)
	if in.AccountType == "" {
		in.AccountType = DefaultAccountType
	}
	in.Currency = NormalizeCurrency(in.Currency)
}

func (in AccountInput) Validate() error {
	if err := validateLabel("name", in.Name, MaxAccountNameLength); err != nil {
		return err
	}
	if err := validateLabel("accountType", in.AccountType, MaxAccountTypeLength); err != nil {
		return err
	}
	if err := ValidateCurrency("currency", in.Currency); err != nil {
		return err
	}
	if in.InitialBalance.IsNegative() {
		return NewValidationError("initialBalance", "must be greater than or equal to 0")
	}
	return nil
}

func (p *AccountPatch) Normalize() {
	if v, ok := p.Name.Get(); ok {
		p.Name = Set(strings.TrimSpace(v))
	}
	if v, ok := p.AccountType.Get(); ok {
		p.AccountType = Set(strings.TrimSpace(v))
	}
	if v, ok := p.Currency.Get(); ok {
		p.Currency = Set(NormalizeCurrency(v))
	}
}

func (p AccountPatch) Validate() error {
	for field, f := range map[string]Patch[string]{"name": p.Name, "accountType": p.AccountType, "currency": p.Currency} {
		if f.IsNull() {
			return NewValidationError(field, "cannot be cleared")
		}
	}
	if p.InitialBalance.IsNull() {
		return NewValidationError("initialBalance", "cannot be cleared")
	}
	if p.InitialBalanceAt.IsNull() {
		return NewValidationError("initialBalanceAt", "cannot be cleared")
	}
	if v, ok := p.Name.Get(); ok {
		if err := validateLabel("name", v, MaxAccountNameLength); err != nil {
			return err
		}
	}
	if v, ok := p.AccountType.Get(); ok {
		if err := validateLabel("accountType", v, MaxAccountTypeLength); err != nil {
			return err
		}
	}
	if v, ok := p.Currency.Get(); ok {
		if err := ValidateCurrency("currency", v); err != nil {
			return err
		}
	}
	if v, ok := p.InitialBalance.Get(); ok && v.IsNegative() {
		return NewValidationError("initialBalance", "must be greater than or equal to 0")
	}
	return nil
}

func (in *TransactionInput) Normalize() {
	in.Direction = Direction(strings.ToLower(strings.TrimSpace(string(in.Direction))))
	if in.Direction == "" {
		in.Direction = Expense
	}
	in.Currency = NormalizeCurrency(in.Currency)
	if in.RecurringCount == 0 {
		in.RecurringCount = 1
	}
	in.Category = normalizeOptional(in.Category)
	in.Note = normalizeOptional(in.Note)
}

func (in TransactionInput) Validate() error {
	if strings.TrimSpace(in.AccountID) == "" {
		return NewValidationError("accountId", "is required")
	}
	if !in.Direction.IsValid() {
		return NewValidationError("direction", "direction must be income or expense")
	}
	if err := ValidateAmount("amount", in.Amount); err != nil {
		return err
	}
	if err := ValidateCurrency("currency", in.Currency); err != nil {
		return err
	}
	if in.OccurredAt.IsZero() {
		return NewValidationError("occurredAt", "is required")
	}
	if err := validateOptionalText("category", in.Category, MaxCategoryLength); err != nil {
		return err
	}
	if err := validateOptionalText("note", in.Note, MaxNoteLength); err != nil {
		return err
	}
	if in.RecurringCount < 1 || in.RecurringCount > MaxRecurringCount {
		return NewValidationError("recurringCount", "must be between 1 and %d", MaxRecurringCount)
	}
	if in.RecurringFrequency != nil && !in.RecurringFrequency.IsValid() {
		return NewValidationError("recurringFrequency", "unsupported frequency %q", *in.RecurringFrequency)
	}
	if in.RecurringFrequency == nil && in.RecurringCount > 1 {
		return NewValidationError("recurringCount", "requires recurringFrequency")
	}
	if in.RecurringDayOfMonth != nil && (*in.RecurringDayOfMonth < 1 || *in.RecurringDayOfMonth > 31) {
		return NewValidationError("recurringDayOfMonth", "must be between 1 and 31")
	}
	if in.RecurringWeekendPolicy != nil && !in.RecurringWeekendPolicy.IsValid() {
		return NewValidationError("recurringWeekendPolicy", "unsupported policy %q", *in.RecurringWeekendPolicy)
	}
	return nil
}

func (p *TransactionPatch) Normalize() {
	if v, ok := p.Direction.Get(); ok {
		p.Direction = Set(Direction(strings.ToLower(strings.TrimSpace(string(v)))))
	}
	if v, ok := p.Currency.Get(); ok {
		p.Currency = Set(NormalizeCurrency(v))
	}
	if v, ok := p.Category.Get(); ok {
		if v = strings.TrimSpace(v); v == "" {
			p.Category = Clear[string]()
		} else {
			p.Category = Set(v)
		}
	}
	if v, ok := p.Note.Get(); ok && strings.TrimSpace(v) == "" {
		p.Note = Clear[string]()
	}
}

func (p TransactionPatch) Validate() error {
	switch {
	case p.AccountID.IsNull():
		return NewValidationError("accountId", "cannot be cleared")
	case p.Direction.IsNull():
		return NewValidationError("direction", "cannot be cleared")
	case p.Amount.IsNull():
		return NewValidationError("amount", "cannot be cleared")
	case p.Currency.IsNull():
		return NewValidationError("currency", "cannot be cleared")
	case p.OccurredAt.IsNull():
		return NewValidationError("occurredAt", "cannot be cleared")
	}
	if v, ok := p.Direction.Get(); ok && !v.IsValid() {
		return NewValidationError("direction", "direction must be income or expense")
	}
	if v, ok := p.Amount.Get(); ok {
		if err := ValidateAmount("amount", v); err != nil {
			return err
		}
	}
	if v, ok := p.Currency.Get(); ok {
		if err := ValidateCurrency("currency", v); err != nil {
			return err
		}
	}
	if v, ok := p.OccurredAt.Get(); ok && v.IsZero() {
		return NewValidationError("occurredAt", "is required")
	}
	if v, ok := p.Category.Get(); ok && len(v) > MaxCategoryLength {
		return NewValidationError("category", "must be at most %d characters", MaxCategoryLength)
	}
	if v, ok := p.Note.Get(); ok && len(v) > MaxNoteLength {
		return NewValidationError("note", "must be at most %d characters", MaxNoteLength)
	}
	return nil
}

func (in *TransferInput) Normalize() {
	in.Currency = NormalizeCurrency(in.Currency)
	in.Category = normalizeOptional(in.Category)
	in.Note = normalizeOptional(in.Note)
}

func (in TransferInput) Validate() error {
	if strings.TrimSpace(in.FromAccountID) == "" {
		return NewValidationError("fromAccountId", "is required")
	}
	if strings.TrimSpace(in.ToAccountID) == "" {
		return NewValidationError("toAccountId", "is required")
	}
	if in.FromAccountID == in.ToAccountID {
		return NewValidationError("toAccountId", "must be different from fromAccountId")
	}
	if err := ValidateAmount("amount", in.Amount); err != nil {
		return err
	}
	if err := ValidateCurrency("currency", in.Currency); err != nil {
		return err
	}
	if in.OccurredAt.IsZero() {
		return NewValidationError("occurredAt", "is required")
	}
	if err := validateOptionalText("category", in.Category, MaxCategoryLength); err != nil {
		return err
	}
	return validateOptionalText("note", in.Note, MaxNoteLength)
}

// ValidateCategoryLabel checks a label used by rename/delete.
func ValidateCategoryLabel(field, label string) error {
	return validateLabel(field, strings.TrimSpace(label), MaxCategoryLength)
}

func validateLabel(field, v string, max int) error {
	if strings.TrimSpace(v) == "" {
		return NewValidationError(field, "must not be empty")
	}
	if len(v) > max {
		return NewValidationError(field, "must be at most %d characters", max)
	}
	return nil
}

func validateOptionalText(field string, v *string, max int) error {
	if v != nil && len(*v) > max {
		return NewValidationError(field, "must be at most %d characters", max)
	}
	return nil
}

func normalizeOptional(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}
