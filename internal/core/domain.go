package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	AccountCash       AccountType = "cash"
	AccountBank       AccountType = "bank"
	AccountCard       AccountType = "card"
	AccountInvestment AccountType = "investment"
)

const (
	Income   TransactionType = "income"
	Expense  TransactionType = "expense"
	Transfer TransactionType = "transfer"
)

const (
	CategoryExpense CategoryType = "expense"
	CategoryIncome  CategoryType = "income"
	CategoryDebt    CategoryType = "debt"
)

const (
	PeriodWeek  BudgetPeriod = "week"
	PeriodMonth BudgetPeriod = "month"
)

const (
	Weekly   Frequency = "weekly"
	Biweekly Frequency = "biweekly"
	Monthly  Frequency = "monthly"
)

type (
	AccountType     string
	TransactionType string
	CategoryType    string
	BudgetPeriod    string
	Frequency       string

	// Date is a calendar day. The time of day is always zeroed (UTC midnight)
	// so that two entries on the same day compare equal regardless of when
	// they were typed in.
	Date struct {
		time.Time
	}

	// Account holds a user's money in a single currency. Balance is derived
	// from the transaction history on every read and is never the source of
	// truth.
	Account struct {
		ID               string
		Name             string
		Type             AccountType
		Currency         string
		InitialBalance   decimal.Decimal
		Balance          decimal.Decimal // computed by engine.Reconcile
		ExcludeFromTotal bool
		Archived         bool
		CreatedAt        time.Time
	}

	// Transaction is a single ledger entry. Amount is a magnitude; the sign
	// of its effect on an account comes from Type. Category references a
	// category by id or, for legacy imported rows, by display name.
	Transaction struct {
		ID                 string
		Amount             decimal.Decimal
		Type               TransactionType
		Category           string
		Date               Date
		AccountID          string
		ToAccountID        string // set iff Type == Transfer
		Currency           string // optional override of the account currency
		Note               string
		ExcludeFromReports bool
		CreatedAt          time.Time // tie-breaker, independent of Date
	}

	// Category is a budget category with at most one level of nesting.
	Category struct {
		ID       string
		Name     string
		Type     CategoryType
		ParentID string
		// AccountIDs restricts the category to specific accounts.
		// nil means active everywhere.
		AccountIDs []string
	}

	// BudgetGoal caps spending for a category (or the whole wallet when
	// Category is empty) over a rolling week or month. CreatedAt anchors the
	// first valid period.
	BudgetGoal struct {
		ID        string
		Name      string
		Target    decimal.Decimal
		Period    BudgetPeriod
		Category  string // id or name; empty = whole-wallet budget
		Repeating bool
		CreatedAt time.Time
	}

	// RecurringTransaction is a transaction template plus a schedule.
	RecurringTransaction struct {
		ID                 string
		Amount             decimal.Decimal
		Type               TransactionType
		Category           string
		AccountID          string
		ToAccountID        string
		Currency           string
		Note               string
		ExcludeFromReports bool
		Frequency          Frequency
		NextOccurrence     Date
		Active             bool
	}

	// Snapshot is everything the derivation engine works from, as loaded in
	// one shot from storage.
	Snapshot struct {
		Accounts     []Account
		Transactions []Transaction
		Categories   []Category
		Budgets      []BudgetGoal
		Recurring    []RecurringTransaction
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrEmptyName          = errors.New("empty name")
	ErrMissingAccount     = errors.New("missing account reference")
	ErrMissingDestination = errors.New("transfer requires a destination account")
	ErrInvalidType        = errors.New("invalid type")
)

// NewDate creates a Date from year, month, day at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), int(u.Month()), u.Day())
}

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// String formats the date as ISO-8601 (2006-01-02).
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// ParseDate parses an ISO-8601 calendar day.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense, Transfer:
		return nil
	}
	return ErrInvalidType
}

func (f Frequency) Validate() error {
	switch f {
	case Weekly, Biweekly, Monthly:
		return nil
	}
	return ErrInvalidType
}

func (p BudgetPeriod) Validate() error {
	switch p {
	case PeriodWeek, PeriodMonth:
		return nil
	}
	return ErrInvalidType
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	switch a.Type {
	case AccountCash, AccountBank, AccountCard, AccountInvestment:
	default:
		return ErrInvalidType
	}
	return nil
}

func (tx Transaction) Validate() error {
	if err := tx.Type.Validate(); err != nil {
		return err
	}
	if err := tx.Date.Validate(); err != nil {
		return err
	}
	if tx.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if tx.AccountID == "" {
		return ErrMissingAccount
	}
	if tx.Type == Transfer && tx.ToAccountID == "" {
		return ErrMissingDestination
	}
	if tx.Type != Transfer && tx.ToAccountID != "" {
		return errors.New("destination account only valid for transfers")
	}
	return nil
}

func (g BudgetGoal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if err := g.Period.Validate(); err != nil {
		return err
	}
	if !g.Target.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (r RecurringTransaction) Validate() error {
	if err := r.Type.Validate(); err != nil {
		return err
	}
	if err := r.Frequency.Validate(); err != nil {
		return err
	}
	if err := r.NextOccurrence.Validate(); err != nil {
		return err
	}
	if r.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if r.AccountID == "" {
		return ErrMissingAccount
	}
	if r.Type == Transfer && r.ToAccountID == "" {
		return ErrMissingDestination
	}
	return nil
}
