// Package services wires the pure derivation engine to storage and the
// event boundary. Every read derives its answer from the full ledger; the
// services never persist computed balances or summaries.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tally/internal/core"
	"tally/internal/engine"
	"tally/internal/log"
)

// LedgerStore is what the ledger service needs from storage.
type LedgerStore interface {
	LoadAll(ctx context.Context) (core.Snapshot, error)
	CreateAccount(ctx context.Context, a core.Account, seed *core.Transaction) error
	ArchiveAccount(ctx context.Context, id string) error
	CreateTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	CreateCategory(ctx context.Context, c core.Category) error
	CreateBudgetGoal(ctx context.Context, g core.BudgetGoal) error
	CreateRecurring(ctx context.Context, rec core.RecurringTransaction) error
	SaveRateTable(ctx context.Context, table engine.RateTable) error
	LoadRateTable(ctx context.Context) (engine.RateTable, error)
}

// LedgerService answers account, summary and budget questions and applies
// ledger mutations.
type LedgerService struct {
	store        LedgerStore
	logger       *log.Logger
	baseCurrency string
	now          func() time.Time
}

func NewLedgerService(store LedgerStore, logger *log.Logger, baseCurrency string) *LedgerService {
	return &LedgerService{
		store:        store,
		logger:       logger.WithComponent(log.ComponentLedger),
		baseCurrency: baseCurrency,
		now:          time.Now,
	}
}

// CreateAccount mints an id and stores the account. When seedOpening is set
// and the initial balance is non-zero, the balance is recorded as an opening
// income transaction instead of the account's initial balance field, so the
// opening shows up in the ledger history. Both forms reconcile to the same
// balance.
func (s *LedgerService) CreateAccount(ctx context.Context, a core.Account, seedOpening bool) (core.Account, error) {
	a.ID = uuid.New().String()
	a.CreatedAt = s.now()
	a.Balance = decimal.Zero
	if err := a.Validate(); err != nil {
		return core.Account{}, fmt.Errorf("validate account: %w", err)
	}

	var seed *core.Transaction
	if seedOpening && !a.InitialBalance.IsZero() {
		seed = &core.Transaction{
			ID:        uuid.New().String(),
			Amount:    a.InitialBalance,
			Type:      core.Income,
			Date:      core.DateOf(a.CreatedAt),
			AccountID: a.ID,
			Currency:  a.Currency,
			Note:      "opening balance",
			CreatedAt: a.CreatedAt,
		}
		a.InitialBalance = decimal.Zero
	}

	if err := s.store.CreateAccount(ctx, a, seed); err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	s.logger.InfoContext(ctx, "account created", log.FieldAccountID, a.ID, log.FieldCurrency, a.Currency)
	return a, nil
}

// ArchiveAccount soft-deletes an account. Its history stays in the ledger
// and keeps reconciling.
func (s *LedgerService) ArchiveAccount(ctx context.Context, id string) error {
	if err := s.store.ArchiveAccount(ctx, id); err != nil {
		return fmt.Errorf("archive account: %w", err)
	}
	s.logger.InfoContext(ctx, "account archived", log.FieldAccountID, id)
	return nil
}

// CreateTransaction normalizes, validates and stores a ledger entry.
func (s *LedgerService) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx.ID = uuid.New().String()
	tx.CreatedAt = s.now()
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validate transaction: %w", err)
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	s.logger.InfoContext(ctx, "transaction created",
		log.FieldTransactionID, tx.ID,
		log.FieldAccountID, tx.AccountID,
		log.FieldAmount, tx.Amount.String(),
		log.FieldDate, tx.Date.String())
	return tx, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.logger.InfoContext(ctx, "transaction deleted", log.FieldTransactionID, id)
	return nil
}

func (s *LedgerService) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.ID = uuid.New().String()
	if c.Name == "" {
		return core.Category{}, fmt.Errorf("validate category: %w", core.ErrEmptyName)
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (s *LedgerService) CreateBudgetGoal(ctx context.Context, g core.BudgetGoal) (core.BudgetGoal, error) {
	g.ID = uuid.New().String()
	g.CreatedAt = s.now()
	if err := g.Validate(); err != nil {
		return core.BudgetGoal{}, fmt.Errorf("validate budget goal: %w", err)
	}
	if err := s.store.CreateBudgetGoal(ctx, g); err != nil {
		return core.BudgetGoal{}, fmt.Errorf("create budget goal: %w", err)
	}
	s.logger.InfoContext(ctx, "budget goal created", log.FieldBudgetID, g.ID)
	return g, nil
}

func (s *LedgerService) CreateRecurring(ctx context.Context, rec core.RecurringTransaction) (core.RecurringTransaction, error) {
	rec.ID = uuid.New().String()
	rec.Active = true
	if err := rec.Validate(); err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("validate recurring transaction: %w", err)
	}
	if err := s.store.CreateRecurring(ctx, rec); err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("create recurring transaction: %w", err)
	}
	s.logger.InfoContext(ctx, "recurring transaction created", log.FieldRecurringID, rec.ID)
	return rec, nil
}

// AccountsView is the reconciled state of all accounts plus the grand total
// in the base currency.
type AccountsView struct {
	Accounts []core.Account
	Total    decimal.Decimal
	Currency string
}

// Accounts reconciles every account balance from the full transaction
// history and totals the visible ones in the base currency.
func (s *LedgerService) Accounts(ctx context.Context) (AccountsView, error) {
	snap, err := s.store.LoadAll(ctx)
	if err != nil {
		return AccountsView{}, fmt.Errorf("load ledger: %w", err)
	}
	table, err := s.store.LoadRateTable(ctx)
	if err != nil {
		return AccountsView{}, fmt.Errorf("load rate table: %w", err)
	}

	accounts := engine.Reconcile(snap.Accounts, snap.Transactions, s.baseCurrency)
	return AccountsView{
		Accounts: accounts,
		Total:    engine.TotalBalance(accounts, s.baseCurrency, table),
		Currency: s.baseCurrency,
	}, nil
}

// SummaryQuery selects the slice of the ledger to summarize. AccountID pins
// the summary to one account; otherwise VisibleAccountIDs bounds the scope,
// and an empty query covers everything.
type SummaryQuery struct {
	Start             core.Date
	End               core.Date
	AccountID         string
	VisibleAccountIDs []string
}

// Summary derives the income/expense/balance partition for a date range,
// converting everything into the base currency with the stored rate table.
func (s *LedgerService) Summary(ctx context.Context, q SummaryQuery) (engine.Summary, error) {
	if q.End.Before(q.Start.Time) {
		return engine.Summary{}, fmt.Errorf("summary range: %w", core.ErrInvalidDate)
	}
	snap, err := s.store.LoadAll(ctx)
	if err != nil {
		return engine.Summary{}, fmt.Errorf("load ledger: %w", err)
	}
	table, err := s.store.LoadRateTable(ctx)
	if err != nil {
		return engine.Summary{}, fmt.Errorf("load rate table: %w", err)
	}

	conv := engine.Converter(s.baseCurrency, table)
	return engine.Summarize(snap.Transactions, snap.Accounts, q.VisibleAccountIDs, q.AccountID, q.Start, q.End, s.baseCurrency, conv), nil
}

// BudgetProgress is the live state of one goal inside its current period.
type BudgetProgress struct {
	Goal        core.BudgetGoal
	Spent       decimal.Decimal
	Remaining   decimal.Decimal
	PeriodStart time.Time
	PeriodEnd   time.Time
	PeriodKey   string
}

// Budgets reports current-period spending against every goal's target.
func (s *LedgerService) Budgets(ctx context.Context) ([]BudgetProgress, error) {
	snap, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	table, err := s.store.LoadRateTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rate table: %w", err)
	}

	now := s.now()
	resolver := engine.NewResolver(snap.Categories)
	conv := engine.Converter(s.baseCurrency, table)

	progress := make([]BudgetProgress, 0, len(snap.Budgets))
	for _, goal := range snap.Budgets {
		spent := engine.CurrentSpending(goal, snap.Transactions, snap.Accounts, resolver, s.baseCurrency, conv, now)
		start, end := engine.PeriodBounds(goal, now)
		progress = append(progress, BudgetProgress{
			Goal:        goal,
			Spent:       spent,
			Remaining:   goal.Target.Sub(spent),
			PeriodStart: start,
			PeriodEnd:   end,
			PeriodKey:   engine.PeriodKey(goal, now),
		})
	}
	return progress, nil
}

// SetRates replaces the stored rate table. Rates with non-positive values
// are rejected here rather than silently degrading every later conversion.
func (s *LedgerService) SetRates(ctx context.Context, table engine.RateTable) error {
	if table.Base == "" {
		return fmt.Errorf("validate rate table: empty base currency")
	}
	for code, rate := range table.Rates {
		if !rate.IsPositive() {
			return fmt.Errorf("validate rate table: non-positive rate for %s", code)
		}
	}
	if table.AsOf.IsZero() {
		table.AsOf = s.now()
	}
	if err := s.store.SaveRateTable(ctx, table); err != nil {
		return fmt.Errorf("save rate table: %w", err)
	}
	s.logger.InfoContext(ctx, "rate table updated", "base", table.Base, log.FieldCount, len(table.Rates))
	return nil
}

// Rates returns the stored rate table.
func (s *LedgerService) Rates(ctx context.Context) (engine.RateTable, error) {
	table, err := s.store.LoadRateTable(ctx)
	if err != nil {
		return engine.RateTable{}, fmt.Errorf("load rate table: %w", err)
	}
	return table, nil
}
