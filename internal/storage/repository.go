package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"tally/internal/core"
	"tally/internal/engine"
)

// SQLiteRepository is the storage collaborator: it loads and saves entities
// and preserves their referential fields. Ids stay opaque strings, dates are
// ISO-8601, amounts are decimal strings rounded to the currency's minor
// units at write time.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// scanAmount parses a stored amount. Corrupt values normalize to zero
// instead of failing the whole load.
func scanAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func scanTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func scanDate(s string) core.Date {
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}
	}
	return d
}

// LoadAll loads the complete snapshot the derivation engine works from.
func (r *SQLiteRepository) LoadAll(ctx context.Context) (core.Snapshot, error) {
	var snap core.Snapshot
	var err error

	if snap.Accounts, err = r.ListAccounts(ctx); err != nil {
		return snap, err
	}
	if snap.Transactions, err = r.ListTransactions(ctx); err != nil {
		return snap, err
	}
	if snap.Categories, err = r.ListCategories(ctx); err != nil {
		return snap, err
	}
	if snap.Budgets, err = r.ListBudgetGoals(ctx); err != nil {
		return snap, err
	}
	if snap.Recurring, err = r.ListRecurring(ctx); err != nil {
		return snap, err
	}
	return snap, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, type, currency, initial_balance, exclude_from_total, archived, created_at
		FROM accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		var a core.Account
		var initial, createdAt string
		if err := rows.Scan(&a.ID, &a.Name, &a.Type, &a.Currency, &initial, &a.ExcludeFromTotal, &a.Archived, &createdAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.InitialBalance = scanAmount(initial)
		a.CreatedAt = scanTime(createdAt)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// CreateAccount persists an account. The optional seed transaction is
// written in the same database transaction: an account must never exist
// without its seeding entry, nor the other way round.
func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account, seed *core.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin account create: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (id, name, type, currency, initial_balance, exclude_from_total, archived, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, string(a.Type), a.Currency,
		core.RoundForStorage(a.InitialBalance, a.Currency).String(),
		a.ExcludeFromTotal, a.Archived, a.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}

	if seed != nil {
		if err := insertTransaction(ctx, tx, *seed); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit account create: %w", err)
	}

	slog.InfoContext(ctx, "Account saved",
		"account_id", a.ID,
		"name", a.Name,
		"currency", a.Currency,
		"seeded", seed != nil)
	return nil
}

func (r *SQLiteRepository) ArchiveAccount(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE accounts SET archived = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("archive account: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTransaction(ctx context.Context, db execer, t core.Transaction) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO transactions (id, amount, type, category, date, account_id, to_account_id, currency, note, exclude_from_reports, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, core.RoundForStorage(t.Amount, t.Currency).String(), string(t.Type), t.Category,
		t.Date.String(), t.AccountID, t.ToAccountID, t.Currency, t.Note,
		t.ExcludeFromReports, t.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	if err := insertTransaction(ctx, r.db, t); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Transaction saved",
		"transaction_id", t.ID,
		"type", string(t.Type),
		"amount", t.Amount.String(),
		"date", t.Date.String())
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction deleted", "transaction_id", id)
	return nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, amount, type, category, date, account_id, to_account_id, currency, note, exclude_from_reports, created_at
		FROM transactions ORDER BY date, created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		var t core.Transaction
		var amount, date, createdAt string
		if err := rows.Scan(&t.ID, &amount, &t.Type, &t.Category, &date, &t.AccountID, &t.ToAccountID, &t.Currency, &t.Note, &t.ExcludeFromReports, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Amount = scanAmount(amount)
		t.Date = scanDate(date)
		t.CreatedAt = scanTime(createdAt)
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	var accountIDs any
	if c.AccountIDs != nil {
		accountIDs = strings.Join(c.AccountIDs, ",")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, type, parent_id, account_ids)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, string(c.Type), c.ParentID, accountIDs)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, type, parent_id, account_ids FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var c core.Category
		var accountIDs sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.ParentID, &accountIDs); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		// NULL means active everywhere; an empty string means active nowhere.
		if accountIDs.Valid {
			if accountIDs.String == "" {
				c.AccountIDs = []string{}
			} else {
				c.AccountIDs = strings.Split(accountIDs.String, ",")
			}
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *SQLiteRepository) CreateBudgetGoal(ctx context.Context, g core.BudgetGoal) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budget_goals (id, name, target, period, category, repeating, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.Target.String(), string(g.Period), g.Category,
		g.Repeating, g.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert budget goal: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListBudgetGoals(ctx context.Context) ([]core.BudgetGoal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, target, period, category, repeating, created_at
		FROM budget_goals ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list budget goals: %w", err)
	}
	defer rows.Close()

	var goals []core.BudgetGoal
	for rows.Next() {
		var g core.BudgetGoal
		var target, createdAt string
		if err := rows.Scan(&g.ID, &g.Name, &target, &g.Period, &g.Category, &g.Repeating, &createdAt); err != nil {
			return nil, fmt.Errorf("scan budget goal: %w", err)
		}
		g.Target = scanAmount(target)
		g.CreatedAt = scanTime(createdAt)
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func (r *SQLiteRepository) CreateRecurring(ctx context.Context, rec core.RecurringTransaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_transactions (id, amount, type, category, account_id, to_account_id, currency, note, exclude_from_reports, frequency, next_occurrence, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, core.RoundForStorage(rec.Amount, rec.Currency).String(), string(rec.Type), rec.Category,
		rec.AccountID, rec.ToAccountID, rec.Currency, rec.Note, rec.ExcludeFromReports,
		string(rec.Frequency), rec.NextOccurrence.String(), rec.Active)
	if err != nil {
		return fmt.Errorf("insert recurring transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListRecurring(ctx context.Context) ([]core.RecurringTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, amount, type, category, account_id, to_account_id, currency, note, exclude_from_reports, frequency, next_occurrence, active
		FROM recurring_transactions ORDER BY next_occurrence, id`)
	if err != nil {
		return nil, fmt.Errorf("list recurring transactions: %w", err)
	}
	defer rows.Close()

	var recs []core.RecurringTransaction
	for rows.Next() {
		var rec core.RecurringTransaction
		var amount, next string
		if err := rows.Scan(&rec.ID, &amount, &rec.Type, &rec.Category, &rec.AccountID, &rec.ToAccountID, &rec.Currency, &rec.Note, &rec.ExcludeFromReports, &rec.Frequency, &next, &rec.Active); err != nil {
			return nil, fmt.Errorf("scan recurring transaction: %w", err)
		}
		rec.Amount = scanAmount(amount)
		rec.NextOccurrence = scanDate(next)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// UpdateRecurringNext moves a recurring record's schedule forward.
func (r *SQLiteRepository) UpdateRecurringNext(ctx context.Context, id string, next core.Date) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE recurring_transactions SET next_occurrence = ? WHERE id = ?`,
		next.String(), id); err != nil {
		return fmt.Errorf("update recurring next occurrence: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SetRecurringActive(ctx context.Context, id string, active bool) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE recurring_transactions SET active = ? WHERE id = ?`, active, id); err != nil {
		return fmt.Errorf("update recurring active flag: %w", err)
	}
	return nil
}

// MarkPeriodKey records a budget period key. Returns true when the key was
// newly recorded: the completion side effect belongs to whoever got true,
// every later caller gets false.
func (r *SQLiteRepository) MarkPeriodKey(ctx context.Context, key string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO budget_period_keys (key, recorded_at) VALUES (?, ?)`,
		key, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("mark period key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark period key rows: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) SeenPeriodKeys(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key FROM budget_period_keys`)
	if err != nil {
		return nil, fmt.Errorf("list period keys: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan period key: %w", err)
		}
		seen[key] = true
	}
	return seen, rows.Err()
}

// SaveRateTable replaces the cached exchange rate snapshot. The engine only
// ever uses the latest table; there is no historical rate reconstruction.
func (r *SQLiteRepository) SaveRateTable(ctx context.Context, table engine.RateTable) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rate table save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rate_table`); err != nil {
		return fmt.Errorf("clear rate table: %w", err)
	}
	asOf := table.AsOf.UTC().Format(time.RFC3339)
	for code, rate := range table.Rates {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rate_table (code, base, rate, as_of) VALUES (?, ?, ?, ?)`,
			code, table.Base, rate.String(), asOf); err != nil {
			return fmt.Errorf("insert rate %s: %w", code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rate table save: %w", err)
	}
	slog.InfoContext(ctx, "Rate table saved", "base", table.Base, "count", len(table.Rates))
	return nil
}

// LoadRateTable returns the cached rate snapshot. An empty table (no rates
// saved yet) is not an error: conversion simply degrades to a no-op.
func (r *SQLiteRepository) LoadRateTable(ctx context.Context) (engine.RateTable, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT code, base, rate, as_of FROM rate_table`)
	if err != nil {
		return engine.RateTable{}, fmt.Errorf("load rate table: %w", err)
	}
	defer rows.Close()

	table := engine.RateTable{Rates: make(map[string]decimal.Decimal)}
	for rows.Next() {
		var code, base, rate, asOf string
		if err := rows.Scan(&code, &base, &rate, &asOf); err != nil {
			return engine.RateTable{}, fmt.Errorf("scan rate: %w", err)
		}
		table.Base = base
		table.Rates[code] = scanAmount(rate)
		table.AsOf = scanTime(asOf)
	}
	return table, rows.Err()
}
