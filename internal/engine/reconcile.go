// Package engine derives all user-visible state of the tracker from the
// append-only transaction ledger: account balances, period summaries, budget
// progress and recurring projections. Every function here is pure; storage
// and messaging live with the callers.
package engine

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

// Reconcile recomputes every account balance from the full transaction list.
//
// Balances start from each account's initial balance and accumulate one delta
// per transaction leg: income adds, expense subtracts, a transfer subtracts
// from the source and adds to the destination. A transaction referencing an
// unknown account gets a synthesized "legacy" placeholder (archived, excluded
// from totals) instead of being dropped or failing.
//
// The result is deterministic and idempotent: summation is commutative, and
// input accounts are never mutated. Known accounts keep their input order;
// synthesized ones are appended sorted by id.
func Reconcile(accounts []core.Account, transactions []core.Transaction, fallbackCurrency string) []core.Account {
	known := make(map[string]*core.Account, len(accounts))
	result := make([]core.Account, len(accounts))
	for i, a := range accounts {
		a.Balance = a.InitialBalance
		if a.Currency == "" {
			a.Currency = fallbackCurrency
		}
		result[i] = a
		known[a.ID] = &result[i]
	}

	legacy := make(map[string]*core.Account)
	lookup := func(id string) *core.Account {
		if a, ok := known[id]; ok {
			return a
		}
		if a, ok := legacy[id]; ok {
			return a
		}
		a := &core.Account{
			ID:               id,
			Name:             fmt.Sprintf("Legacy account %s", id),
			Type:             core.AccountCash,
			Currency:         fallbackCurrency,
			Archived:         true,
			ExcludeFromTotal: true,
		}
		legacy[id] = a
		return a
	}

	for _, tx := range transactions {
		src := lookup(tx.AccountID)
		switch tx.Type {
		case core.Income:
			src.Balance = src.Balance.Add(tx.Amount)
		case core.Expense:
			src.Balance = src.Balance.Sub(tx.Amount)
		case core.Transfer:
			// Both legs always apply, even when source == destination:
			// the net effect is zero but the entry still shows up in both
			// per-account histories.
			src.Balance = src.Balance.Sub(tx.Amount)
			dst := lookup(tx.ToAccountID)
			dst.Balance = dst.Balance.Add(tx.Amount)
		}
	}

	ids := make([]string, 0, len(legacy))
	for id := range legacy {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		result = append(result, *legacy[id])
	}
	return result
}

// TotalBalance sums the balances of non-excluded, non-archived accounts,
// converting each into the given currency through the rate table. Accounts
// whose currency has no rate contribute their raw balance.
func TotalBalance(accounts []core.Account, currency string, table RateTable) decimal.Decimal {
	total := decimal.Zero
	for _, a := range accounts {
		if a.ExcludeFromTotal || a.Archived {
			continue
		}
		total = total.Add(Convert(a.Balance, a.Currency, currency, table))
	}
	return total
}
