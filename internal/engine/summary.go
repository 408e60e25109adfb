package engine

import (
	"github.com/shopspring/decimal"

	"tally/internal/core"
)

// Summary is the three-way partition of the ledger around a date range.
//
// PostPeriodNet is kept separate from PeriodNet so callers can show
// committed future effects (pre-dated entries) apart from the historical
// carry-forward.
type Summary struct {
	Income         decimal.Decimal
	Expense        decimal.Decimal
	OpeningBalance decimal.Decimal
	PeriodNet      decimal.Decimal
	PostPeriodNet  decimal.Decimal
	EndingBalance  decimal.Decimal
}

// Summarize partitions transactions around [start, end] and derives
// opening/closing balances for the selected scope.
//
// The opening balance is seeded from the selected account's initial balance,
// or from the sum of initial balances over visibleAccountIDs when no single
// account is selected (the caller decides which accounts are visible; this
// function does not re-filter archived or excluded ones). Transactions
// strictly before the period move the opening balance, in-period ones feed
// the income/expense totals and PeriodNet, post-period ones feed
// PostPeriodNet. EndingBalance = opening + PeriodNet + PostPeriodNet.
// conv may be nil to skip currency conversion.
func Summarize(
	transactions []core.Transaction,
	accounts []core.Account,
	visibleAccountIDs []string,
	selectedAccountID string,
	start, end core.Date,
	baseCurrency string,
	conv ConvertFunc,
) Summary {
	byID := make(map[string]*core.Account, len(accounts))
	for i := range accounts {
		byID[accounts[i].ID] = &accounts[i]
	}

	// inScope says whether a given account participates in this summary:
	// the single selected account, or any visible account, or everything
	// when neither scope is given.
	visible := make(map[string]bool, len(visibleAccountIDs))
	for _, id := range visibleAccountIDs {
		visible[id] = true
	}
	inScope := func(id string) bool {
		if selectedAccountID != "" {
			return id == selectedAccountID
		}
		if len(visible) > 0 {
			return visible[id]
		}
		return true
	}

	var s Summary
	if selectedAccountID != "" {
		if a, ok := byID[selectedAccountID]; ok {
			s.OpeningBalance = a.InitialBalance
		}
	} else {
		for _, id := range visibleAccountIDs {
			if a, ok := byID[id]; ok {
				s.OpeningBalance = s.OpeningBalance.Add(a.InitialBalance)
			}
		}
	}

	convert := func(tx core.Transaction, accountID string) decimal.Decimal {
		if conv == nil {
			return tx.Amount
		}
		return conv(tx.Amount, EffectiveCurrency(tx, byID[accountID], baseCurrency))
	}

	for _, tx := range transactions {
		delta := scopedDelta(tx, inScope, convert)
		switch {
		case tx.Date.Before(start.Time):
			s.OpeningBalance = s.OpeningBalance.Add(delta)
		case tx.Date.After(end.Time):
			s.PostPeriodNet = s.PostPeriodNet.Add(delta)
		default:
			s.PeriodNet = s.PeriodNet.Add(delta)
			if inScope(tx.AccountID) {
				switch tx.Type {
				case core.Income:
					s.Income = s.Income.Add(convert(tx, tx.AccountID))
				case core.Expense:
					s.Expense = s.Expense.Add(convert(tx, tx.AccountID))
				}
			}
		}
	}

	s.EndingBalance = s.OpeningBalance.Add(s.PeriodNet).Add(s.PostPeriodNet)
	return s
}

// scopedDelta is the balance effect of one transaction restricted to an
// account scope. Income adds, expense subtracts, and a transfer contributes
// one leg per in-scope side: with everything in scope the two legs cancel to
// zero system-wide, while a summary pinned to one side sees only its leg.
func scopedDelta(tx core.Transaction, inScope func(string) bool, convert func(core.Transaction, string) decimal.Decimal) decimal.Decimal {
	switch tx.Type {
	case core.Income:
		if inScope(tx.AccountID) {
			return convert(tx, tx.AccountID)
		}
	case core.Expense:
		if inScope(tx.AccountID) {
			return convert(tx, tx.AccountID).Neg()
		}
	case core.Transfer:
		delta := decimal.Zero
		if inScope(tx.AccountID) {
			delta = delta.Sub(convert(tx, tx.AccountID))
		}
		if inScope(tx.ToAccountID) {
			delta = delta.Add(convert(tx, tx.ToAccountID))
		}
		return delta
	}
	return decimal.Zero
}
