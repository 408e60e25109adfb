package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

// RateTable is a cached exchange rate snapshot anchored to one base
// currency: 1 unit of Base equals Rates[code] units of code. The engine
// consumes whatever table it is handed; fetching and freshness are the rate
// collaborator's problem.
type RateTable struct {
	Base  string
	Rates map[string]decimal.Decimal
	AsOf  time.Time
}

// Rate returns the table rate for a currency code. The base currency itself
// always resolves to 1, whether or not the table lists it.
func (t RateTable) Rate(code string) (decimal.Decimal, bool) {
	if code == t.Base {
		return decimal.NewFromInt(1), true
	}
	r, ok := t.Rates[code]
	if !ok || !r.IsPositive() {
		return decimal.Decimal{}, false
	}
	return r, true
}

// Convert converts an amount between currencies using the rate table.
//
// Identity conversions return the amount untouched so they can never
// introduce rounding drift. When the table is empty or lacks a required
// code the conversion degrades to a no-op: a missing rate must never turn
// into an error or a NaN, the amount is simply treated as already being in
// the target currency.
func Convert(amount decimal.Decimal, from, to string, table RateTable) decimal.Decimal {
	if from == to || from == "" || to == "" {
		return amount
	}
	fromRate, okFrom := table.Rate(from)
	toRate, okTo := table.Rate(to)
	if !okFrom || !okTo {
		return amount
	}
	if from == table.Base {
		return amount.Mul(toRate)
	}
	if to == table.Base {
		return amount.Div(fromRate)
	}
	return amount.Div(fromRate).Mul(toRate)
}

// EffectiveCurrency resolves the currency a transaction amount is
// denominated in: an explicit per-transaction override wins, then the owning
// account's currency, then the caller's base currency.
//
// Every aggregation site must go through this one chain; diverging copies of
// the fallback order is how cross-currency totals silently drift apart.
func EffectiveCurrency(tx core.Transaction, account *core.Account, base string) string {
	if tx.Currency != "" {
		return tx.Currency
	}
	if account != nil && account.Currency != "" {
		return account.Currency
	}
	return base
}

// ConvertFunc converts a raw transaction amount denominated in the given
// currency into the caller's presentation currency. A nil ConvertFunc means
// "no conversion available" and amounts pass through unchanged.
type ConvertFunc func(amount decimal.Decimal, currency string) decimal.Decimal

// Converter builds a ConvertFunc that converts into the target currency
// using the table.
func Converter(target string, table RateTable) ConvertFunc {
	return func(amount decimal.Decimal, currency string) decimal.Decimal {
		return Convert(amount, currency, target, table)
	}
}
