// Package core provides the domain model and money handling utilities.
//
// This file contains amount normalization and rounding. Amounts are exact
// decimals everywhere in memory; rounding to a currency's minor units happens
// once, at the point of persistence, never during conversion or display.
package core

import (
	"math"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// NormalizeAmount converts a raw float into a safe decimal amount.
//
// NaN and infinities are normalized to zero instead of propagating; a bad
// number entered at the edge must never poison a balance computation.
func NormalizeAmount(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// ParseAmount parses a decimal amount string, accepting both dot (12.34) and
// comma (12,34) separators. Unparseable input normalizes to zero.
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// RoundForStorage rounds an amount half-away-from-zero to the minor-unit
// count of the given currency (2 for most, 0 for JPY, 3 for BHD and friends).
// Unknown currency codes round to cents.
func RoundForStorage(amount decimal.Decimal, currency string) decimal.Decimal {
	places := int32(2)
	if cur := money.GetCurrency(strings.ToUpper(currency)); cur != nil {
		places = int32(cur.Fraction)
	}
	return amount.Round(places)
}
