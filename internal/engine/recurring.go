package engine

import (
	"time"

	"tally/internal/core"
)

// NextOccurrence computes the occurrence following d for a frequency.
//
// Weekly and biweekly advance by exact day counts regardless of month
// boundaries. Monthly advances by one calendar month with the day-of-month
// clamped to the shorter month's length (Jan 31 -> Feb 28/29).
func NextOccurrence(d core.Date, freq core.Frequency) core.Date {
	switch freq {
	case core.Weekly:
		return d.AddDays(7)
	case core.Biweekly:
		return d.AddDays(14)
	default:
		year, month, day := d.Date()
		month++
		if month > time.December {
			month = time.January
			year++
		}
		if last := lastDayOfMonth(year, month); day > last {
			day = last
		}
		return core.NewDate(year, int(month), day)
	}
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Advance returns the recurring record with its schedule moved one cycle
// forward.
func Advance(rec core.RecurringTransaction) core.RecurringTransaction {
	rec.NextOccurrence = NextOccurrence(rec.NextOccurrence, rec.Frequency)
	return rec
}

// Materialize instantiates the template as a ledger transaction dated at the
// current (pre-advance) next occurrence. The caller mints the id, persists
// the transaction and then advances the record.
func Materialize(rec core.RecurringTransaction) core.Transaction {
	return core.Transaction{
		Amount:             rec.Amount,
		Type:               rec.Type,
		Category:           rec.Category,
		Date:               rec.NextOccurrence,
		AccountID:          rec.AccountID,
		ToAccountID:        rec.ToAccountID,
		Currency:           rec.Currency,
		Note:               rec.Note,
		ExcludeFromReports: rec.ExcludeFromReports,
	}
}

// IsDue reports whether the record's next occurrence is on or before the
// given day. Inactive records are never due for automatic materialization,
// though they can still be advanced or posted manually.
func IsDue(rec core.RecurringTransaction, today core.Date) bool {
	return rec.Active && !rec.NextOccurrence.After(today.Time)
}

// HasMaterialized reports whether a transaction matching the record's next
// occurrence already exists (same date, amount, type, category and note).
//
// This is the deduplication guard for rules created with a start date in the
// past or present: instead of re-creating the entry the user already typed
// in by hand, the scheduler skips straight to the next computed occurrence.
func HasMaterialized(rec core.RecurringTransaction, transactions []core.Transaction) bool {
	for _, tx := range transactions {
		if tx.Type == rec.Type &&
			tx.Date.Equal(rec.NextOccurrence.Time) &&
			tx.Amount.Equal(rec.Amount) &&
			tx.Category == rec.Category &&
			tx.Note == rec.Note {
			return true
		}
	}
	return false
}
