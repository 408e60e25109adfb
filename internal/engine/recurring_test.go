package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tally/internal/core"
)

func TestNextOccurrenceWeekly(t *testing.T) {
	// Exactly 7 days, month boundary or not.
	cases := []struct {
		in, want core.Date
	}{
		{core.NewDate(2026, 8, 30), core.NewDate(2026, 9, 6)},
		{core.NewDate(2026, 12, 28), core.NewDate(2027, 1, 4)},
		{core.NewDate(2024, 2, 26), core.NewDate(2024, 3, 4)},
	}
	for _, tc := range cases {
		got := NextOccurrence(tc.in, core.Weekly)
		assert.True(t, got.Equal(tc.want.Time), "%s + 7d = %s, want %s", tc.in, got, tc.want)
	}
}

func TestNextOccurrenceBiweekly(t *testing.T) {
	got := NextOccurrence(core.NewDate(2026, 1, 25), core.Biweekly)
	assert.True(t, got.Equal(core.NewDate(2026, 2, 8).Time))
}

func TestNextOccurrenceMonthlyClamps(t *testing.T) {
	cases := []struct {
		in, want core.Date
	}{
		{core.NewDate(2026, 1, 15), core.NewDate(2026, 2, 15)},
		{core.NewDate(2026, 1, 31), core.NewDate(2026, 2, 28)}, // clamp to short month
		{core.NewDate(2024, 1, 31), core.NewDate(2024, 2, 29)}, // leap year keeps the 29th
		{core.NewDate(2026, 3, 31), core.NewDate(2026, 4, 30)},
		{core.NewDate(2026, 12, 10), core.NewDate(2027, 1, 10)}, // year rollover
	}
	for _, tc := range cases {
		got := NextOccurrence(tc.in, core.Monthly)
		assert.True(t, got.Equal(tc.want.Time), "%s + 1 month = %s, want %s", tc.in, got, tc.want)
	}
}

func TestMaterializeDatesAtCurrentOccurrence(t *testing.T) {
	rec := core.RecurringTransaction{
		ID:             "r1",
		Amount:         dec("12.99"),
		Type:           core.Expense,
		Category:       "c1",
		AccountID:      "a",
		Note:           "streaming",
		Frequency:      core.Weekly,
		NextOccurrence: core.NewDate(2026, 8, 30),
		Active:         true,
	}

	tx := Materialize(rec)
	assert.True(t, tx.Date.Equal(core.NewDate(2026, 8, 30).Time), "dated at the pre-advance occurrence")
	assert.True(t, tx.Amount.Equal(rec.Amount))
	assert.Equal(t, rec.Category, tx.Category)
	assert.Equal(t, rec.AccountID, tx.AccountID)
	assert.Empty(t, tx.ID, "ids are minted by the caller")

	advanced := Advance(rec)
	assert.True(t, advanced.NextOccurrence.Equal(core.NewDate(2026, 9, 6).Time), "advanced by exactly 7 days")
}

func TestIsDue(t *testing.T) {
	today := core.NewDate(2026, 8, 30)
	rec := core.RecurringTransaction{NextOccurrence: today, Active: true}
	assert.True(t, IsDue(rec, today))

	rec.NextOccurrence = today.AddDays(-3)
	assert.True(t, IsDue(rec, today), "overdue occurrences are due")

	rec.NextOccurrence = today.AddDays(1)
	assert.False(t, IsDue(rec, today))

	rec.NextOccurrence = today
	rec.Active = false
	assert.False(t, IsDue(rec, today), "inactive rules never auto-materialize")
}

func TestHasMaterialized(t *testing.T) {
	rec := core.RecurringTransaction{
		Amount:         dec("12.99"),
		Type:           core.Expense,
		Category:       "c1",
		Note:           "streaming",
		NextOccurrence: core.NewDate(2026, 8, 30),
	}
	match := core.Transaction{
		Amount:   dec("12.99"),
		Type:     core.Expense,
		Category: "c1",
		Note:     "streaming",
		Date:     core.NewDate(2026, 8, 30),
	}

	assert.True(t, HasMaterialized(rec, []core.Transaction{match}))

	differentAmount := match
	differentAmount.Amount = dec("13")
	differentDate := match
	differentDate.Date = core.NewDate(2026, 8, 29)
	differentNote := match
	differentNote.Note = "Streaming"
	assert.False(t, HasMaterialized(rec, []core.Transaction{differentAmount, differentDate, differentNote}))
	assert.False(t, HasMaterialized(rec, nil))
}
