package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

// Completion is the outcome of evaluating a budget goal's current period.
//
// Completed means the period ends today and spending stayed at or under
// target; the associated one-time side effect (points, rewards) belongs to
// the caller, keyed by PeriodKey so repeated evaluations within the same
// period fire it at most once.
type Completion struct {
	Completed   bool
	LastDay     bool
	Spent       decimal.Decimal
	UnderTarget bool
	PeriodKey   string
}

// PeriodBounds returns the current budget period for the goal, clamped to
// the goal's creation: a goal started mid-period only counts spending from
// its creation day forward.
//
// Weeks run Monday 00:00:00 through Sunday 23:59:59.999, months from the 1st
// through the last calendar day. If the clamp pushes the start past the end,
// the period is empty and spending is defined as zero.
func PeriodBounds(goal core.BudgetGoal, now time.Time) (start, end time.Time) {
	switch goal.Period {
	case core.PeriodWeek:
		day := core.DateOf(now)
		// time.Weekday counts Sunday as 0; budget weeks start on Monday.
		offset := (int(day.Weekday()) + 6) % 7
		start = day.AddDays(-offset).Time
		end = start.AddDate(0, 0, 7).Add(-time.Millisecond)
	default:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0).Add(-time.Millisecond)
	}
	created := core.DateOf(goal.CreatedAt).Time
	if created.After(start) {
		start = created
	}
	return start, end
}

// PeriodKey is a stable identifier for the goal's current period, e.g.
// "g1:week:2026-W35" or "g1:month:2026-08". Callers persist seen keys to
// deduplicate completion side effects.
func PeriodKey(goal core.BudgetGoal, now time.Time) string {
	switch goal.Period {
	case core.PeriodWeek:
		year, week := now.UTC().ISOWeek()
		return fmt.Sprintf("%s:week:%d-W%02d", goal.ID, year, week)
	default:
		return fmt.Sprintf("%s:month:%s", goal.ID, now.UTC().Format("2006-01"))
	}
}

// CurrentSpending sums the goal's matching expenses for the current period.
//
// Only expense transactions count, excluding ones flagged out of reports.
// A goal with a category reference matches through the resolver (one level
// of child inclusion); an empty reference is a whole-wallet budget matching
// every expense. Each amount's currency resolves through the standard
// override -> account -> base chain and passes through conv before summation
// so multi-currency spend aggregates in one currency; nil conv sums raw
// amounts. Adding a matching in-period expense can only grow the result.
func CurrentSpending(goal core.BudgetGoal, transactions []core.Transaction, accounts []core.Account, resolver *Resolver, baseCurrency string, conv ConvertFunc, now time.Time) decimal.Decimal {
	start, end := PeriodBounds(goal, now)
	spent := decimal.Zero
	if start.After(end) {
		return spent
	}
	byID := make(map[string]*core.Account, len(accounts))
	for i := range accounts {
		byID[accounts[i].ID] = &accounts[i]
	}
	for _, tx := range transactions {
		if tx.Type != core.Expense || tx.ExcludeFromReports {
			continue
		}
		if tx.Date.Before(start) || tx.Date.After(end) {
			continue
		}
		if goal.Category != "" && !resolver.Matches(tx.Category, goal.Category) {
			continue
		}
		amount := tx.Amount
		if conv != nil {
			amount = conv(amount, EffectiveCurrency(tx, byID[tx.AccountID], baseCurrency))
		}
		spent = spent.Add(amount)
	}
	return spent
}

// CheckCompletion evaluates whether the goal's current period is ending
// today and whether it ended under target. seen holds period keys whose
// completion side effect already fired; a key present in seen can never
// complete again. The caller owns persisting the returned key once it acts
// on the signal.
func CheckCompletion(goal core.BudgetGoal, transactions []core.Transaction, accounts []core.Account, resolver *Resolver, baseCurrency string, conv ConvertFunc, now time.Time, seen map[string]bool) Completion {
	c := Completion{
		LastDay:   isLastPeriodDay(goal.Period, now),
		Spent:     CurrentSpending(goal, transactions, accounts, resolver, baseCurrency, conv, now),
		PeriodKey: PeriodKey(goal, now),
	}
	c.UnderTarget = c.Spent.LessThanOrEqual(goal.Target)
	// Overspend at evaluation time is a hard failure for the period; there
	// is no late recovery even if a refund lands before midnight.
	c.Completed = c.LastDay && c.UnderTarget && !seen[c.PeriodKey]
	return c
}

// isLastPeriodDay reports whether now is the closing day of the period
// kind: Sunday for weeks, the final calendar day for months (tomorrow rolls
// into a new month).
func isLastPeriodDay(period core.BudgetPeriod, now time.Time) bool {
	switch period {
	case core.PeriodWeek:
		return now.UTC().Weekday() == time.Sunday
	default:
		return now.UTC().AddDate(0, 0, 1).Month() != now.UTC().Month()
	}
}
