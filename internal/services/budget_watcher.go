package services

import (
	"context"
	"fmt"
	"time"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/engine"
	"tally/internal/log"
)

// BudgetStore is what the budget watcher needs from storage.
type BudgetStore interface {
	LoadAll(ctx context.Context) (core.Snapshot, error)
	LoadRateTable(ctx context.Context) (engine.RateTable, error)
	MarkPeriodKey(ctx context.Context, key string) (bool, error)
	SeenPeriodKeys(ctx context.Context) (map[string]bool, error)
}

// BudgetWatcher evaluates budget goals on their last period day and emits a
// completion event for each period that ended under target. The persisted
// period key set guarantees at most one event per goal and period, across
// restarts and overlapping runs.
type BudgetWatcher struct {
	store        BudgetStore
	publisher    Publisher
	logger       *log.Logger
	baseCurrency string
}

func NewBudgetWatcher(store BudgetStore, publisher Publisher, logger *log.Logger, baseCurrency string) *BudgetWatcher {
	return &BudgetWatcher{
		store:        store,
		publisher:    publisher,
		logger:       logger.WithComponent(log.ComponentBudget),
		baseCurrency: baseCurrency,
	}
}

// Evaluate runs one completion pass over all goals at the given instant.
func (w *BudgetWatcher) Evaluate(ctx context.Context, now time.Time) error {
	snap, err := w.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	table, err := w.store.LoadRateTable(ctx)
	if err != nil {
		return fmt.Errorf("load rate table: %w", err)
	}
	seen, err := w.store.SeenPeriodKeys(ctx)
	if err != nil {
		return fmt.Errorf("load period keys: %w", err)
	}

	resolver := engine.NewResolver(snap.Categories)
	conv := engine.Converter(w.baseCurrency, table)

	for _, goal := range snap.Budgets {
		result := engine.CheckCompletion(goal, snap.Transactions, snap.Accounts, resolver, w.baseCurrency, conv, now, seen)
		if !result.Completed {
			continue
		}

		// INSERT OR IGNORE makes the mark idempotent; first marks it and
		// loses nothing if a concurrent run got there first.
		fresh, err := w.store.MarkPeriodKey(ctx, result.PeriodKey)
		if err != nil {
			w.logger.ErrorContext(ctx, "period key not recorded",
				log.FieldBudgetID, goal.ID, log.FieldPeriodKey, result.PeriodKey, log.FieldError, err)
			continue
		}
		if !fresh {
			continue
		}

		w.logger.InfoContext(ctx, "budget period completed",
			log.FieldBudgetID, goal.ID,
			log.FieldPeriodKey, result.PeriodKey,
			log.FieldAmount, result.Spent.String(),
			"under_target", result.UnderTarget)
		w.publishCompleted(ctx, goal, result)
	}
	return nil
}

func (w *BudgetWatcher) publishCompleted(ctx context.Context, goal core.BudgetGoal, result engine.Completion) {
	if w.publisher == nil {
		return
	}
	msg := &amqp.BudgetCompletedMessage{
		GoalID:      goal.ID,
		PeriodKey:   result.PeriodKey,
		Spent:       result.Spent.String(),
		Target:      goal.Target.String(),
		UnderTarget: result.UnderTarget,
		Timestamp:   time.Now().UTC(),
	}
	if err := w.publisher.PublishBudgetCompleted(ctx, msg); err != nil {
		w.logger.WarnContext(ctx, "budget event not published",
			log.FieldBudgetID, goal.ID, log.FieldPeriodKey, result.PeriodKey, log.FieldError, err)
	}
}
