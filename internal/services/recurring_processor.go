package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/engine"
	"tally/internal/log"
)

// RecurringStore is what the recurring processor needs from storage.
type RecurringStore interface {
	ListRecurring(ctx context.Context) ([]core.RecurringTransaction, error)
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, t core.Transaction) error
	UpdateRecurringNext(ctx context.Context, id string, next core.Date) error
}

// RecurringProcessor materializes due recurring rules into ledger
// transactions and advances their schedules.
type RecurringProcessor struct {
	store     RecurringStore
	publisher Publisher
	logger    *log.Logger
}

func NewRecurringProcessor(store RecurringStore, publisher Publisher, logger *log.Logger) *RecurringProcessor {
	return &RecurringProcessor{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentRecurring),
	}
}

// ProcessDue posts a transaction for every active rule whose next occurrence
// is on or before today, catching up missed occurrences one step at a time.
// A rule that already has an identical transaction on the books (same date,
// amount, type and category) is advanced without posting again, so a crash
// between posting and advancing cannot double-charge on the next run.
//
// Failures are per rule: one broken rule is logged and skipped, the rest
// still run.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) error {
	rules, err := p.store.ListRecurring(ctx)
	if err != nil {
		return fmt.Errorf("list recurring transactions: %w", err)
	}

	today := core.DateOf(now)
	posted := 0
	for _, rule := range rules {
		if !engine.IsDue(rule, today) {
			continue
		}
		n, err := p.processRule(ctx, rule, today)
		if err != nil {
			p.logger.ErrorContext(ctx, "recurring rule failed",
				log.FieldRecurringID, rule.ID, log.FieldError, err)
			continue
		}
		posted += n
	}

	if posted > 0 {
		p.logger.InfoContext(ctx, "recurring transactions posted", log.FieldCount, posted)
	}
	return nil
}

func (p *RecurringProcessor) processRule(ctx context.Context, rule core.RecurringTransaction, today core.Date) (int, error) {
	// The ledger is reloaded per rule so the dedup guard sees transactions
	// posted earlier in the same run.
	posted := 0
	for engine.IsDue(rule, today) {
		transactions, err := p.store.ListTransactions(ctx)
		if err != nil {
			return posted, fmt.Errorf("list transactions: %w", err)
		}

		if !engine.HasMaterialized(rule, transactions) {
			tx := engine.Materialize(rule)
			tx.ID = uuid.New().String()
			tx.CreatedAt = time.Now()
			if err := p.store.CreateTransaction(ctx, tx); err != nil {
				return posted, fmt.Errorf("post recurring transaction: %w", err)
			}
			posted++
			p.publishPosted(ctx, rule, tx)
		}

		rule = engine.Advance(rule)
		if err := p.store.UpdateRecurringNext(ctx, rule.ID, rule.NextOccurrence); err != nil {
			return posted, fmt.Errorf("advance schedule: %w", err)
		}
	}
	return posted, nil
}

// publishPosted notifies the event boundary. Publishing is best effort: the
// transaction is already on the books, so a broker outage only loses the
// notification, never the money.
func (p *RecurringProcessor) publishPosted(ctx context.Context, rule core.RecurringTransaction, tx core.Transaction) {
	if p.publisher == nil {
		return
	}
	msg := &amqp.RecurringPostedMessage{
		RecurringID:   rule.ID,
		TransactionID: tx.ID,
		Date:          tx.Date.String(),
		Amount:        tx.Amount.String(),
		Currency:      tx.Currency,
		Timestamp:     time.Now().UTC(),
	}
	if err := p.publisher.PublishRecurringPosted(ctx, msg); err != nil {
		p.logger.WarnContext(ctx, "recurring event not published",
			log.FieldRecurringID, rule.ID, log.FieldError, err)
	}
}
