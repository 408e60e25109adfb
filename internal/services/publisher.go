package services

import (
	"context"

	"tally/internal/amqp"
)

// Publisher is the outbound event boundary. A nil Publisher disables
// publishing without changing any ledger behavior.
type Publisher interface {
	PublishBudgetCompleted(ctx context.Context, msg *amqp.BudgetCompletedMessage) error
	PublishRecurringPosted(ctx context.Context, msg *amqp.RecurringPostedMessage) error
}
