package amqp

import (
	"encoding/json"
	"time"
)

// Routing keys for ledger events on the direct exchange.
const (
	RouteBudgetCompleted = "budget.completed"
	RouteRecurringPosted = "recurring.posted"
)

// BudgetCompletedMessage signals that a budget goal's period ended under
// target. The reward/points consumer decides what to award; the engine only
// forwards the fact. PeriodKey deduplicates redeliveries on the consumer
// side too.
type BudgetCompletedMessage struct {
	GoalID      string    `json:"goal_id"`
	PeriodKey   string    `json:"period_key"`
	Spent       string    `json:"spent"`
	Target      string    `json:"target"`
	UnderTarget bool      `json:"under_target"`
	Timestamp   time.Time `json:"timestamp"`
}

// RecurringPostedMessage signals that a recurring rule materialized a ledger
// transaction.
type RecurringPostedMessage struct {
	RecurringID   string    `json:"recurring_id"`
	TransactionID string    `json:"transaction_id"`
	Date          string    `json:"date"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	Timestamp     time.Time `json:"timestamp"`
}

func (m *BudgetCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetCompletedMessageFromJSON(data []byte) (*BudgetCompletedMessage, error) {
	var msg BudgetCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (m *RecurringPostedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecurringPostedMessageFromJSON(data []byte) (*RecurringPostedMessage, error) {
	var msg RecurringPostedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
