package amqp

import (
	"testing"
	"time"
)

func TestBudgetCompletedMessageRoundTrip(t *testing.T) {
	msg := &BudgetCompletedMessage{
		GoalID:      "g1",
		PeriodKey:   "g1:month:2026-08",
		Spent:       "150.25",
		Target:      "200",
		UnderTarget: true,
		Timestamp:   time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC),
	}
	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := BudgetCompletedMessageFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.PeriodKey != msg.PeriodKey || got.Spent != msg.Spent || !got.UnderTarget {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestRecurringPostedMessageFromJSONRejectsGarbage(t *testing.T) {
	if _, err := RecurringPostedMessageFromJSON([]byte("{not json")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
