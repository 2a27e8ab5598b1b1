package notify

import (
	"context"
	"testing"
	"time"

	"finanzas/internal/core"
)

func TestLogNotifier(t *testing.T) {
	n := LogNotifier{}
	err := n.NotifyReminderDue(context.Background(), core.Reminder{
		ID: "r_1", TransactionID: "tx_1", Title: "Payment: Rent",
		Due: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("log notifier should never fail: %v", err)
	}
}

func TestReminderDueMessageRoundTrip(t *testing.T) {
	r := core.Reminder{
		ID:            "r_42",
		TransactionID: "tx_42",
		Title:         "Income: Salary",
		Due:           time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC),
	}

	body, err := NewReminderDueMessage(r).ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	msg, err := ReminderDueMessageFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.ID != r.ID || msg.TransactionID != r.TransactionID || !msg.Due.Equal(r.Due) {
		t.Fatalf("round trip mismatch: %+v", msg)
	}
	if msg.Timestamp.IsZero() {
		t.Fatal("message should carry a publish timestamp")
	}
}
