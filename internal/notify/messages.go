package notify

import (
	"encoding/json"
	"time"

	"finanzas/internal/core"
)

// ReminderDueMessage is the wire format of a due-reminder event.
type ReminderDueMessage struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transactionId"`
	Title         string    `json:"title"`
	Due           time.Time `json:"due"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewReminderDueMessage(r core.Reminder) *ReminderDueMessage {
	return &ReminderDueMessage{
		ID:            r.ID,
		TransactionID: r.TransactionID,
		Title:         r.Title,
		Due:           r.Due,
		Timestamp:     time.Now(),
	}
}

func (m *ReminderDueMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReminderDueMessageFromJSON(data []byte) (*ReminderDueMessage, error) {
	var msg ReminderDueMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
