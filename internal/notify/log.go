package notify

import (
	"context"
	"log/slog"

	"finanzas/internal/core"
)

// LogNotifier writes due reminders to the log. It is the fallback when
// no message broker is configured.
type LogNotifier struct{}

func (LogNotifier) NotifyReminderDue(ctx context.Context, r core.Reminder) error {
	slog.InfoContext(ctx, "Reminder due",
		"reminder_id", r.ID,
		"transaction_id", r.TransactionID,
		"title", r.Title,
		"due", r.Due)
	return nil
}
