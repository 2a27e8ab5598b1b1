// Package notify publishes due-reminder notifications. Delivery to the
// user (desktop notification, mail, bot) is an external concern; this
// package only hands the event to a transport.
package notify

import (
	"context"

	"finanzas/internal/core"
)

// Notifier receives reminders whose due time has passed.
type Notifier interface {
	NotifyReminderDue(ctx context.Context, r core.Reminder) error
}
