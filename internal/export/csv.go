// Package export produces tabular dumps of the transaction ledger.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"finanzas/internal/core"
)

var csvHeader = []string{
	"id", "type", "amount", "description", "category",
	"accountId", "date", "createdAt", "reminderDue",
}

// WriteCSV writes all transactions as CSV in ledger order.
func WriteCSV(w io.Writer, transactions []core.Transaction) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, tx := range transactions {
		reminderDue := ""
		if tx.ReminderDue != nil {
			reminderDue = tx.ReminderDue.Format(time.RFC3339)
		}
		row := []string{
			tx.ID,
			string(tx.Type),
			tx.Amount.String(),
			tx.Description,
			tx.Category,
			tx.AccountID,
			tx.Date.String(),
			tx.CreatedAt.Format(time.RFC3339),
			reminderDue,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
