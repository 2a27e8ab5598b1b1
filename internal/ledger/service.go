// Package ledger owns the live application state and every operation
// that mutates it. Each mutation fully updates the in-memory state,
// persists it, and (where balances are affected) reconciles, before any
// other mutation can run.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finanzas/internal/core"
	"finanzas/internal/storage"
)

// Service is the single writer of the application state. The mutex
// serializes mutations so timer-driven tasks and request handlers can
// never interleave mid-update.
type Service struct {
	mu    sync.Mutex
	store *storage.Store
	state *core.State

	now   func() time.Time
	newID func() string
}

// NewService loads the persisted state (or the default one) and
// reconciles balances once so the session starts consistent.
func NewService(ctx context.Context, store *storage.Store) (*Service, error) {
	s := &Service{
		store: store,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}

	state, err := LoadState(ctx, store)
	if err != nil {
		return nil, err
	}
	s.state = state

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reconcileLocked(ctx); err != nil {
		return nil, fmt.Errorf("initial reconciliation: %w", err)
	}
	return s, nil
}

// LoadState reads the primary persisted state. A missing key yields the
// default state; corrupt JSON is recovered by falling back to the
// default state so the system stays usable after a bad read. Partial
// states are merged over the defaults.
func LoadState(ctx context.Context, store *storage.Store) (*core.State, error) {
	raw, err := store.Get(ctx, storage.StateKey)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	state := core.DefaultState()
	if raw == nil {
		return state, nil
	}
	if err := json.Unmarshal(raw, state); err != nil {
		slog.ErrorContext(ctx, "Persisted state is corrupt, starting from defaults",
			"key", storage.StateKey, "error", err)
		return core.DefaultState(), nil
	}
	state.Normalize()
	return state, nil
}

// State returns a deep copy of the current state for readers.
func (s *Service) State() core.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.state.Clone()
}

// AddTransaction validates the input, assigns a fresh id and creation
// timestamp, appends the transaction, creates a linked reminder when a
// due time is present, persists and reconciles.
func (s *Service) AddTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := core.Transaction{
		ID:          "tx_" + s.newID(),
		Type:        in.Type,
		Amount:      in.Amount,
		Description: in.Description,
		Category:    in.Category,
		AccountID:   in.AccountID,
		Date:        in.Date,
		CreatedAt:   s.now(),
		ReminderDue: in.ReminderDue,
	}
	s.state.Transactions = append(s.state.Transactions, tx)

	if in.ReminderDue != nil {
		s.state.Reminders = append(s.state.Reminders, core.Reminder{
			ID:            "r_" + s.newID(),
			TransactionID: tx.ID,
			Title:         in.ReminderTitle(),
			Due:           *in.ReminderDue,
		})
	}

	if err := s.reconcileLocked(ctx); err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction added",
		"id", tx.ID, "type", tx.Type, "amount", tx.Amount, "account_id", tx.AccountID)
	return tx, nil
}

// EditTransaction overwrites the mutable fields of an existing
// transaction in place, preserving its id and creation timestamp.
func (s *Service) EditTransaction(ctx context.Context, id string, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.state.FindTransaction(id)
	if tx == nil {
		return core.Transaction{}, fmt.Errorf("%w: transaction %s", core.ErrNotFound, id)
	}

	tx.Type = in.Type
	tx.Amount = in.Amount
	tx.Description = in.Description
	tx.Category = in.Category
	tx.AccountID = in.AccountID
	tx.Date = in.Date
	tx.ReminderDue = in.ReminderDue

	if err := s.reconcileLocked(ctx); err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction edited", "id", id, "amount", in.Amount)
	return *tx, nil
}

// DeleteTransaction removes the matching transaction. Deleting an absent
// id is a no-op, not an error. Linked reminders are not cascade-deleted.
func (s *Service) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.state.Transactions[:0]
	for _, tx := range s.state.Transactions {
		if tx.ID != id {
			kept = append(kept, tx)
		}
	}
	s.state.Transactions = kept

	if err := s.reconcileLocked(ctx); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	return nil
}

// AddAccount appends a new account with a zero balance.
func (s *Service) AddAccount(ctx context.Context, name string) (core.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Account{}, core.ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc := core.Account{
		ID:      "acc_" + s.newID(),
		Name:    name,
		Balance: decimal.Zero,
	}
	s.state.Accounts = append(s.state.Accounts, acc)

	if err := s.persistLocked(ctx); err != nil {
		return core.Account{}, err
	}

	slog.InfoContext(ctx, "Account added", "id", acc.ID, "name", acc.Name)
	return acc, nil
}

// RemoveAccount removes an account by id. Transactions referencing it
// are kept and become orphaned; reconciliation skips them afterwards.
func (s *Service) RemoveAccount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.state.Accounts[:0]
	for _, acc := range s.state.Accounts {
		if acc.ID != id {
			kept = append(kept, acc)
		}
	}
	s.state.Accounts = kept

	if err := s.reconcileLocked(ctx); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Account removed", "id", id)
	return nil
}

// AddCategory appends a category. Adding a name already in the set is a
// no-op, keeping categories unique.
func (s *Service) AddCategory(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.state.Categories {
		if c == name {
			return nil
		}
	}
	s.state.Categories = append(s.state.Categories, name)

	if err := s.persistLocked(ctx); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Category added", "name", name)
	return nil
}

// RemoveCategory removes the category at the given index. Transactions
// referencing the removed name keep it as an orphaned string.
func (s *Service) RemoveCategory(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.state.Categories) {
		return fmt.Errorf("%w: category index %d", core.ErrNotFound, index)
	}

	name := s.state.Categories[index]
	s.state.Categories = append(s.state.Categories[:index], s.state.Categories[index+1:]...)

	if err := s.persistLocked(ctx); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Category removed", "name", name)
	return nil
}

// RemoveReminder removes a reminder by id. Reminders do not affect
// balances, so no reconciliation follows.
func (s *Service) RemoveReminder(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.state.Reminders[:0]
	for _, r := range s.state.Reminders {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	s.state.Reminders = kept

	return s.persistLocked(ctx)
}

// SetMonthlyIncome sets the budgeted monthly income and mirrors it into
// the monthly limit.
func (s *Service) SetMonthlyIncome(ctx context.Context, value decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Budget.MonthlyIncome = value
	s.state.Budget.MonthlyLimit = value

	return s.persistLocked(ctx)
}

// ReplaceState swaps the entire live state for the given one, persists
// it and reconciles. Used by backup restore and import. The incoming
// state is normalized so missing containers never break the session.
func (s *Service) ReplaceState(ctx context.Context, state core.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := state.Clone()
	fresh.Normalize()
	s.state = fresh

	return s.reconcileLocked(ctx)
}

// ClearData erases both persistence keys and reinitializes the default
// application state.
func (s *Service) ClearData(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, storage.StateKey); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, storage.BackupsKey); err != nil {
		return err
	}

	s.state = core.DefaultState()
	if err := s.reconcileLocked(ctx); err != nil {
		return err
	}

	slog.InfoContext(ctx, "All data cleared, defaults restored")
	return nil
}

// CheckReminders flips Notified on every reminder whose due time has
// passed, persists once, and returns the newly due reminders so the
// caller can hand them to a notifier. Each reminder fires exactly once.
func (s *Service) CheckReminders(ctx context.Context, now time.Time) ([]core.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []core.Reminder
	for i := range s.state.Reminders {
		r := &s.state.Reminders[i]
		if !r.Notified && !r.Due.After(now) {
			r.Notified = true
			due = append(due, *r)
		}
	}
	if len(due) == 0 {
		return nil, nil
	}

	if err := s.persistLocked(ctx); err != nil {
		return nil, err
	}
	return due, nil
}

// Reconcile recomputes every account balance from the transaction set
// and persists the result.
func (s *Service) Reconcile(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconcileLocked(ctx)
}

func (s *Service) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(s.state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := s.store.Put(ctx, storage.StateKey, raw); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}

func (s *Service) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
