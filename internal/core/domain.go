package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

type (
	TransactionType string

	// Date is a calendar date without a time component. It marshals as
	// "2006-01-02".
	Date struct {
		time.Time
	}

	// Account holds a derived balance: it is never authoritative on its
	// own and is always recomputable from the transactions referencing it.
	Account struct {
		ID      string          `json:"id"`
		Name    string          `json:"name"`
		Balance decimal.Decimal `json:"balance"`
	}

	Budget struct {
		MonthlyIncome decimal.Decimal `json:"monthlyIncome"`
		MonthlyLimit  decimal.Decimal `json:"monthlyLimit"`
	}

	// Transaction is immutable in identity (ID, CreatedAt); every other
	// field may be overwritten by an edit.
	Transaction struct {
		ID          string          `json:"id"`
		Type        TransactionType `json:"type"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description,omitempty"`
		Category    string          `json:"category"`
		AccountID   string          `json:"accountId"`
		Date        Date            `json:"date"`
		CreatedAt   time.Time       `json:"createdAt"`
		ReminderDue *time.Time      `json:"reminderDue,omitempty"`
	}

	// Reminder references its transaction weakly: deleting the
	// transaction leaves the reminder in place.
	Reminder struct {
		ID            string    `json:"id"`
		TransactionID string    `json:"transactionId"`
		Title         string    `json:"title"`
		Due           time.Time `json:"due"`
		Notified      bool      `json:"notified"`
	}

	// State is the aggregate root persisted under the primary storage key.
	State struct {
		Version      string        `json:"version"`
		Accounts     []Account     `json:"accounts"`
		Categories   []string      `json:"categories"`
		Budget       Budget        `json:"budget"`
		Transactions []Transaction `json:"transactions"`
		Reminders    []Reminder    `json:"reminders"`
	}

	// TransactionInput carries the mutable fields for an add or edit.
	TransactionInput struct {
		Type        TransactionType `json:"type"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		Category    string          `json:"category"`
		AccountID   string          `json:"accountId"`
		Date        Date            `json:"date"`
		ReminderDue *time.Time      `json:"reminderDue"`
	}
)

// Version identifies the state schema, kept alongside the data so older
// exports stay recognizable.
const Version = "2.0.0"

var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
	ErrParse          = errors.New("parse error")
	ErrInvalidPayload = errors.New("invalid payload")

	ErrInvalidAmount = fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	ErrInvalidType   = fmt.Errorf("%w: type must be income or expense", ErrValidation)
	ErrEmptyName     = fmt.Errorf("%w: empty name", ErrValidation)
)

const dateLayout = "2006-01-02"

func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: invalid date %q", ErrValidation, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Signed returns the amount's contribution to a balance: positive for
// income, negative for expense.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

func (in TransactionInput) Validate() error {
	if !in.Type.Valid() {
		return ErrInvalidType
	}
	if !in.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// ReminderTitle derives the reminder title for a transaction, falling
// back to the category when the description is empty.
func (in TransactionInput) ReminderTitle() string {
	subject := strings.TrimSpace(in.Description)
	if subject == "" {
		subject = in.Category
	}
	if in.Type == Expense {
		return "Payment: " + subject
	}
	return "Income: " + subject
}

// DefaultState returns a fresh default application state: three accounts,
// seven categories, zero budget, no transactions or reminders.
func DefaultState() *State {
	return &State{
		Version: Version,
		Accounts: []Account{
			{ID: "salary", Name: "Salary", Balance: decimal.Zero},
			{ID: "cash", Name: "Cash", Balance: decimal.Zero},
			{ID: "card", Name: "Card", Balance: decimal.Zero},
		},
		Categories: []string{
			"Food", "Transport", "Housing", "Leisure", "Health", "Education", "Other",
		},
		Budget:       Budget{MonthlyIncome: decimal.Zero, MonthlyLimit: decimal.Zero},
		Transactions: []Transaction{},
		Reminders:    []Reminder{},
	}
}

// Normalize substitutes empty containers for missing ones so a partially
// decoded or corrupted state stays usable.
func (s *State) Normalize() {
	if s.Version == "" {
		s.Version = Version
	}
	if s.Accounts == nil {
		s.Accounts = []Account{}
	}
	if s.Categories == nil {
		s.Categories = []string{}
	}
	if s.Transactions == nil {
		s.Transactions = []Transaction{}
	}
	if s.Reminders == nil {
		s.Reminders = []Reminder{}
	}
}

// Clone returns a deep copy of the state. Snapshots must never alias the
// live state, or later mutations would rewrite history.
func (s *State) Clone() *State {
	c := &State{
		Version:      s.Version,
		Budget:       s.Budget,
		Accounts:     make([]Account, len(s.Accounts)),
		Categories:   make([]string, len(s.Categories)),
		Transactions: make([]Transaction, len(s.Transactions)),
		Reminders:    make([]Reminder, len(s.Reminders)),
	}
	copy(c.Accounts, s.Accounts)
	copy(c.Categories, s.Categories)
	copy(c.Reminders, s.Reminders)
	for i, tx := range s.Transactions {
		if tx.ReminderDue != nil {
			due := *tx.ReminderDue
			tx.ReminderDue = &due
		}
		c.Transactions[i] = tx
	}
	return c
}

// FindAccount returns the account with the given id, or nil.
func (s *State) FindAccount(id string) *Account {
	for i := range s.Accounts {
		if s.Accounts[i].ID == id {
			return &s.Accounts[i]
		}
	}
	return nil
}

// FindTransaction returns the transaction with the given id, or nil.
func (s *State) FindTransaction(id string) *Transaction {
	for i := range s.Transactions {
		if s.Transactions[i].ID == id {
			return &s.Transactions[i]
		}
	}
	return nil
}
