package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"dot separator", "12.34", "12.34", false},
		{"comma separator", "12,34", "12.34", false},
		{"integer", "1000", "1000", false},
		{"high precision kept", "0.001", "0.001", false},
		{"empty", "", "", true},
		{"whitespace only", "   ", "", true},
		{"zero", "0", "", true},
		{"negative", "-5", "", true},
		{"explicit plus", "+5", "", true},
		{"not a number", "abc", "", true},
		{"two separators", "1.2.3", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAmount(%q) expected error, got %s", tt.input, got)
				}
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseAmount(%q) error should wrap ErrValidation, got %v", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) unexpected error: %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Fatalf("ParseAmount(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestTransactionSigned(t *testing.T) {
	amount := decimal.RequireFromString("300")

	income := Transaction{Type: Income, Amount: amount}
	if !income.Signed().Equal(amount) {
		t.Fatalf("income signed = %s, want %s", income.Signed(), amount)
	}

	expense := Transaction{Type: Expense, Amount: amount}
	if !expense.Signed().Equal(amount.Neg()) {
		t.Fatalf("expense signed = %s, want %s", expense.Signed(), amount.Neg())
	}
}

func TestTransactionInputValidate(t *testing.T) {
	valid := TransactionInput{Type: Income, Amount: decimal.RequireFromString("10")}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}

	t.Run("non-positive amount", func(t *testing.T) {
		in := TransactionInput{Type: Expense, Amount: decimal.Zero}
		if err := in.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		in := TransactionInput{Type: "transfer", Amount: decimal.RequireFromString("10")}
		if err := in.Validate(); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestReminderTitle(t *testing.T) {
	tests := []struct {
		name string
		in   TransactionInput
		want string
	}{
		{"expense with description", TransactionInput{Type: Expense, Description: "Rent", Category: "Housing"}, "Payment: Rent"},
		{"expense falls back to category", TransactionInput{Type: Expense, Category: "Housing"}, "Payment: Housing"},
		{"income", TransactionInput{Type: Income, Description: "Salary"}, "Income: Salary"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.ReminderTitle(); got != tt.want {
				t.Fatalf("ReminderTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultState(t *testing.T) {
	s := DefaultState()
	if len(s.Accounts) != 3 {
		t.Fatalf("default accounts = %d, want 3", len(s.Accounts))
	}
	if len(s.Categories) != 7 {
		t.Fatalf("default categories = %d, want 7", len(s.Categories))
	}
	if len(s.Transactions) != 0 || len(s.Reminders) != 0 {
		t.Fatal("default state should have no transactions or reminders")
	}
	for _, acc := range s.Accounts {
		if !acc.Balance.IsZero() {
			t.Fatalf("account %s should start at zero balance", acc.ID)
		}
	}
	if !s.Budget.MonthlyIncome.IsZero() || !s.Budget.MonthlyLimit.IsZero() {
		t.Fatal("default budget should be zero")
	}
}

func TestStateClone(t *testing.T) {
	due := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	original := DefaultState()
	original.Transactions = []Transaction{{
		ID:          "tx_1",
		Type:        Income,
		Amount:      decimal.RequireFromString("100"),
		AccountID:   "cash",
		CreatedAt:   time.Now(),
		ReminderDue: &due,
	}}

	clone := original.Clone()

	// Mutating the clone must not leak into the original.
	clone.Accounts[0].Name = "changed"
	clone.Categories[0] = "changed"
	clone.Transactions[0].Amount = decimal.RequireFromString("999")
	*clone.Transactions[0].ReminderDue = due.Add(time.Hour)

	if original.Accounts[0].Name == "changed" {
		t.Fatal("clone shares account backing array with original")
	}
	if original.Categories[0] == "changed" {
		t.Fatal("clone shares category backing array with original")
	}
	if original.Transactions[0].Amount.String() != "100" {
		t.Fatal("clone shares transaction backing array with original")
	}
	if !original.Transactions[0].ReminderDue.Equal(due) {
		t.Fatal("clone shares ReminderDue pointer with original")
	}
}

func TestStateNormalize(t *testing.T) {
	var s State
	s.Normalize()
	if s.Accounts == nil || s.Categories == nil || s.Transactions == nil || s.Reminders == nil {
		t.Fatal("Normalize should substitute empty containers")
	}
	if s.Version == "" {
		t.Fatal("Normalize should set a version")
	}
}

func TestDateJSON(t *testing.T) {
	d := NewDate(2026, 8, 29)
	raw, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal date: %v", err)
	}
	if string(raw) != `"2026-08-29"` {
		t.Fatalf("marshaled date = %s", raw)
	}

	var back Date
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal date: %v", err)
	}
	if !back.Equal(d.Time) {
		t.Fatalf("round trip changed date: %v != %v", back, d)
	}

	var empty Date
	if err := json.Unmarshal([]byte(`""`), &empty); err != nil {
		t.Fatalf("unmarshal empty date: %v", err)
	}
	if !empty.IsZero() {
		t.Fatal("empty string should decode to zero date")
	}
}
