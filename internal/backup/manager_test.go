package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finanzas/internal/core"
	"finanzas/internal/ledger"
	"finanzas/internal/storage"
)

func newTestManager(t *testing.T) (*Manager, *ledger.Service) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "finanzas.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	svc, err := ledger.NewService(context.Background(), store)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	t.Cleanup(func() { svc.Close() })

	m := NewManager(store, svc)
	// Deterministic snapshot timestamps.
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var seq int
	m.now = func() time.Time {
		seq++
		return base.Add(time.Duration(seq) * time.Minute)
	}
	return m, svc
}

func addIncome(t *testing.T, svc *ledger.Service, accountID, amount string) core.Transaction {
	t.Helper()
	tx, err := svc.AddTransaction(context.Background(), core.TransactionInput{
		Type:      core.Income,
		Amount:    decimal.RequireFromString(amount),
		Category:  "Other",
		AccountID: accountID,
	})
	if err != nil {
		t.Fatalf("add income: %v", err)
	}
	return tx
}

func cashBalance(t *testing.T, svc *ledger.Service) string {
	t.Helper()
	state := svc.State()
	acc := state.FindAccount("cash")
	if acc == nil {
		t.Fatal("cash account missing")
	}
	return acc.Balance.String()
}

func TestSnapshotHistoryOrderAndCapacity(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	for i := 0; i < Capacity+1; i++ {
		if err := m.Snapshot(ctx, fmt.Sprintf("note-%d", i)); err != nil {
			t.Fatalf("snapshot %d: %v", i, err)
		}
	}

	history, err := m.History(ctx)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != Capacity {
		t.Fatalf("history length = %d, want %d", len(history), Capacity)
	}
	// Newest first; the oldest (note-0) was evicted by the 21st snapshot.
	if history[0].Note != fmt.Sprintf("note-%d", Capacity) {
		t.Fatalf("newest note = %q", history[0].Note)
	}
	if history[len(history)-1].Note != "note-1" {
		t.Fatalf("oldest surviving note = %q, want note-1", history[len(history)-1].Note)
	}
	for i := 1; i < len(history); i++ {
		if history[i].Timestamp.After(history[i-1].Timestamp) {
			t.Fatal("history is not ordered newest first")
		}
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	m, svc := newTestManager(t)
	ctx := context.Background()

	addIncome(t, svc, "cash", "100")
	if err := m.Snapshot(ctx, "before"); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	// Mutations after the snapshot must not rewrite it.
	addIncome(t, svc, "cash", "900")
	if got := cashBalance(t, svc); got != "1000" {
		t.Fatalf("live balance = %s, want 1000", got)
	}

	if err := m.Restore(ctx, 0); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := cashBalance(t, svc); got != "100" {
		t.Fatalf("restored balance = %s, want 100", got)
	}
}

func TestRestoreOutOfRange(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	if err := m.Restore(ctx, 0); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("restore on empty history should be not found, got %v", err)
	}
	if err := m.Snapshot(ctx, ""); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if err := m.Restore(ctx, 5); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("restore out of range should be not found, got %v", err)
	}
	if err := m.Restore(ctx, -1); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("negative index should be not found, got %v", err)
	}
}

func TestRestoreTriggersReconciliation(t *testing.T) {
	m, svc := newTestManager(t)
	ctx := context.Background()

	addIncome(t, svc, "cash", "250")
	if err := m.Snapshot(ctx, ""); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	// Tamper with the snapshot's stored balance: reconciliation on
	// restore must recompute it from the transactions.
	history, err := m.History(ctx)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	acc := history[0].Data.FindAccount("cash")
	acc.Balance = decimal.RequireFromString("99999")
	if err := m.saveHistory(ctx, history); err != nil {
		t.Fatalf("save tampered history: %v", err)
	}

	if err := m.Restore(ctx, 0); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := cashBalance(t, svc); got != "250" {
		t.Fatalf("restored balance = %s, want reconciled 250", got)
	}
}

func TestRestoreDoesNotTouchHistory(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := m.Snapshot(ctx, fmt.Sprintf("n%d", i)); err != nil {
			t.Fatalf("snapshot: %v", err)
		}
	}
	if err := m.Restore(ctx, 1); err != nil {
		t.Fatalf("restore: %v", err)
	}

	history, err := m.History(ctx)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("restore changed history length to %d", len(history))
	}
}

func TestImportExternalShapesConverge(t *testing.T) {
	// The same application state embedded in each of the three accepted
	// payload shapes must produce the same resulting ledger.
	state := core.DefaultState()
	state.Transactions = []core.Transaction{{
		ID:        "tx_import",
		Type:      core.Income,
		Amount:    decimal.RequireFromString("432.10"),
		Category:  "Other",
		AccountID: "cash",
		CreatedAt: time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC),
	}}

	rawState, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}
	snapshot, err := json.Marshal(Snapshot{Timestamp: time.Now(), Note: "one", Data: *state})
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	sequence, err := json.Marshal([]Snapshot{{Timestamp: time.Now(), Data: *state}})
	if err != nil {
		t.Fatalf("marshal sequence: %v", err)
	}

	payloads := map[string][]byte{
		"raw state":       rawState,
		"single snapshot": snapshot,
		"sequence":        sequence,
	}
	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			m, svc := newTestManager(t)
			if err := m.ImportExternal(context.Background(), payload); err != nil {
				t.Fatalf("import: %v", err)
			}
			got := svc.State()
			if len(got.Transactions) != 1 || got.Transactions[0].ID != "tx_import" {
				t.Fatal("imported transactions do not match the payload")
			}
			if cashBalance(t, svc) != "432.1" {
				t.Fatalf("imported balance = %s, want 432.1", cashBalance(t, svc))
			}
		})
	}
}

func TestImportExternalLegacyMillisTimestamp(t *testing.T) {
	m, svc := newTestManager(t)

	state := core.DefaultState()
	state.Transactions = []core.Transaction{{
		ID: "tx_legacy", Type: core.Income,
		Amount: decimal.RequireFromString("5"), Category: "Other", AccountID: "cash",
		CreatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}}
	rawState, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	payload := []byte(fmt.Sprintf(`{"ts": 1748736000000, "data": %s}`, rawState))
	if err := m.ImportExternal(context.Background(), payload); err != nil {
		t.Fatalf("import legacy snapshot: %v", err)
	}
	if got := svc.State(); len(got.Transactions) != 1 || got.Transactions[0].ID != "tx_legacy" {
		t.Fatal("legacy snapshot data not imported")
	}
}

func TestImportExternalRejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr error
	}{
		{"empty", "", core.ErrInvalidPayload},
		{"whitespace", "   \n", core.ErrInvalidPayload},
		{"null", "null", core.ErrInvalidPayload},
		{"malformed json", `{"accounts": [`, core.ErrParse},
		{"empty sequence", `[]`, core.ErrInvalidPayload},
		{"sequence without data", `[{"timestamp": "2026-01-01T00:00:00Z"}]`, core.ErrInvalidPayload},
		{"scalar", `42`, core.ErrInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, svc := newTestManager(t)
			addIncome(t, svc, "cash", "10")

			err := m.ImportExternal(context.Background(), []byte(tt.payload))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("import(%q) error = %v, want %v", tt.payload, err, tt.wantErr)
			}
			// Failed imports leave the current state untouched.
			if got := cashBalance(t, svc); got != "10" {
				t.Fatalf("failed import changed state, balance = %s", got)
			}
		})
	}
}

func TestExportAll(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	// Empty history exports as an empty sequence, not null.
	data, err := m.ExportAll(ctx)
	if err != nil {
		t.Fatalf("export empty: %v", err)
	}
	var empty []Snapshot
	if err := json.Unmarshal(data, &empty); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if empty == nil {
		t.Fatal("empty history should export as []")
	}

	if err := m.Snapshot(ctx, "first"); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	data, err = m.ExportAll(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	var history []Snapshot
	if err := json.Unmarshal(data, &history); err != nil {
		t.Fatalf("unmarshal export: %v", err)
	}
	if len(history) != 1 || history[0].Note != "first" {
		t.Fatal("export does not round-trip the history")
	}
}

func TestExportOne(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := m.ExportOne(ctx, 0); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("export on empty history should be not found, got %v", err)
	}

	if err := m.Snapshot(ctx, "only"); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	data, err := m.ExportOne(ctx, 0)
	if err != nil {
		t.Fatalf("export one: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.Note != "only" {
		t.Fatalf("exported note = %q", snap.Note)
	}
}
