// Package backup maintains a capped history of full-state snapshots and
// supports restoring a prior snapshot or an externally supplied one.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/ledger"
	"finanzas/internal/storage"
)

// Capacity bounds the backup history. Inserting into a full history
// evicts the oldest snapshot.
const Capacity = 20

// Snapshot is a deep, point-in-time copy of the full application state.
type Snapshot struct {
	Timestamp time.Time  `json:"timestamp"`
	Note      string     `json:"note,omitempty"`
	Data      core.State `json:"data"`
}

// Manager owns the backup history. Restore and import replace the live
// ledger state but never touch the history itself.
type Manager struct {
	mu     sync.Mutex
	store  *storage.Store
	ledger *ledger.Service

	now func() time.Time
}

func NewManager(store *storage.Store, ledger *ledger.Service) *Manager {
	return &Manager{
		store:  store,
		ledger: ledger,
		now:    time.Now,
	}
}

// Snapshot captures a deep copy of the current state, prepends it to the
// history (newest first), evicts beyond capacity and persists. A corrupt
// stored history is dropped rather than blocking new snapshots.
func (m *Manager) Snapshot(ctx context.Context, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	history, err := m.loadHistory(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Backup history unreadable, starting a fresh one", "error", err)
		history = nil
	}

	snap := Snapshot{
		Timestamp: m.now(),
		Note:      note,
		Data:      m.ledger.State(),
	}

	history = append([]Snapshot{snap}, history...)
	if len(history) > Capacity {
		history = history[:Capacity]
	}

	if err := m.saveHistory(ctx, history); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Backup snapshot stored",
		"timestamp", snap.Timestamp, "note", note, "history_len", len(history))
	return nil
}

// History returns the stored backup history, newest first.
func (m *Manager) History(ctx context.Context) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadHistory(ctx)
}

// Restore replaces the entire live state with the snapshot at the given
// index. The history itself is unchanged. Destructive and irreversible
// except via another backup.
func (m *Manager) Restore(ctx context.Context, index int) error {
	m.mu.Lock()
	history, err := m.loadHistory(ctx)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(history) {
		return fmt.Errorf("%w: backup index %d", core.ErrNotFound, index)
	}

	if err := m.ledger.ReplaceState(ctx, history[index].Data); err != nil {
		return fmt.Errorf("restore backup %d: %w", index, err)
	}

	slog.InfoContext(ctx, "Backup restored", "index", index, "timestamp", history[index].Timestamp)
	return nil
}

// ExportAll returns the entire backup history as pretty-printed JSON.
// Read-only, no side effects.
func (m *Manager) ExportAll(ctx context.Context) ([]byte, error) {
	history, err := m.History(ctx)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []Snapshot{}
	}
	return json.MarshalIndent(history, "", "  ")
}

// ExportOne returns a single snapshot as pretty-printed JSON.
func (m *Manager) ExportOne(ctx context.Context, index int) ([]byte, error) {
	history, err := m.History(ctx)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(history) {
		return nil, fmt.Errorf("%w: backup index %d", core.ErrNotFound, index)
	}
	return json.MarshalIndent(history[index], "", "  ")
}

func (m *Manager) loadHistory(ctx context.Context) ([]Snapshot, error) {
	raw, err := m.store.Get(ctx, storage.BackupsKey)
	if err != nil {
		return nil, fmt.Errorf("read backup history: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	var history []Snapshot
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf("%w: backup history: %v", core.ErrParse, err)
	}
	return history, nil
}

func (m *Manager) saveHistory(ctx context.Context, history []Snapshot) error {
	raw, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshal backup history: %w", err)
	}
	if err := m.store.Put(ctx, storage.BackupsKey, raw); err != nil {
		return fmt.Errorf("persist backup history: %w", err)
	}
	return nil
}

// envelope is the wire shape of a snapshot during import. Timestamps are
// accepted both as RFC3339 under "timestamp" and as legacy epoch millis
// under "ts".
type envelope struct {
	Timestamp *time.Time      `json:"timestamp"`
	TS        *int64          `json:"ts"`
	Note      string          `json:"note"`
	Data      json.RawMessage `json:"data"`
}

func (e envelope) hasTimestamp() bool { return e.Timestamp != nil || e.TS != nil }

// ImportExternal classifies an externally supplied JSON payload and
// replaces the live state with the embedded application state. Accepted
// shapes, in fixed priority order:
//
//  1. a sequence of backup entries — the first (newest) entry's data wins;
//  2. a single snapshot carrying both data and a timestamp;
//  3. a raw application state object.
//
// Anything else fails with ErrInvalidPayload; malformed JSON fails with
// ErrParse. On failure the current state is left untouched.
func (m *Manager) ImportExternal(ctx context.Context, payload []byte) error {
	state, err := classify(payload)
	if err != nil {
		return err
	}

	if err := m.ledger.ReplaceState(ctx, *state); err != nil {
		return fmt.Errorf("import: %w", err)
	}

	slog.InfoContext(ctx, "External payload imported",
		"transactions", len(state.Transactions), "accounts", len(state.Accounts))
	return nil
}

func classify(payload []byte) (*core.State, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, core.ErrInvalidPayload
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("%w: malformed import payload", core.ErrParse)
	}

	// Shape 1: sequence of backup entries.
	if trimmed[0] == '[' {
		var entries []envelope
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("%w: expected a sequence of backup entries", core.ErrInvalidPayload)
		}
		if len(entries) == 0 || len(entries[0].Data) == 0 {
			return nil, fmt.Errorf("%w: empty backup sequence", core.ErrInvalidPayload)
		}
		return decodeState(entries[0].Data)
	}

	if trimmed[0] != '{' {
		return nil, core.ErrInvalidPayload
	}

	// Shape 2: single snapshot with data and timestamp.
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err == nil && len(env.Data) > 0 && env.hasTimestamp() {
		return decodeState(env.Data)
	}

	// Shape 3: raw application state.
	return decodeState(trimmed)
}

func decodeState(raw json.RawMessage) (*core.State, error) {
	state := core.DefaultState()
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, fmt.Errorf("%w: not an application state: %v", core.ErrInvalidPayload, err)
	}
	state.Normalize()
	return state, nil
}
