// Package http exposes the mutation API and the backup subsystem as a
// JSON API. Handlers stay thin: parse the request, call into the ledger
// or backup manager, map sentinel errors to status codes.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"finanzas/internal/backup"
	"finanzas/internal/core"
	"finanzas/internal/ledger"
)

type Server struct {
	http.Server
	ledger  *ledger.Service
	backups *backup.Manager
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, ledger *ledger.Service, backups *backup.Manager) *Server {
	s := &Server{
		ledger:  ledger,
		backups: backups,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/state", s.handleState)

	mux.HandleFunc("POST /api/transactions", s.handleAddTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleEditTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("POST /api/accounts", s.handleAddAccount)
	mux.HandleFunc("DELETE /api/accounts/{id}", s.handleRemoveAccount)

	mux.HandleFunc("POST /api/categories", s.handleAddCategory)
	mux.HandleFunc("DELETE /api/categories/{index}", s.handleRemoveCategory)

	mux.HandleFunc("DELETE /api/reminders/{id}", s.handleRemoveReminder)
	mux.HandleFunc("PUT /api/budget/income", s.handleSetIncome)

	mux.HandleFunc("GET /api/backups", s.handleExportAllBackups)
	mux.HandleFunc("POST /api/backups", s.handleSnapshot)
	mux.HandleFunc("GET /api/backups/{index}", s.handleExportOneBackup)
	mux.HandleFunc("POST /api/backups/{index}/restore", s.handleRestoreBackup)
	mux.HandleFunc("POST /api/import", s.handleImport)

	mux.HandleFunc("GET /api/export/csv", s.handleExportCSV)
	mux.HandleFunc("POST /api/clear", s.handleClearData)

	s.Server = http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps the domain's sentinel errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrValidation),
		errors.Is(err, core.ErrInvalidPayload),
		errors.Is(err, core.ErrParse):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
