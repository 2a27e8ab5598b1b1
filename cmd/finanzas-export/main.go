// Command finanzas-export dumps data out of the local store without
// going through the server: the transaction ledger as CSV, or the backup
// history as JSON. Read-only.
package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"finanzas/internal/backup"
	"finanzas/internal/config"
	"finanzas/internal/export"
	"finanzas/internal/ledger"
	"finanzas/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	var (
		format = flag.String("format", "csv", "output format: csv (transactions) or backups (history JSON)")
		out    = flag.String("out", "-", "output file, - for stdout")
	)
	flag.Parse()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	store, err := storage.Open(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open storage", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	var w io.Writer = os.Stdout
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			logger.Error("Failed to create output file", "error", err, "path", *out)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	switch *format {
	case "csv":
		state, err := ledger.LoadState(ctx, store)
		if err != nil {
			logger.Error("Failed to load state", "error", err)
			os.Exit(1)
		}
		if err := export.WriteCSV(w, state.Transactions); err != nil {
			logger.Error("CSV export failed", "error", err)
			os.Exit(1)
		}
	case "backups":
		mgr := backup.NewManager(store, nil)
		data, err := mgr.ExportAll(ctx)
		if err != nil {
			logger.Error("Backup export failed", "error", err)
			os.Exit(1)
		}
		if _, err := w.Write(data); err != nil {
			logger.Error("Write failed", "error", err)
			os.Exit(1)
		}
	default:
		logger.Error("Unknown format", "format", *format)
		os.Exit(1)
	}
}
