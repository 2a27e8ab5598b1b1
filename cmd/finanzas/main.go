package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"finanzas/internal/backup"
	"finanzas/internal/config"
	apphttp "finanzas/internal/http"
	"finanzas/internal/ledger"
	"finanzas/internal/notify"
	"finanzas/internal/scheduler"
	"finanzas/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open storage", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	ledgerSvc, err := ledger.NewService(ctx, store)
	if err != nil {
		logger.Error("Failed to initialize ledger", "error", err)
		store.Close()
		os.Exit(1)
	}
	defer ledgerSvc.Close()

	// Notifier: AMQP when configured, log-only otherwise.
	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.AMQPURL != "" {
		amqpNotifier, err := notify.NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP notifier, falling back to log", "error", err)
		} else {
			defer amqpNotifier.Close()
			notifier = amqpNotifier
			logger.Info("AMQP notifier initialized",
				"exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	backupMgr := backup.NewManager(store, ledgerSvc)

	// Periodic snapshot and reminder check run serialized on one
	// goroutine; a failed snapshot is logged inside the scheduler and
	// never takes the process down.
	sched := scheduler.New(
		scheduler.Task{
			Name:       "backup_snapshot",
			Interval:   cfg.BackupInterval,
			RunAtStart: true,
			Fn: func(ctx context.Context) error {
				return backupMgr.Snapshot(ctx, "")
			},
		},
		scheduler.Task{
			Name:       "reminder_check",
			Interval:   cfg.ReminderInterval,
			RunAtStart: true,
			Fn: func(ctx context.Context) error {
				due, err := ledgerSvc.CheckReminders(ctx, time.Now())
				if err != nil {
					return err
				}
				for _, r := range due {
					if err := notifier.NotifyReminderDue(ctx, r); err != nil {
						slog.ErrorContext(ctx, "Failed to deliver reminder notification",
							"reminder_id", r.ID, "error", err)
					}
				}
				return nil
			},
		},
	)

	srv := apphttp.NewServer(":"+cfg.Port, ledgerSvc, backupMgr)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting finanzas server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := sched.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
