// Package scheduler runs periodic tasks on a single goroutine so that
// timer-driven mutations are serialized with each other, mirroring the
// single-threaded event loop the state model assumes.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Task is a named periodic job.
type Task struct {
	Name       string
	Interval   time.Duration
	RunAtStart bool
	Fn         func(ctx context.Context) error
}

type Scheduler struct {
	tasks []Task
}

func New(tasks ...Task) *Scheduler {
	return &Scheduler{tasks: tasks}
}

// Run executes the tasks until the context is cancelled. All task
// functions run on this goroutine, one at a time; a failing task is
// logged and rescheduled, never fatal.
func (s *Scheduler) Run(ctx context.Context) error {
	ticks := make(chan int)

	for i, task := range s.tasks {
		ticker := time.NewTicker(task.Interval)
		defer ticker.Stop()

		go func(i int, c <-chan time.Time) {
			for {
				select {
				case <-c:
					select {
					case ticks <- i:
					case <-ctx.Done():
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}(i, ticker.C)
	}

	for _, task := range s.tasks {
		if task.RunAtStart {
			s.runTask(ctx, task)
		}
	}

	for {
		select {
		case i := <-ticks:
			s.runTask(ctx, s.tasks[i])
		case <-ctx.Done():
			slog.Info("Scheduler stopped")
			return ctx.Err()
		}
	}
}

func (s *Scheduler) runTask(ctx context.Context, task Task) {
	start := time.Now()
	if err := task.Fn(ctx); err != nil {
		slog.ErrorContext(ctx, "Scheduled task failed",
			"task", task.Name, "error", err, "duration", time.Since(start))
		return
	}
	slog.DebugContext(ctx, "Scheduled task completed",
		"task", task.Name, "duration", time.Since(start))
}
