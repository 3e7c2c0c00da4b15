// Package drainer provides the adapter that runs periodic queue drains and
// scheduled cleanup.
package drainer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/andretaki/alliance-form-sub000/internal/core"
	"github.com/andretaki/alliance-form-sub000/internal/observability/metrics"
	"github.com/andretaki/alliance-form-sub000/internal/observability/statsd"
)

// Runner drives the queue drainer from a tick loop and runs queue cleanup on
// a cron schedule. Multiple runners (or manual HTTP triggers) may drain
// concurrently; coordination happens in the store, not here.
type Runner struct {
	drainer         *core.QueueDrainer
	queue           *core.NotificationQueue
	interval        time.Duration
	cleanupSchedule cron.Schedule
	logger          *slog.Logger
	metrics         statsd.Sink
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Drainer *core.QueueDrainer
	Queue   *core.NotificationQueue

	// Interval between drain passes. Defaults to 30 seconds.
	Interval time.Duration

	// CleanupSpec is a standard 5-field cron expression for the stale-entry
	// sweep. Defaults to 03:00 daily.
	CleanupSpec string

	Logger  *slog.Logger
	Metrics statsd.Sink
}

// NewRunner creates a new drain runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Drainer == nil {
		return nil, errors.New("drainer is required")
	}
	if opts.Queue == nil {
		return nil, errors.New("queue is required")
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	spec := opts.CleanupSpec
	if spec == "" {
		spec = "0 3 * * *"
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, errors.Join(errors.New("parse cleanup schedule"), err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		drainer:         opts.Drainer,
		queue:           opts.Queue,
		interval:        interval,
		cleanupSchedule: schedule,
		logger:          logger,
		metrics:         opts.Metrics,
	}, nil
}

// Run starts the drain loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting drain runner", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	nextCleanup := r.cleanupSchedule.Next(time.Now())

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "drain runner stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case now := <-ticker.C:
			r.tick(ctx)

			if now.After(nextCleanup) {
				r.runCleanup(ctx)
				nextCleanup = r.cleanupSchedule.Next(now)
			}
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	result, err := r.drainer.Drain(ctx, 0)
	elapsed := time.Since(start)

	metrics.EmitDrain(r.metrics, metrics.DrainMetric{
		Processed: result.Processed,
		Sent:      result.Sent,
		Failed:    result.Failed,
		Duration:  elapsed,
		Err:       err,
	})

	if err != nil {
		// Keep running; the store may come back before the next tick.
		r.logger.ErrorContext(ctx, "drain pass failed", "error", err)
		return
	}
	if result.Processed > 0 {
		r.logger.InfoContext(ctx, "drain pass complete",
			"processed", result.Processed,
			"sent", result.Sent,
			"failed", result.Failed,
			"duration", elapsed)
	}
}

func (r *Runner) runCleanup(ctx context.Context) {
	removed, err := r.queue.Cleanup(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "scheduled cleanup failed", "error", err)
		return
	}
	if r.metrics != nil && removed > 0 {
		r.metrics.Count("notify.cleanup_removed", int64(removed), nil)
	}
}
