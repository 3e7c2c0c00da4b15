package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/andretaki/alliance-form-sub000/internal/domain/model"
	"github.com/andretaki/alliance-form-sub000/internal/observability/metrics"
	"github.com/andretaki/alliance-form-sub000/internal/observability/statsd"
)

// DrainerConfig holds configuration for the queue drainer.
type DrainerConfig struct {
	// BatchSize is the default number of jobs pulled per drain pass.
	BatchSize int64
	// SendTimeout bounds each individual delivery attempt.
	SendTimeout time.Duration
}

// DefaultDrainerConfig returns a DrainerConfig with sensible defaults.
func DefaultDrainerConfig() DrainerConfig {
	return DrainerConfig{
		BatchSize:   10,
		SendTimeout: 10 * time.Second,
	}
}

// Sanitize applies guardrails to drainer configuration values.
func (c *DrainerConfig) Sanitize() {
	def := DefaultDrainerConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = def.SendTimeout
	}
}

// QueueDrainer pulls a bounded batch from the notification queue and
// dispatches each job to the delivery backend. It holds no in-process state
// about jobs, so scheduler ticks, manual triggers, and opportunistic
// post-enqueue triggers may all invoke Drain concurrently: correctness rests
// entirely on the store-atomic removal inside DequeueBatch.
type QueueDrainer struct {
	queue   *NotificationQueue
	backend DeliveryBackend
	cfg     DrainerConfig
	logger  *slog.Logger
	metrics statsd.Sink
}

// QueueDrainerOptions bundles dependencies for NewQueueDrainer.
type QueueDrainerOptions struct {
	Queue   *NotificationQueue
	Backend DeliveryBackend
	Config  DrainerConfig
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// NewQueueDrainer creates a new QueueDrainer.
func NewQueueDrainer(opts QueueDrainerOptions) *QueueDrainer {
	cfg := opts.Config
	cfg.Sanitize()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &QueueDrainer{
		queue:   opts.Queue,
		backend: opts.Backend,
		cfg:     cfg,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// Drain processes one batch of due jobs, oldest first. Delivery failures are
// absorbed by the retry policy and never propagate; store failures surface in
// the result's Errors along with the returned error.
func (d *QueueDrainer) Drain(ctx context.Context, batchSize int64) (model.DrainResult, error) {
	if batchSize <= 0 {
		batchSize = d.cfg.BatchSize
	}

	result := model.DrainResult{}
	jobs, err := d.queue.DequeueBatch(ctx, batchSize)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result, err
	}

	for _, job := range jobs {
		result.Processed++

		start := time.Now()
		sendErr := d.deliver(ctx, job)
		elapsed := time.Since(start)

		if sendErr == nil {
			result.Sent++
			metrics.EmitDelivery(d.metrics, metrics.DeliveryMetric{
				JobType:  string(job.Payload.Type),
				Result:   metrics.ResultSuccess,
				Attempt:  job.Attempts + 1,
				Duration: elapsed,
			})
			if markErr := d.queue.MarkSent(ctx, job); markErr != nil {
				// Delivery already happened; the sent record is best effort
				// observability, but the operator should still see the error.
				result.Errors = append(result.Errors, fmt.Sprintf("mark sent %s: %v", job.ID, markErr))
			}
			continue
		}

		result.Failed++
		metrics.EmitDelivery(d.metrics, metrics.DeliveryMetric{
			JobType:  string(job.Payload.Type),
			Result:   metrics.ResultError,
			Attempt:  job.Attempts + 1,
			Duration: elapsed,
			Err:      sendErr,
		})
		d.logger.WarnContext(ctx, "notification delivery failed",
			"job_id", job.ID,
			"job_type", job.Payload.Type,
			"attempt", job.Attempts+1,
			"error", sendErr)

		if requeueErr := d.queue.RequeueWithBackoff(ctx, job, sendErr); requeueErr != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("requeue %s: %v", job.ID, requeueErr))
		}
	}

	return result, nil
}

// deliver runs one bounded delivery attempt against the backend. A backend
// reporting Success=false without an error is still a delivery failure.
func (d *QueueDrainer) deliver(ctx context.Context, job model.QueuedJob) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	res, err := d.backend.Send(sendCtx, job.Payload)
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("backend rejected delivery: %s", res.Message)
	}
	return nil
}
