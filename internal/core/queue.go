package core

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/andretaki/alliance-form-sub000/internal/domain/model"
	apperrors "github.com/andretaki/alliance-form-sub000/internal/errors"
)

// Default queue key layout. The live queue is a single sorted set; each
// terminal sent/failed record is its own key with a TTL.
const (
	DefaultQueueKey     = "email_queue"
	DefaultSentPrefix   = "email_sent:"
	DefaultFailedPrefix = "email_failed:"
)

// QueueConfig holds the retry and retention policy for the notification queue.
type QueueConfig struct {
	// QueueKey is the sorted-set key holding live jobs.
	QueueKey string
	// SentPrefix and FailedPrefix name the terminal record keys.
	SentPrefix   string
	FailedPrefix string
	// MaxAttempts is the retry budget per job.
	MaxAttempts int
	// RetryUnit is the linear backoff unit: delay = attempts * RetryUnit.
	RetryUnit time.Duration
	// RecordTTL is how long terminal sent/failed records are retained.
	RecordTTL time.Duration
	// Retention bounds how long a live entry may linger before Cleanup
	// removes it as a poison job.
	Retention time.Duration
	// CleanupScanLimit caps how many stale entries one Cleanup pass inspects.
	CleanupScanLimit int64
}

// DefaultQueueConfig returns a QueueConfig with the default policy.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		QueueKey:         DefaultQueueKey,
		SentPrefix:       DefaultSentPrefix,
		FailedPrefix:     DefaultFailedPrefix,
		MaxAttempts:      3,
		RetryUnit:        1 * time.Minute,
		RecordTTL:        24 * time.Hour,
		Retention:        24 * time.Hour,
		CleanupScanLimit: 1000,
	}
}

// Sanitize applies guardrails to queue configuration values.
func (c *QueueConfig) Sanitize() {
	def := DefaultQueueConfig()
	if c.QueueKey == "" {
		c.QueueKey = def.QueueKey
	}
	if c.SentPrefix == "" {
		c.SentPrefix = def.SentPrefix
	}
	if c.FailedPrefix == "" {
		c.FailedPrefix = def.FailedPrefix
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.RetryUnit <= 0 {
		c.RetryUnit = def.RetryUnit
	}
	if c.RecordTTL <= 0 {
		c.RecordTTL = def.RecordTTL
	}
	if c.Retention <= 0 {
		c.Retention = def.Retention
	}
	if c.CleanupScanLimit <= 0 {
		c.CleanupScanLimit = def.CleanupScanLimit
	}
}

// NotificationQueue is the durable, retrying outbound-notification queue.
// All state lives in the shared store; the queue itself holds no job state,
// so any number of independent invocations can operate on it concurrently.
type NotificationQueue struct {
	store  DurableStore
	health HealthChecker
	cfg    QueueConfig
	logger *slog.Logger
	now    func() time.Time
}

// NotificationQueueOptions bundles dependencies for NewNotificationQueue.
type NotificationQueueOptions struct {
	Store  DurableStore
	Health HealthChecker
	Config QueueConfig
	Logger *slog.Logger

	// Now is an optional clock override for tests.
	Now func() time.Time
}

// NewNotificationQueue creates a new NotificationQueue.
func NewNotificationQueue(opts NotificationQueueOptions) *NotificationQueue {
	cfg := opts.Config
	cfg.Sanitize()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &NotificationQueue{
		store:  opts.Store,
		health: opts.Health,
		cfg:    cfg,
		logger: logger,
		now:    now,
	}
}

// Config returns the effective queue configuration after sanitisation.
func (q *NotificationQueue) Config() QueueConfig {
	return q.cfg
}

// Enqueue constructs a pending job for the payload and adds it to the live
// queue scored at now. Store failures propagate: the queue never claims
// success it cannot back up, so the caller owns the fallback decision.
func (q *NotificationQueue) Enqueue(ctx context.Context, payload model.EmailPayload) (string, error) {
	if err := payload.Validate(); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid notification payload")
	}

	now := q.now().UTC()
	job := model.QueuedJob{
		ID:            uuid.NewString(),
		Payload:       payload,
		Attempts:      0,
		Status:        model.JobStatusPending,
		CreatedAt:     now,
		ScheduleScore: float64(now.UnixMilli()),
	}

	member, err := json.Marshal(job)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode queued job")
	}

	if err := q.store.AddScored(ctx, q.cfg.QueueKey, job.ScheduleScore, string(member)); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeStoreUnavailable, "enqueue notification")
	}

	q.logger.InfoContext(ctx, "notification enqueued",
		"job_id", job.ID,
		"job_type", payload.Type,
		"recipient", payload.To)

	return job.ID, nil
}

// DequeueBatch returns up to n jobs that are due now, oldest first. Each
// returned job has already been removed from the live queue; a job another
// concurrent drain removed first is skipped. This remove-before-process step
// is a deliberate at-least-once tradeoff: a crash between removal and
// delivery loses the job rather than duplicating it.
func (q *NotificationQueue) DequeueBatch(ctx context.Context, n int64) ([]model.QueuedJob, error) {
	now := q.now().UTC()
	members, err := q.store.RangeByScore(ctx, q.cfg.QueueKey, 0, float64(now.UnixMilli()), n)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStoreUnavailable, "dequeue batch")
	}

	jobs := make([]model.QueuedJob, 0, len(members))
	for _, member := range members {
		var job model.QueuedJob
		if unmarshalErr := json.Unmarshal([]byte(member), &job); unmarshalErr != nil {
			// Poison entry. Drop it so it cannot wedge the queue.
			q.logger.ErrorContext(ctx, "dropping undecodable queue entry", "error", unmarshalErr)
			if _, remErr := q.store.RemoveMember(ctx, q.cfg.QueueKey, member); remErr != nil {
				return jobs, apperrors.Wrap(remErr, apperrors.ErrCodeStoreUnavailable, "remove poison entry")
			}
			continue
		}

		removed, remErr := q.store.RemoveMember(ctx, q.cfg.QueueKey, member)
		if remErr != nil {
			return jobs, apperrors.Wrap(remErr, apperrors.ErrCodeStoreUnavailable, "claim queued job")
		}
		if !removed {
			// Another drain invocation claimed this job between the range
			// query and our removal.
			continue
		}

		jobs = append(jobs, job)
	}

	return jobs, nil
}

// RequeueWithBackoff records a failed attempt. While the retry budget lasts,
// the job is re-added with a linear backoff delay; once exhausted it is
// materialized as a failed record instead of returning to the live queue.
func (q *NotificationQueue) RequeueWithBackoff(ctx context.Context, job model.QueuedJob, cause error) error {
	now := q.now().UTC()
	job.Attempts++
	job.LastAttempt = &now
	if cause != nil {
		msg := cause.Error()
		job.LastError = &msg
	}

	if job.Attempts < q.cfg.MaxAttempts {
		job.ScheduleScore = float64(now.Add(time.Duration(job.Attempts) * q.cfg.RetryUnit).UnixMilli())
		member, err := json.Marshal(job)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode requeued job")
		}
		if err := q.store.AddScored(ctx, q.cfg.QueueKey, job.ScheduleScore, string(member)); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeStoreUnavailable, "requeue notification")
		}

		q.logger.WarnContext(ctx, "notification requeued",
			"job_id", job.ID,
			"attempts", job.Attempts,
			"retry_in", time.Duration(job.Attempts)*q.cfg.RetryUnit,
			"error", job.LastError)
		return nil
	}

	job.Status = model.JobStatusFailed
	record, err := json.Marshal(job)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode failed record")
	}
	if err := q.store.SetRecord(ctx, q.cfg.FailedPrefix+job.ID, record, q.cfg.RecordTTL); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStoreUnavailable, "write failed record")
	}

	q.logger.ErrorContext(ctx, "notification dead-lettered",
		"job_id", job.ID,
		"attempts", job.Attempts,
		"error", job.LastError)
	return nil
}

// MarkSent writes a sent record for observability. The job left the live
// queue at dequeue time, so nothing needs removing here.
func (q *NotificationQueue) MarkSent(ctx context.Context, job model.QueuedJob) error {
	now := q.now().UTC()
	job.Status = model.JobStatusSent
	job.LastAttempt = &now

	record, err := json.Marshal(job)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode sent record")
	}
	if err := q.store.SetRecord(ctx, q.cfg.SentPrefix+job.ID, record, q.cfg.RecordTTL); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeStoreUnavailable, "write sent record")
	}
	return nil
}

// Stats returns the operator-facing queue snapshot. The three counters are
// independent reads, so they run concurrently.
func (q *NotificationQueue) Stats(ctx context.Context) (model.QueueStats, error) {
	g, gctx := errgroup.WithContext(ctx)

	var (
		length     int64
		sentKeys   []string
		failedKeys []string
	)

	g.Go(func() error {
		n, err := q.store.Cardinality(gctx, q.cfg.QueueKey)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeStoreUnavailable, "queue length")
		}
		length = n
		return nil
	})

	g.Go(func() error {
		keys, err := q.store.ScanKeys(gctx, q.cfg.SentPrefix)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeStoreUnavailable, "scan sent records")
		}
		sentKeys = keys
		return nil
	})

	g.Go(func() error {
		keys, err := q.store.ScanKeys(gctx, q.cfg.FailedPrefix)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeStoreUnavailable, "scan failed records")
		}
		failedKeys = keys
		return nil
	})

	if err := g.Wait(); err != nil {
		return model.QueueStats{}, err
	}

	healthy := true
	if q.health != nil {
		healthy = q.health.IsAvailable(ctx)
	}

	return model.QueueStats{
		QueueLength:  length,
		RecentSent:   int64(len(sentKeys)),
		RecentFailed: int64(len(failedKeys)),
		StoreHealthy: healthy,
	}, nil
}

// Cleanup removes live entries whose schedule score fell behind the retention
// window. Range queries are bounded at now, so an entry written with a corrupt
// past-the-horizon score would otherwise sit in the set forever.
func (q *NotificationQueue) Cleanup(ctx context.Context) (int, error) {
	cutoff := q.now().UTC().Add(-q.cfg.Retention)
	members, err := q.store.RangeByScore(ctx, q.cfg.QueueKey, 0, float64(cutoff.UnixMilli()), q.cfg.CleanupScanLimit)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeStoreUnavailable, "scan stale entries")
	}

	removed := 0
	for _, member := range members {
		ok, remErr := q.store.RemoveMember(ctx, q.cfg.QueueKey, member)
		if remErr != nil {
			return removed, apperrors.Wrap(remErr, apperrors.ErrCodeStoreUnavailable, "remove stale entry")
		}
		if ok {
			removed++
		}
	}

	if removed > 0 {
		q.logger.InfoContext(ctx, "queue cleanup removed stale entries", "removed", removed)
	}
	return removed, nil
}
