package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andretaki/alliance-form-sub000/internal/core/storetest"
	"github.com/andretaki/alliance-form-sub000/internal/domain/model"
	apperrors "github.com/andretaki/alliance-form-sub000/internal/errors"
	"github.com/andretaki/alliance-form-sub000/internal/testutil"
)

func validPayload() model.EmailPayload {
	return model.EmailPayload{
		To:      "applicant@example.com",
		Subject: "Your application",
		HTML:    "<p>hello</p>",
		Type:    model.JobTypeSummary,
	}
}

func newTestQueue(t *testing.T, store *storetest.Fake, now func() time.Time) *NotificationQueue {
	t.Helper()
	return NewNotificationQueue(NotificationQueueOptions{
		Store: store,
		Config: QueueConfig{
			MaxAttempts: 3,
			RetryUnit:   time.Minute,
			RecordTTL:   24 * time.Hour,
			Retention:   24 * time.Hour,
		},
		Now: now,
	})
}

func TestNotificationQueue_Enqueue(t *testing.T) {
	t.Parallel()

	now := testutil.TestTime()
	store := storetest.NewFake()
	queue := newTestQueue(t, store, testutil.FixedTimeFunc(now))

	jobID, err := queue.Enqueue(context.Background(), validPayload())
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	members := store.Members(DefaultQueueKey)
	require.Len(t, members, 1)
	for member, score := range members {
		var job model.QueuedJob
		require.NoError(t, json.Unmarshal([]byte(member), &job))
		assert.Equal(t, jobID, job.ID)
		assert.Equal(t, model.JobStatusPending, job.Status)
		assert.Equal(t, 0, job.Attempts)
		assert.Equal(t, float64(now.UnixMilli()), score)
	}
}

func TestNotificationQueue_Enqueue_InvalidPayload(t *testing.T) {
	t.Parallel()

	queue := newTestQueue(t, storetest.NewFake(), nil)

	_, err := queue.Enqueue(context.Background(), model.EmailPayload{Subject: "no recipient"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestNotificationQueue_Enqueue_StoreDown(t *testing.T) {
	t.Parallel()

	store := storetest.NewFake()
	store.SetFail(true)
	queue := newTestQueue(t, store, nil)

	_, err := queue.Enqueue(context.Background(), validPayload())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeStoreUnavailable, apperrors.GetCode(err))
}

func TestNotificationQueue_DequeueBatch_OnlyDueJobs(t *testing.T) {
	t.Parallel()

	now := testutil.TestTime()
	store := storetest.NewFake()
	queue := newTestQueue(t, store, testutil.FixedTimeFunc(now))

	_, err := queue.Enqueue(context.Background(), validPayload())
	require.NoError(t, err)

	// Schedule a second job in the future.
	future := model.QueuedJob{
		ID:            "future-job",
		Payload:       validPayload(),
		Status:        model.JobStatusPending,
		CreatedAt:     now,
		ScheduleScore: float64(now.Add(time.Hour).UnixMilli()),
	}
	member, err := json.Marshal(future)
	require.NoError(t, err)
	require.NoError(t, store.AddScored(context.Background(), DefaultQueueKey, future.ScheduleScore, string(member)))

	jobs, err := queue.DequeueBatch(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.NotEqual(t, "future-job", jobs[0].ID)

	// The due job was claimed; the future job is still queued.
	assert.Len(t, store.Members(DefaultQueueKey), 1)
}

func TestNotificationQueue_DequeueBatch_DropsPoisonEntries(t *testing.T) {
	t.Parallel()

	now := testutil.TestTime()
	store := storetest.NewFake()
	queue := newTestQueue(t, store, testutil.FixedTimeFunc(now))

	require.NoError(t, store.AddScored(context.Background(), DefaultQueueKey, float64(now.UnixMilli()), "{not json"))
	_, err := queue.Enqueue(context.Background(), validPayload())
	require.NoError(t, err)

	jobs, err := queue.DequeueBatch(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	// Poison entry must be gone, not returned and not re-dequeued later.
	assert.Empty(t, store.Members(DefaultQueueKey))
}

func TestNotificationQueue_RequeueWithBackoff_LinearDelay(t *testing.T) {
	t.Parallel()

	now := testutil.TestTime()
	store := storetest.NewFake()
	queue := newTestQueue(t, store, testutil.FixedTimeFunc(now))

	job := model.QueuedJob{
		ID:        "job-1",
		Payload:   validPayload(),
		Attempts:  0,
		Status:    model.JobStatusPending,
		CreatedAt: now,
	}

	require.NoError(t, queue.RequeueWithBackoff(context.Background(), job, errors.New("smtp timeout")))

	members := store.Members(DefaultQueueKey)
	require.Len(t, members, 1)
	for member, score := range members {
		var requeued model.QueuedJob
		require.NoError(t, json.Unmarshal([]byte(member), &requeued))
		assert.Equal(t, 1, requeued.Attempts)
		require.NotNil(t, requeued.LastError)
		assert.Equal(t, "smtp timeout", *requeued.LastError)
		// First retry lands one retry unit out.
		assert.Equal(t, float64(now.Add(time.Minute).UnixMilli()), score)
	}
}

func TestNotificationQueue_RequeueWithBackoff_DeadLetterAfterBudget(t *testing.T) {
	t.Parallel()

	now := testutil.TestTime()
	store := storetest.NewFake()
	queue := newTestQueue(t, store, testutil.FixedTimeFunc(now))

	job := model.QueuedJob{
		ID:        "job-dead",
		Payload:   validPayload(),
		Attempts:  2, // third failure exhausts the budget
		Status:    model.JobStatusPending,
		CreatedAt: now,
	}

	require.NoError(t, queue.RequeueWithBackoff(context.Background(), job, errors.New("hard bounce")))

	assert.Empty(t, store.Members(DefaultQueueKey))

	raw, err := store.GetRecord(context.Background(), DefaultFailedPrefix+"job-dead")
	require.NoError(t, err)
	require.NotNil(t, raw)

	var failed model.QueuedJob
	require.NoError(t, json.Unmarshal(raw, &failed))
	assert.Equal(t, model.JobStatusFailed, failed.Status)
	assert.Equal(t, 3, failed.Attempts)
	require.NotNil(t, failed.LastError)
	assert.Equal(t, "hard bounce", *failed.LastError)
}

func TestNotificationQueue_MarkSent(t *testing.T) {
	t.Parallel()

	now := testutil.TestTime()
	store := storetest.NewFake()
	queue := newTestQueue(t, store, testutil.FixedTimeFunc(now))

	job := model.QueuedJob{
		ID:        "job-sent",
		Payload:   validPayload(),
		Status:    model.JobStatusPending,
		CreatedAt: now,
	}

	require.NoError(t, queue.MarkSent(context.Background(), job))

	raw, err := store.GetRecord(context.Background(), DefaultSentPrefix+"job-sent")
	require.NoError(t, err)
	require.NotNil(t, raw)

	var sent model.QueuedJob
	require.NoError(t, json.Unmarshal(raw, &sent))
	assert.Equal(t, model.JobStatusSent, sent.Status)
}

func TestNotificationQueue_Stats(t *testing.T) {
	t.Parallel()

	now := testutil.TestTime()
	store := storetest.NewFake()
	queue := newTestQueue(t, store, testutil.FixedTimeFunc(now))
	ctx := context.Background()

	for range 3 {
		_, err := queue.Enqueue(ctx, validPayload())
		require.NoError(t, err)
	}

	jobs, err := queue.DequeueBatch(ctx, 1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NoError(t, queue.MarkSent(ctx, jobs[0]))

	stats, err := queue.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.QueueLength)
	assert.Equal(t, int64(1), stats.RecentSent)
	assert.Equal(t, int64(0), stats.RecentFailed)
	assert.True(t, stats.StoreHealthy)
}

func TestNotificationQueue_Stats_StoreDown(t *testing.T) {
	t.Parallel()

	store := storetest.NewFake()
	queue := newTestQueue(t, store, nil)

	store.SetFail(true)
	_, err := queue.Stats(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeStoreUnavailable, apperrors.GetCode(err))
}

func TestNotificationQueue_Cleanup_RetentionBoundary(t *testing.T) {
	t.Parallel()

	now := testutil.TestTime()
	store := storetest.NewFake()
	queue := newTestQueue(t, store, testutil.FixedTimeFunc(now))
	ctx := context.Background()

	addAt := func(id string, at time.Time) {
		job := model.QueuedJob{
			ID:            id,
			Payload:       validPayload(),
			Status:        model.JobStatusPending,
			CreatedAt:     at,
			ScheduleScore: float64(at.UnixMilli()),
		}
		member, err := json.Marshal(job)
		require.NoError(t, err)
		require.NoError(t, store.AddScored(ctx, DefaultQueueKey, job.ScheduleScore, string(member)))
	}

	addAt("fresh", now.Add(-23*time.Hour))
	addAt("stale", now.Add(-25*time.Hour))

	removed, err := queue.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	members := store.Members(DefaultQueueKey)
	require.Len(t, members, 1)
	for member := range members {
		var job model.QueuedJob
		require.NoError(t, json.Unmarshal([]byte(member), &job))
		assert.Equal(t, "fresh", job.ID)
	}
}
