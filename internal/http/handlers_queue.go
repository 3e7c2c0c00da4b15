package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/andretaki/alliance-form-sub000/internal/core"
	"github.com/andretaki/alliance-form-sub000/internal/domain/model"
	apperrors "github.com/andretaki/alliance-form-sub000/internal/errors"
)

// QueueHandlers provides HTTP handlers for queue operator endpoints.
type QueueHandlers struct {
	Queue   *core.NotificationQueue
	Drainer *core.QueueDrainer
	Health  core.HealthChecker
	Backend core.DeliveryBackend
	Logger  *slog.Logger
}

// ProcessQueue handles POST /queue/process: one drain pass.
func (h *QueueHandlers) ProcessQueue(w http.ResponseWriter, r *http.Request) {
	batchSize := parseIntQuery(r, "batch", 0)

	result, err := h.Drainer.Drain(r.Context(), int64(batchSize))
	if err != nil {
		// Partial results still matter to the operator.
		WriteJSON(w, http.StatusServiceUnavailable, result)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// QueueStats handles GET /queue/stats.
func (h *QueueHandlers) QueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Queue.Stats(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}

// cleanupResponse reports a cleanup pass with before/after queue stats.
type cleanupResponse struct {
	Removed int              `json:"removed"`
	Before  model.QueueStats `json:"before"`
	After   model.QueueStats `json:"after"`
}

// CleanupQueue handles GET|POST /queue/cleanup: remove stale live entries.
func (h *QueueHandlers) CleanupQueue(w http.ResponseWriter, r *http.Request) {
	before, err := h.Queue.Stats(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	removed, err := h.Queue.Cleanup(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	after, err := h.Queue.Stats(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, cleanupResponse{Removed: removed, Before: before, After: after})
}

// enqueueResponse reports how a notification was handled: queued durably, or
// sent directly because the store was unavailable.
type enqueueResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id,omitempty"`
}

// EnqueueNotification handles POST /notifications. This is the producer
// contract made concrete: when the store is healthy the payload is queued
// durably; when it is not, one synchronous direct delivery is attempted so
// the notification is never silently dropped.
func (h *QueueHandlers) EnqueueNotification(w http.ResponseWriter, r *http.Request) {
	var payload model.EmailPayload
	if !DecodeJSON(w, r, &payload) {
		return
	}
	if err := payload.Validate(); err != nil {
		WriteError(w, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid notification payload"))
		return
	}

	if h.Health == nil || h.Health.IsAvailable(r.Context()) {
		jobID, err := h.Queue.Enqueue(r.Context(), payload)
		if err == nil {
			h.triggerOpportunisticDrain(r.Context())
			WriteJSON(w, http.StatusAccepted, enqueueResponse{Status: "queued", JobID: jobID})
			return
		}
		if apperrors.IsValidation(err) {
			WriteError(w, err)
			return
		}
		h.Logger.WarnContext(r.Context(), "enqueue failed, attempting direct delivery", "error", err)
	}

	h.sendDirect(w, r, payload)
}

// sendDirect is the producer-side fallback path when the queue cannot accept
// the job.
func (h *QueueHandlers) sendDirect(w http.ResponseWriter, r *http.Request, payload model.EmailPayload) {
	if h.Backend == nil {
		WriteError(w, apperrors.StoreUnavailable("queue unavailable and no direct delivery backend configured"))
		return
	}

	res, err := h.Backend.Send(r.Context(), payload)
	if err != nil || !res.Success {
		if err == nil {
			err = apperrors.DeliveryFailure(res.Message)
		} else {
			err = apperrors.Wrap(err, apperrors.ErrCodeDeliveryFailure, "direct delivery failed")
		}
		h.Logger.ErrorContext(r.Context(), "direct delivery fallback failed", "error", err)
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, enqueueResponse{Status: "sent-direct"})
}

// triggerOpportunisticDrain kicks one background drain pass after a
// successful enqueue, detached from the request lifecycle.
func (h *QueueHandlers) triggerOpportunisticDrain(ctx context.Context) {
	if h.Drainer == nil {
		return
	}

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	go func() {
		defer cancel()
		if _, err := h.Drainer.Drain(drainCtx, 0); err != nil {
			h.Logger.WarnContext(drainCtx, "opportunistic drain failed", "error", err)
		}
	}()
}

func parseIntQuery(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
