package core

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/andretaki/alliance-form-sub000/internal/domain/model"
	apperrors "github.com/andretaki/alliance-form-sub000/internal/errors"
)

// DefaultDecisionPrefix names the per-application decision record keys.
const DefaultDecisionPrefix = "credit_decision:"

// casRetryLimit bounds re-reads when a conditional write loses to a
// concurrent writer whose result we then need to observe.
const casRetryLimit = 3

// DecisionTerms carries the optional terms attached to an approval.
type DecisionTerms struct {
	// ApprovedAmount is in minor currency units.
	ApprovedAmount *int64
	ApprovedTerms  string
}

// DecisionOutcome is the result of an attempted decision transition.
// Applied=false with a populated Record is the expected "already processed"
// outcome, not an error; callers must render it distinctly.
type DecisionOutcome struct {
	Applied bool
	Record  model.DecisionRecord
}

// DecisionRecorder guards the one-way credit decision transition. All
// mutation goes through the store's compare-and-swap primitive, so two
// reviewers racing on the same application (or a double-clicked email link)
// commit exactly one terminal decision.
type DecisionRecorder struct {
	store  DurableStore
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// DecisionRecorderOptions bundles dependencies for NewDecisionRecorder.
type DecisionRecorderOptions struct {
	Store  DurableStore
	Prefix string
	Logger *slog.Logger

	// Now is an optional clock override for tests.
	Now func() time.Time
}

// NewDecisionRecorder creates a new DecisionRecorder.
func NewDecisionRecorder(opts DecisionRecorderOptions) *DecisionRecorder {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultDecisionPrefix
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &DecisionRecorder{
		store:  opts.Store,
		prefix: prefix,
		logger: logger,
		now:    now,
	}
}

// Get returns the decision record for an application, or the implicit
// PENDING record when none has been written yet.
func (r *DecisionRecorder) Get(ctx context.Context, entityID string) (model.DecisionRecord, error) {
	record, _, err := r.load(ctx, entityID)
	return record, err
}

// RecordDecision attempts the PENDING -> terminal transition for entityID.
// An already-terminal record returns Applied=false with the existing record.
// A lost race returns Applied=false with whatever the winner committed.
func (r *DecisionRecorder) RecordDecision(
	ctx context.Context,
	entityID string,
	decision model.Decision,
	terms DecisionTerms,
) (DecisionOutcome, error) {
	if strings.TrimSpace(entityID) == "" {
		return DecisionOutcome{}, apperrors.Validation("entity id is required")
	}
	if !decision.Terminal() {
		return DecisionOutcome{}, apperrors.Validationf("decision %q is not terminal", decision)
	}

	for attempt := 0; attempt < casRetryLimit; attempt++ {
		current, raw, err := r.load(ctx, entityID)
		if err != nil {
			return DecisionOutcome{}, err
		}

		if current.Decision.Terminal() {
			return DecisionOutcome{Applied: false, Record: current}, nil
		}

		next := current
		next.Decision = decision
		next.ApprovedTerms = terms.ApprovedTerms
		next.Notified = false
		next.UpdatedAt = r.now().UTC()
		if decision == model.DecisionApproved {
			next.ApprovedAmount = terms.ApprovedAmount
		} else {
			next.ApprovedAmount = nil
		}

		applied, err := r.compareAndSwap(ctx, entityID, raw, next)
		if err != nil {
			return DecisionOutcome{}, err
		}
		if applied {
			r.logger.InfoContext(ctx, "credit decision committed",
				"entity_id", entityID,
				"decision", decision)
			return DecisionOutcome{Applied: true, Record: next}, nil
		}

		// Lost the conditional write. Loop to observe the winner; if it
		// committed a terminal decision we report Applied=false, otherwise
		// (a concurrent notified-flip on a record we read stale) retry.
	}

	return DecisionOutcome{}, apperrors.Internal("decision write contention not resolved")
}

// MarkNotified flips the notified flag after a notification job for the
// terminal decision has been successfully enqueued. The flip itself is a CAS
// so it can never resurrect a stale record.
func (r *DecisionRecorder) MarkNotified(ctx context.Context, entityID string) error {
	for attempt := 0; attempt < casRetryLimit; attempt++ {
		current, raw, err := r.load(ctx, entityID)
		if err != nil {
			return err
		}
		if !current.Decision.Terminal() {
			return apperrors.Validationf("decision for %q is not terminal", entityID)
		}
		if current.Notified {
			return nil
		}

		next := current
		next.Notified = true
		next.UpdatedAt = r.now().UTC()

		applied, err := r.compareAndSwap(ctx, entityID, raw, next)
		if err != nil {
			return err
		}
		if applied {
			return nil
		}
	}

	return apperrors.Internal("notified flag write contention not resolved")
}

// load reads the stored record alongside its raw bytes, which become the
// expected value for the subsequent conditional write. Absence maps to the
// implicit PENDING record with nil raw bytes.
func (r *DecisionRecorder) load(ctx context.Context, entityID string) (model.DecisionRecord, []byte, error) {
	raw, err := r.store.GetRecord(ctx, r.prefix+entityID)
	if err != nil {
		return model.DecisionRecord{}, nil, apperrors.Wrap(err, apperrors.ErrCodeStoreUnavailable, "read decision record")
	}
	if raw == nil {
		return model.NewPendingDecision(entityID, r.now().UTC()), nil, nil
	}

	var record model.DecisionRecord
	if unmarshalErr := json.Unmarshal(raw, &record); unmarshalErr != nil {
		return model.DecisionRecord{}, nil, apperrors.Wrap(unmarshalErr, apperrors.ErrCodeInternal, "decode decision record")
	}
	return record, raw, nil
}

func (r *DecisionRecorder) compareAndSwap(
	ctx context.Context,
	entityID string,
	expected []byte,
	next model.DecisionRecord,
) (bool, error) {
	encoded, err := json.Marshal(next)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode decision record")
	}

	applied, err := r.store.SetIfEquals(ctx, r.prefix+entityID, expected, encoded)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeStoreUnavailable, "commit decision record")
	}
	return applied, nil
}
