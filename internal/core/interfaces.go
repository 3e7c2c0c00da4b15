// Package core provides the business logic for the outbound-notification queue
// and the idempotent credit-decision recorder.
package core

import (
	"context"
	"time"

	"github.com/andretaki/alliance-form-sub000/internal/domain/model"
)

// DurableStore defines the atomic primitives the reliability layer needs from
// the coordination store. The core defines the interface and the data layer
// provides the Redis implementation; every call carries its own timeout inside
// the implementation so callers never block indefinitely.
type DurableStore interface {
	// AddScored adds a member to the sorted set at key with the given score.
	// Re-adding an existing member updates its score.
	AddScored(ctx context.Context, key string, score float64, member string) error

	// RangeByScore returns up to limit members of the sorted set at key with
	// scores in [min, max], in ascending score order.
	RangeByScore(ctx context.Context, key string, min, max float64, limit int64) ([]string, error)

	// RemoveMember removes a member from the sorted set at key.
	// Returns true if the member existed and was removed. This is the single
	// atomic step that makes concurrent dequeues safe: exactly one caller
	// observes true for any given member.
	RemoveMember(ctx context.Context, key, member string) (bool, error)

	// Cardinality returns the number of members in the sorted set at key.
	Cardinality(ctx context.Context, key string) (int64, error)

	// Ping checks store liveness.
	Ping(ctx context.Context) error

	// ScanKeys returns all keys matching the given prefix.
	ScanKeys(ctx context.Context, prefix string) ([]string, error)

	// Expire sets a TTL on key. Returns true if the key exists.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// SetRecord writes a single-key record with a TTL. TTL zero means no expiry.
	SetRecord(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// GetRecord reads a single-key record. Returns nil when the key is absent.
	GetRecord(ctx context.Context, key string) ([]byte, error)

	// SetIfEquals atomically sets key to next only if its current value equals
	// expected. A nil expected means "set only if the key is absent". Returns
	// true when the conditional write was applied.
	SetIfEquals(ctx context.Context, key string, expected, next []byte) (bool, error)
}

// SendResult reports the outcome of a delivery attempt.
type SendResult struct {
	Success bool
	// Message carries backend-specific detail such as a provider message id.
	Message string
}

// DeliveryBackend is the single side-effecting collaborator the queue talks
// to. Failures and timeouts are distinguishable through the returned error but
// are treated identically by the retry policy.
type DeliveryBackend interface {
	Send(ctx context.Context, payload model.EmailPayload) (SendResult, error)
}

// HealthChecker reports whether the coordination store is believed reachable.
type HealthChecker interface {
	IsAvailable(ctx context.Context) bool
}
