package model

import (
	"fmt"
	"strings"
	"time"
)

// Decision represents the state of a credit decision.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Terminal needs value receiver
type Decision string

const (
	// DecisionPending is the implicit initial state of every application.
	DecisionPending Decision = "PENDING"
	// DecisionApproved is a terminal approval.
	DecisionApproved Decision = "APPROVED"
	// DecisionDenied is a terminal denial.
	DecisionDenied Decision = "DENIED"
)

// UnmarshalText implements encoding.TextUnmarshaler for Decision.
func (d *Decision) UnmarshalText(text []byte) error {
	v := Decision(strings.ToUpper(strings.TrimSpace(string(text))))
	if v.Valid() {
		*d = v
		return nil
	}
	return fmt.Errorf("invalid Decision: %q", string(text))
}

// Valid returns true if the Decision is a known state.
func (d Decision) Valid() bool {
	return d == DecisionPending || d == DecisionApproved || d == DecisionDenied
}

// Terminal returns true once the decision can never change again.
func (d Decision) Terminal() bool {
	return d == DecisionApproved || d == DecisionDenied
}

// CanTransition reports whether the decision state machine permits from -> to.
// The only edges are PENDING -> APPROVED and PENDING -> DENIED.
func CanTransition(from, to Decision) bool {
	return from == DecisionPending && to.Terminal()
}

// DecisionRecord is the single per-application credit decision record.
// It is owned exclusively by the decision recorder; producers never write it.
type DecisionRecord struct {
	EntityID string   `json:"entity_id"`
	Decision Decision `json:"decision"`
	// ApprovedAmount is in minor currency units (cents); nil when denied or
	// when no credit line was specified.
	ApprovedAmount *int64  `json:"approved_amount,omitempty"`
	ApprovedTerms  string  `json:"approved_terms,omitempty"`
	// Notified flips to true only after a notification job for the terminal
	// decision has been successfully enqueued.
	Notified  bool      `json:"notified"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPendingDecision builds the implicit PENDING record used when no record
// exists yet for an application.
func NewPendingDecision(entityID string, now time.Time) DecisionRecord {
	return DecisionRecord{
		EntityID:  entityID,
		Decision:  DecisionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
