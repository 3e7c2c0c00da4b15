// Package model defines the core data types used throughout the notification
// reliability layer.
package model

import (
	"fmt"
	"strings"
	"time"
)

// JobType tags a queued notification with the producer domain that created it.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobType string

// JobStatus represents the delivery state of a queued notification.
type JobStatus string

const (
	// JobTypeSummary is the internal application-summary email sent to staff.
	JobTypeSummary JobType = "summary"
	// JobTypeAnalysisReport is the scoring/fraud analysis report email.
	JobTypeAnalysisReport JobType = "analysis-report"
	// JobTypeDecisionNotice is the customer-facing credit decision email.
	JobTypeDecisionNotice JobType = "decision-notice"

	// JobStatusPending indicates the job is live and waiting for delivery.
	JobStatusPending JobStatus = "pending"
	// JobStatusSent indicates the job was delivered successfully.
	JobStatusSent JobStatus = "sent"
	// JobStatusFailed indicates the job exhausted its retry budget.
	JobStatusFailed JobStatus = "failed"
)

// UnmarshalText implements encoding.TextUnmarshaler for JobType to allow env parsing.
func (t *JobType) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	jt := JobType(v)
	if jt.Valid() {
		*t = jt
		return nil
	}
	return fmt.Errorf("invalid JobType: %q", v)
}

// Valid returns true if the JobType is valid.
func (t JobType) Valid() bool {
	return t == JobTypeSummary || t == JobTypeAnalysisReport || t == JobTypeDecisionNotice
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusSent || s == JobStatusFailed
}

// EmailPayload is the delivery payload carried by a queued job.
type EmailPayload struct {
	To      string  `json:"to"`
	Subject string  `json:"subject"`
	HTML    string  `json:"html"`
	Text    string  `json:"text"`
	From    *string `json:"from,omitempty"`
	Type    JobType `json:"type"`
	// CorrelationID ties the notification back to a business record,
	// typically the credit application id.
	CorrelationID *string `json:"correlation_id,omitempty"`
}

// Validate checks the payload fields required for delivery.
func (p *EmailPayload) Validate() error {
	if strings.TrimSpace(p.To) == "" {
		return fmt.Errorf("recipient is required")
	}
	if strings.TrimSpace(p.Subject) == "" {
		return fmt.Errorf("subject is required")
	}
	if p.HTML == "" && p.Text == "" {
		return fmt.Errorf("at least one of html or text body is required")
	}
	if !p.Type.Valid() {
		return fmt.Errorf("invalid job type: %q", p.Type)
	}
	return nil
}

// QueuedJob is a notification waiting in (or retired from) the live queue.
// The sorted-set member stored in Redis is the JSON encoding of this struct,
// so two jobs with identical content still differ by ID.
type QueuedJob struct {
	ID           string       `json:"id"`
	Payload      EmailPayload `json:"payload"`
	Attempts     int          `json:"attempts"`
	Status       JobStatus    `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	LastAttempt  *time.Time   `json:"last_attempt_at,omitempty"`
	LastError    *string      `json:"last_error,omitempty"`
	// ScheduleScore is the sorted-set score: created-at epoch millis, plus
	// the retry delay when the job has been requeued.
	ScheduleScore float64 `json:"schedule_score"`
}

// QueueStats is the operator-facing snapshot returned by the queue.
type QueueStats struct {
	QueueLength  int64 `json:"queue_length"`
	RecentSent   int64 `json:"recent_sent"`
	RecentFailed int64 `json:"recent_failed"`
	StoreHealthy bool  `json:"store_healthy"`
}

// DrainResult summarises one drain pass over the live queue.
type DrainResult struct {
	Processed int      `json:"processed"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}
