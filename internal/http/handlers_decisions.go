package httpx

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/andretaki/alliance-form-sub000/internal/core"
	"github.com/andretaki/alliance-form-sub000/internal/domain/model"
)

// DecisionHandlers serves the reviewer-facing approval endpoint. Reviewers
// reach it from links in the internal summary email, which means double
// clicks and stale tabs are routine; the recorder absorbs those into the
// distinct "already processed" page.
type DecisionHandlers struct {
	Recorder *core.DecisionRecorder
	Queue    *core.NotificationQueue
	Drainer  *core.QueueDrainer
	Logger   *slog.Logger

	// NoticeFrom optionally overrides the sender on customer decision notices.
	NoticeFrom string
}

var decisionPage = template.Must(template.New("decision").Parse(`<!DOCTYPE html>
<html>
<head><title>Credit Decision</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 40rem; margin: 4rem auto; padding: 0 1rem; }
.card { border: 1px solid #ddd; border-radius: 8px; padding: 2rem; }
.fresh { border-left: 6px solid #2e7d32; }
.repeat { border-left: 6px solid #f9a825; }
.error { border-left: 6px solid #c62828; }
h1 { font-size: 1.3rem; }
dt { font-weight: 600; margin-top: .6rem; }
</style>
</head>
<body>
<div class="card {{.Class}}">
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{if .ShowRecord}}
<dl>
<dt>Application</dt><dd>{{.Record.EntityID}}</dd>
<dt>Decision</dt><dd>{{.Record.Decision}}</dd>
{{if .Record.ApprovedAmount}}<dt>Approved amount</dt><dd>{{.AmountDisplay}}</dd>{{end}}
{{if .Record.ApprovedTerms}}<dt>Terms</dt><dd>{{.Record.ApprovedTerms}}</dd>{{end}}
<dt>Recorded at</dt><dd>{{.Record.UpdatedAt.Format "Jan 2, 2006 15:04 MST"}}</dd>
</dl>
{{end}}
</div>
</body>
</html>`))

type decisionPageData struct {
	Class         string
	Title         string
	Message       string
	ShowRecord    bool
	Record        model.DecisionRecord
	AmountDisplay string
}

// RecordDecision handles GET /decisions. Query parameters: entityId,
// decision=APPROVE|DENY, amount (major currency units, optional), terms
// (optional), email (customer address for the decision notice, optional).
func (h *DecisionHandlers) RecordDecision(w http.ResponseWriter, r *http.Request) {
	entityID := strings.TrimSpace(r.URL.Query().Get("entityId"))
	if entityID == "" {
		http.Error(w, "entityId is required", http.StatusBadRequest)
		return
	}

	decision, err := parseDecisionAction(r.URL.Query().Get("decision"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	terms, err := parseDecisionTerms(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	outcome, err := h.Recorder.RecordDecision(r.Context(), entityID, decision, terms)
	if err != nil {
		h.Logger.ErrorContext(r.Context(), "record decision failed",
			"entity_id", entityID,
			"error", err)
		h.renderFailure(w)
		return
	}

	if !outcome.Applied {
		// Expected on double clicks and races; never an error.
		h.render(w, decisionPageData{
			Class:      "repeat",
			Title:      "Already processed",
			Message:    "This application already has a final decision on file. No changes were made.",
			ShowRecord: true,
			Record:     outcome.Record,
		})
		return
	}

	h.notifyCustomer(r, outcome.Record)

	h.render(w, decisionPageData{
		Class:      "fresh",
		Title:      "Decision recorded",
		Message:    "The credit decision has been committed and the customer notification queued.",
		ShowRecord: true,
		Record:     outcome.Record,
	})
}

// notifyCustomer enqueues the decision notice and flips the notified flag.
// Ordering matters: the decision is already durably committed at this point,
// so a notification is never sent for a decision that failed to persist.
func (h *DecisionHandlers) notifyCustomer(r *http.Request, record model.DecisionRecord) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" || h.Queue == nil {
		return
	}

	payload := buildDecisionNotice(record, email, h.NoticeFrom)
	jobID, err := h.Queue.Enqueue(r.Context(), payload)
	if err != nil {
		// Decision stands; notified stays false so the notice can be
		// re-queued by an operator.
		h.Logger.ErrorContext(r.Context(), "enqueue decision notice failed",
			"entity_id", record.EntityID,
			"error", err)
		return
	}

	if err := h.Recorder.MarkNotified(r.Context(), record.EntityID); err != nil {
		h.Logger.ErrorContext(r.Context(), "mark notified failed",
			"entity_id", record.EntityID,
			"job_id", jobID,
			"error", err)
	}

	if h.Drainer != nil {
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 30*time.Second)
		go func() {
			defer cancel()
			if _, drainErr := h.Drainer.Drain(drainCtx, 0); drainErr != nil {
				h.Logger.WarnContext(drainCtx, "post-decision drain failed", "error", drainErr)
			}
		}()
	}
}

func (h *DecisionHandlers) render(w http.ResponseWriter, data decisionPageData) {
	if data.Record.ApprovedAmount != nil {
		data.AmountDisplay = fmt.Sprintf("$%.2f", float64(*data.Record.ApprovedAmount)/100)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := decisionPage.Execute(w, data); err != nil {
		h.Logger.Error("render decision page failed", "error", err)
	}
}

// renderFailure shows a generic retry-later page. Store and backend errors
// never leak to the reviewer.
func (h *DecisionHandlers) renderFailure(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusServiceUnavailable)
	h.render(w, decisionPageData{
		Class:   "error",
		Title:   "Temporarily unavailable",
		Message: "The decision could not be recorded right now. Nothing was saved; please try the link again in a few minutes.",
	})
}

func parseDecisionAction(raw string) (model.Decision, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "APPROVE", "APPROVED":
		return model.DecisionApproved, nil
	case "DENY", "DENIED":
		return model.DecisionDenied, nil
	default:
		return "", fmt.Errorf("decision must be APPROVE or DENY")
	}
}

func parseDecisionTerms(r *http.Request) (core.DecisionTerms, error) {
	terms := core.DecisionTerms{
		ApprovedTerms: strings.TrimSpace(r.URL.Query().Get("terms")),
	}

	rawAmount := strings.TrimSpace(r.URL.Query().Get("amount"))
	if rawAmount == "" {
		return terms, nil
	}

	major, err := strconv.ParseFloat(rawAmount, 64)
	if err != nil || major < 0 {
		return core.DecisionTerms{}, fmt.Errorf("amount must be a non-negative number")
	}
	// Round rather than truncate: 19.99*100 is 1998.999... in float64.
	minor := int64(math.Round(major * 100))
	terms.ApprovedAmount = &minor
	return terms, nil
}

// buildDecisionNotice renders the customer-facing decision email.
func buildDecisionNotice(record model.DecisionRecord, email, from string) model.EmailPayload {
	var subject, text string
	if record.Decision == model.DecisionApproved {
		subject = "Your credit application has been approved"
		text = "Good news - your credit application has been approved."
		if record.ApprovedAmount != nil {
			text += fmt.Sprintf(" Approved credit line: $%.2f.", float64(*record.ApprovedAmount)/100)
		}
		if record.ApprovedTerms != "" {
			text += " Terms: " + record.ApprovedTerms + "."
		}
	} else {
		subject = "Update on your credit application"
		text = "After careful review, we are unable to approve your credit application at this time."
	}

	payload := model.EmailPayload{
		To:            email,
		Subject:       subject,
		Text:          text,
		HTML:          "<p>" + template.HTMLEscapeString(text) + "</p>",
		Type:          model.JobTypeDecisionNotice,
		CorrelationID: &record.EntityID,
	}
	if from != "" {
		f := from
		payload.From = &f
	}
	return payload
}
