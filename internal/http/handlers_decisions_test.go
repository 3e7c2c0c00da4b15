package httpx

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andretaki/alliance-form-sub000/internal/core"
	"github.com/andretaki/alliance-form-sub000/internal/core/storetest"
	"github.com/andretaki/alliance-form-sub000/internal/domain/model"
	"github.com/andretaki/alliance-form-sub000/internal/testutil"
)

type decisionFixture struct {
	store    *storetest.Fake
	queue    *core.NotificationQueue
	recorder *core.DecisionRecorder
	handlers *DecisionHandlers
}

func newDecisionFixture(t *testing.T) decisionFixture {
	t.Helper()

	store := storetest.NewFake()
	queue := core.NewNotificationQueue(core.NotificationQueueOptions{
		Store: store,
		Now:   testutil.FixedTimeFunc(testutil.TestTime()),
	})
	recorder := core.NewDecisionRecorder(core.DecisionRecorderOptions{
		Store: store,
		Now:   testutil.FixedTimeFunc(testutil.TestTime()),
	})

	return decisionFixture{
		store:    store,
		queue:    queue,
		recorder: recorder,
		handlers: &DecisionHandlers{
			Recorder:   recorder,
			Queue:      queue,
			Logger:     slog.Default(),
			NoticeFrom: "credit@example.com",
		},
	}
}

func TestDecisionHandlers_RecordDecision_FreshApproval(t *testing.T) {
	t.Parallel()

	fixture := newDecisionFixture(t)

	req := httptest.NewRequest(http.MethodGet,
		"/decisions?entityId=app-1&decision=APPROVE&amount=5000&terms=Net+30", nil)
	rec := httptest.NewRecorder()
	fixture.handlers.RecordDecision(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Decision recorded")
	assert.Contains(t, body, "app-1")
	assert.Contains(t, body, "APPROVED")
	assert.Contains(t, body, "$5000.00")
	assert.Contains(t, body, "Net 30")

	record, err := fixture.recorder.Get(req.Context(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionApproved, record.Decision)
}

func TestDecisionHandlers_RecordDecision_RepeatShowsAlreadyProcessed(t *testing.T) {
	t.Parallel()

	fixture := newDecisionFixture(t)

	first := httptest.NewRequest(http.MethodGet, "/decisions?entityId=app-2&decision=DENY", nil)
	rec := httptest.NewRecorder()
	fixture.handlers.RecordDecision(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	// A double click must render the distinct repeat page, keep the original
	// decision, and stay a 200.
	second := httptest.NewRequest(http.MethodGet, "/decisions?entityId=app-2&decision=APPROVE&amount=100", nil)
	rec = httptest.NewRecorder()
	fixture.handlers.RecordDecision(rec, second)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Already processed")
	assert.Contains(t, body, "DENIED")
	assert.NotContains(t, body, "Decision recorded")
}

func TestDecisionHandlers_RecordDecision_QueuesCustomerNotice(t *testing.T) {
	t.Parallel()

	fixture := newDecisionFixture(t)

	req := httptest.NewRequest(http.MethodGet,
		"/decisions?entityId=app-3&decision=APPROVE&email=applicant%40example.com", nil)
	rec := httptest.NewRecorder()
	fixture.handlers.RecordDecision(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	// Exactly one decision-notice job was queued and the record is flagged.
	assert.Len(t, fixture.store.Members(core.DefaultQueueKey), 1)

	record, err := fixture.recorder.Get(req.Context(), "app-3")
	require.NoError(t, err)
	assert.True(t, record.Notified)
}

func TestDecisionHandlers_RecordDecision_NoEmailSkipsNotice(t *testing.T) {
	t.Parallel()

	fixture := newDecisionFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/decisions?entityId=app-4&decision=APPROVE", nil)
	rec := httptest.NewRecorder()
	fixture.handlers.RecordDecision(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, fixture.store.Members(core.DefaultQueueKey))

	record, err := fixture.recorder.Get(req.Context(), "app-4")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionApproved, record.Decision)
	assert.False(t, record.Notified)
}

func TestDecisionHandlers_RecordDecision_BadRequests(t *testing.T) {
	t.Parallel()

	fixture := newDecisionFixture(t)

	tests := []struct {
		name   string
		target string
	}{
		{name: "missing entity id", target: "/decisions?decision=APPROVE"},
		{name: "unknown action", target: "/decisions?entityId=app-5&decision=MAYBE"},
		{name: "negative amount", target: "/decisions?entityId=app-5&decision=APPROVE&amount=-10"},
		{name: "non-numeric amount", target: "/decisions?entityId=app-5&decision=APPROVE&amount=lots"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			rec := httptest.NewRecorder()
			fixture.handlers.RecordDecision(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestParseDecisionTerms_CentPrecision(t *testing.T) {
	t.Parallel()

	// Float cent conversion must round, not truncate: 19.99*100 lands just
	// below 1999 in float64.
	tests := []struct {
		amount string
		want   int64
	}{
		{amount: "19.99", want: 1999},
		{amount: "0.01", want: 1},
		{amount: "29.35", want: 2935},
		{amount: "5000", want: 500000},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/decisions?amount="+tt.amount, nil)
			terms, err := parseDecisionTerms(req)
			require.NoError(t, err)
			require.NotNil(t, terms.ApprovedAmount)
			assert.Equal(t, tt.want, *terms.ApprovedAmount)
		})
	}
}

func TestDecisionHandlers_RecordDecision_StoreDownRendersRetryPage(t *testing.T) {
	t.Parallel()

	fixture := newDecisionFixture(t)
	fixture.store.SetFail(true)

	req := httptest.NewRequest(http.MethodGet, "/decisions?entityId=app-6&decision=APPROVE", nil)
	rec := httptest.NewRecorder()
	fixture.handlers.RecordDecision(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Temporarily unavailable")
	// Raw store errors never leak to the reviewer page.
	assert.NotContains(t, body, "store unavailable")
}

func TestBuildDecisionNotice(t *testing.T) {
	t.Parallel()

	amount := int64(123456)
	approved := model.DecisionRecord{
		EntityID:       "app-7",
		Decision:       model.DecisionApproved,
		ApprovedAmount: &amount,
		ApprovedTerms:  "Net 45",
	}

	payload := buildDecisionNotice(approved, "applicant@example.com", "credit@example.com")
	assert.Equal(t, "applicant@example.com", payload.To)
	assert.Equal(t, model.JobTypeDecisionNotice, payload.Type)
	assert.Contains(t, payload.Text, "$1234.56")
	assert.Contains(t, payload.Text, "Net 45")
	require.NotNil(t, payload.From)
	assert.Equal(t, "credit@example.com", *payload.From)
	require.NotNil(t, payload.CorrelationID)
	assert.Equal(t, "app-7", *payload.CorrelationID)

	denied := model.DecisionRecord{EntityID: "app-8", Decision: model.DecisionDenied}
	payload = buildDecisionNotice(denied, "applicant@example.com", "")
	assert.Contains(t, payload.Subject, "Update on your credit application")
	assert.Nil(t, payload.From)
}
