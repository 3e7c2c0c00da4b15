package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andretaki/alliance-form-sub000/internal/domain/model"
	"github.com/andretaki/alliance-form-sub000/internal/testutil"
)

func testPayload() model.EmailPayload {
	return model.EmailPayload{
		To:      "applicant@example.com",
		Subject: "Your application",
		HTML:    "<p>hello</p>",
		Text:    "hello",
		Type:    model.JobTypeSummary,
	}
}

func TestNewClient_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{DefaultFrom: "noreply@example.com"})
	require.Error(t, err)

	_, err = NewClient(Config{APIKey: "re_test"})
	require.Error(t, err)

	client, err := NewClient(Config{APIKey: "re_test", DefaultFrom: "noreply@example.com"})
	require.NoError(t, err)
	require.NotNil(t, client)
}

func TestClient_Send(t *testing.T) {
	t.Parallel()

	var got sendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "email-123"})
	}))
	defer server.Close()

	client, err := NewClient(Config{
		APIKey:      "re_test",
		APIURL:      server.URL,
		DefaultFrom: "noreply@example.com",
	})
	require.NoError(t, err)

	res, err := client.Send(context.Background(), testPayload())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "email-123", res.Message)
	assert.Equal(t, "noreply@example.com", got.From)
	assert.Equal(t, "applicant@example.com", got.To)
}

func TestClient_Send_PayloadFromOverridesDefault(t *testing.T) {
	t.Parallel()

	var got sendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewClient(Config{APIKey: "re_test", APIURL: server.URL, DefaultFrom: "noreply@example.com"})
	require.NoError(t, err)

	payload := testPayload()
	payload.From = testutil.StringPtr("credit@example.com")

	res, err := client.Send(context.Background(), payload)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "credit@example.com", got.From)
}

func TestClient_Send_APIErrorIsFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid recipient"}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{APIKey: "re_test", APIURL: server.URL, DefaultFrom: "noreply@example.com"})
	require.NoError(t, err)

	_, err = client.Send(context.Background(), testPayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid recipient")
}

func TestClient_Send_ContextTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	client, err := NewClient(Config{APIKey: "re_test", APIURL: server.URL, DefaultFrom: "noreply@example.com"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.Send(ctx, testPayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}
