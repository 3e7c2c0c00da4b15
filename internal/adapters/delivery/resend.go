// Package delivery provides the HTTP email API adapter used as the
// notification delivery backend.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andretaki/alliance-form-sub000/internal/core"
	"github.com/andretaki/alliance-form-sub000/internal/domain/model"
)

const defaultAPIURL = "https://api.resend.com/emails"

// Config captures the subset of the email API behaviour we need.
type Config struct {
	APIKey      string
	APIURL      string
	DefaultFrom string
	Timeout     time.Duration
	Client      *http.Client
}

// Client delivers notification emails through a Resend-compatible HTTP API.
type Client struct {
	apiKey      string
	apiURL      string
	defaultFrom string
	client      *http.Client
}

var _ core.DeliveryBackend = (*Client)(nil)

// NewClient builds an email API client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("email api key is required")
	}

	from := strings.TrimSpace(cfg.DefaultFrom)
	if from == "" {
		return nil, errors.New("default sender address is required")
	}

	apiURL := strings.TrimSpace(cfg.APIURL)
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		apiKey:      apiKey,
		apiURL:      apiURL,
		defaultFrom: from,
		client:      hc,
	}, nil
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html,omitempty"`
	Text    string `json:"text,omitempty"`
}

type sendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Send posts one email to the API. A non-2xx response or transport error is a
// delivery failure; a context deadline surfaces as a wrapped timeout error so
// logs can tell the two apart, though retry policy treats them identically.
func (c *Client) Send(ctx context.Context, payload model.EmailPayload) (core.SendResult, error) {
	from := c.defaultFrom
	if payload.From != nil && strings.TrimSpace(*payload.From) != "" {
		from = strings.TrimSpace(*payload.From)
	}

	body, err := json.Marshal(sendRequest{
		From:    from,
		To:      payload.To,
		Subject: payload.Subject,
		HTML:    payload.HTML,
		Text:    payload.Text,
	})
	if err != nil {
		return core.SendResult{}, fmt.Errorf("encode email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return core.SendResult{}, fmt.Errorf("create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return core.SendResult{}, fmt.Errorf("email request timed out: %w", err)
		}
		return core.SendResult{}, fmt.Errorf("email request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return core.SendResult{}, c.handleErrorResponse(resp)
	}

	return c.handleSuccessResponse(resp)
}

func (c *Client) handleSuccessResponse(resp *http.Response) (core.SendResult, error) {
	defer closeQuietly(resp)

	var parsed sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		// Delivery succeeded; an unreadable confirmation body is not worth a retry.
		return core.SendResult{Success: true}, nil
	}
	return core.SendResult{Success: true, Message: parsed.ID}, nil
}

func (c *Client) handleErrorResponse(resp *http.Response) error {
	defer closeQuietly(resp)

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if readErr != nil {
		return fmt.Errorf("email api %s: unreadable response: %w", resp.Status, readErr)
	}
	return fmt.Errorf("email api %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
}

func closeQuietly(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
