package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// envelope wraps a webhook payload with its type.
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Webhook POSTs each report as JSON to a URL with retry and exponential
// backoff.
type Webhook struct {
	url         string
	client      *http.Client
	maxRetries  int
	backoff     time.Duration
	includeHTML bool
	markdown    bool
	logger      *slog.Logger
}

// WebhookOption configures a Webhook sink.
type WebhookOption func(*Webhook)

// WithWebhookRetries sets the maximum number of retries. Default: 3.
func WithWebhookRetries(n int) WebhookOption {
	return func(w *Webhook) { w.maxRetries = n }
}

// WithWebhookBackoff sets the first retry delay; it doubles per attempt.
// Default: 1s.
func WithWebhookBackoff(d time.Duration) WebhookOption {
	return func(w *Webhook) { w.backoff = d }
}

// WithWebhookHTML includes the document in the payload. By default only
// id, name and timestamp are sent.
func WithWebhookHTML(on bool) WebhookOption {
	return func(w *Webhook) { w.includeHTML = on }
}

// WithWebhookMarkdown adds a Markdown rendering of the report text, for
// chat-style receivers.
func WithWebhookMarkdown(on bool) WebhookOption {
	return func(w *Webhook) { w.markdown = on }
}

// WithWebhookLogger sets a custom logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = l }
}

// NewWebhook creates a Webhook sink targeting the given URL.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		backoff:    time.Second,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// webhookReport is the payload of a "report" webhook.
type webhookReport struct {
	Report
	Markdown string `json:"markdown,omitempty"`
}

func (w *Webhook) Publish(ctx context.Context, r Report) error {
	payload := webhookReport{Report: r}
	if w.markdown {
		md, err := Markdown(r.HTML)
		if err != nil {
			w.logger.Warn("webhook: markdown rendering failed", "id", r.ID, "error", err)
		}
		payload.Markdown = md
	}
	if !w.includeHTML {
		payload.HTML = ""
	}
	return w.post(ctx, "report", payload)
}

func (w *Webhook) Close() error { return nil }

func (w *Webhook) post(ctx context.Context, typ string, data any) error {
	body, err := json.Marshal(envelope{Type: typ, Data: data})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(w.backoff << uint(attempt-1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("webhook: new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			lastErr = err
			w.logger.Warn("webhook: request failed", "attempt", attempt+1, "error", err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("webhook: status %d", resp.StatusCode)
		w.logger.Warn("webhook: bad status", "attempt", attempt+1, "status", resp.StatusCode)
	}
	return fmt.Errorf("webhook: all retries exhausted: %w", lastErr)
}
