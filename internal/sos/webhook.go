package sos

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/navis-app/navis-api/internal/resilience"
)

// WebhookNotifier posts SOS events as JSON to a URL, retrying transient
// failures.
type WebhookNotifier struct {
	url    string
	client *http.Client
	retry  resilience.RetryConfig
}

// WebhookOption configures a WebhookNotifier.
type WebhookOption func(*WebhookNotifier)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(w *WebhookNotifier) { w.client = c }
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) WebhookOption {
	return func(w *WebhookNotifier) { w.retry = cfg }
}

// NewWebhookNotifier creates a notifier for url.
func NewWebhookNotifier(url string, opts ...WebhookOption) *WebhookNotifier {
	w := &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 500 * time.Millisecond,
			JitterFraction: 0.2,
			OnRetry:        resilience.RetryLogger("sos", "webhook"),
		},
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *WebhookNotifier) Name() string { return "webhook" }

// Notify delivers ev, retrying 5xx, 408 and 429 responses.
func (w *WebhookNotifier) Notify(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "sos: marshal webhook event")
	}
	return resilience.Do(ctx, w.retry, func(ctx context.Context) error {
		return w.post(ctx, payload)
	})
}

func (w *WebhookNotifier) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "sos: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "sos: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		err := eris.Errorf("sos: webhook returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}
	return nil
}
