package notifiers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/daniacca/rxdyn/internal/achem"
)

// WebhookNotifier POSTs each reaction event as JSON to a URL.
type WebhookNotifier struct {
	id        string
	url       string
	client    *http.Client
	headers   map[string]string
	reactions []string
}

// WebhookOption configures a WebhookNotifier.
type WebhookOption func(*WebhookNotifier)

// WithHeader adds a header to every request.
func WithHeader(key, value string) WebhookOption {
	return func(wn *WebhookNotifier) { wn.headers[key] = value }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) WebhookOption {
	return func(wn *WebhookNotifier) { wn.client.Timeout = d }
}

// WithReactions restricts delivery to the named reactions.
func WithReactions(names ...string) WebhookOption {
	return func(wn *WebhookNotifier) { wn.reactions = append(wn.reactions, names...) }
}

func NewWebhookNotifier(id, url string, opts ...WebhookOption) *WebhookNotifier {
	wn := &WebhookNotifier{
		id:      id,
		url:     url,
		client:  &http.Client{Timeout: 5 * time.Second},
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(wn)
	}
	return wn
}

func (wn *WebhookNotifier) SetHeader(key, value string) {
	wn.headers[key] = value
}

func (wn *WebhookNotifier) ID() string {
	return wn.id
}

func (wn *WebhookNotifier) Type() string {
	return "webhook"
}

// URL returns the delivery target.
func (wn *WebhookNotifier) URL() string {
	return wn.url
}

// Notify sends the event. Events of reactions outside the configured set
// are skipped without error.
func (wn *WebhookNotifier) Notify(ctx context.Context, event achem.NotificationEvent) error {
	if len(wn.reactions) > 0 && !slices.Contains(wn.reactions, event.ReactionName) {
		return nil
	}
	body, err := event.JSON()
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wn.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Rxdyn-Event", event.EventType)
	req.Header.Set("X-Rxdyn-Environment", string(event.EnvironmentID))
	for key, value := range wn.headers {
		req.Header.Set(key, value)
	}

	resp, err := wn.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Close releases idle connections.
func (wn *WebhookNotifier) Close() error {
	wn.client.CloseIdleConnections()
	return nil
}
