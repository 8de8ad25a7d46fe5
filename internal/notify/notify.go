// Package notify delivers publication-status events to an external
// webhook. Delivery is fire-and-forget: a failed or slow webhook never
// rolls back the status transition that produced the event.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Event identifies one status transition of a submission.
type Event struct {
	EventID      string    `json:"event_id"`
	SandboxID    string    `json:"sandbox_id"`
	OwnerID      string    `json:"owner_id"`
	ComponentRef string    `json:"component_ref,omitempty"`
	Status       string    `json:"status"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Notifier posts events to a webhook URL. A nil Notifier (or one with an
// empty URL) drops events silently, so callers never branch on
// configuration.
type Notifier struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
	logger     *log.Logger
}

type Options struct {
	URL        string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger
}

func New(opts Options) *Notifier {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		url:        strings.TrimSpace(opts.URL),
		timeout:    timeout,
		httpClient: httpClient,
		logger:     opts.Logger,
	}
}

// Publish delivers the event on a background goroutine and returns
// immediately. The event id is assigned here so log lines on both sides
// of the webhook can be correlated.
func (n *Notifier) Publish(event Event) {
	if n == nil || n.url == "" {
		return
	}

	event.EventID = uuid.NewString()
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	go func() {
		if err := n.deliver(event); err != nil && n.logger != nil {
			n.logger.Warn("publication notification failed",
				"event_id", event.EventID,
				"sandbox_id", event.SandboxID,
				"status", event.Status,
				"error", err,
			)
		}
	}()
}

func (n *Notifier) deliver(event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}
