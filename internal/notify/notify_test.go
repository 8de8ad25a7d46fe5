package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPublishDeliversEventToWebhook(t *testing.T) {
	t.Parallel()

	received := make(chan Event, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("unexpected content type %q", got)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		var event Event
		if err := json.Unmarshal(body, &event); err != nil {
			t.Errorf("decode body: %v", err)
		}
		received <- event
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	notifier := New(Options{URL: server.URL, Timeout: 5 * time.Second})
	notifier.Publish(Event{
		SandboxID:  "abc123",
		OwnerID:    "user-1",
		Status:     "on_review",
		OccurredAt: time.Unix(1_700_000_000, 0).UTC(),
	})

	select {
	case event := <-received:
		if event.SandboxID != "abc123" || event.Status != "on_review" {
			t.Fatalf("unexpected event payload: %+v", event)
		}
		if event.EventID == "" {
			t.Fatal("expected an assigned event id")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("webhook was never called")
	}
}

func TestPublishAssignsDistinctEventIDs(t *testing.T) {
	t.Parallel()

	ids := make(chan string, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event Event
		_ = json.NewDecoder(r.Body).Decode(&event)
		ids <- event.EventID
	}))
	defer server.Close()

	notifier := New(Options{URL: server.URL})
	notifier.Publish(Event{SandboxID: "abc123", Status: "posted"})
	notifier.Publish(Event{SandboxID: "abc123", Status: "featured"})

	var first, second string
	for i := 0; i < 2; i++ {
		select {
		case id := <-ids:
			if i == 0 {
				first = id
			} else {
				second = id
			}
		case <-time.After(5 * time.Second):
			t.Fatal("webhook was never called twice")
		}
	}
	if first == second {
		t.Fatalf("expected distinct event ids, both were %q", first)
	}
}

func TestPublishWithoutURLIsSilentNoOp(t *testing.T) {
	t.Parallel()

	// Must not panic or block.
	New(Options{}).Publish(Event{SandboxID: "abc123", Status: "posted"})

	var nilNotifier *Notifier
	nilNotifier.Publish(Event{SandboxID: "abc123", Status: "posted"})
}

func TestPublishSurvivesWebhookFailure(t *testing.T) {
	t.Parallel()

	called := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called <- struct{}{}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	notifier := New(Options{URL: server.URL})
	notifier.Publish(Event{SandboxID: "abc123", Status: "rejected"})

	select {
	case <-called:
	case <-time.After(5 * time.Second):
		t.Fatal("webhook was never called")
	}
}
