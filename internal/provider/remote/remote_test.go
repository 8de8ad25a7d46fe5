package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/draftforge/studio/internal/provider"
)

func TestCreateSendsSpecAndReturnsSandboxID(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]string{"sandbox_id": "box_remote_1"})
	}))
	defer server.Close()

	p, err := New(Options{Endpoint: server.URL, APIKey: "provider-key"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	externalID, err := p.Create(context.Background(), provider.CreateSpec{
		TemplateRef:        "component-workbench",
		HibernationTimeout: 5 * time.Minute,
		Visibility:         "private",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if externalID != "box_remote_1" {
		t.Fatalf("unexpected external id %q", externalID)
	}
	if gotPath != "POST /v1/sandboxes" {
		t.Fatalf("unexpected request %q", gotPath)
	}
	if gotAuth != "Bearer provider-key" {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
	if gotBody["template"] != "component-workbench" {
		t.Fatalf("unexpected template in request: %v", gotBody)
	}
	if gotBody["hibernation_timeout_seconds"] != float64(300) {
		t.Fatalf("unexpected hibernation timeout in request: %v", gotBody)
	}
}

func TestCreateRejectsEmptySandboxID(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"sandbox_id": "  "})
	}))
	defer server.Close()

	p, err := New(Options{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := p.Create(context.Background(), provider.CreateSpec{}); err == nil {
		t.Fatal("expected error for empty sandbox id")
	}
}

func TestStartDecodesSession(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sandboxes/box_remote_1/start" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"editor_url": "https://editor.example/box_remote_1",
			"token":      "session-token",
			"expires_at": time.Unix(1_700_003_600, 0).UTC().Format(time.RFC3339),
		})
	}))
	defer server.Close()

	p, err := New(Options{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	session, err := p.Start(context.Background(), "box_remote_1", 5*time.Minute)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if session.EditorURL != "https://editor.example/box_remote_1" || session.Token != "session-token" {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestTerminateUsesDelete(t *testing.T) {
	t.Parallel()

	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	p, err := New(Options{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := p.Terminate(context.Background(), "box_remote_1"); err != nil {
		t.Fatalf("Terminate returned error: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/v1/sandboxes/box_remote_1" {
		t.Fatalf("unexpected request %s %s", gotMethod, gotPath)
	}
}

func TestErrorResponsesIncludeStatusAndBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "capacity exhausted", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p, err := New(Options{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	_, err = p.Create(context.Background(), provider.CreateSpec{})
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
	if !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "capacity exhausted") {
		t.Fatalf("error should carry status and body, got %v", err)
	}
}

func TestNewRequiresEndpoint(t *testing.T) {
	t.Parallel()

	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
}
