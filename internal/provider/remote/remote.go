// Package remote adapts the hosted compute-sandbox service's HTTP API to
// the provider interface. Calls are single, non-retried round trips with
// a bounded per-call timeout: provisioning and waking are the slowest
// operations in the whole flow and their latency is otherwise inherited
// directly by the end user.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/draftforge/studio/internal/provider"
)

type Options struct {
	Endpoint       string
	APIKey         string
	CreateTimeout  time.Duration
	ConnectTimeout time.Duration
	HTTPClient     *http.Client
}

type Provider struct {
	baseURL        string
	apiKey         string
	createTimeout  time.Duration
	connectTimeout time.Duration
	httpClient     *http.Client
}

func New(opts Options) (*Provider, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("missing provider endpoint")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Provider{
		baseURL:        baseURL,
		apiKey:         strings.TrimSpace(opts.APIKey),
		createTimeout:  opts.CreateTimeout,
		connectTimeout: opts.ConnectTimeout,
		httpClient:     httpClient,
	}, nil
}

func (p *Provider) Name() string { return "remote" }

type createRequest struct {
	Template                  string `json:"template"`
	HibernationTimeoutSeconds int64  `json:"hibernation_timeout_seconds"`
	Visibility                string `json:"visibility,omitempty"`
}

type createResponse struct {
	SandboxID string `json:"sandbox_id"`
}

func (p *Provider) Create(ctx context.Context, spec provider.CreateSpec) (string, error) {
	if p.createTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.createTimeout)
		defer cancel()
	}

	var resp createResponse
	err := p.do(ctx, http.MethodPost, "/v1/sandboxes", createRequest{
		Template:                  spec.TemplateRef,
		HibernationTimeoutSeconds: int64(spec.HibernationTimeout / time.Second),
		Visibility:                spec.Visibility,
	}, &resp)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.SandboxID) == "" {
		return "", fmt.Errorf("provider returned empty sandbox id")
	}
	return resp.SandboxID, nil
}

type startRequest struct {
	HibernationTimeoutSeconds int64 `json:"hibernation_timeout_seconds"`
}

func (p *Provider) Start(ctx context.Context, externalID string, hibernationTimeout time.Duration) (provider.Session, error) {
	if p.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.connectTimeout)
		defer cancel()
	}

	var session provider.Session
	err := p.do(ctx, http.MethodPost, "/v1/sandboxes/"+externalID+"/start", startRequest{
		HibernationTimeoutSeconds: int64(hibernationTimeout / time.Second),
	}, &session)
	if err != nil {
		return provider.Session{}, err
	}
	return session, nil
}

func (p *Provider) Terminate(ctx context.Context, externalID string) error {
	return p.do(ctx, http.MethodDelete, "/v1/sandboxes/"+externalID, nil, nil)
}

func (p *Provider) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode provider request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build provider request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call sandbox provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sandbox provider responded %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}
