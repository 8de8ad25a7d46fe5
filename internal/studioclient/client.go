// Package studioclient is the HTTP client for the studio control API.
package studioclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/draftforge/studio/internal/endpoint"
	"github.com/draftforge/studio/internal/studioapi"
	"github.com/draftforge/studio/internal/tlsconfig"
	"golang.org/x/net/http2"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// Option configures the client.
type Option func(*options)

type options struct {
	tlsOpts tlsconfig.Options
	token   string
}

// WithTLS configures TLS options for the client.
func WithTLS(opts tlsconfig.Options) Option {
	return func(o *options) {
		o.tlsOpts = opts
	}
}

// WithToken attaches a bearer token to every request.
func WithToken(token string) Option {
	return func(o *options) {
		o.token = strings.TrimSpace(token)
	}
}

func New(ep endpoint.Endpoint, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	baseURL := strings.TrimRight(ep.BaseURL, "/")
	transport, err := buildTransport(ep, baseURL, o.tlsOpts)
	if err != nil {
		return nil, err
	}
	return &Client{
		httpClient: &http.Client{Transport: transport},
		baseURL:    baseURL,
		token:      o.token,
	}, nil
}

func buildTransport(ep endpoint.Endpoint, baseURL string, tlsOpts tlsconfig.Options) (http.RoundTripper, error) {
	dialer := &net.Dialer{}

	if ep.Scheme == "https" {
		tlsCfg, err := tlsconfig.ResolveClient(tlsOpts)
		if err != nil {
			return nil, err
		}
		if tlsCfg == nil {
			tlsCfg = &tls.Config{MinVersion: tls.VersionTLS13}
		}
		return &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			TLSClientConfig:   tlsCfg,
			ForceAttemptHTTP2: true,
		}, nil
	}

	if ep.Scheme == "unix" {
		return &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, _, _ string, _ *tls.Config) (net.Conn, error) {
				return dialer.DialContext(ctx, "unix", ep.Address)
			},
		}, nil
	}

	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" {
		return &http.Transport{}, nil
	}
	host := parsed.Host
	return &http2.Transport{
		AllowHTTP: true,
		DialTLSContext: func(ctx context.Context, _, _ string, _ *tls.Config) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp", host)
		},
	}, nil
}

func (c *Client) CreateSandbox(ctx context.Context, req *studioapi.CreateSandboxRequest) (*studioapi.CreateSandboxResponse, error) {
	resp := &studioapi.CreateSandboxResponse{}
	if err := c.do(ctx, http.MethodPost, "/v1/sandboxes", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) ConnectSandbox(ctx context.Context, sandboxID string) (*studioapi.ConnectSandboxResponse, error) {
	resp := &studioapi.ConnectSandboxResponse{}
	if err := c.do(ctx, http.MethodPost, "/v1/sandboxes/"+url.PathEscape(sandboxID)+"/connect", nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) UpdateSandbox(ctx context.Context, sandboxID string, req *studioapi.UpdateSandboxRequest) (*studioapi.UpdateSandboxResponse, error) {
	resp := &studioapi.UpdateSandboxResponse{}
	if err := c.do(ctx, http.MethodPatch, "/v1/sandboxes/"+url.PathEscape(sandboxID), req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) SubmitSandbox(ctx context.Context, sandboxID string) (*studioapi.SubmitSandboxResponse, error) {
	resp := &studioapi.SubmitSandboxResponse{}
	if err := c.do(ctx, http.MethodPost, "/v1/sandboxes/"+url.PathEscape(sandboxID)+"/submit", nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) ReviewSandbox(ctx context.Context, sandboxID string, req *studioapi.ReviewSandboxRequest) (*studioapi.ReviewSandboxResponse, error) {
	resp := &studioapi.ReviewSandboxResponse{}
	if err := c.do(ctx, http.MethodPost, "/v1/sandboxes/"+url.PathEscape(sandboxID)+"/review", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetSandbox(ctx context.Context, sandboxID string) (*studioapi.GetSandboxResponse, error) {
	resp := &studioapi.GetSandboxResponse{}
	if err := c.do(ctx, http.MethodGet, "/v1/sandboxes/"+url.PathEscape(sandboxID), nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) ListSandboxes(ctx context.Context) (*studioapi.ListSandboxesResponse, error) {
	resp := &studioapi.ListSandboxesResponse{}
	if err := c.do(ctx, http.MethodGet, "/v1/sandboxes", nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// APIError is a non-2xx response from the control API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("studio API error (%d): %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var body studioapi.ErrorResponse
		if decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); decodeErr == nil && strings.TrimSpace(body.Error) != "" {
			apiErr.Message = body.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
