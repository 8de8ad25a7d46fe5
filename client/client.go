package client

import (
	"context"
	"errors"
	"sync"

	"github.com/draftforge/studio/internal/endpoint"
	"github.com/draftforge/studio/internal/studioclient"
	"github.com/draftforge/studio/internal/tlsconfig"
)

// Client is the public Go client for the studio control-plane API.
type Client struct {
	inner *studioclient.Client

	mu           sync.Mutex
	sandboxByKey map[string]string
	ensureLocks  map[string]*ensureKeyLock
}

type ensureKeyLock struct {
	mu   sync.Mutex
	refs int
}

// TLSOptions configures optional TLS material for HTTPS connections.
type TLSOptions struct {
	CertPath string
	KeyPath  string
	CAPath   string
}

// Option configures the studio client.
type Option func(*options)

type options struct {
	tls   tlsconfig.Options
	token string
}

// WithTLS configures TLS options for HTTPS endpoints.
func WithTLS(opts TLSOptions) Option {
	return func(o *options) {
		o.tls = tlsconfig.Options{
			CertPath: opts.CertPath,
			KeyPath:  opts.KeyPath,
			CAPath:   opts.CAPath,
		}
	}
}

// WithToken authenticates every request with the given bearer token.
func WithToken(token string) Option {
	return func(o *options) {
		o.token = token
	}
}

// New creates a client for the provided endpoint.
//
// Supported endpoint formats match the CLI:
// - unix:///path/to/studio.sock
// - absolute unix socket path
// - http://host:port
// - https://host:port
//
// If host is empty, STUDIO_HOST is used, then the default unix socket path.
func New(host string, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	ep, err := endpoint.Resolve(host)
	if err != nil {
		return nil, err
	}
	inner, err := studioclient.New(ep, studioclient.WithTLS(o.tls), studioclient.WithToken(o.token))
	if err != nil {
		return nil, err
	}
	return &Client{
		inner:        inner,
		sandboxByKey: map[string]string{},
		ensureLocks:  map[string]*ensureKeyLock{},
	}, nil
}

func (c *Client) CreateSandbox(ctx context.Context, req *CreateSandboxRequest) (*CreateSandboxResponse, error) {
	if c == nil || c.inner == nil {
		return nil, errors.New("nil client")
	}
	return c.inner.CreateSandbox(ctx, req)
}

func (c *Client) ConnectSandbox(ctx context.Context, sandboxID string) (*ConnectSandboxResponse, error) {
	if c == nil || c.inner == nil {
		return nil, errors.New("nil client")
	}
	return c.inner.ConnectSandbox(ctx, sandboxID)
}

func (c *Client) UpdateSandbox(ctx context.Context, sandboxID string, req *UpdateSandboxRequest) (*UpdateSandboxResponse, error) {
	if c == nil || c.inner == nil {
		return nil, errors.New("nil client")
	}
	return c.inner.UpdateSandbox(ctx, sandboxID, req)
}

func (c *Client) SubmitSandbox(ctx context.Context, sandboxID string) (*SubmitSandboxResponse, error) {
	if c == nil || c.inner == nil {
		return nil, errors.New("nil client")
	}
	return c.inner.SubmitSandbox(ctx, sandboxID)
}

func (c *Client) ReviewSandbox(ctx context.Context, sandboxID string, req *ReviewSandboxRequest) (*ReviewSandboxResponse, error) {
	if c == nil || c.inner == nil {
		return nil, errors.New("nil client")
	}
	return c.inner.ReviewSandbox(ctx, sandboxID, req)
}

func (c *Client) GetSandbox(ctx context.Context, sandboxID string) (*GetSandboxResponse, error) {
	if c == nil || c.inner == nil {
		return nil, errors.New("nil client")
	}
	return c.inner.GetSandbox(ctx, sandboxID)
}

func (c *Client) ListSandboxes(ctx context.Context) (*ListSandboxesResponse, error) {
	if c == nil || c.inner == nil {
		return nil, errors.New("nil client")
	}
	return c.inner.ListSandboxes(ctx)
}
