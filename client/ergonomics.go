package client

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/draftforge/studio/internal/studioclient"
)

// ErrorCode is a stable classifier for studio API errors.
type ErrorCode string

const (
	ErrorCodeUnknown             ErrorCode = "unknown"
	ErrorCodeCanceled            ErrorCode = "canceled"
	ErrorCodeDeadlineExceeded    ErrorCode = "deadline_exceeded"
	ErrorCodeUnauthorized        ErrorCode = "unauthorized"
	ErrorCodeInvalidArgument     ErrorCode = "invalid_argument"
	ErrorCodeNotFound            ErrorCode = "not_found"
	ErrorCodeProviderUnavailable ErrorCode = "provider_unavailable"
	ErrorCodeInternal            ErrorCode = "internal"
)

// ErrCode classifies API errors into a stable code.
//
// HTTP status codes from the control API are the primary signal;
// context errors cover local cancellation and timeouts.
func ErrCode(err error) ErrorCode {
	if err == nil {
		return ErrorCodeUnknown
	}

	var apiErr *studioclient.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized:
			return ErrorCodeUnauthorized
		case http.StatusBadRequest:
			return ErrorCodeInvalidArgument
		case http.StatusNotFound:
			return ErrorCodeNotFound
		case http.StatusBadGateway, http.StatusServiceUnavailable:
			return ErrorCodeProviderUnavailable
		default:
			return ErrorCodeInternal
		}
	}
	if errors.Is(err, context.Canceled) {
		return ErrorCodeCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorCodeDeadlineExceeded
	}
	return ErrorCodeUnknown
}

// Must returns the client if err is nil; otherwise it panics.
func Must(c *Client, err error) *Client {
	if err != nil {
		panic(err)
	}
	return c
}

// NewFromEnv builds a client from STUDIO_HOST (or default endpoint when unset).
func NewFromEnv(opts ...Option) (*Client, error) {
	return New("", opts...)
}

// EnsureSandboxOptions controls EnsureSandbox behavior.
type EnsureSandboxOptions struct {
	Name      string
	SandboxID string
}

// SandboxHandle is a concise reusable sandbox descriptor.
type SandboxHandle struct {
	ID      string
	Status  string
	Created bool
}

// EnsureSandbox returns a reusable sandbox for a key.
//
// It reuses a previously tracked sandbox when present and still
// editable. If opts.SandboxID is set, that sandbox is used directly and
// associated to key.
func (c *Client) EnsureSandbox(ctx context.Context, key string, opts EnsureSandboxOptions) (*SandboxHandle, error) {
	if c == nil || c.inner == nil {
		return nil, errors.New("nil client")
	}

	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return nil, errors.New("missing key")
	}
	unlockKey := c.lockEnsureKey(trimmedKey)
	defer unlockKey()

	if explicitID := strings.TrimSpace(opts.SandboxID); explicitID != "" {
		handle, err := c.fetchSandboxHandle(ctx, explicitID, false)
		if err != nil {
			return nil, err
		}
		c.recordSandboxKey(trimmedKey, explicitID)
		return handle, nil
	}

	if cachedID, ok := c.lookupSandboxKey(trimmedKey); ok {
		handle, err := c.fetchSandboxHandle(ctx, cachedID, false)
		if err == nil {
			if isReusableSandboxStatus(handle.Status) {
				return handle, nil
			}
			c.clearSandboxKey(trimmedKey)
		} else if ErrCode(err) != ErrorCodeNotFound {
			return nil, err
		} else {
			c.clearSandboxKey(trimmedKey)
		}
	}

	resp, err := c.CreateSandbox(ctx, &CreateSandboxRequest{Name: strings.TrimSpace(opts.Name)})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.SandboxID) == "" {
		return nil, errors.New("create sandbox returned empty sandbox_id")
	}
	c.recordSandboxKey(trimmedKey, resp.SandboxID)
	return &SandboxHandle{
		ID:      resp.SandboxID,
		Status:  resp.Sandbox.Status,
		Created: true,
	}, nil
}

// A sandbox is reusable as a draft workbench only while it hasn't been
// handed to review.
func isReusableSandboxStatus(status string) bool {
	return status == StatusActive
}

func (c *Client) fetchSandboxHandle(ctx context.Context, sandboxID string, created bool) (*SandboxHandle, error) {
	resp, err := c.GetSandbox(ctx, sandboxID)
	if err != nil {
		return nil, err
	}
	return &SandboxHandle{
		ID:      resp.Sandbox.SandboxID,
		Status:  resp.Sandbox.Status,
		Created: created,
	}, nil
}

func (c *Client) lookupSandboxKey(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.sandboxByKey[key]
	return id, ok
}

func (c *Client) recordSandboxKey(key, sandboxID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sandboxByKey[key] = sandboxID
}

func (c *Client) clearSandboxKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sandboxByKey, key)
}

func (c *Client) lockEnsureKey(key string) func() {
	c.mu.Lock()
	lock, ok := c.ensureLocks[key]
	if !ok {
		lock = &ensureKeyLock{}
		c.ensureLocks[key] = lock
	}
	lock.refs++
	c.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		c.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(c.ensureLocks, key)
		}
		c.mu.Unlock()
	}
}
