// Package provider defines the boundary to the external compute-sandbox
// service. The control plane only ever provisions, wakes, and
// (compensatingly) terminates instances; everything about the runtime —
// hibernation, container orchestration, editor sessions — belongs to the
// provider.
package provider

import (
	"context"
	"time"
)

// CreateSpec describes the sandbox instance to provision.
type CreateSpec struct {
	TemplateRef        string
	HibernationTimeout time.Duration
	Visibility         string
}

// Session is the provider-assigned connection data for a woken sandbox,
// passed through to the caller verbatim.
type Session struct {
	EditorURL string    `json:"editor_url"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Provider provisions and wakes external sandbox instances.
//
// Create returns the provider-assigned external id. Start wakes a
// possibly hibernated instance; waking can take a while, so callers
// bound it with the context deadline. Terminate exists for the
// compensation path when a provisioned instance could not be registered.
type Provider interface {
	Name() string
	Create(ctx context.Context, spec CreateSpec) (string, error)
	Start(ctx context.Context, externalID string, hibernationTimeout time.Duration) (Session, error)
	Terminate(ctx context.Context, externalID string) error
}
