// Package devbox is an in-process sandbox provider for development and
// tests. It provisions nothing: external ids are minted locally and
// sessions point at a placeholder editor URL.
package devbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/draftforge/studio/internal/provider"
	"go.jetify.com/typeid"
)

var generateTypeID = func(prefix string) (string, error) {
	id, err := typeid.WithPrefix(prefix)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func newExternalID() string {
	id, err := generateTypeID("box")
	if err == nil && strings.TrimSpace(id) != "" {
		return id
	}

	return fmt.Sprintf("box-%d", time.Now().UTC().UnixNano())
}

type instance struct {
	spec       provider.CreateSpec
	terminated bool
}

type Provider struct {
	mu        sync.Mutex
	instances map[string]*instance
}

func New() *Provider {
	return &Provider{instances: map[string]*instance{}}
}

func (p *Provider) Name() string { return "devbox" }

func (p *Provider) Create(_ context.Context, spec provider.CreateSpec) (string, error) {
	externalID := newExternalID()

	p.mu.Lock()
	p.instances[externalID] = &instance{spec: spec}
	p.mu.Unlock()

	return externalID, nil
}

func (p *Provider) Start(_ context.Context, externalID string, hibernationTimeout time.Duration) (provider.Session, error) {
	p.mu.Lock()
	inst, ok := p.instances[externalID]
	if ok && !inst.terminated {
		inst.spec.HibernationTimeout = hibernationTimeout
	}
	p.mu.Unlock()

	if !ok {
		return provider.Session{}, fmt.Errorf("unknown sandbox instance %q", externalID)
	}
	if inst.terminated {
		return provider.Session{}, fmt.Errorf("sandbox instance %q is terminated", externalID)
	}

	return provider.Session{
		EditorURL: "http://localhost/devbox/" + externalID,
		Token:     "devbox-session-" + externalID,
		ExpiresAt: time.Now().UTC().Add(hibernationTimeout),
	}, nil
}

func (p *Provider) Terminate(_ context.Context, externalID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	inst, ok := p.instances[externalID]
	if !ok {
		return fmt.Errorf("unknown sandbox instance %q", externalID)
	}
	inst.terminated = true
	return nil
}

// Terminated reports whether Terminate was called for externalID. Test
// hook for the compensation path.
func (p *Provider) Terminated(externalID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	inst, ok := p.instances[externalID]
	return ok && inst.terminated
}
