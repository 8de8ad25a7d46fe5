// Package lifecycle orchestrates sandbox provisioning and the
// publication state machine. It is the only component that writes
// sandbox record transitions; the HTTP layer above it does nothing but
// authentication and translation, and the provider below it knows
// nothing about ownership or review status.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/draftforge/studio/internal/auth"
	"github.com/draftforge/studio/internal/notify"
	"github.com/draftforge/studio/internal/provider"
	"github.com/draftforge/studio/internal/registry"
	"github.com/draftforge/studio/internal/shortid"
)

// Registry is the persisted sandbox record store.
type Registry interface {
	Insert(ctx context.Context, externalID, ownerID, name string) (registry.Record, error)
	Get(ctx context.Context, id int64) (registry.Record, error)
	GetOwned(ctx context.Context, id int64, ownerID string) (registry.Record, error)
	List(ctx context.Context, ownerID string) ([]registry.Record, error)
	ListAll(ctx context.Context) ([]registry.Record, error)
	UpdateFields(ctx context.Context, id int64, patch map[string]string) (registry.Record, error)
	SetStatus(ctx context.Context, id int64, status registry.Status) (registry.Record, error)
}

// Notifier receives publication-status events. Delivery must never block
// or fail the transition that produced the event.
type Notifier interface {
	Publish(event notify.Event)
}

// Defaults are the fixed provisioning parameters applied to every
// sandbox.
type Defaults struct {
	TemplateRef        string
	HibernationTimeout time.Duration
	Visibility         string
}

type Service struct {
	Registry Registry
	Provider provider.Provider
	Notifier Notifier
	Logger   *log.Logger
	Defaults Defaults
}

// deprovisionTimeout bounds the compensating terminate call; it runs on
// a detached context because the request context may already be dead.
const deprovisionTimeout = 10 * time.Second

// canMutate is the single authorization predicate for mutating
// operations: the record's owner, or any admin.
func canMutate(principal auth.Principal, record registry.Record) bool {
	return principal.ID == record.OwnerID || principal.Admin
}

// Create provisions a sandbox with the external provider and registers
// it. If registration fails after provisioning succeeded, the instance
// is terminated best-effort so it doesn't leak as an orphan.
func (s *Service) Create(ctx context.Context, principal auth.Principal, name string) (string, registry.Record, error) {
	if principal.ID == "" {
		return "", registry.Record{}, ErrUnauthorized
	}

	externalID, err := s.Provider.Create(ctx, provider.CreateSpec{
		TemplateRef:        s.Defaults.TemplateRef,
		HibernationTimeout: s.Defaults.HibernationTimeout,
		Visibility:         s.Defaults.Visibility,
	})
	if err != nil {
		return "", registry.Record{}, fmt.Errorf("%w: %s", ErrProviderUnavailable, err)
	}

	record, err := s.Registry.Insert(ctx, externalID, principal.ID, name)
	if err != nil {
		s.deprovision(externalID)
		return "", registry.Record{}, fmt.Errorf("%w: %s", ErrPersistence, err)
	}

	if s.Logger != nil {
		s.Logger.Info("sandbox created",
			"sandbox_id", shortid.Encode(record.ID),
			"external_id", externalID,
			"owner_id", principal.ID,
			"provider", s.Provider.Name(),
		)
	}

	return shortid.Encode(record.ID), record, nil
}

func (s *Service) deprovision(externalID string) {
	ctx, cancel := context.WithTimeout(context.Background(), deprovisionTimeout)
	defer cancel()

	if err := s.Provider.Terminate(ctx, externalID); err != nil && s.Logger != nil {
		s.Logger.Warn("orphaned sandbox instance could not be terminated",
			"external_id", externalID,
			"provider", s.Provider.Name(),
			"error", err,
		)
	}
}

// Connect wakes the sandbox's external instance and returns the
// provider's session data verbatim. Owner-only: there is no admin bypass
// for connecting to someone else's workbench.
func (s *Service) Connect(ctx context.Context, principal auth.Principal, token string) (provider.Session, registry.Record, error) {
	if principal.ID == "" {
		return provider.Session{}, registry.Record{}, ErrUnauthorized
	}
	id, err := shortid.Decode(token)
	if err != nil {
		return provider.Session{}, registry.Record{}, ErrInvalidIdentifier
	}

	record, err := s.Registry.GetOwned(ctx, id, principal.ID)
	if err != nil {
		return provider.Session{}, registry.Record{}, lookupError(err)
	}

	session, err := s.Provider.Start(ctx, record.ExternalID, s.Defaults.HibernationTimeout)
	if err != nil {
		return provider.Session{}, registry.Record{}, fmt.Errorf("%w: %s", ErrProviderUnavailable, err)
	}

	return session, record, nil
}

// Update applies an allow-listed metadata patch. Permitted for the owner
// or an admin.
func (s *Service) Update(ctx context.Context, principal auth.Principal, token string, patch map[string]string) (registry.Record, error) {
	if principal.ID == "" {
		return registry.Record{}, ErrUnauthorized
	}
	id, err := shortid.Decode(token)
	if err != nil {
		return registry.Record{}, ErrInvalidIdentifier
	}

	record, err := s.Registry.Get(ctx, id)
	if err != nil {
		return registry.Record{}, lookupError(err)
	}
	if !canMutate(principal, record) {
		return registry.Record{}, ErrNotFound
	}

	if len(patch) == 0 {
		return registry.Record{}, ErrNoOp
	}
	for field := range patch {
		if !registry.MutableField(field) {
			return registry.Record{}, fmt.Errorf("%w: %q", ErrInvalidPatch, field)
		}
	}

	updated, err := s.Registry.UpdateFields(ctx, id, patch)
	if err != nil {
		return registry.Record{}, lookupError(err)
	}
	return updated, nil
}

// SubmitForReview moves the sandbox to on_review. The transition is an
// unconditional overwrite: re-submitting an already reviewed sandbox
// puts it back in the queue rather than failing.
func (s *Service) SubmitForReview(ctx context.Context, principal auth.Principal, token string) (registry.Record, error) {
	if principal.ID == "" {
		return registry.Record{}, ErrUnauthorized
	}
	id, err := shortid.Decode(token)
	if err != nil {
		return registry.Record{}, ErrInvalidIdentifier
	}

	if _, err := s.Registry.GetOwned(ctx, id, principal.ID); err != nil {
		return registry.Record{}, lookupError(err)
	}

	updated, err := s.Registry.SetStatus(ctx, id, registry.StatusOnReview)
	if err != nil {
		return registry.Record{}, lookupError(err)
	}

	s.publishStatus(token, updated)
	if s.Logger != nil {
		s.Logger.Info("sandbox submitted for review", "sandbox_id", token, "owner_id", principal.ID)
	}
	return updated, nil
}

// reviewVerdicts are the admin-assignable outcomes of a review.
var reviewVerdicts = map[registry.Status]struct{}{
	registry.StatusPosted:   {},
	registry.StatusFeatured: {},
	registry.StatusRejected: {},
}

// Review records a moderation verdict. Admin only; non-admins get the
// same not-found outcome as any other unauthorized lookup.
func (s *Service) Review(ctx context.Context, principal auth.Principal, token string, verdict registry.Status) (registry.Record, error) {
	if principal.ID == "" {
		return registry.Record{}, ErrUnauthorized
	}
	id, err := shortid.Decode(token)
	if err != nil {
		return registry.Record{}, ErrInvalidIdentifier
	}
	if _, ok := reviewVerdicts[verdict]; !ok {
		return registry.Record{}, fmt.Errorf("%w: %q", ErrInvalidVerdict, verdict)
	}

	if !principal.Admin {
		return registry.Record{}, ErrNotFound
	}
	if _, err := s.Registry.Get(ctx, id); err != nil {
		return registry.Record{}, lookupError(err)
	}

	updated, err := s.Registry.SetStatus(ctx, id, verdict)
	if err != nil {
		return registry.Record{}, lookupError(err)
	}

	s.publishStatus(token, updated)
	if s.Logger != nil {
		s.Logger.Info("sandbox reviewed", "sandbox_id", token, "verdict", string(verdict), "reviewer", principal.ID)
	}
	return updated, nil
}

// Get returns a single record: owners see their own, admins see any.
func (s *Service) Get(ctx context.Context, principal auth.Principal, token string) (registry.Record, error) {
	if principal.ID == "" {
		return registry.Record{}, ErrUnauthorized
	}
	id, err := shortid.Decode(token)
	if err != nil {
		return registry.Record{}, ErrInvalidIdentifier
	}

	var record registry.Record
	if principal.Admin {
		record, err = s.Registry.Get(ctx, id)
	} else {
		record, err = s.Registry.GetOwned(ctx, id, principal.ID)
	}
	if err != nil {
		return registry.Record{}, lookupError(err)
	}
	return record, nil
}

// List returns the requester's records, or all records for admins.
func (s *Service) List(ctx context.Context, principal auth.Principal) ([]registry.Record, error) {
	if principal.ID == "" {
		return nil, ErrUnauthorized
	}

	var (
		records []registry.Record
		err     error
	)
	if principal.Admin {
		records, err = s.Registry.ListAll(ctx)
	} else {
		records, err = s.Registry.List(ctx, principal.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPersistence, err)
	}
	return records, nil
}

func (s *Service) publishStatus(token string, record registry.Record) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.Publish(notify.Event{
		SandboxID:    token,
		OwnerID:      record.OwnerID,
		ComponentRef: record.ComponentRef,
		Status:       string(record.Status),
		OccurredAt:   record.UpdatedAt,
	})
}

func lookupError(err error) error {
	if errors.Is(err, registry.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %s", ErrPersistence, err)
}
