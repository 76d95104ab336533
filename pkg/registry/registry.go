// Package registry holds the canonical, append-only table of organizations.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/models"
)

var (
	ErrNotFound            = errors.New("organization not found")
	ErrExternalRefConflict = errors.New("organization already has a different external reference")
)

// Store persists registry writes. Implementations must return organizations
// in insertion order from List.
type Store interface {
	InsertOrganization(ctx context.Context, org *models.Organization) error
	UpdateExternalRefs(ctx context.Context, id string, refs models.ExternalRefs) error
	ListOrganizations(ctx context.Context) ([]models.Organization, error)
}

// Registry is an in-memory, insertion-ordered organization table. It is
// created once per run by the caller and handed to every resolve call.
// Reads are concurrent; writes are serialized.
type Registry struct {
	mu    sync.RWMutex
	orgs  []models.Organization
	index map[string]int
	store Store
	newID func() string
	now   func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithStore writes every mutation through to store before it becomes visible.
func WithStore(store Store) Option {
	return func(r *Registry) { r.store = store }
}

// WithIDGenerator replaces uuid generation.
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) { r.newID = fn }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		index: make(map[string]int),
		newID: uuid.NewString,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load creates a registry hydrated from store, preserving stored order, with
// later writes going through to the same store.
func Load(ctx context.Context, store Store, opts ...Option) (*Registry, error) {
	orgs, err := store.ListOrganizations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load organizations: %w", err)
	}
	r := New(append([]Option{WithStore(store)}, opts...)...)
	for _, org := range orgs {
		if _, dup := r.index[org.ID]; dup {
			return nil, fmt.Errorf("duplicate organization id %s in store", org.ID)
		}
		org.Seq = int64(len(r.orgs))
		r.index[org.ID] = len(r.orgs)
		r.orgs = append(r.orgs, org)
	}
	return r, nil
}

// Insert adds a new organization built from fields and refs and returns its
// fresh id. Content is not deduplicated.
func (r *Registry) Insert(ctx context.Context, fields models.Fields, refs models.ExternalRefs) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	org := models.Organization{
		ID:        r.newID(),
		Seq:       int64(len(r.orgs)),
		Fields:    fields,
		CreatedAt: r.now(),
	}
	if _, dup := r.index[org.ID]; dup {
		return "", fmt.Errorf("organization id %s already issued", org.ID)
	}
	if refs.OrgRef != "" {
		org.ExternalOrgRef = &refs.OrgRef
	}
	if refs.LocationRef != "" {
		org.ExternalLocationRef = &refs.LocationRef
	}

	if r.store != nil {
		if err := r.store.InsertOrganization(ctx, &org); err != nil {
			return "", fmt.Errorf("failed to persist organization: %w", err)
		}
	}

	r.index[org.ID] = len(r.orgs)
	r.orgs = append(r.orgs, org)
	return org.ID, nil
}

// Lookup returns the organization with id.
func (r *Registry) Lookup(id string) (models.Organization, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[id]
	if !ok {
		return models.Organization{}, false
	}
	return r.orgs[i], true
}

// All returns a snapshot of every organization in insertion order.
func (r *Registry) All() []models.Organization {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Organization, len(r.orgs))
	copy(out, r.orgs)
	return out
}

// Len returns the number of organizations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orgs)
}

// AttachExternalRefs fills empty external references on an organization.
// Setting a reference that differs from an existing one is refused; setting
// the same value again is a no-op.
func (r *Registry) AttachExternalRefs(ctx context.Context, id string, refs models.ExternalRefs) (models.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[id]
	if !ok {
		return models.Organization{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	org := r.orgs[i]
	current := org.Refs()

	merged, changed, err := mergeRefs(current, refs)
	if err != nil {
		return org, err
	}
	if !changed {
		return org, nil
	}

	if r.store != nil {
		if err := r.store.UpdateExternalRefs(ctx, id, merged); err != nil {
			return org, fmt.Errorf("failed to persist external refs: %w", err)
		}
	}

	if merged.OrgRef != "" {
		org.ExternalOrgRef = &merged.OrgRef
	}
	if merged.LocationRef != "" {
		org.ExternalLocationRef = &merged.LocationRef
	}
	r.orgs[i] = org
	return org, nil
}

func mergeRefs(current, incoming models.ExternalRefs) (models.ExternalRefs, bool, error) {
	merged := current
	changed := false
	for _, p := range []struct {
		have *string
		want string
		name string
	}{
		{&merged.OrgRef, incoming.OrgRef, "external_org_ref"},
		{&merged.LocationRef, incoming.LocationRef, "external_location_ref"},
	} {
		switch {
		case p.want == "" || *p.have == p.want:
		case *p.have == "":
			*p.have = p.want
			changed = true
		default:
			return current, false, fmt.Errorf("%w: %s is %q, got %q", ErrExternalRefConflict, p.name, *p.have, p.want)
		}
	}
	return merged, changed, nil
}
