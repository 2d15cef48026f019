// Package tenantdir is the read-side "project list" convenience
// supplemented from original_source's views.get_project_list(), which
// the distilled spec.md drops: a tenant_id -> display name lookup
// consulted only by REST read paths. The identity service that owns
// the canonical name is an external collaborator (§1 non-goal); this
// package only caches whatever it reports and falls back to the raw
// tenant id so the static-policy listing never blocks on it.
package tenantdir

import (
	"context"
	"sync"
)

// NameResolver looks up a tenant's display name from the identity
// service. The real implementation is an external collaborator;
// nil is a valid Directory.Resolver, meaning "no resolver configured".
type NameResolver interface {
	TenantName(ctx context.Context, tenantID string) (string, error)
}

// Directory resolves tenant ids to display names for read paths,
// caching successful lookups so a listing endpoint only pays the
// identity-service round trip once per tenant per process lifetime.
type Directory struct {
	Resolver NameResolver

	mu    sync.RWMutex
	cache map[string]string
}

// New builds a Directory. resolver may be nil, in which case every
// lookup falls back to the raw tenant id.
func New(resolver NameResolver) *Directory {
	return &Directory{Resolver: resolver, cache: make(map[string]string)}
}

// Name returns tenantID's cached or freshly resolved display name, or
// tenantID itself if no resolver is configured or the lookup fails.
func (d *Directory) Name(ctx context.Context, tenantID string) string {
	d.mu.RLock()
	if name, ok := d.cache[tenantID]; ok {
		d.mu.RUnlock()
		return name
	}
	d.mu.RUnlock()

	if d.Resolver == nil {
		return tenantID
	}

	name, err := d.Resolver.TenantName(ctx, tenantID)
	if err != nil || name == "" {
		return tenantID
	}

	d.mu.Lock()
	d.cache[tenantID] = name
	d.mu.Unlock()
	return name
}

// ResolveAll maps every tenant id in ids to its display name,
// preserving the input set, for batch rendering of a static-policy
// listing (original_source joins this into policy_list's GET response).
func (d *Directory) ResolveAll(ctx context.Context, ids []string) map[string]string {
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		out[id] = d.Name(ctx, id)
	}
	return out
}
