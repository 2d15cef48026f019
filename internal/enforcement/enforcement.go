// Package enforcement represents the handoff of a computed bandwidth
// assignment (C7's output) to proxies as concrete enforcements (§1).
// ProxyNotifier is the narrow external-collaborator interface; the
// limiter-backed implementation here stands in locally for the actual
// wire push to a proxy fleet.
package enforcement

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// ProxyNotifier pushes one tenant/disk bandwidth assignment to the
// proxies that enforce it.
type ProxyNotifier interface {
	Enforce(ctx context.Context, tenant, diskID string, mbps float64) error
}

// LimiterNotifier keeps one rate.Limiter per (tenant, disk) pair,
// reconfigured on every Enforce call to the newly computed bandwidth.
// It is the default in-process ProxyNotifier; a real deployment wires
// Enforce to an actual proxy RPC/push and may still consult the
// limiter map for local admission control.
type LimiterNotifier struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewLimiterNotifier creates an empty LimiterNotifier.
func NewLimiterNotifier() *LimiterNotifier {
	return &LimiterNotifier{limiters: make(map[string]*rate.Limiter)}
}

func limiterKey(tenant, diskID string) string { return tenant + "|" + diskID }

// Enforce sets, or creates, the (tenant, diskID) limiter to mbps
// megabytes/sec with a one-second burst.
func (n *LimiterNotifier) Enforce(_ context.Context, tenant, diskID string, mbps float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	key := limiterKey(tenant, diskID)
	limit := rate.Limit(mbps * 1024 * 1024)
	burst := int(mbps * 1024 * 1024)
	if burst < 1 {
		burst = 1
	}

	if l, ok := n.limiters[key]; ok {
		l.SetLimit(limit)
		l.SetBurst(burst)
		return nil
	}
	n.limiters[key] = rate.NewLimiter(limit, burst)
	return nil
}

// Limit reports the currently configured bytes/sec limit for
// (tenant, diskID), or 0 if no enforcement has been applied yet.
func (n *LimiterNotifier) Limit(tenant, diskID string) float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	l, ok := n.limiters[limiterKey(tenant, diskID)]
	if !ok {
		return 0
	}
	return float64(l.Limit())
}

// PushAssignment enforces every (tenant, disk) pair in an assignment
// map, as produced by bandwidth.Allocate.
func PushAssignment(ctx context.Context, notifier ProxyNotifier, assignment map[string]map[string]float64) error {
	for tenant, disks := range assignment {
		for diskID, mbps := range disks {
			if err := notifier.Enforce(ctx, tenant, diskID, mbps); err != nil {
				return err
			}
		}
	}
	return nil
}
