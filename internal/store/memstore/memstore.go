// Package memstore is an in-memory StateStore fake, mirroring the
// teacher's internal/app/storage.Memory: a single mutex-guarded struct
// exercising the same interfaces the Redis-backed adapter exposes, so
// higher-level packages can be tested without a live Redis.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/sdslabs/policyctl/internal/apperrors"
	"github.com/sdslabs/policyctl/internal/domain"
	"github.com/sdslabs/policyctl/internal/store"
)

type pipelineKey struct {
	tenant    string
	container string
	object    string
}

func toPipelineKey(k domain.PipelineKey) pipelineKey {
	return pipelineKey{tenant: k.TenantID, container: k.Container, object: k.Object}
}

// Memory is a thread-safe in-memory StateStore.
type Memory struct {
	mu sync.RWMutex

	counters map[store.Counter]int64

	filters        map[int64]domain.Filter
	dynamicFilters map[string]domain.DynamicFilter
	pipelines      map[pipelineKey]map[int64]domain.PipelineEntry
	metrics        map[int64]domain.WorkloadMetric
	policies       map[int64]domain.Policy
	controllers    map[int64]domain.GlobalController
	nodes          map[int64]domain.StorageNode
	tenantGroups   map[int64][]string
	objectTypes    map[string][]string
	slos           map[string]map[int64]domain.SLOEntry // "sloName|tenant" -> policyID -> entry
}

// New creates an empty in-memory store.
func New() *Memory {
	return &Memory{
		counters:       make(map[store.Counter]int64),
		filters:        make(map[int64]domain.Filter),
		dynamicFilters: make(map[string]domain.DynamicFilter),
		pipelines:      make(map[pipelineKey]map[int64]domain.PipelineEntry),
		metrics:        make(map[int64]domain.WorkloadMetric),
		policies:       make(map[int64]domain.Policy),
		controllers:    make(map[int64]domain.GlobalController),
		nodes:          make(map[int64]domain.StorageNode),
		tenantGroups:   make(map[int64][]string),
		objectTypes:    make(map[string][]string),
		slos:           make(map[string]map[int64]domain.SLOEntry),
	}
}

func (m *Memory) Ping(_ context.Context) error { return nil }

func (m *Memory) Next(_ context.Context, c store.Counter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[c]++
	return m.counters[c], nil
}

func (m *Memory) ResetCounter(_ context.Context, c store.Counter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[c] = 0
	return nil
}

// Filters ---------------------------------------------------------------

func (m *Memory) PutFilter(_ context.Context, f domain.Filter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters[f.ID] = f
	return nil
}

func (m *Memory) GetFilter(_ context.Context, id int64) (domain.Filter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.filters[id]
	if !ok {
		return domain.Filter{}, apperrors.ErrNotFound
	}
	return f, nil
}

func (m *Memory) DeleteFilter(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.filters[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.filters, id)
	return nil
}

func (m *Memory) PutDynamicFilter(_ context.Context, df domain.DynamicFilter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dynamicFilters[df.Name] = df
	return nil
}

func (m *Memory) GetDynamicFilter(_ context.Context, name string) (domain.DynamicFilter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	df, ok := m.dynamicFilters[name]
	if !ok {
		return domain.DynamicFilter{}, apperrors.ErrNotFound
	}
	return df, nil
}

func (m *Memory) ListDynamicFilters(_ context.Context) ([]domain.DynamicFilter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.DynamicFilter, 0, len(m.dynamicFilters))
	for _, df := range m.dynamicFilters {
		out = append(out, df)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) DeleteDynamicFilter(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.dynamicFilters[name]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.dynamicFilters, name)
	return nil
}

// Pipeline entries --------------------------------------------------------

func (m *Memory) PutPipelineEntry(_ context.Context, key domain.PipelineKey, e domain.PipelineEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk := toPipelineKey(key)
	if m.pipelines[pk] == nil {
		m.pipelines[pk] = make(map[int64]domain.PipelineEntry)
	}
	m.pipelines[pk][e.PolicyID] = e
	return nil
}

func (m *Memory) DeletePipelineEntry(_ context.Context, key domain.PipelineKey, policyID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk := toPipelineKey(key)
	entries, ok := m.pipelines[pk]
	if !ok {
		return apperrors.ErrNotFound
	}
	if _, ok := entries[policyID]; !ok {
		return apperrors.ErrNotFound
	}
	delete(entries, policyID)
	return nil
}

func (m *Memory) ListPipelineEntries(_ context.Context, key domain.PipelineKey) ([]domain.PipelineEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.pipelines[toPipelineKey(key)]
	out := make([]domain.PipelineEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExecutionOrder != out[j].ExecutionOrder {
			return out[i].ExecutionOrder < out[j].ExecutionOrder
		}
		return out[i].PolicyID < out[j].PolicyID
	})
	return out, nil
}

func (m *Memory) ScanPipelinesReferencingFilter(_ context.Context, filterID int64) ([]domain.PipelineKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.PipelineKey
	for pk, entries := range m.pipelines {
		for _, e := range entries {
			if e.FilterID == filterID {
				out = append(out, domain.PipelineKey{TenantID: pk.tenant, Container: pk.container, Object: pk.object})
				break
			}
		}
	}
	return out, nil
}

// Metrics -----------------------------------------------------------------

func (m *Memory) PutMetric(_ context.Context, metric domain.WorkloadMetric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics[metric.ID] = metric
	return nil
}

func (m *Memory) GetMetric(_ context.Context, id int64) (domain.WorkloadMetric, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	metric, ok := m.metrics[id]
	if !ok {
		return domain.WorkloadMetric{}, apperrors.ErrNotFound
	}
	return metric, nil
}

func (m *Memory) GetMetricByName(_ context.Context, name string) (domain.WorkloadMetric, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, metric := range m.metrics {
		if metric.Name == name {
			return metric, nil
		}
	}
	return domain.WorkloadMetric{}, apperrors.ErrNotFound
}

func (m *Memory) ListMetrics(_ context.Context) ([]domain.WorkloadMetric, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.WorkloadMetric, 0, len(m.metrics))
	for _, metric := range m.metrics {
		out = append(out, metric)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeleteMetric(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.metrics[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.metrics, id)
	return nil
}

// Policies ------------------------------------------------------------------

func (m *Memory) PutPolicy(_ context.Context, p domain.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[p.ID] = p
	return nil
}

func (m *Memory) GetPolicy(_ context.Context, id int64) (domain.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.policies[id]
	if !ok {
		return domain.Policy{}, apperrors.ErrNotFound
	}
	return p, nil
}

func (m *Memory) ListPolicies(_ context.Context) ([]domain.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Policy, 0, len(m.policies))
	for _, p := range m.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListAlivePolicies(ctx context.Context) ([]domain.Policy, error) {
	all, err := m.ListPolicies(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		if p.Alive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) DeletePolicy(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.policies[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.policies, id)
	return nil
}

// Controllers -----------------------------------------------------------

func (m *Memory) PutController(_ context.Context, c domain.GlobalController) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.controllers[c.ID] = c
	return nil
}

func (m *Memory) GetController(_ context.Context, id int64) (domain.GlobalController, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.controllers[id]
	if !ok {
		return domain.GlobalController{}, apperrors.ErrNotFound
	}
	return c, nil
}

func (m *Memory) ListControllers(_ context.Context) ([]domain.GlobalController, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.GlobalController, 0, len(m.controllers))
	for _, c := range m.controllers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeleteController(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.controllers[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.controllers, id)
	return nil
}

// Storage nodes -----------------------------------------------------------

func (m *Memory) PutNode(_ context.Context, n domain.StorageNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[n.ID] = n
	return nil
}

func (m *Memory) GetNode(_ context.Context, id int64) (domain.StorageNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	if !ok {
		return domain.StorageNode{}, apperrors.ErrNotFound
	}
	return n, nil
}

func (m *Memory) ListNodes(_ context.Context) ([]domain.StorageNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.StorageNode, 0, len(m.nodes))
	for _, n := range m.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeleteNode(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.nodes, id)
	return nil
}

// Tenant groups -------------------------------------------------------------

func (m *Memory) ReplaceTenantGroup(_ context.Context, id int64, tenants []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]string, len(tenants))
	copy(cp, tenants)
	m.tenantGroups[id] = cp
	return nil
}

func (m *Memory) GetTenantGroup(_ context.Context, id int64) (domain.TenantGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tenants, ok := m.tenantGroups[id]
	if !ok {
		return domain.TenantGroup{}, apperrors.ErrNotFound
	}
	cp := make([]string, len(tenants))
	copy(cp, tenants)
	return domain.TenantGroup{ID: id, Tenants: cp}, nil
}

func (m *Memory) ListTenantGroups(_ context.Context) ([]domain.TenantGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.TenantGroup, 0, len(m.tenantGroups))
	for id, tenants := range m.tenantGroups {
		cp := make([]string, len(tenants))
		copy(cp, tenants)
		out = append(out, domain.TenantGroup{ID: id, Tenants: cp})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeleteTenantGroup(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenantGroups[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.tenantGroups, id)
	return nil
}

func (m *Memory) RemoveTenantFromGroup(_ context.Context, id int64, tenant string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tenants, ok := m.tenantGroups[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	out := tenants[:0:0]
	for _, t := range tenants {
		if t != tenant {
			out = append(out, t)
		}
	}
	m.tenantGroups[id] = out
	return nil
}

// Object types ----------------------------------------------------------

func (m *Memory) ReplaceObjectType(_ context.Context, name string, extensions []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]string, len(extensions))
	copy(cp, extensions)
	m.objectTypes[name] = cp
	return nil
}

func (m *Memory) GetObjectType(_ context.Context, name string) (domain.ObjectType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ext, ok := m.objectTypes[name]
	if !ok {
		return domain.ObjectType{}, apperrors.ErrNotFound
	}
	cp := make([]string, len(ext))
	copy(cp, ext)
	return domain.ObjectType{Name: name, Extensions: cp}, nil
}

func (m *Memory) ListObjectTypes(_ context.Context) ([]domain.ObjectType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ObjectType, 0, len(m.objectTypes))
	for name, ext := range m.objectTypes {
		cp := make([]string, len(ext))
		copy(cp, ext)
		out = append(out, domain.ObjectType{Name: name, Extensions: cp})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) DeleteObjectType(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objectTypes[name]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.objectTypes, name)
	return nil
}

func (m *Memory) RemoveObjectTypeItem(_ context.Context, name, extension string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ext, ok := m.objectTypes[name]
	if !ok {
		return apperrors.ErrNotFound
	}
	out := ext[:0:0]
	for _, e := range ext {
		if e != extension {
			out = append(out, e)
		}
	}
	m.objectTypes[name] = out
	return nil
}

// SLOs --------------------------------------------------------------------

func sloMapKey(key domain.SLOKey) string {
	return key.SLOName + "|" + key.Tenant
}

func (m *Memory) PutSLOEntry(_ context.Context, key domain.SLOKey, entry domain.SLOEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mk := sloMapKey(key)
	if m.slos[mk] == nil {
		m.slos[mk] = make(map[int64]domain.SLOEntry)
	}
	m.slos[mk][entry.PolicyID] = entry
	return nil
}

func (m *Memory) DeleteSLOEntry(_ context.Context, key domain.SLOKey, policyID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mk := sloMapKey(key)
	if m.slos[mk] == nil {
		return apperrors.ErrNotFound
	}
	delete(m.slos[mk], policyID)
	return nil
}

func (m *Memory) GetSLOTotal(_ context.Context, key domain.SLOKey) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total float64
	for _, e := range m.slos[sloMapKey(key)] {
		total += e.BandwidthMBps
	}
	return total, nil
}

func (m *Memory) ListSLOTenants(_ context.Context, sloName string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	for mk, entries := range m.slos {
		if len(entries) == 0 {
			continue
		}
		prefix := sloName + "|"
		if len(mk) > len(prefix) && mk[:len(prefix)] == prefix {
			seen[mk[len(prefix):]] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

var _ store.StateStore = (*Memory)(nil)
