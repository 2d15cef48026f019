// Package store defines the typed adapter over the key-value state
// store (C1): policies, filters, pipelines, SLOs, workload metrics,
// storage nodes, controllers, tenant groups and object types.
//
// Both implementations (redisstore, memstore) satisfy StateStore so
// every higher-level package can be tested without a live Redis,
// mirroring the teacher's storage-interface/storage-memory split.
package store

import (
	"context"

	"github.com/sdslabs/policyctl/internal/domain"
)

// Counter names the monotonic id sequences the adapter exposes.
type Counter string

const (
	CounterPolicy     Counter = "policies:id"
	CounterMetric     Counter = "workload_metrics:id"
	CounterController Counter = "controllers:id"
	CounterNode       Counter = "storage_nodes:id"
	CounterTenant     Counter = "gtenant:id"
)

// StateStore is the full adapter contract. Every mutation that
// replaces a multi-element value is atomic relative to concurrent
// readers.
type StateStore interface {
	FilterStore
	PipelineStore
	MetricStore
	PolicyStore
	ControllerStore
	NodeStore
	TenantGroupStore
	ObjectTypeStore
	SLOStore

	// Next allocates the next value of a monotonic counter.
	Next(ctx context.Context, c Counter) (int64, error)
	// ResetCounter resets a counter to zero, used when the last
	// record backing it is removed.
	ResetCounter(ctx context.Context, c Counter) error
	// Ping reports whether the store connection is healthy.
	Ping(ctx context.Context) error
}

// FilterStore covers Filter descriptors and DynamicFilter aliases.
type FilterStore interface {
	PutFilter(ctx context.Context, f domain.Filter) error
	GetFilter(ctx context.Context, id int64) (domain.Filter, error)
	DeleteFilter(ctx context.Context, id int64) error

	PutDynamicFilter(ctx context.Context, df domain.DynamicFilter) error
	GetDynamicFilter(ctx context.Context, name string) (domain.DynamicFilter, error)
	ListDynamicFilters(ctx context.Context) ([]domain.DynamicFilter, error)
	DeleteDynamicFilter(ctx context.Context, name string) error
}

// PipelineStore covers per-scope ordered pipeline entries.
type PipelineStore interface {
	PutPipelineEntry(ctx context.Context, key domain.PipelineKey, e domain.PipelineEntry) error
	DeletePipelineEntry(ctx context.Context, key domain.PipelineKey, policyID int64) error
	ListPipelineEntries(ctx context.Context, key domain.PipelineKey) ([]domain.PipelineEntry, error)
	// ScanPipelinesReferencingFilter lists every pipeline key that
	// contains an entry for filterID, for delete-time referential
	// integrity checks (§8 property 4).
	ScanPipelinesReferencingFilter(ctx context.Context, filterID int64) ([]domain.PipelineKey, error)
}

// MetricStore covers WorkloadMetric descriptors.
type MetricStore interface {
	PutMetric(ctx context.Context, m domain.WorkloadMetric) error
	GetMetric(ctx context.Context, id int64) (domain.WorkloadMetric, error)
	GetMetricByName(ctx context.Context, name string) (domain.WorkloadMetric, error)
	ListMetrics(ctx context.Context) ([]domain.WorkloadMetric, error)
	DeleteMetric(ctx context.Context, id int64) error
}

// PolicyStore covers dynamic rule records.
type PolicyStore interface {
	PutPolicy(ctx context.Context, p domain.Policy) error
	GetPolicy(ctx context.Context, id int64) (domain.Policy, error)
	ListPolicies(ctx context.Context) ([]domain.Policy, error)
	ListAlivePolicies(ctx context.Context) ([]domain.Policy, error)
	DeletePolicy(ctx context.Context, id int64) error
}

// ControllerStore covers Global Controller descriptors.
type ControllerStore interface {
	PutController(ctx context.Context, c domain.GlobalController) error
	GetController(ctx context.Context, id int64) (domain.GlobalController, error)
	ListControllers(ctx context.Context) ([]domain.GlobalController, error)
	DeleteController(ctx context.Context, id int64) error
}

// NodeStore covers Storage Node records.
type NodeStore interface {
	PutNode(ctx context.Context, n domain.StorageNode) error
	GetNode(ctx context.Context, id int64) (domain.StorageNode, error)
	ListNodes(ctx context.Context) ([]domain.StorageNode, error)
	DeleteNode(ctx context.Context, id int64) error
}

// TenantGroupStore covers atomically-replaced tenant group sequences.
type TenantGroupStore interface {
	ReplaceTenantGroup(ctx context.Context, id int64, tenants []string) error
	GetTenantGroup(ctx context.Context, id int64) (domain.TenantGroup, error)
	ListTenantGroups(ctx context.Context) ([]domain.TenantGroup, error)
	DeleteTenantGroup(ctx context.Context, id int64) error
	RemoveTenantFromGroup(ctx context.Context, id int64, tenant string) error
}

// ObjectTypeStore covers atomically-replaced extension sets.
type ObjectTypeStore interface {
	ReplaceObjectType(ctx context.Context, name string, extensions []string) error
	GetObjectType(ctx context.Context, name string) (domain.ObjectType, error)
	ListObjectTypes(ctx context.Context) ([]domain.ObjectType, error)
	DeleteObjectType(ctx context.Context, name string) error
	RemoveObjectTypeItem(ctx context.Context, name, extension string) error
}

// SLOStore covers per-tenant, per-method bandwidth reservations.
type SLOStore interface {
	PutSLOEntry(ctx context.Context, key domain.SLOKey, entry domain.SLOEntry) error
	DeleteSLOEntry(ctx context.Context, key domain.SLOKey, policyID int64) error
	GetSLOTotal(ctx context.Context, key domain.SLOKey) (float64, error)
	ListSLOTenants(ctx context.Context, sloName string) ([]string, error)
}

// decodeBool normalizes the store's historical string-typed booleans
// ("True"/"False") into real booleans (§9). Neither store adapter
// calls it or encodeBool.
func decodeBool(raw string) bool {
	switch raw {
	case "True", "true", "1":
		return true
	default:
		return false
	}
}

func encodeBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
