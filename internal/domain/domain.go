// Package domain holds the entity types persisted by the state store
// and passed between the controller's components.
package domain

// ExecutionSite names where a filter runs.
type ExecutionSite string

const (
	SiteProxy   ExecutionSite = "proxy"
	SiteStorage ExecutionSite = "storage"
)

// Filter is the descriptor for an uploaded filter artifact.
type Filter struct {
	ID              int64         `json:"id"`
	FilterName      string        `json:"filter_name"`
	ExecutionServer ExecutionSite `json:"execution_server"`
	ReverseServer   ExecutionSite `json:"reverse_execution_server"`
	IsPrePut        bool          `json:"is_pre_put"`
	IsPostGet       bool          `json:"is_post_get"`
	IsPostPut       bool          `json:"is_post_put"`
	IsPreGet        bool          `json:"is_pre_get"`
	HasReverse      bool          `json:"has_reverse"`
	Digest          string        `json:"digest"`
}

// DynamicFilter aliases a human-readable name to a Filter id.
// Identifier is stored and returned as given; the delete-time
// referential-integrity scan matches pipeline entries on FilterID and
// does not read Identifier.
type DynamicFilter struct {
	Name       string `json:"name"`
	FilterID   int64  `json:"filter_id"`
	Identifier string `json:"identifier"`
}

// ObjectSizePredicate is a (comparison operator, byte threshold) pair
// attached to a pipeline entry.
type ObjectSizePredicate struct {
	Operator string `json:"operator"` // one of "<", "<=", ">", ">=", "=="
	Value    int64  `json:"value"`
}

// PipelineEntry is one policy's effect within a tenant/container/object
// scoped pipeline.
type PipelineEntry struct {
	PolicyID           int64                `json:"policy_id"`
	FilterID           int64                `json:"filter_id"`
	FilterName         string               `json:"filter_name"`
	ObjectType         string               `json:"object_type"`
	ObjectSize         *ObjectSizePredicate `json:"object_size,omitempty"`
	ExecutionServer    ExecutionSite        `json:"execution_server"`
	ExecutionServerRev ExecutionSite        `json:"execution_server_reverse"`
	ExecutionOrder     int64                `json:"execution_order"`
	Params             string               `json:"params"`
	Callable           bool                 `json:"callable"`
	// PolicyLocation is a debug string naming the owning actor. The
	// Policy Engine and rule actors do not fill it in, so entries they
	// deploy carry it empty; it holds only what a caller supplies.
	PolicyLocation string `json:"policy_location,omitempty"`
}

// PipelineKey scopes a PipelineEntry list to tenant/container/object.
type PipelineKey struct {
	TenantID  string `json:"tenant_id"`
	Container string `json:"container,omitempty"`
	Object    string `json:"object,omitempty"`
}

// WorkloadMetric describes a metric producer that can be turned into a
// running metric actor.
type WorkloadMetric struct {
	ID       int64  `json:"id"`
	Name     string `json:"metric_name"`
	InFlow   bool   `json:"in_flow"`
	OutFlow  bool   `json:"out_flow"`
	Enabled  bool   `json:"enabled"`
	Artifact string `json:"artifact"`
}

// Policy is the persisted record of a dynamic rule.
type Policy struct {
	ID            int64  `json:"id"`
	OriginalText  string `json:"original_text"`
	ConditionText string `json:"condition_text"`
	StaticText    string `json:"policy"`
	Transient     bool   `json:"transient"`
	Alive         bool   `json:"alive"`
	ActorAddress  string `json:"actor_address,omitempty"`
}

// MethodType is the metric method a Global Controller polls.
type MethodType string

const (
	MethodGET   MethodType = "GET"
	MethodPUT   MethodType = "PUT"
	MethodSSYNC MethodType = "SSYNC"
)

// GlobalController is the persisted record of a periodic controller.
type GlobalController struct {
	ID         int64      `json:"id"`
	Name       string     `json:"controller_name"`
	ClassName  string     `json:"class_name"`
	MethodType MethodType `json:"method_type"`
	DSLFilter  string     `json:"dsl_filter"`
	Enabled    bool       `json:"enabled"`
	// PollSchedule is a robfig/cron schedule expression (e.g.
	// "@every 10s") the supervisor parses to derive the controller's
	// polling interval; empty defaults to the supervisor's configured
	// interval.
	PollSchedule string `json:"poll_schedule,omitempty"`
}

// StorageNode is a fleet member, independent of any pipeline.
type StorageNode struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Role    string `json:"role"`
}

// TenantGroup is an ordered, atomically-replaced sequence of tenant ids.
type TenantGroup struct {
	ID      int64    `json:"id"`
	Tenants []string `json:"tenants"`
}

// ObjectType maps a name to a set of file extensions, atomically
// replaced on update.
type ObjectType struct {
	Name       string   `json:"name"`
	Extensions []string `json:"extensions"`
}

// SLOKey identifies a per-tenant, per-method SLO bucket.
type SLOKey struct {
	SLOName string `json:"slo_name"` // "<method>_bw"
	Tenant  string `json:"tenant"`
}

// SLOEntry is one policy's contribution to a tenant's SLO bucket.
type SLOEntry struct {
	PolicyID      int64   `json:"policy_id"`
	BandwidthMBps float64 `json:"bandwidth_mbps"`
}

// MonitoringSnapshot is tenant -> disk id -> measured transfer speed
// (MBps). Immutable once read by the allocation core.
type MonitoringSnapshot map[string]map[string]float64

// DiskID composes the ip-policy-device identifier used throughout the
// monitoring snapshot and allocation output.
func DiskID(ip string, policy string, device string) string {
	return ip + "-" + policy + "-" + device
}
