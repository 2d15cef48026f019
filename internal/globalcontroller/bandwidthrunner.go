package globalcontroller

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sdslabs/policyctl/internal/apperrors"
	"github.com/sdslabs/policyctl/internal/bandwidth"
	"github.com/sdslabs/policyctl/internal/domain"
	"github.com/sdslabs/policyctl/internal/enforcement"
	"github.com/sdslabs/policyctl/internal/metrics"
	"github.com/sdslabs/policyctl/internal/ruleactor"
	"github.com/sdslabs/policyctl/internal/store"
	"github.com/sdslabs/policyctl/pkg/logger"
)

// observationSeparator joins a tenant id and disk id into one
// MetricUpdate field key. The message-bus wire format that actually
// produces `<method>_bw_info` updates is out of scope (§1 non-goal);
// this is the convention the in-process Source adapters (and tests)
// use to shape a monitoring observation as a generic metric update.
const observationSeparator = "\x1f"

// ObservationKey packs a (tenant, disk) pair into the field key a
// `<method>_bw_info` metric update carries its measured speed under.
func ObservationKey(tenant, diskID string) string {
	return tenant + observationSeparator + diskID
}

// splitObservationKey is ObservationKey's inverse; keys that don't carry
// the separator are ignored as noise (e.g. a scalar control field).
func splitObservationKey(key string) (tenant, diskID string, ok bool) {
	parts := strings.SplitN(key, observationSeparator, 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// BandwidthRunner is the Runner for dsl_filter="bandwidth" controllers:
// it accumulates the latest measured speed per (tenant, disk) from
// metric updates, then on every Tick re-reads the SLO map from the
// store, calls the Bandwidth Allocation Core (C7), and pushes the
// result to proxies as enforcements (§1, §4.6).
type BandwidthRunner struct {
	Store     store.StateStore
	Notifier  enforcement.ProxyNotifier
	Constants bandwidth.Constants
	Method    domain.MethodType
	Log       *logger.Logger

	// Telemetry is optional; when set, every Tick records one
	// allocation-run observation (§ ambient stack).
	Telemetry *metrics.Metrics

	mu       sync.Mutex
	snapshot bandwidth.Snapshot
}

// NewBandwidthRunner builds a BandwidthRunner for one controller
// descriptor's method.
func NewBandwidthRunner(st store.StateStore, notifier enforcement.ProxyNotifier, constants bandwidth.Constants, method domain.MethodType, telemetry *metrics.Metrics, log *logger.Logger) *BandwidthRunner {
	return &BandwidthRunner{
		Store:     st,
		Notifier:  notifier,
		Constants: constants,
		Method:    method,
		Telemetry: telemetry,
		Log:       log,
		snapshot:  make(bandwidth.Snapshot),
	}
}

// Ingest folds one `<method>_bw_info` update into the working
// snapshot, overwriting the prior measured speed for each (tenant,
// disk) pair the update names.
func (r *BandwidthRunner) Ingest(update ruleactor.MetricUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, speed := range update {
		tenant, diskID, ok := splitObservationKey(key)
		if !ok {
			continue
		}
		observations := r.snapshot[tenant]
		replaced := false
		for i, obs := range observations {
			if obs.DiskID == diskID {
				observations[i].Speed = speed
				replaced = true
				break
			}
		}
		if !replaced {
			observations = append(observations, bandwidth.DiskObservation{DiskID: diskID, Speed: speed})
		}
		r.snapshot[tenant] = observations
	}
}

// Tick runs the allocation core against the current snapshot and the
// store's SLO map for this runner's method, then pushes every computed
// assignment to the ProxyNotifier.
func (r *BandwidthRunner) Tick(ctx context.Context) error {
	r.mu.Lock()
	snap := cloneSnapshot(r.snapshot)
	r.mu.Unlock()

	sloName := strings.ToLower(string(r.Method)) + "_bw"
	tenants, err := r.Store.ListSLOTenants(ctx, sloName)
	if err != nil {
		return apperrors.Wrap("globalcontroller", "ListSLOTenants", err)
	}

	slo := make(bandwidth.SLOMap, len(tenants))
	for _, tenant := range tenants {
		total, err := r.Store.GetSLOTotal(ctx, domain.SLOKey{SLOName: sloName, Tenant: tenant})
		if err != nil {
			return apperrors.Wrap("globalcontroller", "GetSLOTotal", err)
		}
		slo[tenant] = total
	}

	start := time.Now()
	assignment, err := bandwidth.Allocate(snap, slo, r.Constants)
	if r.Telemetry != nil {
		r.Telemetry.RecordAllocation(time.Since(start))
	}
	if err != nil {
		return apperrors.Wrap("globalcontroller", "Allocate", err)
	}

	return enforcement.PushAssignment(ctx, r.Notifier, assignment)
}

func cloneSnapshot(snap bandwidth.Snapshot) bandwidth.Snapshot {
	out := make(bandwidth.Snapshot, len(snap))
	for tenant, observations := range snap {
		cloned := make([]bandwidth.DiskObservation, len(observations))
		copy(cloned, observations)
		out[tenant] = cloned
	}
	return out
}

// DummyRunner is the Runner for every non-bandwidth dsl_filter (§9:
// "the controller-to-metric mapping for non-bandwidth controllers is
// left as dummy in the source"). It ingests updates but performs no
// action on Tick beyond a diagnostic log line.
type DummyRunner struct {
	Name string
	Log  *logger.Logger
}

// Ingest discards the update; dummy controllers have no working state.
func (DummyRunner) Ingest(ruleactor.MetricUpdate) {}

// Tick logs that the controller ticked and returns nil.
func (d DummyRunner) Tick(_ context.Context) error {
	d.Log.WithField("controller", d.Name).Debug("dummy controller tick")
	return nil
}

// DefaultFactory resolves a controller descriptor to BandwidthRunner
// when dsl_filter is "bandwidth" (case-insensitive) and DummyRunner
// otherwise, matching metricsub.ConsumerKind's own bandwidth/other
// split on the metric-consumer side of the same registry. telemetry may
// be nil, in which case allocation runs are simply not recorded.
func DefaultFactory(st store.StateStore, notifier enforcement.ProxyNotifier, constants bandwidth.Constants, telemetry *metrics.Metrics, log *logger.Logger) RunnerFactory {
	return func(c domain.GlobalController) Runner {
		if strings.EqualFold(c.DSLFilter, "bandwidth") {
			return NewBandwidthRunner(st, notifier, constants, c.MethodType, telemetry, log)
		}
		return DummyRunner{Name: c.Name, Log: log}
	}
}
