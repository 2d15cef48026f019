package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	if m == nil {
		t.Fatal("expected metrics instance, got nil")
	}
	if m.RequestsTotal == nil {
		t.Error("RequestsTotal should not be nil")
	}
	if m.AllocationRunsTotal == nil {
		t.Error("AllocationRunsTotal should not be nil")
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.IncrementInFlight()
	m.RecordHTTPRequest("GET", "/policies", "200", 10*time.Millisecond)
	m.RecordHTTPRequest("POST", "/policies", "201", 20*time.Millisecond)
	m.DecrementInFlight()
}

func TestRecordError(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.RecordError("policyengine", "submit_rules")
}

func TestRecordPolicyDeployed(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.RecordPolicyDeployed("static")
	m.RecordPolicyDeployed("dynamic")
}

func TestRecordAllocation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.RecordAllocation(5 * time.Millisecond)
}

func TestSetActorsActive(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.SetActorsActive("rule", 3)
	m.SetActorsActive("metric", 1)
}
