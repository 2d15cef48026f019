package bandwidth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateFeasibleScenario(t *testing.T) {
	// S3: one tenant, SLO 60, 2 transfers on d1/d2, enough cluster
	// capacity to fill both disks to 115/2 per connection.
	snapshot := Snapshot{
		"t1": {{DiskID: "d1", Speed: 50}, {DiskID: "d2", Speed: 50}},
	}
	slo := SLOMap{"t1": 60}
	c := Constants{DiskCapMbps: 115, ProxyCapMbps: 115, NumProxies: 1}

	out, err := Allocate(snapshot, slo, c)
	require.NoError(t, err)

	assert.InDelta(t, 57.5, out["t1"]["d1"], 1e-6)
	assert.InDelta(t, 57.5, out["t1"]["d2"], 1e-6)
}

func TestAllocateOverloadedScenario(t *testing.T) {
	// S4: t1 (SLO 100, 1 transfer on d1) and t2 (SLO 100, 2 transfers:
	// one on d1, one on d2). Stage 1 leaves d1 at 100+50=150 > 115.
	snapshot := Snapshot{
		"t1": {{DiskID: "d1", Speed: 80}},
		"t2": {{DiskID: "d1", Speed: 80}, {DiskID: "d2", Speed: 80}},
	}
	slo := SLOMap{"t1": 100, "t2": 100}
	c := Constants{DiskCapMbps: 115, ProxyCapMbps: 115, NumProxies: 2}

	out, err := Allocate(snapshot, slo, c)
	require.NoError(t, err)

	d1Total := out["t1"]["d1"] + out["t2"]["d1"]
	d2Total := out["t2"]["d2"]
	assert.LessOrEqual(t, d1Total, 115+1e-6)
	assert.LessOrEqual(t, d2Total, 115+1e-6)
	assertNonNegative(t, out)
}

func TestAllocateInvariantsAcrossScenarios(t *testing.T) {
	cases := []struct {
		name     string
		snapshot Snapshot
		slo      SLOMap
		c        Constants
	}{
		{
			name: "no slo tenants",
			snapshot: Snapshot{
				"best-effort": {{DiskID: "d1", Speed: 10}},
			},
			slo: SLOMap{},
			c:   Constants{DiskCapMbps: 100, ProxyCapMbps: 100, NumProxies: 1},
		},
		{
			name: "many tenants one disk",
			snapshot: Snapshot{
				"t1": {{DiskID: "d1", Speed: 5}},
				"t2": {{DiskID: "d1", Speed: 5}},
				"t3": {{DiskID: "d1", Speed: 5}},
			},
			slo: SLOMap{"t1": 40, "t2": 40, "t3": 40},
			c:   Constants{DiskCapMbps: 100, ProxyCapMbps: 300, NumProxies: 1},
		},
		{
			name: "mixed qos and best effort",
			snapshot: Snapshot{
				"qos":  {{DiskID: "d1", Speed: 5}, {DiskID: "d2", Speed: 5}},
				"free": {{DiskID: "d1", Speed: 5}},
			},
			slo: SLOMap{"qos": 50},
			c:   Constants{DiskCapMbps: 60, ProxyCapMbps: 60, NumProxies: 2},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Allocate(tc.snapshot, tc.slo, tc.c)
			require.NoError(t, err)
			assertNonNegative(t, out)
			assertPerDiskCap(t, out, tc.c.DiskCapMbps)
			assertAggregateCap(t, out, tc.c)
		})
	}
}

func TestAllocateIsIdempotent(t *testing.T) {
	snapshot := Snapshot{
		"t1": {{DiskID: "d1", Speed: 80}},
		"t2": {{DiskID: "d1", Speed: 80}, {DiskID: "d2", Speed: 80}},
	}
	slo := SLOMap{"t1": 100, "t2": 100}
	c := Constants{DiskCapMbps: 115, ProxyCapMbps: 115, NumProxies: 2}

	first, err := Allocate(snapshot, slo, c)
	require.NoError(t, err)
	second, err := Allocate(snapshot, slo, c)
	require.NoError(t, err)

	for tenant, disks := range first {
		for disk, bw := range disks {
			assert.InDelta(t, bw, second[tenant][disk], 1e-6)
		}
	}
}

func TestAllocateRejectsInvalidTransferSpeed(t *testing.T) {
	snapshot := Snapshot{"t1": {{DiskID: "d1", Speed: -5}}}
	_, err := Allocate(snapshot, SLOMap{}, Constants{DiskCapMbps: 100, ProxyCapMbps: 100, NumProxies: 1})
	assert.Error(t, err)
}

func assertNonNegative(t *testing.T, out Assignment) {
	t.Helper()
	for tenant, disks := range out {
		for disk, bw := range disks {
			assert.GreaterOrEqualf(t, bw, -1e-9, "tenant %s disk %s", tenant, disk)
		}
	}
}

func assertPerDiskCap(t *testing.T, out Assignment, diskCap float64) {
	t.Helper()
	totals := make(map[string]float64)
	for _, disks := range out {
		for disk, bw := range disks {
			totals[disk] += bw
		}
	}
	for disk, total := range totals {
		assert.LessOrEqualf(t, total, diskCap+1e-6, "disk %s", disk)
	}
}

func assertAggregateCap(t *testing.T, out Assignment, c Constants) {
	t.Helper()
	total := 0.0
	for _, disks := range out {
		for _, bw := range disks {
			total += bw
		}
	}
	assert.LessOrEqual(t, total, float64(c.NumProxies)*c.ProxyCapMbps+1e-6)
}
