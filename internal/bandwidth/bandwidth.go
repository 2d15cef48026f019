// Package bandwidth implements the Bandwidth Allocation Core (C7): a
// pure, three-stage function from a monitoring snapshot and an SLO map
// to a per-tenant, per-disk bandwidth assignment. It is a direct
// generalization of original_source's SimpleMinBandwidthPerTenant
// .compute_algorithm. computed[tenant][disk] and the tenant's
// disk_usage slots on that disk are tracked separately and can
// diverge: stage 1 sets computed to the latest slot's value when a
// tenant has several observations on one disk, and the stage 2 shave
// subtracts reduce_slot from every slot but only once from computed.
package bandwidth

import (
	"fmt"
	"sort"
)

// DiskObservation is one measured transfer on a disk, as named in a
// monitoring snapshot's per-tenant list.
type DiskObservation struct {
	DiskID string
	Speed  float64
}

// Snapshot is tenant -> list of (disk_id, measured speed) observations.
type Snapshot map[string][]DiskObservation

// SLOMap is tenant -> total reserved bandwidth (MBps), already summed
// across that tenant's per-policy reservations.
type SLOMap map[string]float64

// Constants are the fixed capacity inputs to one allocation run.
type Constants struct {
	DiskCapMbps  float64
	ProxyCapMbps float64
	NumProxies   int
}

// Assignment is computed[tenant][disk_id] = assigned bandwidth.
type Assignment map[string]map[string]float64

const shaveTolerance = 1e-9

// Allocate runs the three-stage algorithm. It never returns an error
// for infeasible input — CapacityInfeasible is a property of the
// output (tenants below SLO), not a failure mode (§7). Allocate
// returns an error if snapshot contains a transfer speed below the -1
// sentinel, a contract violation in the input itself, or if stage 3
// finds a negative spare bandwidth slot on a disk.
func Allocate(snapshot Snapshot, slo SLOMap, c Constants) (Assignment, error) {
	computed := make(Assignment)
	diskUsage := make(map[string]map[string][]float64)
	diskOrder := make(map[string][]string) // tenant -> disk ids in first-seen order

	sortedTenants := sortTenantsByTransferCount(snapshot)

	// Stage 1 — first-fit decreasing initial allocation.
	for _, tenant := range sortedTenants {
		observations := snapshot[tenant]
		if _, ok := computed[tenant]; !ok {
			computed[tenant] = make(map[string]float64)
		}
		for _, obs := range observations {
			if obs.Speed < -1 {
				return nil, fmt.Errorf("bandwidth: negative transfer speed %g on disk %q", obs.Speed, obs.DiskID)
			}
			if _, ok := computed[tenant][obs.DiskID]; !ok {
				computed[tenant][obs.DiskID] = 0
				diskOrder[tenant] = append(diskOrder[tenant], obs.DiskID)
			}
			if diskUsage[obs.DiskID] == nil {
				diskUsage[obs.DiskID] = make(map[string][]float64)
			}
			if diskUsage[obs.DiskID][tenant] == nil {
				diskUsage[obs.DiskID][tenant] = []float64{}
			}

			sloTotal, hasSLO := slo[tenant]
			if !hasSLO {
				diskUsage[obs.DiskID][tenant] = append(diskUsage[obs.DiskID][tenant], 0)
				continue
			}
			slotShare := sloTotal / float64(len(observations))
			computed[tenant][obs.DiskID] = slotShare
			diskUsage[obs.DiskID][tenant] = append(diskUsage[obs.DiskID][tenant], slotShare)
		}
	}

	// Stage 2 — offload from overloaded disks, then proportional shave.
	sortedDisks := sortedDiskIDs(diskUsage)
	overloaded := make(map[string]float64)
	var overloadedOrder []string
	for _, diskID := range sortedDisks {
		load := diskLoad(diskUsage[diskID])
		if load > c.DiskCapMbps {
			overloaded[diskID] = load
			overloadedOrder = append(overloadedOrder, diskID)
		}
	}

	for _, diskID := range overloadedOrder {
		excess := overloaded[diskID] - c.DiskCapMbps

		var qosTenants []string
		for tenant := range diskUsage[diskID] {
			if _, ok := slo[tenant]; ok {
				qosTenants = append(qosTenants, tenant)
			}
		}
		sort.Strings(qosTenants)

		var candidates []string
		for _, tenant := range qosTenants {
			if len(computed[tenant]) > 1 {
				candidates = append(candidates, tenant)
			}
		}

		for _, offloadTenant := range candidates {
			if excess <= 0 {
				break
			}
			for _, altDisk := range diskOrder[offloadTenant] {
				if excess <= 0 {
					break
				}
				if altDisk == diskID {
					continue
				}
				altLoad := diskLoad(diskUsage[altDisk])
				if altLoad >= c.DiskCapMbps {
					continue
				}
				transferable := min3(
					c.DiskCapMbps-altLoad,
					sumSlots(diskUsage[diskID][offloadTenant]),
					excess,
				)
				if transferable <= 0 {
					continue
				}

				altConns := len(diskUsage[altDisk][offloadTenant])
				if altConns > 0 {
					incSlot := transferable / float64(altConns)
					addToEach(diskUsage[altDisk][offloadTenant], incSlot)
				}
				computed[offloadTenant][altDisk] += transferable

				srcConns := len(diskUsage[diskID][offloadTenant])
				if srcConns > 0 {
					decSlot := transferable / float64(srcConns)
					subtractFromEach(diskUsage[diskID][offloadTenant], decSlot)
				}
				computed[offloadTenant][diskID] -= transferable

				excess -= transferable
			}
		}

		if excess > shaveTolerance {
			shaveOverload(diskID, excess, qosTenants, diskUsage, computed)
		}
	}

	// Stage 3 — distribute spare capacity across all tenants.
	totalAssigned, totalConns := 0.0, 0.0
	for _, byTenant := range diskUsage {
		for _, slots := range byTenant {
			totalAssigned += sumSlots(slots)
			totalConns += float64(len(slots))
		}
	}
	freeProxyBw := float64(c.NumProxies)*c.ProxyCapMbps - totalAssigned
	freeProxySlot := 0.0
	if freeProxyBw > 0 && totalConns > 0 {
		freeProxySlot = freeProxyBw / totalConns
	}

	for _, diskID := range sortedDiskIDs(diskUsage) {
		spareDiskCapacity := c.DiskCapMbps
		diskConns := 0
		for _, slots := range diskUsage[diskID] {
			spareDiskCapacity -= sumSlots(slots)
			diskConns += len(slots)
		}
		if diskConns == 0 {
			continue
		}
		spareSlot := spareDiskCapacity / float64(diskConns)
		if freeProxySlot < spareSlot {
			spareSlot = freeProxySlot
		}
		if spareSlot < -shaveTolerance {
			return nil, fmt.Errorf("bandwidth: negative spare bandwidth %g on disk %q", spareSlot, diskID)
		}
		if spareSlot < 0 {
			spareSlot = 0
		}
		for tenant := range diskUsage[diskID] {
			computed[tenant][diskID] += spareSlot
			diskUsage[diskID][tenant] = append(diskUsage[diskID][tenant], spareSlot)
		}
	}

	return computed, nil
}

// shaveOverload applies the fixed-point proportional-shaving loop
// (§4.6 stage 2): it converges on the largest reduce_bw_slot that, once
// "useless" tenants (already below it) are excluded, still sums to the
// required excess — bounded by len(qosTenants)+1 iterations, which is
// always enough for the exclusion set to stabilize.
func shaveOverload(diskID string, excess float64, qosTenants []string, diskUsage map[string]map[string][]float64, computed Assignment) {
	reduceSlot := 0.0
	currentUseless := len(qosTenantsBelow(qosTenants, computed, diskID, reduceSlot))

	maxIterations := len(qosTenants) + 1
	for i := 0; i < maxIterations; i++ {
		qosDiskConnections := 0
		useless := make(map[string]struct{})
		for _, t := range qosTenantsBelow(qosTenants, computed, diskID, reduceSlot) {
			useless[t] = struct{}{}
		}
		for _, tenant := range qosTenants {
			if _, skip := useless[tenant]; skip {
				continue
			}
			qosDiskConnections += len(diskUsage[diskID][tenant])
		}

		nextReduceSlot := 0.0
		if qosDiskConnections > 0 {
			nextReduceSlot = excess / float64(qosDiskConnections)
		}
		updatedUseless := len(qosTenantsBelow(qosTenants, computed, diskID, nextReduceSlot))

		reduceSlot = nextReduceSlot
		if updatedUseless == currentUseless {
			break
		}
		currentUseless = updatedUseless
	}

	for _, tenant := range qosTenants {
		if reduceSlot > computed[tenant][diskID] {
			continue
		}
		subtractFromEach(diskUsage[diskID][tenant], reduceSlot)
		computed[tenant][diskID] -= reduceSlot
	}
}

func qosTenantsBelow(qosTenants []string, computed Assignment, diskID string, threshold float64) []string {
	var out []string
	for _, t := range qosTenants {
		if computed[t][diskID] < threshold {
			out = append(out, t)
		}
	}
	return out
}

func sortTenantsByTransferCount(snapshot Snapshot) []string {
	tenants := make([]string, 0, len(snapshot))
	for t := range snapshot {
		tenants = append(tenants, t)
	}
	sort.SliceStable(tenants, func(i, j int) bool {
		li, lj := len(snapshot[tenants[i]]), len(snapshot[tenants[j]])
		if li != lj {
			return li < lj
		}
		return tenants[i] < tenants[j]
	})
	return tenants
}

func sortedDiskIDs(diskUsage map[string]map[string][]float64) []string {
	out := make([]string, 0, len(diskUsage))
	for id := range diskUsage {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func diskLoad(byTenant map[string][]float64) float64 {
	total := 0.0
	for _, slots := range byTenant {
		total += sumSlots(slots)
	}
	return total
}

func sumSlots(slots []float64) float64 {
	total := 0.0
	for _, s := range slots {
		total += s
	}
	return total
}

func addToEach(slots []float64, delta float64) {
	for i := range slots {
		slots[i] += delta
	}
}

func subtractFromEach(slots []float64, delta float64) {
	for i := range slots {
		slots[i] -= delta
	}
}

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
