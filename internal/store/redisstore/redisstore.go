// Package redisstore is the production StateStore (C1), backed by
// go-redis/redis/v8. Hash entities are stored as a single JSON blob
// under field "data" inside a per-entity hash key (keeping the key
// layout named in the persisted-key-layout contract while avoiding a
// bespoke per-field HSET for every entity shape); ordered sequences
// (tenant groups, object types) use DEL+RPUSH inside TxPipelined for
// atomicity, mirroring original_source's
// `pipe.delete(key); pipe.rpush(key, *items); pipe.execute()` pattern.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/sdslabs/policyctl/internal/apperrors"
	"github.com/sdslabs/policyctl/internal/domain"
	"github.com/sdslabs/policyctl/internal/store"
)

const dataField = "data"

// Store is the redis-backed StateStore.
type Store struct {
	rdb *redis.Client
}

// New wraps an existing redis client.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}
	return nil
}

func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
}

func putHash(ctx context.Context, rdb *redis.Client, key string, v interface{}) error {
	blob, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := rdb.HSet(ctx, key, dataField, blob).Err(); err != nil {
		return wrapStoreErr(err)
	}
	return nil
}

func getHash(ctx context.Context, rdb *redis.Client, key string, out interface{}) error {
	blob, err := rdb.HGet(ctx, key, dataField).Result()
	if err == redis.Nil {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return wrapStoreErr(err)
	}
	return json.Unmarshal([]byte(blob), out)
}

func deleteKey(ctx context.Context, rdb *redis.Client, key string) error {
	n, err := rdb.Del(ctx, key).Result()
	if err != nil {
		return wrapStoreErr(err)
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanKeys(ctx context.Context, rdb *redis.Client, pattern string) ([]string, error) {
	var keys []string
	iter := rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, wrapStoreErr(err)
	}
	return keys, nil
}

// Counters ------------------------------------------------------------------

func (s *Store) Next(ctx context.Context, c store.Counter) (int64, error) {
	n, err := s.rdb.Incr(ctx, string(c)).Result()
	if err != nil {
		return 0, wrapStoreErr(err)
	}
	return n, nil
}

func (s *Store) ResetCounter(ctx context.Context, c store.Counter) error {
	if err := s.rdb.Set(ctx, string(c), 0, 0).Err(); err != nil {
		return wrapStoreErr(err)
	}
	return nil
}

// Filters ---------------------------------------------------------------

func filterKey(id int64) string { return fmt.Sprintf("filter:%d", id) }

func (s *Store) PutFilter(ctx context.Context, f domain.Filter) error {
	return putHash(ctx, s.rdb, filterKey(f.ID), f)
}

func (s *Store) GetFilter(ctx context.Context, id int64) (domain.Filter, error) {
	var f domain.Filter
	err := getHash(ctx, s.rdb, filterKey(id), &f)
	return f, err
}

func (s *Store) DeleteFilter(ctx context.Context, id int64) error {
	return deleteKey(ctx, s.rdb, filterKey(id))
}

func dynamicFilterKey(name string) string { return fmt.Sprintf("dsl_filter:%s", name) }

func (s *Store) PutDynamicFilter(ctx context.Context, df domain.DynamicFilter) error {
	return putHash(ctx, s.rdb, dynamicFilterKey(df.Name), df)
}

func (s *Store) GetDynamicFilter(ctx context.Context, name string) (domain.DynamicFilter, error) {
	var df domain.DynamicFilter
	err := getHash(ctx, s.rdb, dynamicFilterKey(name), &df)
	return df, err
}

func (s *Store) ListDynamicFilters(ctx context.Context) ([]domain.DynamicFilter, error) {
	keys, err := scanKeys(ctx, s.rdb, "dsl_filter:*")
	if err != nil {
		return nil, err
	}
	out := make([]domain.DynamicFilter, 0, len(keys))
	for _, k := range keys {
		var df domain.DynamicFilter
		if err := getHash(ctx, s.rdb, k, &df); err != nil {
			continue
		}
		out = append(out, df)
	}
	return out, nil
}

func (s *Store) DeleteDynamicFilter(ctx context.Context, name string) error {
	return deleteKey(ctx, s.rdb, dynamicFilterKey(name))
}

// Pipeline entries --------------------------------------------------------

func pipelineKey(key domain.PipelineKey) string {
	k := "pipeline:AUTH_" + key.TenantID
	if key.Container != "" {
		k += ":" + key.Container
	}
	if key.Object != "" {
		k += ":" + key.Object
	}
	return k
}

func (s *Store) PutPipelineEntry(ctx context.Context, key domain.PipelineKey, e domain.PipelineEntry) error {
	blob, err := json.Marshal(e)
	if err != nil {
		return err
	}
	field := strconv.FormatInt(e.PolicyID, 10)
	if err := s.rdb.HSet(ctx, pipelineKey(key), field, blob).Err(); err != nil {
		return wrapStoreErr(err)
	}
	return nil
}

func (s *Store) DeletePipelineEntry(ctx context.Context, key domain.PipelineKey, policyID int64) error {
	field := strconv.FormatInt(policyID, 10)
	n, err := s.rdb.HDel(ctx, pipelineKey(key), field).Result()
	if err != nil {
		return wrapStoreErr(err)
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (s *Store) ListPipelineEntries(ctx context.Context, key domain.PipelineKey) ([]domain.PipelineEntry, error) {
	raw, err := s.rdb.HGetAll(ctx, pipelineKey(key)).Result()
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	out := make([]domain.PipelineEntry, 0, len(raw))
	for _, blob := range raw {
		var e domain.PipelineEntry
		if err := json.Unmarshal([]byte(blob), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	sortPipelineEntries(out)
	return out, nil
}

func sortPipelineEntries(entries []domain.PipelineEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0; j-- {
			a, b := entries[j-1], entries[j]
			less := a.ExecutionOrder < b.ExecutionOrder ||
				(a.ExecutionOrder == b.ExecutionOrder && a.PolicyID <= b.PolicyID)
			if less {
				break
			}
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
}

func (s *Store) ScanPipelinesReferencingFilter(ctx context.Context, filterID int64) ([]domain.PipelineKey, error) {
	keys, err := scanKeys(ctx, s.rdb, "pipeline:AUTH_*")
	if err != nil {
		return nil, err
	}
	var out []domain.PipelineKey
	for _, k := range keys {
		raw, err := s.rdb.HGetAll(ctx, k).Result()
		if err != nil {
			continue
		}
		for _, blob := range raw {
			var e domain.PipelineEntry
			if err := json.Unmarshal([]byte(blob), &e); err == nil && e.FilterID == filterID {
				out = append(out, parsePipelineKey(k))
				break
			}
		}
	}
	return out, nil
}

func parsePipelineKey(redisKey string) domain.PipelineKey {
	trimmed := strings.TrimPrefix(redisKey, "pipeline:AUTH_")
	parts := strings.SplitN(trimmed, ":", 2)
	pk := domain.PipelineKey{TenantID: parts[0]}
	if len(parts) == 2 {
		pk.Container = parts[1]
	}
	return pk
}

// Metrics -----------------------------------------------------------------

func metricKey(id int64) string { return fmt.Sprintf("workload_metric:%d", id) }

func (s *Store) PutMetric(ctx context.Context, m domain.WorkloadMetric) error {
	return putHash(ctx, s.rdb, metricKey(m.ID), m)
}

func (s *Store) GetMetric(ctx context.Context, id int64) (domain.WorkloadMetric, error) {
	var m domain.WorkloadMetric
	err := getHash(ctx, s.rdb, metricKey(id), &m)
	return m, err
}

func (s *Store) GetMetricByName(ctx context.Context, name string) (domain.WorkloadMetric, error) {
	all, err := s.ListMetrics(ctx)
	if err != nil {
		return domain.WorkloadMetric{}, err
	}
	for _, m := range all {
		if m.Name == name {
			return m, nil
		}
	}
	return domain.WorkloadMetric{}, apperrors.ErrNotFound
}

func (s *Store) ListMetrics(ctx context.Context) ([]domain.WorkloadMetric, error) {
	keys, err := scanKeys(ctx, s.rdb, "workload_metric:*")
	if err != nil {
		return nil, err
	}
	out := make([]domain.WorkloadMetric, 0, len(keys))
	for _, k := range keys {
		var m domain.WorkloadMetric
		if err := getHash(ctx, s.rdb, k, &m); err == nil {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) DeleteMetric(ctx context.Context, id int64) error {
	return deleteKey(ctx, s.rdb, metricKey(id))
}

// Policies ------------------------------------------------------------------

func policyKey(id int64) string { return fmt.Sprintf("policy:%d", id) }

func (s *Store) PutPolicy(ctx context.Context, p domain.Policy) error {
	return putHash(ctx, s.rdb, policyKey(p.ID), p)
}

func (s *Store) GetPolicy(ctx context.Context, id int64) (domain.Policy, error) {
	var p domain.Policy
	err := getHash(ctx, s.rdb, policyKey(id), &p)
	return p, err
}

func (s *Store) ListPolicies(ctx context.Context) ([]domain.Policy, error) {
	keys, err := scanKeys(ctx, s.rdb, "policy:*")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Policy, 0, len(keys))
	for _, k := range keys {
		var p domain.Policy
		if err := getHash(ctx, s.rdb, k, &p); err == nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) ListAlivePolicies(ctx context.Context) ([]domain.Policy, error) {
	all, err := s.ListPolicies(ctx)
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

func (s *Store) DeletePolicy(ctx context.Context, id int64) error {
	return deleteKey(ctx, s.rdb, policyKey(id))
}

// Controllers -----------------------------------------------------------

func controllerKey(id int64) string { return fmt.Sprintf("controller:%d", id) }

func (s *Store) PutController(ctx context.Context, c domain.GlobalController) error {
	return putHash(ctx, s.rdb, controllerKey(c.ID), c)
}

func (s *Store) GetController(ctx context.Context, id int64) (domain.GlobalController, error) {
	var c domain.GlobalController
	err := getHash(ctx, s.rdb, controllerKey(id), &c)
	return c, err
}

func (s *Store) ListControllers(ctx context.Context) ([]domain.GlobalController, error) {
	keys, err := scanKeys(ctx, s.rdb, "controller:*")
	if err != nil {
		return nil, err
	}
	out := make([]domain.GlobalController, 0, len(keys))
	for _, k := range keys {
		var c domain.GlobalController
		if err := getHash(ctx, s.rdb, k, &c); err == nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) DeleteController(ctx context.Context, id int64) error {
	return deleteKey(ctx, s.rdb, controllerKey(id))
}

// Storage nodes -----------------------------------------------------------

func nodeKey(id int64) string { return fmt.Sprintf("SN:%d", id) }

func (s *Store) PutNode(ctx context.Context, n domain.StorageNode) error {
	return putHash(ctx, s.rdb, nodeKey(n.ID), n)
}

func (s *Store) GetNode(ctx context.Context, id int64) (domain.StorageNode, error) {
	var n domain.StorageNode
	err := getHash(ctx, s.rdb, nodeKey(id), &n)
	return n, err
}

func (s *Store) ListNodes(ctx context.Context) ([]domain.StorageNode, error) {
	keys, err := scanKeys(ctx, s.rdb, "SN:*")
	if err != nil {
		return nil, err
	}
	out := make([]domain.StorageNode, 0, len(keys))
	for _, k := range keys {
		var n domain.StorageNode
		if err := getHash(ctx, s.rdb, k, &n); err == nil {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Store) DeleteNode(ctx context.Context, id int64) error {
	return deleteKey(ctx, s.rdb, nodeKey(id))
}

// Tenant groups -------------------------------------------------------------

func tenantGroupKey(id int64) string { return fmt.Sprintf("G:%d", id) }

func (s *Store) ReplaceTenantGroup(ctx context.Context, id int64, tenants []string) error {
	key := tenantGroupKey(id)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(tenants) > 0 {
			items := make([]interface{}, len(tenants))
			for i, t := range tenants {
				items[i] = t
			}
			pipe.RPush(ctx, key, items...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrConflict, err)
	}
	return nil
}

func (s *Store) GetTenantGroup(ctx context.Context, id int64) (domain.TenantGroup, error) {
	tenants, err := s.rdb.LRange(ctx, tenantGroupKey(id), 0, -1).Result()
	if err != nil {
		return domain.TenantGroup{}, wrapStoreErr(err)
	}
	if len(tenants) == 0 {
		return domain.TenantGroup{}, apperrors.ErrNotFound
	}
	return domain.TenantGroup{ID: id, Tenants: tenants}, nil
}

func (s *Store) ListTenantGroups(ctx context.Context) ([]domain.TenantGroup, error) {
	keys, err := scanKeys(ctx, s.rdb, "G:*")
	if err != nil {
		return nil, err
	}
	out := make([]domain.TenantGroup, 0, len(keys))
	for _, k := range keys {
		idStr := strings.TrimPrefix(k, "G:")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}
		g, err := s.GetTenantGroup(ctx, id)
		if err == nil {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *Store) DeleteTenantGroup(ctx context.Context, id int64) error {
	return deleteKey(ctx, s.rdb, tenantGroupKey(id))
}

func (s *Store) RemoveTenantFromGroup(ctx context.Context, id int64, tenant string) error {
	g, err := s.GetTenantGroup(ctx, id)
	if err != nil {
		return err
	}
	kept := g.Tenants[:0:0]
	for _, t := range g.Tenants {
		if t != tenant {
			kept = append(kept, t)
		}
	}
	return s.ReplaceTenantGroup(ctx, id, kept)
}

// Object types ----------------------------------------------------------

func objectTypeKey(name string) string { return fmt.Sprintf("object_type:%s", name) }

func (s *Store) ReplaceObjectType(ctx context.Context, name string, extensions []string) error {
	key := objectTypeKey(name)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(extensions) > 0 {
			items := make([]interface{}, len(extensions))
			for i, e := range extensions {
				items[i] = e
			}
			pipe.RPush(ctx, key, items...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrConflict, err)
	}
	return nil
}

func (s *Store) GetObjectType(ctx context.Context, name string) (domain.ObjectType, error) {
	ext, err := s.rdb.LRange(ctx, objectTypeKey(name), 0, -1).Result()
	if err != nil {
		return domain.ObjectType{}, wrapStoreErr(err)
	}
	if len(ext) == 0 {
		return domain.ObjectType{}, apperrors.ErrNotFound
	}
	return domain.ObjectType{Name: name, Extensions: ext}, nil
}

func (s *Store) ListObjectTypes(ctx context.Context) ([]domain.ObjectType, error) {
	keys, err := scanKeys(ctx, s.rdb, "object_type:*")
	if err != nil {
		return nil, err
	}
	out := make([]domain.ObjectType, 0, len(keys))
	for _, k := range keys {
		name := strings.TrimPrefix(k, "object_type:")
		ot, err := s.GetObjectType(ctx, name)
		if err == nil {
			out = append(out, ot)
		}
	}
	return out, nil
}

func (s *Store) DeleteObjectType(ctx context.Context, name string) error {
	return deleteKey(ctx, s.rdb, objectTypeKey(name))
}

func (s *Store) RemoveObjectTypeItem(ctx context.Context, name, extension string) error {
	ot, err := s.GetObjectType(ctx, name)
	if err != nil {
		return err
	}
	kept := ot.Extensions[:0:0]
	for _, e := range ot.Extensions {
		if e != extension {
			kept = append(kept, e)
		}
	}
	return s.ReplaceObjectType(ctx, name, kept)
}

// SLOs --------------------------------------------------------------------

func sloKey(key domain.SLOKey) string { return fmt.Sprintf("slo:%s:%s", key.SLOName, key.Tenant) }

func (s *Store) PutSLOEntry(ctx context.Context, key domain.SLOKey, entry domain.SLOEntry) error {
	field := strconv.FormatInt(entry.PolicyID, 10)
	if err := s.rdb.HSet(ctx, sloKey(key), field, strconv.FormatFloat(entry.BandwidthMBps, 'f', -1, 64)).Err(); err != nil {
		return wrapStoreErr(err)
	}
	return nil
}

func (s *Store) DeleteSLOEntry(ctx context.Context, key domain.SLOKey, policyID int64) error {
	field := strconv.FormatInt(policyID, 10)
	n, err := s.rdb.HDel(ctx, sloKey(key), field).Result()
	if err != nil {
		return wrapStoreErr(err)
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (s *Store) GetSLOTotal(ctx context.Context, key domain.SLOKey) (float64, error) {
	raw, err := s.rdb.HGetAll(ctx, sloKey(key)).Result()
	if err != nil {
		return 0, wrapStoreErr(err)
	}
	var total float64
	for _, v := range raw {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			total += f
		}
	}
	return total, nil
}

func (s *Store) ListSLOTenants(ctx context.Context, sloName string) ([]string, error) {
	keys, err := scanKeys(ctx, s.rdb, "slo:"+sloName+":*")
	if err != nil {
		return nil, err
	}
	prefix := "slo:" + sloName + ":"
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, prefix))
	}
	return out, nil
}

var _ store.StateStore = (*Store)(nil)
