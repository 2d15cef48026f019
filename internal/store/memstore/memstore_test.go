package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdslabs/policyctl/internal/domain"
	"github.com/sdslabs/policyctl/internal/store"
)

func TestCounterMonotonic(t *testing.T) {
	ctx := context.Background()
	m := New()

	var ids []int64
	for i := 0; i < 5; i++ {
		id, err := m.Next(ctx, store.CounterPolicy)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids)

	require.NoError(t, m.ResetCounter(ctx, store.CounterPolicy))
	id, err := m.Next(ctx, store.CounterPolicy)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestReplaceTenantGroupAtomic(t *testing.T) {
	ctx := context.Background()
	m := New()

	require.NoError(t, m.ReplaceTenantGroup(ctx, 1, []string{"a", "b", "c"}))
	g, err := m.GetTenantGroup(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, g.Tenants)

	require.NoError(t, m.ReplaceTenantGroup(ctx, 1, []string{"x", "y"}))
	g, err = m.GetTenantGroup(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, g.Tenants)
}

func TestScanPipelinesReferencingFilter(t *testing.T) {
	ctx := context.Background()
	m := New()

	key := domain.PipelineKey{TenantID: "AUTH_abc"}
	require.NoError(t, m.PutPipelineEntry(ctx, key, domain.PipelineEntry{PolicyID: 1, FilterID: 42}))

	refs, err := m.ScanPipelinesReferencingFilter(ctx, 42)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "AUTH_abc", refs[0].TenantID)

	refs, err = m.ScanPipelinesReferencingFilter(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestListPipelineEntriesOrdering(t *testing.T) {
	ctx := context.Background()
	m := New()
	key := domain.PipelineKey{TenantID: "AUTH_abc"}

	require.NoError(t, m.PutPipelineEntry(ctx, key, domain.PipelineEntry{PolicyID: 2, ExecutionOrder: 5}))
	require.NoError(t, m.PutPipelineEntry(ctx, key, domain.PipelineEntry{PolicyID: 1, ExecutionOrder: 3}))
	require.NoError(t, m.PutPipelineEntry(ctx, key, domain.PipelineEntry{PolicyID: 3, ExecutionOrder: 3}))

	entries, err := m.ListPipelineEntries(ctx, key)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, int64(1), entries[0].PolicyID)
	assert.Equal(t, int64(3), entries[1].PolicyID)
	assert.Equal(t, int64(2), entries[2].PolicyID)
}

func TestNotFoundErrors(t *testing.T) {
	ctx := context.Background()
	m := New()
	_, err := m.GetPolicy(ctx, 123)
	assert.Error(t, err)
}
