package policyengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdslabs/policyctl/internal/actorhost"
	"github.com/sdslabs/policyctl/internal/domain"
	"github.com/sdslabs/policyctl/internal/dsl"
	"github.com/sdslabs/policyctl/internal/metricsub"
	"github.com/sdslabs/policyctl/internal/ruleactor"
	"github.com/sdslabs/policyctl/internal/store"
	"github.com/sdslabs/policyctl/internal/store/memstore"
	"github.com/sdslabs/policyctl/pkg/logger"
)

type openSource struct{}

func (openSource) Stream(_ context.Context, _ string) (<-chan ruleactor.MetricUpdate, error) {
	ch := make(chan ruleactor.MetricUpdate, 8)
	return ch, nil
}

func newTestEngine() *Engine {
	log := logger.NewDefault("test")
	host := actorhost.New(time.Second, log)
	ms := memstore.New()
	metrics := metricsub.New(host, openSource{}, log)
	return New(ms, host, dsl.SimpleParser{}, metrics, log)
}

func TestSubmitRulesStaticSet(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()

	_, err := e.SubmitRules(ctx, "FOR TENANT:abc DO SET compression")
	require.NoError(t, err)

	entries, err := e.Store.ListPipelineEntries(ctx, domain.PipelineKey{TenantID: "abc"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "compression", entries[0].FilterName)
	assert.Equal(t, entries[0].PolicyID, entries[0].ExecutionOrder)
}

func TestSubmitRulesDynamicTransient(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()

	policies, err := e.SubmitRules(ctx, "FOR TENANT:abc WHEN metric.cpu > 80 DO SET compression TRANSIENT")
	require.NoError(t, err)
	require.Len(t, policies, 1)

	p := policies[0]
	assert.True(t, p.Transient)
	assert.Equal(t, "FOR TENANT:abc DO SET compression", p.StaticText)
	assert.Equal(t, "metric.cpu > 80", p.ConditionText)
	assert.True(t, e.Host.Lookup(p.ActorAddress))
}

func TestSubmitRulesRejectsInvalidRule(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()

	_, err := e.SubmitRules(ctx, "DO SET compression")
	assert.Error(t, err)
}

func TestDeleteDynamicPolicyResetsCounterWhenEmpty(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()

	policies, err := e.SubmitRules(ctx, "FOR TENANT:abc WHEN metric.cpu > 80 DO SET compression TRANSIENT")
	require.NoError(t, err)
	require.Len(t, policies, 1)

	require.NoError(t, e.DeleteDynamicPolicy(ctx, policies[0].ID))

	remaining, err := e.Store.ListPolicies(ctx)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	nextID, err := e.Store.Next(ctx, store.CounterPolicy)
	require.NoError(t, err)
	assert.Equal(t, int64(1), nextID)
}

func TestReloadOnStartRespawnsAliveActors(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()

	p := domain.Policy{
		ID:            42,
		OriginalText:  "FOR TENANT:abc WHEN metric.cpu > 80 DO SET compression TRANSIENT",
		ConditionText: "metric.cpu > 80",
		StaticText:    "FOR TENANT:abc DO SET compression",
		Transient:     false,
		Alive:         true,
		ActorAddress:  "policy:42",
	}
	require.NoError(t, e.Store.PutPolicy(ctx, p))

	require.NoError(t, e.ReloadOnStart(ctx))
	assert.True(t, e.Host.Lookup("policy:42"))
}
