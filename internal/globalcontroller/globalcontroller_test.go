package globalcontroller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdslabs/policyctl/internal/actorhost"
	"github.com/sdslabs/policyctl/internal/bandwidth"
	"github.com/sdslabs/policyctl/internal/domain"
	"github.com/sdslabs/policyctl/internal/enforcement"
	"github.com/sdslabs/policyctl/internal/metricsub"
	"github.com/sdslabs/policyctl/internal/ruleactor"
	"github.com/sdslabs/policyctl/internal/store"
	"github.com/sdslabs/policyctl/internal/store/memstore"
	"github.com/sdslabs/policyctl/pkg/logger"
)

type fakeSource struct {
	streams map[string]chan ruleactor.MetricUpdate
}

func newFakeSource() *fakeSource {
	return &fakeSource{streams: make(map[string]chan ruleactor.MetricUpdate)}
}

func (f *fakeSource) Stream(_ context.Context, metricName string) (<-chan ruleactor.MetricUpdate, error) {
	ch := make(chan ruleactor.MetricUpdate, 8)
	f.streams[metricName] = ch
	return ch, nil
}

func newTestSupervisor(t *testing.T) (*Supervisor, *memstore.Memory, *fakeSource) {
	t.Helper()
	log := logger.NewDefault("test")
	host := actorhost.New(time.Second, log)
	src := newFakeSource()
	metrics := metricsub.New(host, src, log)
	st := memstore.New()

	notifier := enforcement.NewLimiterNotifier()
	constants := bandwidth.Constants{DiskCapMbps: 1000, ProxyCapMbps: 2000, NumProxies: 1}
	factory := DefaultFactory(st, notifier, constants, nil, log)

	sup := New(st, host, metrics, factory, 20*time.Millisecond, log)
	return sup, st, src
}

func TestEnableSpawnsActorAndMarksEnabled(t *testing.T) {
	sup, st, _ := newTestSupervisor(t)
	ctx := context.Background()

	id, err := st.Next(ctx, store.CounterController)
	require.NoError(t, err)
	require.NoError(t, st.PutController(ctx, domain.GlobalController{
		ID: id, Name: "get-bw", ClassName: "BwController", MethodType: domain.MethodGET, DSLFilter: "bandwidth",
	}))

	require.NoError(t, sup.Enable(ctx, id))

	c, err := st.GetController(ctx, id)
	require.NoError(t, err)
	assert.True(t, c.Enabled)
	assert.True(t, sup.Host.Lookup(controllerAddress(id)))
	assert.Equal(t, 1, sup.Metrics.RefCount(BwInfoMetricName(domain.MethodGET)))
}

func TestDisableStopsActorAndDecrementsRefcount(t *testing.T) {
	sup, st, _ := newTestSupervisor(t)
	ctx := context.Background()

	id, _ := st.Next(ctx, store.CounterController)
	require.NoError(t, st.PutController(ctx, domain.GlobalController{
		ID: id, Name: "put-bw", MethodType: domain.MethodPUT, DSLFilter: "bandwidth",
	}))
	require.NoError(t, sup.Enable(ctx, id))
	require.NoError(t, sup.Disable(ctx, id))

	c, _ := st.GetController(ctx, id)
	assert.False(t, c.Enabled)
	assert.Eventually(t, func() bool { return !sup.Host.Lookup(controllerAddress(id)) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, sup.Metrics.RefCount(BwInfoMetricName(domain.MethodPUT)))
}

func TestDeleteResetsCounterWhenEmpty(t *testing.T) {
	sup, st, _ := newTestSupervisor(t)
	ctx := context.Background()

	id, _ := st.Next(ctx, store.CounterController)
	require.NoError(t, st.PutController(ctx, domain.GlobalController{ID: id, MethodType: domain.MethodGET, DSLFilter: "bandwidth"}))
	require.NoError(t, sup.Enable(ctx, id))
	require.NoError(t, sup.Delete(ctx, id))

	next, err := st.Next(ctx, store.CounterController)
	require.NoError(t, err)
	assert.Equal(t, int64(1), next)
}

func TestBandwidthRunnerIngestAndTick(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	notifier := enforcement.NewLimiterNotifier()
	log := logger.NewDefault("test")
	runner := NewBandwidthRunner(st, notifier, bandwidth.Constants{DiskCapMbps: 100, ProxyCapMbps: 100, NumProxies: 1}, domain.MethodGET, nil, log)

	require.NoError(t, st.PutSLOEntry(ctx, domain.SLOKey{SLOName: "get_bw", Tenant: "AUTH_t1"}, domain.SLOEntry{PolicyID: 1, BandwidthMBps: 40}))

	runner.Ingest(ruleactor.MetricUpdate{ObservationKey("AUTH_t1", "1.1.1.1-0-sda"): 10})
	require.NoError(t, runner.Tick(ctx))

	assert.Greater(t, notifier.Limit("AUTH_t1", "1.1.1.1-0-sda"), 0.0)
}

func TestDummyRunnerTickIsNoop(t *testing.T) {
	d := DummyRunner{Name: "x", Log: logger.NewDefault("test")}
	d.Ingest(ruleactor.MetricUpdate{"a": 1})
	assert.NoError(t, d.Tick(context.Background()))
}
