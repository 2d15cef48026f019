package metricsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdslabs/policyctl/internal/actorhost"
	"github.com/sdslabs/policyctl/internal/ruleactor"
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

func TestSubscribeSharesSingleActor(t *testing.T) {
	host := actorhost.New(time.Second, logger.NewDefault("test"))
	src := newFakeSource()
	m := New(host, src, logger.NewDefault("test"))

	ch1, unsub1, err := m.Subscribe("ssync_bw")
	require.NoError(t, err)
	ch2, unsub2, err := m.Subscribe("ssync_bw")
	require.NoError(t, err)

	assert.Equal(t, 2, m.RefCount("ssync_bw"))
	assert.True(t, host.Lookup("metric:ssync_bw"))

	src.streams["ssync_bw"] <- ruleactor.MetricUpdate{"cpu": 42}

	assertReceived := func(ch <-chan ruleactor.MetricUpdate) {
		select {
		case u := <-ch:
			assert.Equal(t, float64(42), u["cpu"])
		case <-time.After(time.Second):
			t.Fatal("expected update")
		}
	}
	assertReceived(ch1)
	assertReceived(ch2)

	unsub1()
	assert.Equal(t, 1, m.RefCount("ssync_bw"))
	assert.True(t, host.Lookup("metric:ssync_bw"))

	unsub2()
	assert.Equal(t, 0, m.RefCount("ssync_bw"))
	assert.Eventually(t, func() bool { return !host.Lookup("metric:ssync_bw") }, time.Second, 5*time.Millisecond)
}

func TestConsumerKindRegistry(t *testing.T) {
	assert.Equal(t, "BwInfoSSYNC", ConsumerKind("bandwidth", "SSYNC"))
	assert.Equal(t, "BwInfo", ConsumerKind("bandwidth", "GET"))
	assert.Equal(t, "dummy", ConsumerKind("compression", "GET"))
}
