package ruleactor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdslabs/policyctl/internal/condition"
	"github.com/sdslabs/policyctl/internal/dsl"
	"github.com/sdslabs/policyctl/pkg/logger"
)

type recordingDeployer struct {
	mu       sync.Mutex
	deployed int
	removed  int
}

func (d *recordingDeployer) Deploy(ctx context.Context, target dsl.Target, action dsl.Action) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deployed++
	return nil
}

func (d *recordingDeployer) Remove(ctx context.Context, target dsl.Target, action dsl.Action) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removed++
	return nil
}

func (d *recordingDeployer) counts() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deployed, d.removed
}

type stubStopper struct{ stopped chan string }

func (s stubStopper) Stop(address string) error {
	s.stopped <- address
	return nil
}

func TestPersistentTogglesOnEdgeOnly(t *testing.T) {
	updates := make(chan MetricUpdate, 4)
	d := &recordingDeployer{}
	p := &Persistent{
		Condition: "metric.cpu > 80",
		Updates:   updates,
		Evaluator: condition.New(),
		Deployer:  d,
		Log:       logger.NewDefault("test"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = p.Run(ctx); close(done) }()

	updates <- MetricUpdate{"cpu": 90} // edge: deploy
	updates <- MetricUpdate{"cpu": 95} // still true: no-op
	updates <- MetricUpdate{"cpu": 10} // edge: remove
	updates <- MetricUpdate{"cpu": 5}  // still false: no-op

	assert.Eventually(t, func() bool {
		dep, rem := d.counts()
		return dep == 1 && rem == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestTransientFiresOnceThenStops(t *testing.T) {
	updates := make(chan MetricUpdate, 2)
	d := &recordingDeployer{}
	stopper := stubStopper{stopped: make(chan string, 1)}
	tr := &Transient{
		Address:   "policy:1",
		Condition: "metric.cpu > 80",
		Updates:   updates,
		Evaluator: condition.New(),
		Deployer:  d,
		Host:      stopper,
		Log:       logger.NewDefault("test"),
	}

	updates <- MetricUpdate{"cpu": 10} // below threshold: no-op
	updates <- MetricUpdate{"cpu": 99} // fires

	require.NoError(t, tr.Run(context.Background()))

	dep, _ := d.counts()
	assert.Equal(t, 1, dep)

	select {
	case addr := <-stopper.stopped:
		assert.Equal(t, "policy:1", addr)
	case <-time.After(time.Second):
		t.Fatal("expected stop to be requested")
	}
}
