// Package metricsub is the Metric Subscription Manager (C5): it
// ensures exactly one metric consumer actor exists per needed stream,
// shares that stream across every dependent, and ref-counts teardown
// so the actor stops the moment the last subscriber leaves.
package metricsub

import (
	"context"
	"strings"
	"sync"

	"github.com/sdslabs/policyctl/internal/actorhost"
	"github.com/sdslabs/policyctl/internal/ruleactor"
	"github.com/sdslabs/policyctl/pkg/logger"
)

// Source produces the raw metric stream backing one metric_name; the
// message-bus wire format that fills it is out of scope (§1 non-goal)
// and supplied externally.
type Source interface {
	Stream(ctx context.Context, metricName string) (<-chan ruleactor.MetricUpdate, error)
}

// ConsumerKind names the registry entry a metric_name resolves to:
// "bandwidth+ssync -> BwInfoSSYNC, other methods -> BwInfo" (§4.4).
func ConsumerKind(dslFilter, method string) string {
	if strings.EqualFold(dslFilter, "bandwidth") && strings.EqualFold(method, "SSYNC") {
		return "BwInfoSSYNC"
	}
	if strings.EqualFold(dslFilter, "bandwidth") {
		return "BwInfo"
	}
	return "dummy"
}

type subscription struct {
	refcount    int
	subscribers map[int]chan ruleactor.MetricUpdate
	nextSubID   int
}

// Manager is the C5 subscription table.
type Manager struct {
	mu     sync.Mutex
	subs   map[string]*subscription
	host   *actorhost.Host
	source Source
	log    *logger.Logger
}

// New creates a Manager. source backs every metric_name's stream;
// host owns the one consumer actor per metric_name.
func New(host *actorhost.Host, source Source, log *logger.Logger) *Manager {
	return &Manager{
		subs:   make(map[string]*subscription),
		host:   host,
		source: source,
		log:    log,
	}
}

// Subscribe increments metricName's refcount, spawning its consumer
// actor on first use, and returns a channel of updates plus an
// unsubscribe func. Calling unsubscribe more than once is a no-op.
func (m *Manager) Subscribe(metricName string) (<-chan ruleactor.MetricUpdate, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, exists := m.subs[metricName]
	if !exists {
		stream, err := m.source.Stream(context.Background(), metricName)
		if err != nil {
			return nil, nil, err
		}
		sub = &subscription{subscribers: make(map[int]chan ruleactor.MetricUpdate)}
		m.subs[metricName] = sub

		address := metricActorAddress(metricName)
		consumer := &broadcastActor{manager: m, metricName: metricName, stream: stream}
		if err := m.host.Spawn(address, consumer); err != nil {
			delete(m.subs, metricName)
			return nil, nil, err
		}
	}

	sub.refcount++
	id := sub.nextSubID
	sub.nextSubID++
	ch := make(chan ruleactor.MetricUpdate, 16)
	sub.subscribers[id] = ch

	var once sync.Once
	unsubscribe := func() { once.Do(func() { m.unsubscribe(metricName, id) }) }
	return ch, unsubscribe, nil
}

func (m *Manager) unsubscribe(metricName string, id int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[metricName]
	if !ok {
		return
	}
	if ch, ok := sub.subscribers[id]; ok {
		delete(sub.subscribers, id)
		close(ch)
	}
	sub.refcount--
	if sub.refcount <= 0 {
		delete(m.subs, metricName)
		if err := m.host.Stop(metricActorAddress(metricName)); err != nil {
			m.log.WithField("metric", metricName).WithField("error", err).Warn("stopping metric consumer actor")
		}
	}
}

// RefCount reports metricName's current subscriber count, for tests
// and diagnostics.
func (m *Manager) RefCount(metricName string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[metricName]
	if !ok {
		return 0
	}
	return sub.refcount
}

func (m *Manager) fanOut(metricName string, update ruleactor.MetricUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[metricName]
	if !ok {
		return
	}
	for _, ch := range sub.subscribers {
		select {
		case ch <- update:
		default:
		}
	}
}

func metricActorAddress(metricName string) string {
	return "metric:" + metricName
}

// broadcastActor is the metric consumer actor (C5's "spawn on first
// need"); it fans every update from the injected Source out to all
// current subscribers of its metric_name.
type broadcastActor struct {
	manager    *Manager
	metricName string
	stream     <-chan ruleactor.MetricUpdate
}

func (a *broadcastActor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-a.stream:
			if !ok {
				return nil
			}
			a.manager.fanOut(a.metricName, update)
		}
	}
}
