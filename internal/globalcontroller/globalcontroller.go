// Package globalcontroller is the Global Controller Supervisor (C6): it
// owns the lifecycle of periodic controllers, wiring each enabled one to
// its metric stream through the Metric Subscription Manager (C5) and
// driving its poll loop, grounded in the teacher's
// internal/app/services/automation.Scheduler (map + mutex + ticker) and
// its JobDispatcher seam, generalized from "one scheduler, many jobs" to
// "one actor per controller".
package globalcontroller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sdslabs/policyctl/internal/actorhost"
	"github.com/sdslabs/policyctl/internal/apperrors"
	"github.com/sdslabs/policyctl/internal/domain"
	"github.com/sdslabs/policyctl/internal/metricsub"
	"github.com/sdslabs/policyctl/internal/ruleactor"
	"github.com/sdslabs/policyctl/internal/store"
	"github.com/sdslabs/policyctl/pkg/logger"
)

// cronParser accepts the "@every <duration>" and standard five-field
// forms; the supervisor only uses it to compute the delta to the next
// fire time, not to run a cron daemon (SPEC_FULL.md §4.5).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Runner executes one controller's periodic work against the metric
// updates accumulated since the last tick. BandwidthRunner is the only
// concrete kind spec.md names; DummyRunner stands in for every other
// dsl_filter, matching §9's "controller-to-metric mapping for
// non-bandwidth controllers is left as dummy in the source".
type Runner interface {
	// Ingest folds one metric update into the runner's working state.
	Ingest(update ruleactor.MetricUpdate)
	// Tick performs the periodic work (e.g. running the Bandwidth
	// Allocation Core and pushing enforcements).
	Tick(ctx context.Context) error
}

// RunnerFactory builds the Runner for a controller descriptor's
// dsl_filter, matching §4.4's "module/class derived from a registry"
// framing but for the controller, not the metric consumer, side of the
// mapping.
type RunnerFactory func(c domain.GlobalController) Runner

// BwInfoMetricName derives the shared `<method>_bw_info` metric name a
// bandwidth controller subscribes to (§4.2, Global Controller
// Descriptor invariant).
func BwInfoMetricName(method domain.MethodType) string {
	return strings.ToLower(string(method)) + "_bw_info"
}

// Supervisor is the C6 component.
type Supervisor struct {
	Store           store.StateStore
	Host            *actorhost.Host
	Metrics         *metricsub.Manager
	Log             *logger.Logger
	Factory         RunnerFactory
	DefaultInterval time.Duration

	unsubscribe map[int64]func()
}

// New builds a Supervisor. factory resolves a controller descriptor to
// its Runner; defaultInterval is used when a descriptor carries no
// PollSchedule.
func New(st store.StateStore, host *actorhost.Host, metrics *metricsub.Manager, factory RunnerFactory, defaultInterval time.Duration, log *logger.Logger) *Supervisor {
	if defaultInterval <= 0 {
		defaultInterval = 10 * time.Second
	}
	return &Supervisor{
		Store:           st,
		Host:            host,
		Metrics:         metrics,
		Log:             log,
		Factory:         factory,
		DefaultInterval: defaultInterval,
		unsubscribe:     make(map[int64]func()),
	}
}

func controllerAddress(id int64) string { return fmt.Sprintf("controller:%d", id) }

// pollInterval parses a controller's PollSchedule via robfig/cron and
// returns the delta to its next fire time; an empty or unparseable
// schedule falls back to the supervisor default.
func (s *Supervisor) pollInterval(schedule string) time.Duration {
	if strings.TrimSpace(schedule) == "" {
		return s.DefaultInterval
	}
	sched, err := cronParser.Parse(schedule)
	if err != nil {
		s.Log.WithField("schedule", schedule).WithField("error", err).Warn("unparseable controller poll schedule, using default interval")
		return s.DefaultInterval
	}
	now := time.Now()
	delta := sched.Next(now).Sub(now)
	if delta <= 0 {
		return s.DefaultInterval
	}
	return delta
}

// Enable looks up the descriptor, subscribes to its metric stream via
// C5, spawns a controller actor, and begins its poll loop — the "calls
// its run(metric_name) method" contract of §4.5. The descriptor's
// Enabled flag is persisted true only once the actor is live.
func (s *Supervisor) Enable(ctx context.Context, id int64) error {
	c, err := s.Store.GetController(ctx, id)
	if err != nil {
		return err
	}
	if c.Enabled && s.Host.Lookup(controllerAddress(id)) {
		return nil
	}

	metricName := BwInfoMetricName(c.MethodType)
	updates, unsubscribe, err := s.Metrics.Subscribe(metricName)
	if err != nil {
		return fmt.Errorf("%w: subscribing controller %d to %q: %v", apperrors.ErrActorLifecycle, id, metricName, err)
	}

	runner := s.Factory(c)
	actor := &controllerActor{
		runner:   runner,
		updates:  updates,
		interval: s.pollInterval(c.PollSchedule),
		log:      s.Log,
	}
	if err := s.Host.Spawn(controllerAddress(id), actor); err != nil {
		unsubscribe()
		return fmt.Errorf("%w: spawning controller %d: %v", apperrors.ErrActorLifecycle, id, err)
	}
	s.unsubscribe[id] = unsubscribe

	c.Enabled = true
	if err := s.Store.PutController(ctx, c); err != nil {
		_ = s.Host.Stop(controllerAddress(id))
		unsubscribe()
		delete(s.unsubscribe, id)
		return err
	}
	return nil
}

// Disable stops the controller actor, releases its metric subscription
// (decrementing C5's refcount) and marks the descriptor disabled.
func (s *Supervisor) Disable(ctx context.Context, id int64) error {
	c, err := s.Store.GetController(ctx, id)
	if err != nil {
		return err
	}

	if err := s.Host.Stop(controllerAddress(id)); err != nil && !apperrors.IsNotFound(err) {
		return err
	}
	if unsub, ok := s.unsubscribe[id]; ok {
		unsub()
		delete(s.unsubscribe, id)
	}

	c.Enabled = false
	return s.Store.PutController(ctx, c)
}

// Delete disables (if enabled) and removes the descriptor; if no
// descriptors remain the id counter resets to 0 (§4.5).
func (s *Supervisor) Delete(ctx context.Context, id int64) error {
	c, err := s.Store.GetController(ctx, id)
	if err != nil {
		return err
	}
	if c.Enabled {
		if err := s.Disable(ctx, id); err != nil {
			return err
		}
	}
	if err := s.Store.DeleteController(ctx, id); err != nil {
		return err
	}

	remaining, err := s.Store.ListControllers(ctx)
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		return s.Store.ResetCounter(ctx, store.CounterController)
	}
	return nil
}

// ReloadOnStart re-enables every persisted controller with Enabled=true,
// mirroring the Policy Engine's ReloadOnStart for dynamic rules.
func (s *Supervisor) ReloadOnStart(ctx context.Context) error {
	controllers, err := s.Store.ListControllers(ctx)
	if err != nil {
		return err
	}
	for _, c := range controllers {
		if !c.Enabled {
			continue
		}
		c.Enabled = false // force Enable to re-spawn rather than no-op
		if err := s.Store.PutController(ctx, c); err != nil {
			return err
		}
		if err := s.Enable(ctx, c.ID); err != nil {
			s.Log.WithField("controller_id", c.ID).WithField("error", err).Error(apperrors.ErrActorLifecycle.Error())
		}
	}
	return nil
}

// controllerActor drives one controller's poll loop: it folds metric
// updates into the runner's state as they arrive and calls Tick on a
// fixed interval, satisfying actorhost.Actor.
type controllerActor struct {
	runner   Runner
	updates  <-chan ruleactor.MetricUpdate
	interval time.Duration
	log      *logger.Logger
}

func (a *controllerActor) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-a.updates:
			if !ok {
				return nil
			}
			a.runner.Ingest(update)
		case <-ticker.C:
			if err := a.runner.Tick(ctx); err != nil {
				a.log.WithField("error", err).Warn("controller tick failed")
			}
		}
	}
}
