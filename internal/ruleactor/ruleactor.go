// Package ruleactor implements the two rule actor kinds spawned by the
// Policy Engine (C4) for dynamic rules (§4.7): a persistent,
// level-triggered actor that toggles its pipeline entry on every
// condition edge, and a transient actor that fires once then stops
// itself. Both satisfy actorhost.Actor.
package ruleactor

import (
	"context"

	"github.com/sdslabs/policyctl/internal/condition"
	"github.com/sdslabs/policyctl/internal/dsl"
	"github.com/sdslabs/policyctl/pkg/logger"
)

// StaticDeployer applies or removes a rule actor's action via the
// Policy Engine's static deployment path, exactly the way
// start_rule()'s SET/DELETE issuance does in the original.
type StaticDeployer interface {
	Deploy(ctx context.Context, target dsl.Target, action dsl.Action) error
	Remove(ctx context.Context, target dsl.Target, action dsl.Action) error
}

// Stopper lets a rule actor terminate itself (used by the transient
// actor after it fires).
type Stopper interface {
	Stop(address string) error
}

// MetricUpdate is one observation delivered by the Metric Subscription
// Manager (C5) to a subscribed rule actor.
type MetricUpdate map[string]float64

// Persistent is a level-triggered rule actor: on every metric update
// it re-evaluates the condition and toggles SET/DELETE only on an
// edge (true->false or false->true), never repeating the same action
// while the condition value is unchanged.
type Persistent struct {
	Target    dsl.Target
	Action    dsl.Action
	Condition string // condition text with "WHEN " already stripped
	Updates   <-chan MetricUpdate
	Evaluator *condition.Evaluator
	Deployer  StaticDeployer
	Log       *logger.Logger

	deployed bool
}

// Run implements actorhost.Actor.
func (p *Persistent) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-p.Updates:
			if !ok {
				return nil
			}
			if err := p.handle(ctx, update); err != nil {
				p.Log.WithField("error", err).Warn("persistent rule actor evaluation failed")
			}
		}
	}
}

func (p *Persistent) handle(ctx context.Context, update MetricUpdate) error {
	holds, err := p.Evaluator.Evaluate(ctx, p.Condition, update)
	if err != nil {
		return err
	}

	switch {
	case holds && !p.deployed:
		if err := p.Deployer.Deploy(ctx, p.Target, p.Action); err != nil {
			return err
		}
		p.deployed = true
	case !holds && p.deployed:
		if err := p.Deployer.Remove(ctx, p.Target, p.Action); err != nil {
			return err
		}
		p.deployed = false
	}
	return nil
}

// Transient evaluates once per update; the first time the condition
// holds it issues its action and stops itself, matching
// start_rule()'s "armed until it fires" contract for TRANSIENT rules.
type Transient struct {
	Address   string
	Target    dsl.Target
	Action    dsl.Action
	Condition string
	Updates   <-chan MetricUpdate
	Evaluator *condition.Evaluator
	Deployer  StaticDeployer
	Host      Stopper
	Log       *logger.Logger
}

// Run implements actorhost.Actor.
func (t *Transient) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-t.Updates:
			if !ok {
				return nil
			}
			holds, err := t.Evaluator.Evaluate(ctx, t.Condition, update)
			if err != nil {
				t.Log.WithField("error", err).Warn("transient rule actor evaluation failed")
				continue
			}
			if !holds {
				continue
			}
			if err := t.Deployer.Deploy(ctx, t.Target, t.Action); err != nil {
				t.Log.WithField("error", err).Warn("transient rule actor action failed")
				continue
			}
			go func() { _ = t.Host.Stop(t.Address) }()
			return nil
		}
	}
}
