// Package policyengine is the Policy Engine (C4): it classifies DSL
// rules, deploys static ones into the pipeline store, instantiates
// dynamic rule actors, and tracks them, grounded in
// original_source/api/controller/views.py's policy_list/deploy_policy
// handlers and do_action.
package policyengine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sdslabs/policyctl/internal/actorhost"
	"github.com/sdslabs/policyctl/internal/apperrors"
	"github.com/sdslabs/policyctl/internal/condition"
	"github.com/sdslabs/policyctl/internal/domain"
	"github.com/sdslabs/policyctl/internal/dsl"
	"github.com/sdslabs/policyctl/internal/metrics"
	"github.com/sdslabs/policyctl/internal/metricsub"
	"github.com/sdslabs/policyctl/internal/ruleactor"
	"github.com/sdslabs/policyctl/internal/store"
	"github.com/sdslabs/policyctl/pkg/logger"
)

// MetricResolver maps a parsed dynamic rule to the metric_name whose
// updates should drive its condition evaluation. The distilled DSL
// grammar does not itself name a stream (that lives in the message
// bus's routing-key configuration, §6, out of scope here), so callers
// supply the mapping; DefaultMetricResolver is a reasonable stand-in
// that uses the target filter name as the metric_name.
type MetricResolver func(rule dsl.Rule, action dsl.Action) string

// DefaultMetricResolver uses the action's filter name as the metric
// stream to subscribe to.
func DefaultMetricResolver(_ dsl.Rule, action dsl.Action) string {
	return action.FilterName
}

// Engine is the Policy Engine.
type Engine struct {
	Store     store.StateStore
	Host      *actorhost.Host
	Parser    dsl.Parser
	Metrics   *metricsub.Manager
	Evaluator *condition.Evaluator
	Resolver  MetricResolver
	Log       *logger.Logger

	// Telemetry is optional; when set, every successful deployment
	// increments its PoliciesDeployedTotal counter (§ ambient stack).
	Telemetry *metrics.Metrics
}

// New builds an Engine with a default metric resolver.
func New(st store.StateStore, host *actorhost.Host, parser dsl.Parser, metricSub *metricsub.Manager, log *logger.Logger) *Engine {
	return &Engine{
		Store:     st,
		Host:      host,
		Parser:    parser,
		Metrics:   metricSub,
		Evaluator: condition.New(),
		Resolver:  DefaultMetricResolver,
		Log:       log,
	}
}

func (e *Engine) recordDeployed(kind string) {
	if e.Telemetry != nil {
		e.Telemetry.RecordPolicyDeployed(kind)
	}
}

// SubmitRules splits text on line boundaries and deploys each
// non-blank line, classifying it static or dynamic by whether the
// parser returned a condition (§4.3). A correlation id is attached to
// every line's log entries for batch tracing.
func (e *Engine) SubmitRules(ctx context.Context, text string) ([]domain.Policy, error) {
	correlationID := uuid.NewString()
	log := e.Log.WithField("correlation_id", correlationID)

	var deployed []domain.Policy
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		rule, err := e.Parser.Parse(trimmed)
		if err != nil {
			log.WithField("line", trimmed).Warn("rejecting unparseable rule")
			return deployed, err
		}

		if rule.IsDynamic() {
			policies, err := e.deployDynamic(ctx, trimmed, rule)
			if err != nil {
				return deployed, err
			}
			deployed = append(deployed, policies...)
		} else {
			if err := e.deployStaticRule(ctx, rule); err != nil {
				return deployed, err
			}
		}
	}
	return deployed, nil
}

// deployDynamic allocates one policy_id per (target, action) pair and
// spawns a rule actor for each; a failure partway through rolls back
// the ids/actors already spawned for this rule (§4.3 failure
// semantics).
func (e *Engine) deployDynamic(ctx context.Context, originalLine string, rule dsl.Rule) ([]domain.Policy, error) {
	staticText := dsl.StripConditionAndTransient(originalLine)
	conditionText := strings.TrimPrefix(rule.ConditionRaw, "WHEN ")

	var spawned []domain.Policy
	rollback := func() {
		for _, p := range spawned {
			_ = e.Host.Stop(p.ActorAddress)
			_ = e.Store.DeletePolicy(ctx, p.ID)
		}
	}

	for _, target := range rule.Targets {
		for _, action := range rule.Actions {
			policyID, err := e.Store.Next(ctx, store.CounterPolicy)
			if err != nil {
				rollback()
				return nil, fmt.Errorf("%w: allocating policy id: %v", apperrors.ErrStoreUnavailable, err)
			}
			address := fmt.Sprintf("policy:%d", policyID)

			p := domain.Policy{
				ID:            policyID,
				OriginalText:  originalLine,
				ConditionText: conditionText,
				StaticText:    staticText,
				Transient:     action.Transient,
				Alive:         true,
				ActorAddress:  address,
			}

			if err := e.spawnRuleActor(target, action, conditionText, address, p.Transient); err != nil {
				rollback()
				return nil, fmt.Errorf("%w: spawning rule actor: %v", apperrors.ErrActorLifecycle, err)
			}
			if err := e.Store.PutPolicy(ctx, p); err != nil {
				_ = e.Host.Stop(address)
				rollback()
				return nil, err
			}
			spawned = append(spawned, p)
			e.recordDeployed("dynamic")
		}
	}
	return spawned, nil
}

func (e *Engine) spawnRuleActor(target dsl.Target, action dsl.Action, conditionText, address string, transient bool) error {
	metricName := e.Resolver(dsl.Rule{}, action)
	updates, _, err := e.Metrics.Subscribe(metricName)
	if err != nil {
		return err
	}

	if transient {
		return e.Host.Spawn(address, &ruleactor.Transient{
			Address:   address,
			Target:    target,
			Action:    action,
			Condition: conditionText,
			Updates:   updates,
			Evaluator: e.Evaluator,
			Deployer:  e,
			Host:      e.Host,
			Log:       e.Log,
		})
	}
	return e.Host.Spawn(address, &ruleactor.Persistent{
		Target:    target,
		Action:    action,
		Condition: conditionText,
		Updates:   updates,
		Evaluator: e.Evaluator,
		Deployer:  e,
		Log:       e.Log,
	})
}

// deployStaticRule applies every (target, action) pair in a static
// rule directly, without allocating a rule actor.
func (e *Engine) deployStaticRule(ctx context.Context, rule dsl.Rule) error {
	for _, target := range rule.Targets {
		for _, action := range rule.Actions {
			if err := e.Deploy(ctx, target, action); err != nil {
				return err
			}
		}
	}
	return nil
}

// Deploy implements ruleactor.StaticDeployer's SET half: it writes a
// pipeline entry under the (tenant, container) key, with
// execution_order defaulting to the newly allocated policy_id so
// later-added rules run later unless explicitly reordered (§4.3).
func (e *Engine) Deploy(ctx context.Context, target dsl.Target, action dsl.Action) error {
	policyID, err := e.Store.Next(ctx, store.CounterPolicy)
	if err != nil {
		return fmt.Errorf("%w: allocating policy id: %v", apperrors.ErrStoreUnavailable, err)
	}

	filter, err := e.Store.GetDynamicFilter(ctx, action.FilterName)
	var filterID int64
	if err == nil {
		filterID = filter.FilterID
	}

	entry := domain.PipelineEntry{
		PolicyID:        policyID,
		FilterID:        filterID,
		FilterName:      action.FilterName,
		ObjectType:      action.ObjectType,
		ObjectSize:      action.ObjectSize,
		ExecutionServer: action.ExecutionServer,
		ExecutionOrder:  policyID,
		Params:          action.Params,
		Callable:        action.Callable,
	}
	key := domain.PipelineKey{TenantID: target.TenantID, Container: target.Container}
	if err := e.Store.PutPipelineEntry(ctx, key, entry); err != nil {
		return err
	}
	e.recordDeployed("static")
	return nil
}

// Remove implements ruleactor.StaticDeployer's DELETE half: it removes
// the pipeline entry matching action's filter name for target.
func (e *Engine) Remove(ctx context.Context, target dsl.Target, action dsl.Action) error {
	key := domain.PipelineKey{TenantID: target.TenantID, Container: target.Container}
	entries, err := e.Store.ListPipelineEntries(ctx, key)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.FilterName == action.FilterName {
			return e.Store.DeletePipelineEntry(ctx, key, entry.PolicyID)
		}
	}
	return apperrors.ErrNotFound
}

// DeleteDynamicPolicy stops the rule actor and deletes the store
// record; if no policies remain the id counter is reset to 0 (§4.3).
func (e *Engine) DeleteDynamicPolicy(ctx context.Context, id int64) error {
	p, err := e.Store.GetPolicy(ctx, id)
	if err != nil {
		return err
	}
	if err := e.Host.Stop(p.ActorAddress); err != nil && !apperrors.IsNotFound(err) {
		return err
	}
	if err := e.Store.DeletePolicy(ctx, id); err != nil {
		return err
	}

	remaining, err := e.Store.ListPolicies(ctx)
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		return e.Store.ResetCounter(ctx, store.CounterPolicy)
	}
	return nil
}

// ReloadOnStart scans every persisted policy with alive=true and
// re-spawns its actor: the structured target/action is reconstructed
// by re-parsing the persisted static rule text (condition-free), and
// the persisted condition text drives the rule actor directly (§4.3,
// property S6).
func (e *Engine) ReloadOnStart(ctx context.Context) error {
	alive, err := e.Store.ListAlivePolicies(ctx)
	if err != nil {
		return err
	}
	for _, p := range alive {
		rule, err := e.Parser.Parse(p.StaticText)
		if err != nil {
			e.Log.WithField("policy_id", p.ID).WithField("error", err).Warn("skipping unreloadable policy")
			continue
		}
		if len(rule.Targets) == 0 || len(rule.Actions) == 0 {
			continue
		}
		if err := e.spawnRuleActor(rule.Targets[0], rule.Actions[0], p.ConditionText, p.ActorAddress, p.Transient); err != nil {
			e.Log.WithField("policy_id", p.ID).WithField("error", err).Error(apperrors.ErrActorLifecycle.Error())
		}
	}
	return nil
}
