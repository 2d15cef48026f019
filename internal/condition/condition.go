// Package condition evaluates a rule actor's DSL condition expression
// (e.g. "metric.cpu > 80") against the latest metric snapshot, using a
// sandboxed goja runtime the way the teacher's tee_executor.go runs
// devpack function bodies: a fresh runtime per evaluation, a watchdog
// goroutine that calls Interrupt on context cancellation, and a
// results-bearing variable injected before the script runs.
package condition

import (
	"context"
	"fmt"

	"github.com/dop251/goja"

	"github.com/sdslabs/policyctl/internal/apperrors"
)

// Evaluator evaluates boolean condition expressions against an
// injected metric snapshot.
type Evaluator struct{}

// New creates an Evaluator.
func New() *Evaluator { return &Evaluator{} }

// Evaluate runs expr with metric bound as the identifier "metric" and
// returns its truthiness. expr is the condition text with the leading
// "WHEN " already stripped, e.g. "metric.cpu > 80".
func (e *Evaluator) Evaluate(ctx context.Context, expr string, metric map[string]float64) (bool, error) {
	rt := goja.New()

	obj := rt.NewObject()
	for k, v := range metric {
		if err := obj.Set(k, v); err != nil {
			return false, fmt.Errorf("%w: binding metric field %q: %v", apperrors.ErrInvalidRule, k, err)
		}
	}
	if err := rt.Set("metric", obj); err != nil {
		return false, fmt.Errorf("%w: binding metric object: %v", apperrors.ErrInvalidRule, err)
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			rt.Interrupt(ctx.Err())
		case <-stop:
		}
	}()

	val, err := rt.RunString("Boolean(" + expr + ")")
	if err != nil {
		return false, fmt.Errorf("%w: evaluating condition %q: %v", apperrors.ErrInvalidRule, expr, err)
	}

	return val.ToBoolean(), nil
}
