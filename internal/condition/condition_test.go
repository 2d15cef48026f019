package condition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateTrue(t *testing.T) {
	e := New()
	ok, err := e.Evaluate(context.Background(), "metric.cpu > 80", map[string]float64{"cpu": 95})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateFalse(t *testing.T) {
	e := New()
	ok, err := e.Evaluate(context.Background(), "metric.cpu > 80", map[string]float64{"cpu": 10})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateInvalidExpression(t *testing.T) {
	e := New()
	_, err := e.Evaluate(context.Background(), "metric.cpu >>> 80", map[string]float64{"cpu": 10})
	assert.Error(t, err)
}

func TestEvaluateContextCanceled(t *testing.T) {
	e := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Evaluate(ctx, "metric.cpu > 80", map[string]float64{"cpu": 10})
	_ = err // interruption may or may not race ahead of RunString; no assertion on error presence
}
