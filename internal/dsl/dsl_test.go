package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStaticSet(t *testing.T) {
	var p SimpleParser
	r, err := p.Parse("FOR TENANT:abc DO SET compression")
	require.NoError(t, err)
	assert.False(t, r.IsDynamic())
	require.Len(t, r.Targets, 1)
	assert.Equal(t, "abc", r.Targets[0].TenantID)
	require.Len(t, r.Actions, 1)
	assert.Equal(t, ActionSet, r.Actions[0].Verb)
	assert.Equal(t, "compression", r.Actions[0].FilterName)
	assert.False(t, r.Actions[0].Transient)
}

func TestParseDynamicTransient(t *testing.T) {
	var p SimpleParser
	line := "FOR TENANT:abc WHEN metric.cpu > 80 DO SET compression TRANSIENT"
	r, err := p.Parse(line)
	require.NoError(t, err)
	assert.True(t, r.IsDynamic())
	assert.Equal(t, "WHEN metric.cpu > 80", r.ConditionRaw)
	require.Len(t, r.Actions, 1)
	assert.True(t, r.Actions[0].Transient)
}

func TestParseMissingTargetIsInvalid(t *testing.T) {
	var p SimpleParser
	_, err := p.Parse("DO SET compression")
	assert.Error(t, err)
}

func TestStripConditionAndTransient(t *testing.T) {
	line := "FOR TENANT:abc WHEN metric.cpu > 80 DO SET compression TRANSIENT"
	got := StripConditionAndTransient(line)
	assert.Equal(t, "FOR TENANT:abc DO SET compression", got)
}

func TestStripNoConditionIsNoop(t *testing.T) {
	line := "FOR TENANT:abc DO SET compression"
	assert.Equal(t, line, StripConditionAndTransient(line))
}
