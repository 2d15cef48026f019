package apperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapNil(t *testing.T) {
	require.NoError(t, Wrap("store", "Get", nil))
}

func TestWrapUnwrapsToSentinel(t *testing.T) {
	err := Wrap("store", "Get", ErrNotFound)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsConflict(err))

	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "store", svcErr.Component)
	assert.Equal(t, "Get", svcErr.Op)
}

func TestServiceErrorMessageWithoutOp(t *testing.T) {
	err := &ServiceError{Component: "actorhost", Err: ErrActorLifecycle}
	assert.Equal(t, "actorhost: actor lifecycle error", err.Error())
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsStoreUnavailable(Wrap("store", "Ping", ErrStoreUnavailable)))
	assert.True(t, IsInvalidRule(Wrap("policyengine", "SubmitRules", ErrInvalidRule)))
}
