package actorhost

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdslabs/policyctl/pkg/logger"
)

type blockingActor struct {
	started chan struct{}
}

func (a *blockingActor) Run(ctx context.Context) error {
	close(a.started)
	<-ctx.Done()
	return nil
}

type stubbornActor struct {
	started chan struct{}
}

func (a *stubbornActor) Run(ctx context.Context) error {
	close(a.started)
	<-ctx.Done()
	time.Sleep(200 * time.Millisecond)
	return nil
}

func TestSpawnTwiceIsError(t *testing.T) {
	h := New(time.Second, logger.NewDefault("test"))
	a := &blockingActor{started: make(chan struct{})}
	require.NoError(t, h.Spawn("policy:1", a))
	<-a.started

	err := h.Spawn("policy:1", &blockingActor{started: make(chan struct{})})
	assert.ErrorIs(t, err, ErrAlreadySpawned)
}

func TestStopWithinDeadline(t *testing.T) {
	h := New(time.Second, logger.NewDefault("test"))
	a := &blockingActor{started: make(chan struct{})}
	require.NoError(t, h.Spawn("policy:2", a))
	<-a.started
	assert.True(t, h.Lookup("policy:2"))

	require.NoError(t, h.Stop("policy:2"))
	assert.False(t, h.Lookup("policy:2"))
}

func TestStopTimeoutForceFreesAddress(t *testing.T) {
	h := New(50*time.Millisecond, logger.NewDefault("test"))
	a := &stubbornActor{started: make(chan struct{})}
	require.NoError(t, h.Spawn("policy:3", a))
	<-a.started

	require.NoError(t, h.Stop("policy:3"))
	assert.False(t, h.Lookup("policy:3"))
}

func TestCrashFreesAddress(t *testing.T) {
	h := New(time.Second, logger.NewDefault("test"))
	var ran int32
	a := crashActor{ran: &ran}
	require.NoError(t, h.Spawn("policy:4", a))

	assert.Eventually(t, func() bool {
		return !h.Lookup("policy:4")
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
}

type crashActor struct{ ran *int32 }

func (a crashActor) Run(ctx context.Context) error {
	atomic.AddInt32(a.ran, 1)
	return assert.AnError
}

func TestStopAllHaltsEveryLiveActor(t *testing.T) {
	h := New(time.Second, logger.NewDefault("test"))
	a := &blockingActor{started: make(chan struct{})}
	b := &blockingActor{started: make(chan struct{})}
	require.NoError(t, h.Spawn("policy:5", a))
	require.NoError(t, h.Spawn("policy:6", b))
	<-a.started
	<-b.started

	h.StopAll(context.Background())
	assert.Empty(t, h.Addresses())
}
