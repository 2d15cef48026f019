// Package actorhost names, spawns, addresses and halts the long-lived
// actors backing dynamic rules, metric consumers and global
// controllers (C3). The address table is a mutex-guarded map with one
// goroutine per actor, generalizing the teacher's automation.Scheduler
// (map + mutex + stopCh) from "one scheduler" to "one entry per
// spawned actor".
package actorhost

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sdslabs/policyctl/internal/apperrors"
	"github.com/sdslabs/policyctl/pkg/logger"
)

// Actor is the unit of work an address hosts. Run blocks until ctx is
// canceled or the actor stops itself; it must return promptly once ctx
// is done.
type Actor interface {
	Run(ctx context.Context) error
}

// ErrAlreadySpawned is returned by Spawn when the address is in use.
var ErrAlreadySpawned = fmt.Errorf("%w: address already spawned", apperrors.ErrConflict)

type handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Host is a process-wide actor registry. The zero value is not usable;
// construct with New.
type Host struct {
	mu           sync.RWMutex
	actors       map[string]*handle
	stopDeadline time.Duration
	log          *logger.Logger
}

// New creates a Host. stopDeadline bounds how long Stop waits for an
// actor to quiesce before force-freeing its address (§5 default 5s).
func New(stopDeadline time.Duration, log *logger.Logger) *Host {
	if stopDeadline <= 0 {
		stopDeadline = 5 * time.Second
	}
	return &Host{
		actors:       make(map[string]*handle),
		stopDeadline: stopDeadline,
		log:          log,
	}
}

// Spawn starts actor under address. Spawning an address already in use
// is an error. The actor runs on its own goroutine until Stop is
// called or it returns on its own (a crash), in which case the address
// is freed and the failure is logged, never propagated to the caller.
func (h *Host) Spawn(address string, actor Actor) error {
	h.mu.Lock()
	if _, exists := h.actors[address]; exists {
		h.mu.Unlock()
		return ErrAlreadySpawned
	}
	ctx, cancel := context.WithCancel(context.Background())
	hd := &handle{cancel: cancel, done: make(chan struct{})}
	h.actors[address] = hd
	h.mu.Unlock()

	go func() {
		defer close(hd.done)
		if err := actor.Run(ctx); err != nil && ctx.Err() == nil {
			h.log.WithField("address", address).WithField("error", err).Warn("actor exited with error")
		}
		h.mu.Lock()
		if h.actors[address] == hd {
			delete(h.actors, address)
		}
		h.mu.Unlock()
	}()

	return nil
}

// Lookup reports whether an actor is currently running at address.
func (h *Host) Lookup(address string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.actors[address]
	return ok
}

// Stop requests the actor at address halt, waiting up to the host's
// stop deadline. Past the deadline the address is force-freed and an
// ErrActorLifecycle is logged, matching the spec's "host signals it
// fatal" behavior; Stop itself still returns nil since forced release
// always succeeds from the caller's point of view.
func (h *Host) Stop(address string) error {
	h.mu.Lock()
	hd, ok := h.actors[address]
	if !ok {
		h.mu.Unlock()
		return apperrors.ErrNotFound
	}
	h.mu.Unlock()

	hd.cancel()

	select {
	case <-hd.done:
		return nil
	case <-time.After(h.stopDeadline):
		h.mu.Lock()
		if h.actors[address] == hd {
			delete(h.actors, address)
		}
		h.mu.Unlock()
		h.log.WithField("address", address).Error(apperrors.ErrActorLifecycle.Error())
		return nil
	}
}

// StopAll halts every currently live actor, each subject to the host's
// stop deadline, for coordinated process shutdown.
func (h *Host) StopAll(ctx context.Context) {
	for _, address := range h.Addresses() {
		if err := h.Stop(address); err != nil && !apperrors.IsNotFound(err) {
			h.log.WithField("address", address).WithField("error", err).Warn("stopping actor during shutdown")
		}
	}
}

// Addresses returns every currently live address, for diagnostics and
// tests.
func (h *Host) Addresses() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.actors))
	for addr := range h.actors {
		out = append(out, addr)
	}
	return out
}
