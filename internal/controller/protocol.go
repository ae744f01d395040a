// Package controller defines a small interface that every subsystem
// wanting a say in orderly process shutdown implements, plus a static
// registry subsystems use to announce themselves for discovery.
package controller

import (
	"context"
	"sync"
)

// Controller is the two-operation coordination surface a subsystem exposes
// to the Event Controller. GracefulSystemStop must be idempotent and return
// once the stop has been initiated, not necessarily once draining is
// complete. AwaitSystemCompletionWithShutdown blocks until the subsystem's
// in-flight work has drained or shutdown fires, whichever comes first.
type Controller interface {
	GracefulSystemStop(ctx context.Context) error
	AwaitSystemCompletionWithShutdown(ctx context.Context, shutdown <-chan struct{}) error
}

// Factory constructs a Controller. Factories run concurrently during
// discovery; a factory that returns an error is logged and the controller
// is omitted from the discovered set.
type Factory func(ctx context.Context) (Controller, error)

// Broadcaster is a one-shot shutdown signal: closing a channel notifies
// every receiver regardless of when it started receiving, so there is no
// "missed" case to account for — every subscriber, however late, observes
// the signal exactly once the first time it receives.
type Broadcaster struct {
	mu    sync.Mutex
	ch    chan struct{}
	fired bool
}

// NewBroadcaster returns a Broadcaster ready to be subscribed to.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{ch: make(chan struct{})}
}

// Subscribe returns a channel that is closed the moment Fire is called, be
// it before or after this call. The channel is shared by every subscriber.
func (b *Broadcaster) Subscribe() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ch
}

// Fire broadcasts the shutdown signal. Safe to call more than once; only
// the first call has any effect.
func (b *Broadcaster) Fire() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fired {
		return
	}
	b.fired = true
	close(b.ch)
}

// Fired reports whether Fire has already been called.
func (b *Broadcaster) Fired() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fired
}
