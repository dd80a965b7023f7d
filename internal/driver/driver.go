// Package driver ticks a gate from a polling loop.
//
// This is the "cooperative loop" caller the gates are designed for:
//
//	for !stopped {
//	    gate.Tick()
//	    sleep(every)
//	}
//
// The loop polls faster than the gate's interval; the gate decides
// when the action actually runs.
package driver

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/randomizedcoder/interval-sync/internal/gate"
)

// DefaultEvery is the default poll period.
const DefaultEvery = time.Second

// Option configures a Driver.
type Option func(*Driver)

// WithErrorHandler replaces the default handler, which logs.
func WithErrorHandler(h func(error)) Option {
	return func(d *Driver) {
		if h != nil {
			d.onError = h
		}
	}
}

// Driver calls Tick on a gate every poll period.
type Driver struct {
	ticker  gate.Ticker
	every   time.Duration
	onError func(error)

	stopped atomic.Bool
	loops   atomic.Uint64
}

// New creates a Driver polling t every period. A non-positive period
// uses DefaultEvery.
func New(t gate.Ticker, every time.Duration, opts ...Option) *Driver {
	if every <= 0 {
		every = DefaultEvery
	}
	d := &Driver{
		ticker: t,
		every:  every,
		onError: func(err error) {
			log.Printf("driver: action failed: %v", err)
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run ticks immediately and then once per period. Action errors go to
// the error handler and never stop the loop.
//
// Run returns nil after Stop, or ctx.Err() when ctx is done. Stop is
// noticed at the next poll.
func (d *Driver) Run(ctx context.Context) error {
	t := time.NewTicker(d.every)
	defer t.Stop()

	for {
		if d.stopped.Load() {
			return nil
		}
		d.loops.Add(1)
		if err := d.ticker.Tick(); err != nil {
			d.onError(err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Stop makes Run return. Safe to call multiple times and from any
// goroutine.
func (d *Driver) Stop() {
	d.stopped.Store(true)
}

// Stopped reports whether Stop was called.
func (d *Driver) Stopped() bool {
	return d.stopped.Load()
}

// Loops returns how many times Run has polled the gate.
func (d *Driver) Loops() uint64 {
	return d.loops.Load()
}

// Every returns the poll period.
func (d *Driver) Every() time.Duration {
	return d.every
}
