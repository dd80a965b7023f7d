// Package funnel lets many goroutines request a tick of one gate
// without sharing it.
//
// Producers call Nudge, which only pushes onto a multi-producer queue.
// A single goroutine running Run drains the queue and ticks the gate
// once per drained batch (at most WithBatch nudges), so a plain gate.Gate can be used even when
// requests arrive on many goroutines. The gate still decides whether
// the action runs; the funnel only serializes the asking.
package funnel

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/randomizedcoder/interval-sync/internal/gate"
	"github.com/randomizedcoder/interval-sync/internal/queue"
)

// DefaultIdle is how long Run sleeps when the queue is empty.
const DefaultIdle = time.Millisecond

// DefaultBatch is the most nudges Run pops before ticking.
const DefaultBatch = 1024

// ErrorHandler receives errors returned by the gate's action.
type ErrorHandler func(error)

// Option configures a Funnel.
type Option func(*Funnel)

// WithErrorHandler replaces the default handler, which logs.
func WithErrorHandler(h ErrorHandler) Option {
	return func(f *Funnel) {
		if h != nil {
			f.onError = h
		}
	}
}

// WithIdle sets the sleep between polls of an empty queue.
func WithIdle(d time.Duration) Option {
	return func(f *Funnel) {
		if d > 0 {
			f.idle = d
		}
	}
}

// WithBatch bounds how many nudges one drain pops before Run ticks.
// Producers that keep the queue non-empty still get a tick every batch.
func WithBatch(n int) Option {
	return func(f *Funnel) {
		if n > 0 {
			f.batch = n
		}
	}
}

// Funnel serializes tick requests onto one consumer goroutine.
type Funnel struct {
	ticker  gate.Ticker
	q       queue.Queue
	onError ErrorHandler
	idle    time.Duration
	batch   int

	nudges  atomic.Uint64
	dropped atomic.Uint64
	ticks   atomic.Uint64
}

// New creates a Funnel feeding t from q.
func New(t gate.Ticker, q queue.Queue, opts ...Option) *Funnel {
	f := &Funnel{
		ticker: t,
		q:      q,
		idle:   DefaultIdle,
		batch:  DefaultBatch,
		onError: func(err error) {
			log.Printf("funnel: action failed: %v", err)
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Nudge asks for a tick. It never blocks and is safe for concurrent
// use. It returns false if the queue was full; the nudge is dropped,
// which loses nothing since pending nudges already guarantee a tick.
func (f *Funnel) Nudge(producer uint64) bool {
	if !f.q.Push(queue.Nudge{Producer: producer}) {
		f.dropped.Add(1)
		return false
	}
	f.nudges.Add(1)
	return true
}

// Run consumes nudges until ctx is done and returns ctx.Err().
// Only one goroutine may call Run.
func (f *Funnel) Run(ctx context.Context) error {
	timer := time.NewTimer(f.idle)
	defer timer.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if f.drain() > 0 {
			f.tick()
			continue
		}

		timer.Reset(f.idle)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// drain pops up to one batch of nudges and returns how many it got.
func (f *Funnel) drain() int {
	n := 0
	for n < f.batch {
		if _, ok := f.q.Pop(); !ok {
			break
		}
		n++
	}
	return n
}

func (f *Funnel) tick() {
	f.ticks.Add(1)
	if err := f.ticker.Tick(); err != nil {
		f.onError(err)
	}
}

// Nudges returns the number of accepted nudges.
func (f *Funnel) Nudges() uint64 { return f.nudges.Load() }

// Dropped returns the number of nudges rejected by a full queue.
func (f *Funnel) Dropped() uint64 { return f.dropped.Load() }

// Ticks returns how many times Run ticked the gate.
func (f *Funnel) Ticks() uint64 { return f.ticks.Load() }
