package gate

import (
	"math/rand/v2"
	"time"

	"github.com/randomizedcoder/interval-sync/internal/clock"
)

// Option configures a gate.
type Option func(*options)

type options struct {
	name     string
	interval time.Duration
	clock    clock.Clock
	observer Observer
	jitter   jitter
}

func buildOptions(opts []Option) options {
	o := options{
		interval: DefaultInterval,
		clock:    clock.Monotonic(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithInterval sets the minimum duration between invocations.
// No validation is done; zero or negative means always due.
func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithClock replaces the monotonic clock, typically with a clock.Fake.
// A nil clock is ignored.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithObserver reports every Tick outcome to obs. A nil observer is
// ignored.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithName labels the gate for observers.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithJitter adds a random offset in [0, maxOffset) to the interval after
// every invocation, so many processes started together drift apart.
// The first Tick is still always due.
//
// src seeds the offsets; nil uses the runtime's random source.
// Pass a fixed-seed source (rand.NewPCG) for reproducible offsets.
// A maxOffset <= 0 disables jitter.
func WithJitter(maxOffset time.Duration, src rand.Source) Option {
	return func(o *options) {
		o.jitter = jitter{max: maxOffset}
		if src != nil {
			o.jitter.rng = rand.New(src)
		}
	}
}

type jitter struct {
	max time.Duration
	rng *rand.Rand
}

func (j jitter) next() time.Duration {
	if j.max <= 0 {
		return 0
	}
	if j.rng == nil {
		return rand.N(j.max)
	}
	return time.Duration(j.rng.Int64N(int64(j.max)))
}
