// Package gate limits how often an action runs.
//
// A gate wraps an Action and a monotonic clock. Callers invoke Tick as
// often as they like (every request, every loop iteration); the action
// runs at most once per interval, measured between invocation starts.
// The gate never fires on its own: if nobody ticks, nothing runs.
//
// This package offers three implementations of the Ticker interface:
//   - Gate: the plain gate, for a single call site (not goroutine safe)
//   - Locked: a Gate behind a mutex, for concurrent callers
//   - Shared: gates sharing one Window, so several call sites draw on a
//     single at-most-once-per-interval budget
package gate

import (
	"math"
	"time"

	"github.com/randomizedcoder/interval-sync/internal/clock"
)

// DefaultInterval is used when no interval is configured.
const DefaultInterval = 10 * time.Second

// Action is the operation being gated. Its error is returned from Tick
// unchanged.
type Action func() error

// Ticker runs its action if it is due.
type Ticker interface {
	// Tick invokes the action when the interval has elapsed since the
	// previous invocation and returns the action's error. When not due
	// it does nothing and returns nil.
	Tick() error
}

// Seconds converts a fractional number of seconds into a Duration.
// Values beyond the range of a Duration saturate; NaN is zero.
func Seconds(s float64) time.Duration {
	ns := s * float64(time.Second)
	switch {
	case math.IsNaN(ns):
		return 0
	case ns >= math.MaxInt64:
		return math.MaxInt64
	case ns <= math.MinInt64:
		return math.MinInt64
	}
	return time.Duration(ns)
}

// Gate invokes its action at most once per interval.
//
// Gate is NOT safe for concurrent use. Two goroutines racing near the
// interval boundary could both see it as due. Use Locked or Shared
// when more than one goroutine ticks.
type Gate struct {
	name     string
	interval time.Duration
	clock    clock.Clock
	observer Observer
	jitter   jitter
	action   Action

	last    time.Duration // window anchor, valid once invoked
	invoked bool
	slack   time.Duration // jitter added to interval for the next check
	count   uint64
}

// New creates a Gate around action. Without WithInterval the interval
// is DefaultInterval. A zero or negative interval makes every Tick due.
//
// New panics if action is nil.
func New(action Action, opts ...Option) *Gate {
	if action == nil {
		panic("gate: nil action")
	}
	o := buildOptions(opts)
	return &Gate{
		name:     o.name,
		interval: o.interval,
		clock:    o.clock,
		observer: o.observer,
		jitter:   o.jitter,
		action:   action,
	}
}

// Tick invokes the action if the interval has elapsed.
//
// The anchor moves to the current reading before the action runs, so a
// slow or failing action does not push the next window out, and a
// failing action is not retried until a full interval later. The
// action's error (or panic) reaches the caller untouched.
func (g *Gate) Tick() error {
	now := g.clock.Now()
	if !g.claim(now) {
		g.observer.Suppressed(g.name)
		return nil
	}
	return g.invoke(now)
}

// claim moves the anchor to now if the gate is due at now.
func (g *Gate) claim(now time.Duration) bool {
	if !g.dueAt(now) {
		return false
	}
	g.last = now
	g.invoked = true
	g.slack = g.jitter.next()
	g.count++
	return true
}

// invoke runs the action for a claim made at now.
func (g *Gate) invoke(now time.Duration) error {
	err := g.action()
	g.observer.Invoked(g.name, g.clock.Now()-now, err)
	return err
}

// Due reports whether the next Tick would invoke the action.
// It does not change any state.
func (g *Gate) Due() bool {
	return g.dueAt(g.clock.Now())
}

func (g *Gate) dueAt(now time.Duration) bool {
	return !g.invoked || elapsed(now, g.last, g.slack, g.interval)
}

// elapsed reports whether interval plus slack has passed between last
// and now. interval may be close to the largest Duration, so slack is
// subtracted from the elapsed side instead of added to it.
func elapsed(now, last, slack, interval time.Duration) bool {
	return now-last-slack >= interval
}

// Interval returns the configured interval.
func (g *Gate) Interval() time.Duration {
	return g.interval
}

// LastInvokedAt returns the clock reading of the most recent
// invocation. ok is false if the action has never run.
func (g *Gate) LastInvokedAt() (at time.Duration, ok bool) {
	return g.last, g.invoked
}

// Invocations returns how many times the action has been invoked.
func (g *Gate) Invocations() uint64 {
	return g.count
}

// Name returns the name given with WithName, or "".
func (g *Gate) Name() string {
	return g.name
}
