package gate

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/randomizedcoder/interval-sync/internal/clock"
)

// never marks a Window that has not been claimed yet.
const never = math.MinInt64

// Window is a window anchor shared by several gates.
//
// Every Shared gate built on the same Window draws from one
// at-most-once-per-interval budget. Claims are a compare-and-swap on
// the anchor: of several racing callers exactly one wins, the others
// return immediately.
type Window struct {
	interval time.Duration
	clock    clock.Clock
	last     atomic.Int64
	claims   atomic.Uint64
}

// NewWindow creates a Window. A nil clock uses clock.Monotonic.
func NewWindow(interval time.Duration, c clock.Clock) *Window {
	if c == nil {
		c = clock.Monotonic()
	}
	w := &Window{
		interval: interval,
		clock:    c,
	}
	w.last.Store(never)
	return w
}

// claim moves the anchor to now if the window is due.
func (w *Window) claim() (time.Duration, bool) {
	// Load the anchor before reading the clock so now >= last.
	last := w.last.Load()
	now := w.clock.Now()

	if last != never && now-time.Duration(last) < w.interval {
		return now, false
	}
	if !w.last.CompareAndSwap(last, int64(now)) {
		return now, false
	}
	w.claims.Add(1)
	return now, true
}

// Due reports whether the next claim would succeed.
func (w *Window) Due() bool {
	last := w.last.Load()
	return last == never || w.clock.Now()-time.Duration(last) >= w.interval
}

// Interval returns the window's interval.
func (w *Window) Interval() time.Duration {
	return w.interval
}

// LastInvokedAt returns the reading of the last successful claim.
func (w *Window) LastInvokedAt() (time.Duration, bool) {
	last := w.last.Load()
	if last == never {
		return 0, false
	}
	return time.Duration(last), true
}

// Invocations returns the number of successful claims across all gates.
func (w *Window) Invocations() uint64 {
	return w.claims.Load()
}

// Shared is a gate whose window lives in a Window. It is safe for
// concurrent use and never blocks other callers while its action runs.
type Shared struct {
	window   *Window
	name     string
	observer Observer
	action   Action
}

// NewShared creates a gate drawing on w.
//
// Only WithName and WithObserver apply; the interval and clock come
// from w, and jitter is not supported.
//
// NewShared panics if action is nil.
func NewShared(w *Window, action Action, opts ...Option) *Shared {
	if action == nil {
		panic("gate: nil action")
	}
	o := buildOptions(opts)
	return &Shared{
		window:   w,
		name:     o.name,
		observer: o.observer,
		action:   action,
	}
}

// Tick invokes the action if this caller claimed the window.
func (s *Shared) Tick() error {
	now, ok := s.window.claim()
	if !ok {
		s.observer.Suppressed(s.name)
		return nil
	}

	err := s.action()
	s.observer.Invoked(s.name, s.window.clock.Now()-now, err)
	return err
}

// Window returns the gate's window.
func (s *Shared) Window() *Window {
	return s.window
}
