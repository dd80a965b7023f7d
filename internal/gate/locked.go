package gate

import (
	"sync"
	"sync/atomic"
	"time"
)

// Locked is a Gate that is safe for concurrent use.
//
// The mutex is held across the whole read-decide-write-invoke sequence,
// so concurrent Tick callers wait while the action runs. That keeps the
// at-most-once-per-interval bound but means a slow action stalls every
// ticker. Shared is the non-blocking alternative.
//
// The read accessors (Due, LastInvokedAt, Invocations) do not take the
// mutex. They read copies of the anchor state that Tick stores before
// the action starts, so they answer immediately even mid-action.
type Locked struct {
	mu sync.Mutex
	g  *Gate

	last  atomic.Int64 // never until the first invocation
	slack atomic.Int64
	count atomic.Uint64
}

// NewLocked creates a Locked gate. Options are the same as for New.
func NewLocked(action Action, opts ...Option) *Locked {
	l := &Locked{g: New(action, opts...)}
	l.last.Store(never)
	return l
}

// Tick invokes the action if due. See Gate.Tick.
func (l *Locked) Tick() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	g := l.g
	now := g.clock.Now()
	if !g.claim(now) {
		g.observer.Suppressed(g.name)
		return nil
	}
	l.slack.Store(int64(g.slack))
	l.last.Store(int64(now))
	l.count.Store(g.count)
	return g.invoke(now)
}

// Due reports whether the next Tick would invoke the action.
func (l *Locked) Due() bool {
	last := l.last.Load()
	if last == never {
		return true
	}
	now := l.g.clock.Now()
	return elapsed(now, time.Duration(last), time.Duration(l.slack.Load()), l.g.interval)
}

// Interval returns the configured interval.
func (l *Locked) Interval() time.Duration {
	return l.g.Interval()
}

// LastInvokedAt returns the clock reading of the most recent invocation.
func (l *Locked) LastInvokedAt() (time.Duration, bool) {
	last := l.last.Load()
	if last == never {
		return 0, false
	}
	return time.Duration(last), true
}

// Invocations returns how many times the action has been invoked.
func (l *Locked) Invocations() uint64 {
	return l.count.Load()
}
