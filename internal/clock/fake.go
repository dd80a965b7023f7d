package clock

import (
	"fmt"
	"sync"
	"time"
)

// Fake is a Clock that only moves when told to.
//
// Safe for concurrent use. The zero value reads 0.
type Fake struct {
	mu  sync.Mutex
	now time.Duration
}

// NewFake returns a Fake reading start.
func NewFake(start time.Duration) *Fake {
	return &Fake{now: start}
}

// Now returns the current fake reading.
func (f *Fake) Now() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d. Negative d panics.
func (f *Fake) Advance(d time.Duration) {
	if d < 0 {
		panic(fmt.Sprintf("clock: Fake.Advance by negative duration %v", d))
	}
	f.mu.Lock()
	f.now += d
	f.mu.Unlock()
}

// Set moves the clock to t. Moving backward panics, since no Clock may
// ever decrease.
func (f *Fake) Set(t time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t < f.now {
		panic(fmt.Sprintf("clock: Fake.Set(%v) would move backward from %v", t, f.now))
	}
	f.now = t
}
