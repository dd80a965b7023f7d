// Package clock provides monotonic time sources for interval gating.
//
// Readings are durations since an arbitrary, per-clock epoch. They are
// only comparable with other readings from the same clock and never
// reflect wall-clock adjustments (NTP steps, manual clock sets).
//
// Implementations:
//   - Monotonic: the Go runtime's monotonic clock
//   - Func: adapts a plain function
//   - Fake: a manually advanced clock for deterministic tests
package clock

import (
	"time"
	_ "unsafe" // Required for go:linkname
)

// Clock returns a monotonically non-decreasing reading.
type Clock interface {
	Now() time.Duration
}

// nanotime returns the current monotonic time in nanoseconds.
// It is the source time.Since uses for its monotonic reading, without
// building a time.Time.
//
//go:linkname nanotime runtime.nanotime
func nanotime() int64

type monotonic struct{}

func (monotonic) Now() time.Duration { return time.Duration(nanotime()) }

// Monotonic returns the runtime monotonic clock.
func Monotonic() Clock {
	return monotonic{}
}

// Func adapts an ordinary function to the Clock interface.
// The function must itself be non-decreasing.
type Func func() time.Duration

// Now calls f.
func (f Func) Now() time.Duration { return f() }
