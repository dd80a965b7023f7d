package gate

import "time"

// Observer receives the outcome of every Tick.
//
// Calls happen synchronously on the ticking goroutine, so
// implementations must be fast and, for Locked and Shared gates, safe
// for concurrent use. An action that panics is never reported.
type Observer interface {
	// Suppressed is called when Tick found the gate not due.
	Suppressed(gate string)

	// Invoked is called after the action returned. took is measured on
	// the gate's clock and err is the action's result.
	Invoked(gate string, took time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) Suppressed(string)                    {}
func (nopObserver) Invoked(string, time.Duration, error) {}
