package driver_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/randomizedcoder/interval-sync/internal/driver"
	"github.com/randomizedcoder/interval-sync/internal/gate"
)

type countingTicker struct {
	ticks atomic.Int64
	err   error
}

func (c *countingTicker) Tick() error {
	c.ticks.Add(1)
	return c.err
}

func TestDriver_DefaultEvery(t *testing.T) {
	d := driver.New(&countingTicker{}, 0)
	if d.Every() != driver.DefaultEvery {
		t.Errorf("expected Every() = %v, got %v", driver.DefaultEvery, d.Every())
	}
}

func TestDriver_TicksUntilCancelled(t *testing.T) {
	ct := &countingTicker{}
	d := driver.New(ct, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	err := d.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}

	n := ct.ticks.Load()
	if n < 3 {
		t.Errorf("expected several ticks in 60ms at 5ms, got %d", n)
	}
	if uint64(n) != d.Loops() {
		t.Errorf("Loops() = %d, ticker saw %d", d.Loops(), n)
	}
}

func TestDriver_Stop(t *testing.T) {
	ct := &countingTicker{}
	d := driver.New(ct, time.Millisecond)

	errc := make(chan error, 1)
	go func() { errc <- d.Run(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	d.Stop()
	d.Stop() // idempotent

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("expected nil after Stop, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if !d.Stopped() {
		t.Error("expected Stopped() = true")
	}
}

func TestDriver_ErrorsDoNotStopLoop(t *testing.T) {
	errSync := errors.New("sync failed")
	ct := &countingTicker{err: errSync}

	var seen atomic.Int64
	d := driver.New(ct, time.Millisecond, driver.WithErrorHandler(func(err error) {
		if errors.Is(err, errSync) {
			seen.Add(1)
		}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	d.Run(ctx)

	if seen.Load() < 2 {
		t.Errorf("expected the loop to keep going after errors, handler saw %d", seen.Load())
	}
}

// The driver polls much faster than the gate's interval; the gate
// keeps the action to once per interval.
func TestDriver_WithGate(t *testing.T) {
	var calls atomic.Int64
	g := gate.New(func() error {
		calls.Add(1)
		return nil
	}, gate.WithInterval(time.Hour))

	d := driver.New(g, time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	d.Run(ctx)

	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 invocation, got %d", calls.Load())
	}
	if d.Loops() < 2 {
		t.Errorf("expected several polls, got %d", d.Loops())
	}
}
