package gate_test

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/randomizedcoder/interval-sync/internal/clock"
	"github.com/randomizedcoder/interval-sync/internal/gate"
)

// fireTimes ticks g every step until n invocations and returns the
// clock readings at which the action ran.
func fireTimes(fc *clock.Fake, step time.Duration, n int, opts ...gate.Option) []time.Duration {
	var at []time.Duration
	g := gate.New(func() error {
		at = append(at, fc.Now())
		return nil
	}, append([]gate.Option{gate.WithClock(fc)}, opts...)...)

	for len(at) < n {
		g.Tick()
		fc.Advance(step)
	}
	return at
}

func TestJitter_StaysWithinBounds(t *testing.T) {
	const (
		interval = time.Second
		maxOff   = 200 * time.Millisecond
		step     = time.Millisecond
	)
	fc := clock.NewFake(0)
	at := fireTimes(fc, step, 50,
		gate.WithInterval(interval),
		gate.WithJitter(maxOff, rand.NewPCG(1, 2)))

	if at[0] != 0 {
		t.Errorf("expected first call at 0 with jitter enabled, got %v", at[0])
	}

	varied := false
	for i := 1; i < len(at); i++ {
		gap := at[i] - at[i-1]
		if gap < interval || gap >= interval+maxOff+step {
			t.Errorf("gap %d = %v outside [%v, %v)", i, gap, interval, interval+maxOff+step)
		}
		if gap != at[1]-at[0] {
			varied = true
		}
	}
	if !varied {
		t.Error("expected jittered gaps to vary")
	}
}

func TestJitter_SameSeedSameSchedule(t *testing.T) {
	opts := func() []gate.Option {
		return []gate.Option{
			gate.WithInterval(time.Second),
			gate.WithJitter(500*time.Millisecond, rand.NewPCG(7, 7)),
		}
	}

	a := fireTimes(clock.NewFake(0), time.Millisecond, 20, opts()...)
	b := fireTimes(clock.NewFake(0), time.Millisecond, 20, opts()...)

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("invocation %d: %v != %v with the same seed", i, a[i], b[i])
		}
	}
}

func TestJitter_DisabledByDefault(t *testing.T) {
	at := fireTimes(clock.NewFake(0), time.Millisecond, 10, gate.WithInterval(100*time.Millisecond))

	for i := 1; i < len(at); i++ {
		if gap := at[i] - at[i-1]; gap != 100*time.Millisecond {
			t.Errorf("gap %d = %v, expected exactly 100ms without jitter", i, gap)
		}
	}
}

func TestJitter_NonPositiveMaxDisables(t *testing.T) {
	at := fireTimes(clock.NewFake(0), time.Millisecond, 10,
		gate.WithInterval(100*time.Millisecond),
		gate.WithJitter(0, nil))

	for i := 1; i < len(at); i++ {
		if gap := at[i] - at[i-1]; gap != 100*time.Millisecond {
			t.Errorf("gap %d = %v, expected exactly 100ms", i, gap)
		}
	}
}

func TestJitter_NilSource(t *testing.T) {
	fc := clock.NewFake(0)
	at := fireTimes(fc, time.Millisecond, 10,
		gate.WithInterval(100*time.Millisecond),
		gate.WithJitter(50*time.Millisecond, nil))

	for i := 1; i < len(at); i++ {
		gap := at[i] - at[i-1]
		if gap < 100*time.Millisecond || gap > 151*time.Millisecond {
			t.Errorf("gap %d = %v outside jitter bounds", i, gap)
		}
	}
}

func TestJitter_NearMaxInterval(t *testing.T) {
	g, c, fc := newFakeGate(math.MaxInt64, gate.WithJitter(time.Hour, rand.NewPCG(3, 4)))

	g.Tick()
	fc.Advance(24 * time.Hour)
	g.Tick()
	if g.Due() {
		t.Error("expected gate with a near-max interval to stay suppressed")
	}
	if c.calls != 1 {
		t.Errorf("expected 1 call, got %d", c.calls)
	}
}
