// Command gatebench measures the cost of ticking a gate that is not due,
// which is what a hot loop pays on almost every iteration.
//
// Usage:
//
//	go run ./cmd/gatebench -n 10000000 -size 1024
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/randomizedcoder/interval-sync/internal/gate"
	"github.com/randomizedcoder/interval-sync/internal/queue"
)

type gateInfo struct {
	name   string
	create func() gate.Ticker
}

func nop() error { return nil }

func main() {
	iterations := flag.Int("n", 10_000_000, "number of iterations")
	size := flag.Int("size", 1024, "nudge queue size")
	flag.Parse()

	interval := time.Hour // Long so we measure check overhead, not the action

	fmt.Printf("Benchmarking gate Tick (%d iterations)\n", *iterations)
	fmt.Printf("Architecture: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Println("─────────────────────────────────────────────────")

	gates := []gateInfo{
		{"Gate", func() gate.Ticker { return gate.New(nop, gate.WithInterval(interval)) }},
		{"Locked", func() gate.Ticker { return gate.NewLocked(nop, gate.WithInterval(interval)) }},
		{"Shared", func() gate.Ticker { return gate.NewShared(gate.NewWindow(interval, nil), nop) }},
	}

	results := make([]time.Duration, len(gates))
	for i, info := range gates {
		g := info.create()
		g.Tick() // first call always fires; measure the suppressed path
		start := time.Now()
		for j := 0; j < *iterations; j++ {
			_ = g.Tick()
		}
		results[i] = time.Since(start)
	}

	fmt.Printf("\nResults:\n")
	baseline := float64(results[0].Nanoseconds()) / float64(*iterations)

	for i, info := range gates {
		perOp := float64(results[i].Nanoseconds()) / float64(*iterations)
		slowdown := perOp / baseline
		throughput := 1000 / perOp // M ops/sec

		fmt.Printf("  %-20s %12v  %8.2f ns/op  %6.2fx  %8.2f M/s\n",
			info.name, results[i], perOp, slowdown, throughput)
	}

	// Nudge path: what a request handler pays to ask the funnel for a tick.
	fmt.Printf("\nNudge queue (push + pop per iteration, size=%d):\n", *size)

	ch := queue.NewChannel[queue.Nudge](*size)
	ring, err := queue.NewShardedRing(*size, 1)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gatebench: %v\n", err)
		os.Exit(1)
	}

	for _, q := range []struct {
		name string
		q    queue.Queue
	}{
		{"Channel", ch},
		{"ShardedRing", ring},
	} {
		n := queue.Nudge{}
		start := time.Now()
		for j := 0; j < *iterations; j++ {
			q.q.Push(n)
			q.q.Pop()
		}
		dur := time.Since(start)
		perOp := float64(dur.Nanoseconds()) / float64(*iterations)
		fmt.Printf("  %-20s %12v  %8.2f ns/op  %8.2f M/s\n", q.name, dur, perOp, 1000/perOp)
	}

	fmt.Printf("\nNote: Locked and Shared pay for goroutine safety; Gate must stay on one goroutine.\n")
}
