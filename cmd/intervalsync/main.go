// Command intervalsync keeps a local copy of a remote document fresh,
// phoning home at most once per interval however busy it gets.
//
// Every request to / and /snapshot, plus a set of simulated request
// goroutines, nudges a funnel; a background loop also ticks the gate
// so the document refreshes when traffic is idle.
//
// Usage:
//
//	go run ./cmd/intervalsync -source-url https://example.com/flags.json -interval 10
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/randomizedcoder/interval-sync/internal/config"
	"github.com/randomizedcoder/interval-sync/internal/driver"
	"github.com/randomizedcoder/interval-sync/internal/funnel"
	"github.com/randomizedcoder/interval-sync/internal/gate"
	"github.com/randomizedcoder/interval-sync/internal/metrics"
	"github.com/randomizedcoder/interval-sync/internal/queue"
	"github.com/randomizedcoder/interval-sync/internal/syncer"
)

const gateName = "source"

func main() {
	log.Println("Starting intervalsync...")

	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Configuration loaded:")
	log.Printf("  Source URL: %s", cfg.SourceURL)
	log.Printf("  Interval: %s", cfg.Interval)
	log.Printf("  Jitter: %s", cfg.Jitter)
	log.Printf("  Poll Every: %s", cfg.PollEvery)
	log.Printf("  Listen Address: %s", cfg.ListenAddress)
	log.Printf("  Metrics Path: %s", cfg.MetricsPath)
	log.Printf("  Producers: %d (%s queue, capacity %d)", cfg.Producers, cfg.QueueKind, cfg.QueueCapacity)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Printf("fatal error: %v", err)
		os.Exit(1)
	}
	log.Println("intervalsync stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	obs, err := metrics.New(reg)
	if err != nil {
		return err
	}

	src := syncer.New(cfg.SourceURL,
		syncer.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		syncer.WithContext(ctx),
	)

	opts := []gate.Option{
		gate.WithName(gateName),
		gate.WithInterval(cfg.Interval),
		gate.WithObserver(obs),
	}
	if cfg.Jitter > 0 {
		opts = append(opts, gate.WithJitter(cfg.Jitter, nil))
	}
	// Ticked from both the funnel consumer and the driver loop.
	g := gate.NewLocked(src.Action(), opts...)

	shards := max(cfg.Producers, 1)
	q, err := queue.New(cfg.QueueKind, cfg.QueueCapacity, shards)
	if err != nil {
		return err
	}
	f := funnel.New(g, q, funnel.WithBatch(cfg.QueueCapacity))
	d := driver.New(g, cfg.PollEvery)

	server := &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: newMux(reg, cfg.MetricsPath, g, src, f, uint64(shards)),
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		f.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		d.Run(ctx)
	}()

	for p := 0; p < cfg.Producers; p++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			produce(ctx, f, id, cfg.PollEvery/10)
		}(uint64(p))
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on %s", cfg.ListenAddress)
		log.Printf("Metrics available at http://%s%s", cfg.ListenAddress, cfg.MetricsPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Println("Shutting down...")
	case err := <-serveErr:
		cancel()
		wg.Wait()
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	wg.Wait()
	log.Printf("Funnel: %d nudges, %d dropped, %d ticks; driver: %d polls; gate: %d invocations",
		f.Nudges(), f.Dropped(), f.Ticks(), d.Loops(), g.Invocations())
	return nil
}

// produce simulates a request handler goroutine nudging the gate.
func produce(ctx context.Context, f *funnel.Funnel, id uint64, every time.Duration) {
	if every < time.Millisecond {
		every = time.Millisecond
	}
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			f.Nudge(id)
		}
	}
}
