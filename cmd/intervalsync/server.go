package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/randomizedcoder/interval-sync/internal/funnel"
	"github.com/randomizedcoder/interval-sync/internal/gate"
	"github.com/randomizedcoder/interval-sync/internal/syncer"
)

// gateStatus is the read side of the gate used by /health. Its methods
// must not wait for a running action.
type gateStatus interface {
	Interval() time.Duration
	Invocations() uint64
	Due() bool
}

type server struct {
	gate   gateStatus
	src    *syncer.Syncer
	funnel *funnel.Funnel

	// Request nudges are spread round-robin over the queue shards.
	shards uint64
	next   atomic.Uint64
}

func newMux(reg *prometheus.Registry, metricsPath string, g gateStatus, src *syncer.Syncer, f *funnel.Funnel, shards uint64) *http.ServeMux {
	s := &server{gate: g, src: src, funnel: f, shards: max(shards, 1)}

	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/health", s.health)
	mux.HandleFunc("/snapshot", s.snapshot)
	mux.HandleFunc("/", s.index(metricsPath))
	return mux
}

// nudge records that a request came in; the gate decides whether that
// triggers a refresh.
func (s *server) nudge() {
	s.funnel.Nudge(s.next.Add(1) % s.shards)
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	attempts, failures, lastErr := s.src.Stats()
	snap, ok := s.src.Snapshot()

	status, code := "healthy", http.StatusOK
	switch {
	case attempts == 0:
		status = "starting"
	case !ok:
		status, code = "unhealthy", http.StatusServiceUnavailable
	case lastErr != nil:
		status = "degraded"
	}

	source := map[string]interface{}{
		"attempts": attempts,
		"failures": failures,
		"version":  snap.Version,
		"etag":     snap.ETag,
	}
	if ok {
		source["fetched_at"] = snap.FetchedAt.Format(time.RFC3339)
	}
	if lastErr != nil {
		source["last_error"] = lastErr.Error()
	}

	healthData := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"gate": map[string]interface{}{
			"interval":    s.gate.Interval().String(),
			"invocations": s.gate.Invocations(),
			"due":         s.gate.Due(),
		},
		"source": source,
		"funnel": map[string]interface{}{
			"nudges":  s.funnel.Nudges(),
			"dropped": s.funnel.Dropped(),
			"ticks":   s.funnel.Ticks(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(healthData); err != nil {
		log.Printf("health: writing response: %v", err)
	}
}

func (s *server) snapshot(w http.ResponseWriter, r *http.Request) {
	s.nudge()

	snap, ok := s.src.Snapshot()
	if !ok {
		http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
		return
	}
	if snap.ETag != "" {
		w.Header().Set("ETag", snap.ETag)
	}
	w.Header().Set("Last-Modified", snap.FetchedAt.UTC().Format(http.TimeFormat))
	if _, err := w.Write(snap.Body); err != nil {
		log.Printf("snapshot: writing response: %v", err)
	}
}

func (s *server) index(metricsPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		s.nudge()

		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(`<html>
<head><title>intervalsync</title></head>
<body>
<h1>intervalsync</h1>
<p>Keeps a local copy of a remote document, refreshing it at most once per interval.</p>
<h2>Available Endpoints:</h2>
<ul>
<li><a href="` + metricsPath + `">Metrics</a> - Prometheus metrics</li>
<li><a href="/health">Health Check</a> - Gate and source status</li>
<li><a href="/snapshot">Snapshot</a> - Latest copy of the document</li>
</ul>
</body>
</html>`))
		if err != nil {
			log.Printf("index: writing response: %v", err)
		}
	}
}

var _ gateStatus = (*gate.Locked)(nil)
