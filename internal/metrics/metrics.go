// Package metrics exports gate activity as Prometheus metrics.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "intervalsync"

// Tick results used as the "result" label.
const (
	ResultInvoked    = "invoked"
	ResultSuppressed = "suppressed"
)

// Observer is a gate.Observer backed by Prometheus collectors.
type Observer struct {
	ticks        *prometheus.CounterVec
	actionErrors *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	lastInvoked  *prometheus.GaugeVec

	now func() time.Time
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Observer, error) {
	o := &Observer{
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gate",
				Name:      "ticks_total",
				Help:      "Tick calls by outcome",
			},
			[]string{"gate", "result"},
		),

		actionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gate",
				Name:      "action_errors_total",
				Help:      "Invocations whose action returned an error",
			},
			[]string{"gate"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "gate",
				Name:      "action_duration_seconds",
				Help:      "Time spent in the gated action",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"gate"},
		),

		lastInvoked: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "gate",
				Name:      "last_invoked_timestamp_seconds",
				Help:      "Unix time of the most recent invocation (informational, not used for gating)",
			},
			[]string{"gate"},
		),

		now: time.Now,
	}

	for _, c := range []prometheus.Collector{o.ticks, o.actionErrors, o.duration, o.lastInvoked} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: registering collector: %w", err)
		}
	}
	return o, nil
}

// Suppressed implements gate.Observer.
func (o *Observer) Suppressed(gate string) {
	o.ticks.WithLabelValues(gate, ResultSuppressed).Inc()
}

// Invoked implements gate.Observer.
func (o *Observer) Invoked(gate string, took time.Duration, err error) {
	o.ticks.WithLabelValues(gate, ResultInvoked).Inc()
	o.duration.WithLabelValues(gate).Observe(took.Seconds())
	o.lastInvoked.WithLabelValues(gate).Set(float64(o.now().UnixNano()) / 1e9)
	if err != nil {
		o.actionErrors.WithLabelValues(gate).Inc()
	}
}
