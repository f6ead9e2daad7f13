// Package metrics exposes assistant counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pharmacy"

// Recorder collects assistant metrics. A nil *Recorder is a valid no-op.
type Recorder struct {
	turns         *prometheus.CounterVec
	blocked       *prometheus.CounterVec
	storeErrors   prometheus.Counter
	healthLatency *prometheus.HistogramVec
}

// NewRecorder builds the collectors and registers them on reg.
// A nil reg means the default registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "assistant",
				Name:      "turns_total",
				Help:      "Chat turns handled, by routed intent and dialogue branch",
			},
			[]string{"intent", "branch"},
		),
		blocked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "assistant",
				Name:      "blocked_total",
				Help:      "Messages refused by the safety filter, by rule",
			},
			[]string{"rule"},
		),
		storeErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "assistant",
				Name:      "store_errors_total",
				Help:      "Turns that failed on the inventory or cart store",
			},
		),
		healthLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "search_latency_seconds",
				Help:      "Latency of health information lookups",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"status"},
		),
	}
	reg.MustRegister(r.turns, r.blocked, r.storeErrors, r.healthLatency)
	return r
}

// Turn counts one handled chat turn.
func (r *Recorder) Turn(intent, branch string) {
	if r == nil {
		return
	}
	r.turns.WithLabelValues(intent, branch).Inc()
}

// Blocked counts a message refused by the named safety rule.
func (r *Recorder) Blocked(rule string) {
	if r == nil {
		return
	}
	r.blocked.WithLabelValues(rule).Inc()
}

// StoreError counts a turn lost to an inventory or cart store failure.
func (r *Recorder) StoreError() {
	if r == nil {
		return
	}
	r.storeErrors.Inc()
}

// HealthSearch observes one health lookup; status is "ok", "cached" or "error".
// Only the health service calls it, so each lookup is observed once.
func (r *Recorder) HealthSearch(status string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.healthLatency.WithLabelValues(status).Observe(elapsed.Seconds())
}
