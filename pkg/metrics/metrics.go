// Package metrics exposes Prometheus instrumentation for the executor's
// provisioning progress: queue depth, percent-complete, per-task durations,
// and retries.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// NodesTotal is the number of task nodes by type and state, refreshed
	// once per executor tick.
	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "atlas_nodes_total",
			Help: "Total number of task nodes by type and state",
		},
		[]string{"type", "state"},
	)

	// PercentComplete tracks the active run's completion fraction.
	PercentComplete = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "atlas_percent_complete",
			Help: "Percent of nodes in the terminal state for the active phase",
		},
		[]string{"cluster", "phase"},
	)

	// QueueDepth is the number of in-flight worker pool slots occupied.
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "atlas_worker_pool_depth",
			Help: "Number of worker pool slots currently occupied",
		},
	)

	// TaskDuration observes the wall-clock time of one task Run call.
	TaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "atlas_task_duration_seconds",
			Help:    "Duration of a single task run (provision or delete)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type", "action", "outcome"},
	)

	// RetriesTotal counts every FAILED -> PENDING_* re-arm.
	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atlas_task_retries_total",
			Help: "Total number of tasks re-armed from FAILED",
		},
		[]string{"type"},
	)

	// TicksTotal counts executor scheduling ticks.
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atlas_executor_ticks_total",
			Help: "Total number of executor scheduling ticks",
		},
		[]string{"cluster", "phase"},
	)
)

func init() {
	prometheus.MustRegister(
		NodesTotal,
		PercentComplete,
		QueueDepth,
		TaskDuration,
		RetriesTotal,
		TicksTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
