// Package metrics holds the Prometheus collectors for the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviepicker_commands_total",
			Help: "Total number of movie commands by outcome",
		},
		[]string{"command", "result"},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviepicker_upstream_requests_total",
			Help: "Total number of metadata and trailer lookups by outcome",
		},
		[]string{"service", "result"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moviepicker_upstream_request_duration_seconds",
			Help:    "Duration of upstream metadata and trailer lookups",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "moviepicker_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	SnapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moviepicker_store_snapshots_total",
			Help: "Total number of collection snapshots emitted to subscribers",
		},
		[]string{"driver"},
	)

	ActiveSubscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "moviepicker_store_active_subscriptions",
			Help: "Number of open collection subscriptions",
		},
		[]string{"driver"},
	)

	ViewRecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "moviepicker_view_recompute_duration_seconds",
			Help:    "Time spent rebuilding a view model",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	LiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "moviepicker_live_sessions",
			Help: "Number of connected live view websockets",
		},
	)
)

// RecordCommand counts one command outcome.
func RecordCommand(command string, err error) {
	CommandsTotal.WithLabelValues(command, result(err)).Inc()
}

// RecordUpstream counts one upstream call and observes its duration.
func RecordUpstream(service string, start time.Time, err error) {
	UpstreamDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
	UpstreamRequests.WithLabelValues(service, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
