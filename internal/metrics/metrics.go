// Package metrics provides Prometheus metrics for followwatch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "followwatch"
)

// HTTP metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// HTTPRequestsInFlight tracks concurrent HTTP requests.
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)
)

// Refresh metrics
var (
	// RefreshTotal counts profile refreshes by outcome.
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "total",
			Help:      "Total profile refreshes",
		},
		[]string{"result"}, // ok, not_found, source_unavailable, storage_error
	)

	// RefreshDuration tracks end-to-end refresh latency.
	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "duration_seconds",
			Help:      "Profile refresh latency in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// AlertsTriggeredTotal counts alerts that transitioned to triggered.
	AlertsTriggeredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "triggered_total",
			Help:      "Total milestone alerts triggered",
		},
	)
)

// Notification metrics
var (
	// NotificationsTotal counts notifier deliveries by notifier and result.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "sent_total",
			Help:      "Total notification attempts",
		},
		[]string{"notifier", "result"},
	)

	// NotificationsRateLimited counts notifications dropped by the rate limiter.
	NotificationsRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "rate_limited_total",
			Help:      "Total notifications dropped by rate limiting",
		},
	)
)

// Scheduler metrics
var (
	// SchedulerTicksTotal counts scheduler ticks.
	SchedulerTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Total scheduler ticks",
		},
	)

	// SchedulerDispatchedTotal counts refreshes handed to the worker pool.
	SchedulerDispatchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "dispatched_total",
			Help:      "Total refreshes dispatched to workers",
		},
	)

	// SchedulerDroppedTotal counts refresh requests skipped by reason.
	SchedulerDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "dropped_total",
			Help:      "Total refresh requests dropped",
		},
		[]string{"reason"}, // in_flight, queue_full
	)

	// ProfilesTracked is the number of profiles seen by the last tick.
	ProfilesTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "profiles_tracked",
			Help:      "Profiles enumerated by the last scheduler tick",
		},
	)

	// HistoryPrunedTotal counts history samples removed by retention.
	HistoryPrunedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "pruned_total",
			Help:      "Total follower history samples pruned",
		},
	)
)

// Auth metrics
var (
	// AuthAttemptsTotal counts authentication attempts.
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Total authentication attempts",
		},
		[]string{"method", "result"}, // basic|bearer, success|failure
	)

	// AuthTokensIssued counts issued access tokens.
	AuthTokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "tokens_issued_total",
			Help:      "Total access tokens issued",
		},
	)
)

// Info metric
var (
	// BuildInfo exposes build information.
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version", "commit", "build_time"},
	)
)

// SetBuildInfo sets the build info metric.
func SetBuildInfo(version, commit, buildTime string) {
	BuildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}
