// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for tmdb_requests_total and controller_loads_total.
const (
	OutcomeSuccess        = "success"
	OutcomeUpstreamError  = "upstream_error"
	OutcomeTransportError = "transport_error"
	OutcomeCanceled       = "canceled"
	OutcomeRejected       = "rejected"
	OutcomeError          = "error"
)

var (
	// Access Layer Metrics
	TMDBRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmdb_requests_total",
			Help: "Total number of completed TMDB submissions by outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	TMDBRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tmdb_request_duration_seconds",
			Help:    "Duration of upstream TMDB round trips in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	TMDBQueueWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tmdb_queue_wait_seconds",
			Help:    "Time a submission waited in the queue before dispatch",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	TMDBQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tmdb_queue_depth",
			Help: "Current number of submissions waiting for dispatch",
		},
	)

	TMDBRateWindowUsed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tmdb_rate_window_used",
			Help: "Dispatches counted in the current rate window",
		},
	)

	TMDBCancellations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tmdb_cancellations_total",
			Help: "Total number of canceled submissions by stage",
		},
		[]string{"stage"}, // "queued", "in_flight"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Cache Metrics
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Total number of cache lookups by result",
		},
		[]string{"cache", "result"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache"},
	)

	// Controller Metrics
	ControllerLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "controller_loads_total",
			Help: "Total number of controller loads by outcome",
		},
		[]string{"controller", "outcome"},
	)

	SearchLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "search_latency_seconds",
			Help:    "Latency from issuing a search to receiving results",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	HeroRotations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hero_rotations_total",
			Help: "Total number of hero index changes",
		},
		[]string{"trigger"}, // "timer", "manual"
	)

	// Diagnostics HTTP Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests to the diagnostics router",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// RecordTMDBRequest records a completed submission. Duration is only
// observed for outcomes that reached the upstream.
func RecordTMDBRequest(endpoint, outcome string, duration time.Duration) {
	TMDBRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	switch outcome {
	case OutcomeSuccess, OutcomeUpstreamError, OutcomeTransportError:
		TMDBRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	}
}

// RecordCancellation records a canceled submission. inFlight is true when the
// request had already been dispatched.
func RecordCancellation(inFlight bool) {
	stage := "queued"
	if inFlight {
		stage = "in_flight"
	}
	TMDBCancellations.WithLabelValues(stage).Inc()
}

// RecordQueueWait records how long a ticket waited before dispatch.
func RecordQueueWait(wait time.Duration) {
	TMDBQueueWait.Observe(wait.Seconds())
}

// UpdateAccessGauges publishes queue depth and window usage.
func UpdateAccessGauges(queueDepth, windowUsed int) {
	TMDBQueueDepth.Set(float64(queueDepth))
	TMDBRateWindowUsed.Set(float64(windowUsed))
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(cache, result).Inc()
}

// RecordControllerLoad records one controller fetch outcome.
func RecordControllerLoad(controller, outcome string) {
	ControllerLoads.WithLabelValues(controller, outcome).Inc()
}

// RecordSearchLatency records a completed search round trip.
func RecordSearchLatency(d time.Duration) {
	SearchLatency.Observe(d.Seconds())
}

// RecordHeroRotation records an index change.
func RecordHeroRotation(manual bool) {
	trigger := "timer"
	if manual {
		trigger = "manual"
	}
	HeroRotations.WithLabelValues(trigger).Inc()
}

// RecordAPIRequest records a diagnostics HTTP request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks in-flight diagnostics requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
