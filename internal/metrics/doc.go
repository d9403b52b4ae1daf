// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

/*
Package metrics provides Prometheus instrumentation for Marquee.

All collectors are registered on the default registry through promauto and
are exposed by the diagnostics router at /metrics.

# Available Metrics

Access layer:
  - tmdb_requests_total: completed submissions (counter)
    Labels: endpoint, outcome (success, upstream_error, transport_error, canceled, rejected)
  - tmdb_request_duration_seconds: upstream round-trip time (histogram)
    Labels: endpoint
  - tmdb_queue_wait_seconds: time from submission to dispatch (histogram)
  - tmdb_queue_depth: tickets waiting for dispatch (gauge)
  - tmdb_rate_window_used: dispatches counted in the current rate window (gauge)
  - tmdb_cancellations_total: Labels: stage (queued, in_flight)

Circuit breaker:
  - circuit_breaker_state: 0=closed, 1=half-open, 2=open (gauge)
  - circuit_breaker_requests_total: Labels: name, result
  - circuit_breaker_consecutive_failures: Labels: name
  - circuit_breaker_state_transitions_total: Labels: name, from_state, to_state

Caches:
  - cache_lookups_total: Labels: cache, result (hit, miss)
  - cache_entries: Labels: cache

Controllers:
  - controller_loads_total: Labels: controller, outcome (success, error, canceled)
  - search_latency_seconds: query-to-result latency observed by search (histogram)
  - hero_rotations_total: Labels: trigger (timer, manual)

Diagnostics HTTP:
  - http_requests_total, http_request_duration_seconds, http_requests_in_flight

# Usage

	metrics.RecordTMDBRequest("/movie/{id}", metrics.OutcomeSuccess, 120*time.Millisecond)
	metrics.RecordCacheLookup("details", true)
*/
package metrics
