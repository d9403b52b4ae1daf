// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

/*
Package api serves the diagnostics HTTP surface for a running session.

Routes (Chi router):

	GET /healthz/live   process liveness, never touches the upstream
	GET /healthz        upstream reachability through the access-layer queue
	GET /debug/access   access-layer Stats snapshot (queue, window, breaker)
	GET /metrics        Prometheus exposition

Every route runs behind request-ID logging, panic recovery and CORS. The
health and debug routes are additionally rate limited (go-chi/httprate)
and instrumented with the HTTP request metrics.

JSON bodies use the standard envelope:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "..."}}
*/
package api
