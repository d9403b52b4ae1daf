// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/tmdb"
)

// HealthStatus is the /healthz payload.
type HealthStatus struct {
	Status            string  `json:"status"`
	UpstreamReachable bool    `json:"upstream_reachable"`
	UpstreamError     string  `json:"upstream_error,omitempty"`
	BreakerState      string  `json:"breaker_state"`
	QueueDepth        int     `json:"queue_depth"`
	Uptime            float64 `json:"uptime_seconds"`
}

// HealthLive reports that the process is up. It never touches the upstream.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// Health probes the upstream through the access layer. It answers 503 when
// the probe fails.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.healthTimeout)
	defer cancel()

	err := h.access.Ping(ctx)
	stats := h.access.Stats()

	health := HealthStatus{
		Status:            "healthy",
		UpstreamReachable: err == nil,
		BreakerState:      stats.BreakerState,
		QueueDepth:        stats.QueueDepth,
		Uptime:            time.Since(h.startTime).Seconds(),
	}

	rw := NewResponseWriter(w, r)
	if err != nil {
		health.Status = "degraded"
		health.UpstreamError = tmdb.UserMessage(err)
		if health.UpstreamError == "" {
			health.UpstreamError = "health probe canceled"
		}
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Health probe failed")
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, health.UpstreamError, health)
		return
	}
	rw.Success(health)
}

// AccessStats returns the access-layer snapshot.
func (h *Handler) AccessStats(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.access.Stats())
}
