// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/marquee/internal/tmdb"
)

// DefaultHealthTimeout bounds the upstream probe behind /healthz. The probe
// waits in the access-layer queue like any other request.
const DefaultHealthTimeout = 15 * time.Second

// AccessLayer is what the diagnostics handlers read. *tmdb.Client satisfies it.
type AccessLayer interface {
	Ping(ctx context.Context) error
	Stats() tmdb.Stats
}

// Handler serves the diagnostics routes.
type Handler struct {
	access        AccessLayer
	startTime     time.Time
	healthTimeout time.Duration
}

// NewHandler creates a handler over access.
func NewHandler(access AccessLayer) *Handler {
	return &Handler{
		access:        access,
		startTime:     time.Now(),
		healthTimeout: DefaultHealthTimeout,
	}
}

// NewRouter builds the diagnostics router. A nil mw uses defaults.
func NewRouter(h *Handler, mw *ChiMiddleware) http.Handler {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}

	r := chi.NewRouter()
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())

	r.Group(func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(PrometheusMetrics)

		r.Get("/healthz/live", h.HealthLive)
		r.Get("/healthz", h.Health)
		r.Get("/debug/access", h.AccessStats)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
