// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/marquee/internal/config"
)

// NewServer returns the diagnostics http.Server for cfg. The caller runs it,
// normally as a supervised HTTPServerService.
func NewServer(access AccessLayer, cfg config.DiagnosticsConfig) *http.Server {
	h := NewHandler(access)
	mw := NewChiMiddleware(ChiMiddlewareConfigFromDiagnostics(cfg))

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(h, mw),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Health probes may wait in the upstream queue.
		WriteTimeout: DefaultHealthTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
