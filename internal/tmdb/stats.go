// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package tmdb

import (
	"sync"
	"time"

	"github.com/tomtom215/marquee/internal/metrics"
)

// Stats is a point-in-time snapshot of access-layer activity.
type Stats struct {
	Dispatched     uint64        `json:"dispatched"`
	Successful     uint64        `json:"successful"`
	Failed         uint64        `json:"failed"`
	Rejected       uint64        `json:"rejected"`
	Canceled       uint64        `json:"canceled"`
	AverageLatency time.Duration `json:"average_latency_ns"`
	LastDispatch   time.Time     `json:"last_dispatch"`

	QueueDepth   int       `json:"queue_depth"`
	WindowUsed   int       `json:"window_used"`
	WindowBudget int       `json:"window_budget"`
	WindowStart  time.Time `json:"window_start"`
	BreakerState string    `json:"breaker_state"`

	// Detail cache figures; zero when the cache is disabled.
	DetailEntries int     `json:"detail_entries"`
	DetailHits    int64   `json:"detail_hits"`
	DetailMisses  int64   `json:"detail_misses"`
	DetailHitRate float64 `json:"detail_hit_rate"`
}

type statsRecorder struct {
	mu           sync.Mutex
	dispatchedN  uint64
	successful   uint64
	failed       uint64
	rejected     uint64
	canceledN    uint64
	latencyTotal time.Duration
	latencyN     uint64
	lastDispatch time.Time
}

func (s *statsRecorder) dispatched(now time.Time) {
	s.mu.Lock()
	s.dispatchedN++
	s.lastDispatch = now
	s.mu.Unlock()
}

// record tallies a settled dispatch. Cancellations are counted separately by
// canceled so in-flight aborts are not counted twice.
func (s *statsRecorder) record(outcome string, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch outcome {
	case metrics.OutcomeSuccess:
		s.successful++
	case metrics.OutcomeRejected:
		s.rejected++
		return
	case metrics.OutcomeCanceled:
		return
	default:
		s.failed++
	}
	s.latencyTotal += latency
	s.latencyN++
}

func (s *statsRecorder) canceled() {
	s.mu.Lock()
	s.canceledN++
	s.mu.Unlock()
}

// Stats returns a snapshot of counters plus the live queue and window state.
func (c *Client) Stats() Stats {
	c.stats.mu.Lock()
	st := Stats{
		Dispatched:   c.stats.dispatchedN,
		Successful:   c.stats.successful,
		Failed:       c.stats.failed,
		Rejected:     c.stats.rejected,
		Canceled:     c.stats.canceledN,
		LastDispatch: c.stats.lastDispatch,
	}
	if c.stats.latencyN > 0 {
		st.AverageLatency = c.stats.latencyTotal / time.Duration(c.stats.latencyN)
	}
	c.stats.mu.Unlock()

	now := time.Now()
	st.QueueDepth = c.QueueDepth()
	st.WindowUsed = c.window.Count(now)
	st.WindowBudget = c.window.Budget()
	st.WindowStart = c.window.Start(now)
	st.BreakerState = c.BreakerState()

	if c.details != nil {
		cs := c.details.GetStats()
		st.DetailEntries = c.details.Len()
		st.DetailHits = cs.Hits
		st.DetailMisses = cs.Misses
		st.DetailHitRate = c.details.HitRate()
	}
	return st
}
