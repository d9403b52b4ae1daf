// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package tmdb

import (
	"time"

	"github.com/tomtom215/marquee/internal/cache"
)

// RateWindow accounts for dispatches against the upstream budget.
//
// It is a sliding log: every dispatch timestamp within the last window is
// kept, so no rolling window of the configured length ever holds more than
// the budget. A request that would exceed the budget is deferred until the
// oldest dispatch leaves the window, never dropped.
type RateWindow struct {
	log *cache.SlidingLog
}

// NewRateWindow creates a window admitting budget dispatches per window.
func NewRateWindow(budget int, window time.Duration) *RateWindow {
	return &RateWindow{log: cache.NewSlidingLog(budget, window)}
}

// Count is the number of dispatches inside the window ending at now.
func (w *RateWindow) Count(now time.Time) int {
	return w.log.Count(now)
}

// Start is the start of the current window: the oldest dispatch still
// counted, or now when the window is empty.
func (w *RateWindow) Start(now time.Time) time.Time {
	if t, ok := w.log.Oldest(now); ok {
		return t
	}
	return now
}

// Budget is the per-window dispatch limit.
func (w *RateWindow) Budget() int { return w.log.Limit() }

// Length is the window duration.
func (w *RateWindow) Length() time.Duration { return w.log.Window() }

// Delay is how long a dispatch at now must wait for headroom.
func (w *RateWindow) Delay(now time.Time) time.Duration {
	if d := w.log.NextSlot(now).Sub(now); d > 0 {
		return d
	}
	return 0
}

// Record counts a dispatch at now.
func (w *RateWindow) Record(now time.Time) {
	w.log.Record(now)
}
