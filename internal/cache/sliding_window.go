// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package cache

import (
	"sync"
	"time"
)

// SlidingLog is an exact sliding window counter. It keeps the timestamps of
// the most recent events (at most limit of them), so for any instant it can
// say how many events fell inside the preceding window and when the next
// slot frees up.
//
// An event recorded at t occupies a slot while now-t < window.
//
// Complexity:
//   - Record: O(1) amortized
//   - Count: O(k) where k = expired entries pruned
//   - Memory: O(limit)
type SlidingLog struct {
	mu     sync.Mutex
	times  []time.Time // ascending, len <= limit
	window time.Duration
	limit  int
}

// NewSlidingLog creates a log that admits limit events per window.
func NewSlidingLog(limit int, window time.Duration) *SlidingLog {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &SlidingLog{
		times:  make([]time.Time, 0, limit),
		window: window,
		limit:  limit,
	}
}

// Limit returns the per-window capacity.
func (l *SlidingLog) Limit() int { return l.limit }

// Window returns the window duration.
func (l *SlidingLog) Window() time.Duration { return l.window }

// Record adds an event at now. When the log is already full the oldest entry
// is dropped; callers wait for NextSlot first.
func (l *SlidingLog) Record(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(now)
	if len(l.times) == l.limit {
		l.times = append(l.times[:0], l.times[1:]...)
	}
	l.times = append(l.times, now)
}

// Count returns the number of events inside the window ending at now.
func (l *SlidingLog) Count(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(now)
	return len(l.times)
}

// Oldest returns the earliest event still inside the window.
func (l *SlidingLog) Oldest(now time.Time) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(now)
	if len(l.times) == 0 {
		return time.Time{}, false
	}
	return l.times[0], true
}

// NextSlot returns the earliest instant at or after now when an event may be
// recorded.
func (l *SlidingLog) NextSlot(now time.Time) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(now)
	if len(l.times) < l.limit {
		return now
	}
	return l.times[0].Add(l.window)
}

// prune drops entries that have left the window. Must be called with lock held.
func (l *SlidingLog) prune(now time.Time) {
	i := 0
	for i < len(l.times) && now.Sub(l.times[i]) >= l.window {
		i++
	}
	if i > 0 {
		l.times = append(l.times[:0], l.times[i:]...)
	}
}
