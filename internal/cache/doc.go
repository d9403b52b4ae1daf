// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

/*
Package cache holds the in-memory structures behind the access layer.

Cache is a generic TTL map used for detail lookups (films, series, people,
episodes). Entries expire lazily on Get and are swept by a background
goroutine until Close. Hits, misses and evictions are exported per cache
name through the metrics package.

	details := cache.New[json.RawMessage]("tmdb-details", 10*time.Minute)
	defer details.Close()

	if d, ok := details.Get("/movie/550"); ok {
	    return decode(d)
	}

SlidingLog records dispatch timestamps and answers how many fall inside
the trailing window, and when the next slot opens. The rate window in
package tmdb is built on it:

	log := cache.NewSlidingLog(40, 10*time.Second)
	if wait := log.NextSlot(now).Sub(now); wait > 0 {
	    time.Sleep(wait)
	    now = now.Add(wait)
	}
	log.Record(now)

SlidingLog never reads the clock itself; callers pass now.
*/
package cache
