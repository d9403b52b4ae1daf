// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

/*
Package search implements the debounced free-text search controller.

A Controller moves through idle, debouncing, in_flight and settled
(success or error). Every query change returns it to debouncing:

  - SetQuery updates the visible query at once and defers the request by
    the debounce delay; only the last value inside the delay is sent
  - queries shorter than the minimum length never reach the access layer
    and clear results synchronously
  - a query change cancels the previous in-flight request through its
    context; a generation counter drops any response that still arrives
  - LoadMore appends the next page when one exists and nothing is in flight
  - Retry reissues the current query from page 1; Clear resets everything

Cancellation never sets an error and never clears results on screen.
*/
package search
