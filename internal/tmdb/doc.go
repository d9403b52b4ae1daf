// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

/*
Package tmdb is the rate-limited access layer for The Movie Database API.

Every outbound call goes through Client.Submit. Submissions join a FIFO
queue drained by a single dispatcher goroutine (Client.Serve) that:

  - dispatches one request at a time, in submission order
  - never exceeds the rate budget (default 40) in any rolling window
    (default 10s); a request without headroom waits, it is never dropped
  - keeps a minimum spacing between dispatches (default 250ms)
  - skips submissions whose context ended while queued, without spending budget
  - guards the upstream with a circuit breaker that trips on transport
    failures and 5xx responses

Errors are classified as ErrCanceled, ErrTransport, *UpstreamError,
ErrCircuitOpen or ErrClosed. UserMessage turns any of them into the single
display string controllers expose.

On top of Submit the package provides typed list, search and detail
lookups, a genre book and image URL resolution backed by a memoized
/configuration fetch with a built-in fallback table.

# Usage

	client := tmdb.New(tmdb.OptionsFromConfig(cfg))
	tree.AddAccessService(client)
	defer client.Close()

	page, err := client.List(ctx, tmdb.PathPopularFilms, 1, nil)
*/
package tmdb
