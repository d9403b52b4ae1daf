// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package catalog implements paginated, optionally auto-refreshing named
// content lists such as popular films or trending series.
//
// A Controller fetches page 1 when created and again whenever its catalog
// changes. LoadMore appends the next page, Refresh replaces everything with
// a fresh page 1, and Retry re-attempts whatever failed. Auto-refresh only
// fires while the controller is idle and error-free.
package catalog
