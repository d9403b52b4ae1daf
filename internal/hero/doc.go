// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

/*
Package hero implements the rotating featured-content controller.

The working set is drawn from one source (trending, popular or upcoming)
for films, series, or both interleaved. Only items with an image are
kept and the set is capped (default 10).

With more than one item and auto-rotation enabled, the current index
advances every interval (default 8s) and wraps. PauseRotation stops the
timer; ResumeRotation starts a fresh interval. Manual navigation (Next,
Previous, Select) also starts a fresh interval so a manual choice is shown
for a full period.
*/
package hero
