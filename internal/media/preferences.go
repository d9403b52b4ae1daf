// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package media

// Preferences is the read-only view of the viewer's settings the
// controllers consult.
type Preferences interface {
	// AdultContentEnabled gates include_adult on search and adult items in
	// controller state.
	AdultContentEnabled() bool

	// Identity names the viewer for logs. Empty for anonymous sessions.
	Identity() string
}

// StaticPreferences is a fixed Preferences value.
type StaticPreferences struct {
	Adult bool
	User  string
}

func (p StaticPreferences) AdultContentEnabled() bool { return p.Adult }
func (p StaticPreferences) Identity() string          { return p.User }

// AdultAllowed reports whether p permits adult content. A nil p does not.
func AdultAllowed(p Preferences) bool {
	return p != nil && p.AdultContentEnabled()
}
