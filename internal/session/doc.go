// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

/*
Package session wires one running Marquee instance together.

Open validates the configuration, configures logging, builds the TMDB
access layer and starts it under a suture supervisor tree. When the
diagnostics listener is enabled it is added to the tree's API layer, so a
crash there restarts the listener without touching the dispatcher.

Controllers are created through the session so they share its access
layer, genre labels and content preferences:

	s, err := session.Open(ctx, cfg, session.Options{
	    Preferences: media.StaticPreferences{User: "alice"},
	})
	if err != nil {
	    return err
	}
	defer s.Close()

	popular, err := s.NewCatalog(catalog.PopularFilms, func(st catalog.State) {
	    render(st.Items)
	})

Close stops every controller the session created, fails queued requests,
then stops the supervisor tree.
*/
package session
