// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

/*
Package supervisor runs Marquee's long-lived services under suture v4.

The tree has two layers below the root:

	marquee (root)
	├── access-layer   tmdb.Client dispatcher
	└── api-layer      diagnostics HTTP server (optional)

Each layer is its own supervisor, so repeated failures of the diagnostics
listener back off inside api-layer without restarting the dispatcher.
Supervisor events are logged through sutureslog into the zerolog-backed
slog logger from package logging.

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.TreeConfig{})
	if err != nil {
	    return err
	}
	tree.AddAccessService(client)
	errCh := tree.ServeBackground(ctx)

A service returning suture.ErrDoNotRestart is removed rather than
restarted; the dispatcher does this once its client is closed.

Subpackage services holds adapters for running plain servers as
suture services.
*/
package supervisor
