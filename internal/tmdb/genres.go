// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package tmdb

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomtom215/marquee/internal/media"
)

// Genre is a TMDB genre.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// GenreBook maps genre ids to labels for films and series. Both lists are
// fetched once per session; a failed load is not memoized.
type GenreBook struct {
	client *Client

	mu     sync.RWMutex
	films  map[int]string
	series map[int]string
	loaded bool
}

func newGenreBook(c *Client) *GenreBook {
	return &GenreBook{client: c}
}

// Load fetches both genre lists unless already loaded.
// Concurrent callers share one fetch; one caller giving up does not fail it
// for the others.
func (g *GenreBook) Load(ctx context.Context) error {
	if g.Loaded() {
		return nil
	}
	_, err := g.client.flight.do(ctx, "genres", func(ctx context.Context) (interface{}, error) {
		if g.Loaded() {
			return nil, nil
		}
		films, err := g.fetch(ctx, PathFilmGenres)
		if err != nil {
			return nil, err
		}
		series, err := g.fetch(ctx, PathSeriesGenres)
		if err != nil {
			return nil, err
		}

		g.mu.Lock()
		g.films, g.series, g.loaded = films, series, true
		g.mu.Unlock()
		return nil, nil
	})
	return err
}

func (g *GenreBook) fetch(ctx context.Context, path string) (map[int]string, error) {
	resp, err := g.client.Submit(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("load genres %s: %w", path, err)
	}
	var payload struct {
		Genres []Genre `json:"genres"`
	}
	if err := resp.Decode(&payload); err != nil {
		return nil, err
	}
	out := make(map[int]string, len(payload.Genres))
	for _, genre := range payload.Genres {
		out[genre.ID] = genre.Name
	}
	return out, nil
}

// Loaded reports whether the book has been populated.
func (g *GenreBook) Loaded() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.loaded
}

// Label resolves a genre id for a media kind. It satisfies media.LabelFunc.
func (g *GenreBook) Label(kind media.Kind, id int) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var name string
	var ok bool
	switch kind {
	case media.KindFilm:
		name, ok = g.films[id]
	case media.KindSeries:
		name, ok = g.series[id]
	}
	return name, ok
}
