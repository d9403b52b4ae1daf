// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/marquee/internal/media"
	"github.com/tomtom215/marquee/internal/tmdb"
)

// ID names a catalog.
type ID string

const (
	PopularFilms    ID = "popular_films"
	UpcomingFilms   ID = "upcoming_films"
	TopRatedFilms   ID = "top_rated_films"
	NowPlayingFilms ID = "now_playing_films"
	PopularSeries   ID = "popular_series"
	TopRatedSeries  ID = "top_rated_series"
	OnTheAirSeries  ID = "on_the_air_series"
	TrendingAll     ID = "trending_all"
	TrendingFilms   ID = "trending_films"
	TrendingSeries  ID = "trending_series"
)

// ErrUnknownCatalog is returned for an ID outside the catalog table.
var ErrUnknownCatalog = errors.New("catalog: unknown catalog")

// Definition binds a catalog to its resource and normalization path.
type Definition struct {
	ID    ID
	Title string

	// Kind is the normalization hint. Empty for mixed lists whose records
	// carry media_type.
	Kind media.Kind

	path     string
	trending tmdb.TrendingMedia
}

// Path returns the resource path. Trending catalogs use window.
func (d Definition) Path(window tmdb.TimeWindow) string {
	if d.trending != "" {
		return tmdb.TrendingPath(d.trending, window)
	}
	return d.path
}

// fetch loads one page through backend. Trending catalogs go through the
// trending endpoint for window.
func (d Definition) fetch(ctx context.Context, b Backend, window tmdb.TimeWindow, page int) (*tmdb.Page, error) {
	if d.trending != "" {
		return b.Trending(ctx, d.trending, window, page)
	}
	return b.List(ctx, d.path, page, nil)
}

var definitions = []Definition{
	{ID: PopularFilms, Title: "Popular Films", Kind: media.KindFilm, path: tmdb.PathPopularFilms},
	{ID: UpcomingFilms, Title: "Upcoming Films", Kind: media.KindFilm, path: tmdb.PathUpcomingFilms},
	{ID: TopRatedFilms, Title: "Top Rated Films", Kind: media.KindFilm, path: tmdb.PathTopRatedFilms},
	{ID: NowPlayingFilms, Title: "Now Playing", Kind: media.KindFilm, path: tmdb.PathNowPlayingFilms},
	{ID: PopularSeries, Title: "Popular Series", Kind: media.KindSeries, path: tmdb.PathPopularSeries},
	{ID: TopRatedSeries, Title: "Top Rated Series", Kind: media.KindSeries, path: tmdb.PathTopRatedSeries},
	{ID: OnTheAirSeries, Title: "On The Air", Kind: media.KindSeries, path: tmdb.PathOnTheAirSeries},
	{ID: TrendingAll, Title: "Trending", trending: tmdb.TrendingAll},
	{ID: TrendingFilms, Title: "Trending Films", Kind: media.KindFilm, trending: tmdb.TrendingFilms},
	{ID: TrendingSeries, Title: "Trending Series", Kind: media.KindSeries, trending: tmdb.TrendingSeries},
}

// Catalogs lists every catalog in display order.
func Catalogs() []Definition {
	return append([]Definition(nil), definitions...)
}

// Lookup returns the definition for id.
func Lookup(id ID) (Definition, error) {
	for _, d := range definitions {
		if d.ID == id {
			return d, nil
		}
	}
	return Definition{}, fmt.Errorf("%w: %q", ErrUnknownCatalog, id)
}
