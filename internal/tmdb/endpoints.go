// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package tmdb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"
)

// Resource paths relative to the API base.
const (
	PathPopularFilms    = "/movie/popular"
	PathUpcomingFilms   = "/movie/upcoming"
	PathNowPlayingFilms = "/movie/now_playing"
	PathTopRatedFilms   = "/movie/top_rated"

	PathPopularSeries  = "/tv/popular"
	PathTopRatedSeries = "/tv/top_rated"
	PathOnTheAirSeries = "/tv/on_the_air"

	PathConfiguration = "/configuration"
	PathFilmGenres    = "/genre/movie/list"
	PathSeriesGenres  = "/genre/tv/list"
)

// TrendingMedia selects the trending list.
type TrendingMedia string

const (
	TrendingAll    TrendingMedia = "all"
	TrendingFilms  TrendingMedia = "movie"
	TrendingSeries TrendingMedia = "tv"
)

// TimeWindow is the trending aggregation window.
type TimeWindow string

const (
	TimeWindowDay  TimeWindow = "day"
	TimeWindowWeek TimeWindow = "week"
)

// TrendingPath builds /trending/{media}/{window}.
func TrendingPath(m TrendingMedia, w TimeWindow) string {
	return fmt.Sprintf("/trending/%s/%s", m, w)
}

// SearchKind selects the search endpoint.
type SearchKind string

const (
	SearchMulti  SearchKind = "multi"
	SearchFilms  SearchKind = "movie"
	SearchSeries SearchKind = "tv"
	SearchPeople SearchKind = "person"
)

// Path returns the search resource path.
func (k SearchKind) Path() string {
	switch k {
	case SearchFilms, SearchSeries, SearchPeople:
		return "/search/" + string(k)
	default:
		return "/search/multi"
	}
}

// FilmPath, SeriesPath, PersonPath and EpisodePath build detail resource paths.
func FilmPath(id int) string   { return "/movie/" + strconv.Itoa(id) }
func SeriesPath(id int) string { return "/tv/" + strconv.Itoa(id) }
func PersonPath(id int) string { return "/person/" + strconv.Itoa(id) }
func EpisodePath(seriesID, season, episode int) string {
	return fmt.Sprintf("/tv/%d/season/%d/episode/%d", seriesID, season, episode)
}

// Page is one page of a paginated TMDB list. Pages are 1-based.
type Page struct {
	Page         int               `json:"page"`
	TotalPages   int               `json:"total_pages"`
	TotalResults int               `json:"total_results"`
	Results      []json.RawMessage `json:"results"`
}

// HasMore reports whether another page follows.
func (p *Page) HasMore() bool {
	return p.Page < p.TotalPages
}

// List fetches one page of a paginated resource. extra may be nil.
func (c *Client) List(ctx context.Context, path string, page int, extra url.Values) (*Page, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	for k, vs := range extra {
		q[k] = append([]string(nil), vs...)
	}
	q.Set("page", strconv.Itoa(page))

	resp, err := c.Submit(ctx, path, q)
	if err != nil {
		return nil, err
	}

	var p Page
	if err := resp.Decode(&p); err != nil {
		return nil, err
	}
	if p.Page == 0 {
		p.Page = page
	}
	if p.Results == nil {
		p.Results = []json.RawMessage{}
	}
	return &p, nil
}

// SearchRequest describes a free-text search.
type SearchRequest struct {
	Kind         SearchKind
	Query        string
	Page         int
	IncludeAdult bool
}

// Search runs a free-text query against the chosen search endpoint.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*Page, error) {
	q := url.Values{}
	q.Set("query", req.Query)
	q.Set("include_adult", strconv.FormatBool(req.IncludeAdult))
	return c.List(ctx, req.Kind.Path(), req.Page, q)
}

// Trending fetches one page of a trending list.
func (c *Client) Trending(ctx context.Context, m TrendingMedia, w TimeWindow, page int) (*Page, error) {
	return c.List(ctx, TrendingPath(m, w), page, nil)
}
