// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package tmdb

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/marquee/internal/media"
)

// FilmDetail is the /movie/{id} record.
type FilmDetail struct {
	ID            int     `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title"`
	Overview      string  `json:"overview"`
	Tagline       string  `json:"tagline"`
	PosterPath    string  `json:"poster_path"`
	BackdropPath  string  `json:"backdrop_path"`
	ReleaseDate   string  `json:"release_date"`
	Runtime       int     `json:"runtime"`
	Status        string  `json:"status"`
	VoteAverage   float64 `json:"vote_average"`
	VoteCount     int     `json:"vote_count"`
	Budget        int64   `json:"budget"`
	Revenue       int64   `json:"revenue"`
	Homepage      string  `json:"homepage"`
	IMDbID        string  `json:"imdb_id"`
	Adult         bool    `json:"adult"`
	Genres        []Genre `json:"genres"`

	// Item is the normalized form of the same record.
	Item media.Item `json:"-"`
}

// SeriesDetail is the /tv/{id} record.
type SeriesDetail struct {
	ID               int      `json:"id"`
	Name             string   `json:"name"`
	OriginalName     string   `json:"original_name"`
	Overview         string   `json:"overview"`
	Tagline          string   `json:"tagline"`
	PosterPath       string   `json:"poster_path"`
	BackdropPath     string   `json:"backdrop_path"`
	FirstAirDate     string   `json:"first_air_date"`
	LastAirDate      string   `json:"last_air_date"`
	NumberOfSeasons  int      `json:"number_of_seasons"`
	NumberOfEpisodes int      `json:"number_of_episodes"`
	InProduction     bool     `json:"in_production"`
	Status           string   `json:"status"`
	VoteAverage      float64  `json:"vote_average"`
	EpisodeRunTime   []int    `json:"episode_run_time"`
	Genres           []Genre  `json:"genres"`
	Seasons          []Season `json:"seasons"`

	Item media.Item `json:"-"`
}

// Season is a season summary inside SeriesDetail.
type Season struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	SeasonNumber int    `json:"season_number"`
	EpisodeCount int    `json:"episode_count"`
	AirDate      string `json:"air_date"`
	PosterPath   string `json:"poster_path"`
}

// PersonDetail is the /person/{id} record.
type PersonDetail struct {
	ID                 int     `json:"id"`
	Name               string  `json:"name"`
	Biography          string  `json:"biography"`
	Birthday           string  `json:"birthday"`
	Deathday           string  `json:"deathday"`
	PlaceOfBirth       string  `json:"place_of_birth"`
	KnownForDepartment string  `json:"known_for_department"`
	ProfilePath        string  `json:"profile_path"`
	Popularity         float64 `json:"popularity"`

	Item media.Item `json:"-"`
}

// EpisodeDetail is the /tv/{id}/season/{s}/episode/{e} record.
type EpisodeDetail struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	Overview      string  `json:"overview"`
	AirDate       string  `json:"air_date"`
	EpisodeNumber int     `json:"episode_number"`
	SeasonNumber  int     `json:"season_number"`
	Runtime       int     `json:"runtime"`
	StillPath     string  `json:"still_path"`
	VoteAverage   float64 `json:"vote_average"`
}

// Film fetches film details.
func (c *Client) Film(ctx context.Context, id int) (*FilmDetail, error) {
	var d FilmDetail
	raw, err := c.detail(ctx, FilmPath(id), &d)
	if err != nil {
		return nil, err
	}
	d.Item, err = media.NormalizeAs(raw, media.KindFilm, time.Now())
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Series fetches series details.
func (c *Client) Series(ctx context.Context, id int) (*SeriesDetail, error) {
	var d SeriesDetail
	raw, err := c.detail(ctx, SeriesPath(id), &d)
	if err != nil {
		return nil, err
	}
	d.Item, err = media.NormalizeAs(raw, media.KindSeries, time.Now())
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Person fetches person details.
func (c *Client) Person(ctx context.Context, id int) (*PersonDetail, error) {
	var d PersonDetail
	raw, err := c.detail(ctx, PersonPath(id), &d)
	if err != nil {
		return nil, err
	}
	d.Item, err = media.NormalizeAs(raw, media.KindPerson, time.Now())
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Episode fetches a single episode.
func (c *Client) Episode(ctx context.Context, seriesID, season, episode int) (*EpisodeDetail, error) {
	var d EpisodeDetail
	if _, err := c.detail(ctx, EpisodePath(seriesID, season, episode), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// detail returns the raw body for path, served from the detail cache when
// possible. Identical concurrent lookups share one submission.
func (c *Client) detail(ctx context.Context, path string, into interface{}) (json.RawMessage, error) {
	raw, err := c.lookupDetail(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) lookupDetail(ctx context.Context, path string) (json.RawMessage, error) {
	if c.details != nil {
		if raw, ok := c.details.Get(path); ok {
			return raw, nil
		}
	}

	v, err := c.flight.do(ctx, "detail:"+path, func(ctx context.Context) (interface{}, error) {
		resp, err := c.Submit(ctx, path, nil)
		if err != nil {
			return nil, err
		}
		if c.details != nil {
			c.details.Set(path, resp.Body)
		}
		return resp.Body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(json.RawMessage), nil
}
