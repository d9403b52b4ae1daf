// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package media

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// ErrUnrecognizedShape is returned for records that are not a film, series or person.
var ErrUnrecognizedShape = errors.New("unrecognized media record shape")

// record is the superset of fields the three TMDB shapes use. Pointers
// distinguish an absent key from an empty value.
type record struct {
	ID        *int    `json:"id"`
	MediaType *string `json:"media_type"`

	// film
	Title       *string `json:"title"`
	ReleaseDate *string `json:"release_date"`

	// series
	Name          *string  `json:"name"`
	FirstAirDate  *string  `json:"first_air_date"`
	OriginalName  *string  `json:"original_name"`
	OriginCountry []string `json:"origin_country"`

	// person
	KnownForDepartment *string           `json:"known_for_department"`
	ProfilePath        *string           `json:"profile_path"`
	KnownFor           []json.RawMessage `json:"known_for"`

	PosterPath   *string  `json:"poster_path"`
	BackdropPath *string  `json:"backdrop_path"`
	Overview     *string  `json:"overview"`
	VoteAverage  *float64 `json:"vote_average"`
	Popularity   float64  `json:"popularity"`
	Adult        bool     `json:"adult"`

	GenreIDs []int `json:"genre_ids"`
	Genres   []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
}

// Normalize maps one raw record onto an Item. now is the reference instant
// for film status; passing it in keeps the function deterministic.
func Normalize(raw json.RawMessage, now time.Time) (Item, error) {
	return NormalizeAs(raw, "", now)
}

// NormalizeAs is Normalize with a kind hint for endpoints whose records do
// not carry media_type (for example /tv/popular). An explicit media_type on
// the record still wins over the hint.
func NormalizeAs(raw json.RawMessage, hint Kind, now time.Time) (Item, error) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Item{}, fmt.Errorf("decode media record: %w", err)
	}
	if rec.ID == nil {
		return Item{}, fmt.Errorf("%w: missing id", ErrUnrecognizedShape)
	}

	kind, err := detectKind(&rec, hint)
	if err != nil {
		return Item{}, err
	}

	item := Item{
		ID:           FormatID(kind, *rec.ID),
		SourceID:     *rec.ID,
		Kind:         kind,
		PosterPath:   deref(rec.PosterPath),
		BackdropPath: deref(rec.BackdropPath),
		Overview:     deref(rec.Overview),
		Provenance:   Provenance,
		Adult:        rec.Adult,
		Popularity:   rec.Popularity,
		GenreIDs:     []int{},
		Genres:       []string{},
		Source:       raw,
	}

	if rec.VoteAverage != nil {
		r := clampRating(*rec.VoteAverage)
		item.Rating = &r
	}

	switch {
	case len(rec.GenreIDs) > 0:
		item.GenreIDs = append(item.GenreIDs, rec.GenreIDs...)
	case len(rec.Genres) > 0:
		for _, g := range rec.Genres {
			item.GenreIDs = append(item.GenreIDs, g.ID)
			item.Genres = append(item.Genres, g.Name)
		}
	}

	switch kind {
	case KindFilm:
		item.Title = deref(rec.Title)
		item.Date = parseDate(deref(rec.ReleaseDate))
		item.Status = filmStatus(item.Date, now)
	case KindSeries:
		item.Title = deref(rec.Name)
		item.Date = parseDate(deref(rec.FirstAirDate))
		item.Status = StatusReleased
	case KindPerson:
		item.Title = deref(rec.Name)
		item.PosterPath = deref(rec.ProfilePath)
		item.Department = deref(rec.KnownForDepartment)
		item.Status = StatusReleased
	}

	return item, nil
}

// NormalizeList normalizes every record, skipping (and counting) the ones
// that fail. Order is preserved.
func NormalizeList(raws []json.RawMessage, hint Kind, now time.Time) ([]Item, int) {
	items := make([]Item, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		item, err := NormalizeAs(raw, hint, now)
		if err != nil {
			skipped++
			continue
		}
		items = append(items, item)
	}
	return items, skipped
}

func detectKind(rec *record, hint Kind) (Kind, error) {
	if rec.MediaType != nil {
		switch *rec.MediaType {
		case "movie":
			return KindFilm, nil
		case "tv":
			return KindSeries, nil
		case "person":
			return KindPerson, nil
		default:
			return "", fmt.Errorf("%w: media_type %q", ErrUnrecognizedShape, *rec.MediaType)
		}
	}

	if hint.Valid() && matchesKind(rec, hint) {
		return hint, nil
	}

	switch {
	case rec.Title != nil:
		return KindFilm, nil
	case rec.Name != nil && (rec.FirstAirDate != nil || rec.OriginalName != nil || rec.OriginCountry != nil):
		return KindSeries, nil
	case rec.Name != nil && (rec.KnownForDepartment != nil || rec.ProfilePath != nil || rec.KnownFor != nil):
		return KindPerson, nil
	}
	return "", ErrUnrecognizedShape
}

// matchesKind checks the minimum field a hinted kind needs for a title.
func matchesKind(rec *record, kind Kind) bool {
	switch kind {
	case KindFilm:
		return rec.Title != nil
	case KindSeries, KindPerson:
		return rec.Name != nil
	}
	return false
}

func filmStatus(date, now time.Time) Status {
	switch {
	case date.IsZero():
		return StatusInProduction
	case date.After(now):
		return StatusUpcoming
	default:
		return StatusReleased
	}
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func clampRating(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 10:
		return 10
	}
	return v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
