// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package media

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Kind is the media kind of an Item. It never changes after construction.
type Kind string

const (
	KindFilm   Kind = "film"
	KindSeries Kind = "series"
	KindPerson Kind = "person"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindFilm, KindSeries, KindPerson:
		return true
	}
	return false
}

// Status is the lifecycle status of an Item.
type Status string

const (
	StatusReleased     Status = "released"
	StatusUpcoming     Status = "upcoming"
	StatusInProduction Status = "in_production"
)

// Provenance tags items that came from TMDB.
const Provenance = "tmdb"

// DateLayout is the TMDB date format.
const DateLayout = "2006-01-02"

// Item is the unified media entity.
type Item struct {
	// ID is "tmdb:<kind>:<source id>", unique and stable for the session.
	ID       string `json:"id"`
	SourceID int    `json:"source_id"`
	Kind     Kind   `json:"kind"`
	Title    string `json:"title"`

	// Image references are relative TMDB paths; empty means absent.
	PosterPath   string `json:"poster_path,omitempty"`
	BackdropPath string `json:"backdrop_path,omitempty"`

	Overview string    `json:"overview,omitempty"`
	Date     time.Time `json:"date"`

	// Rating is within [0,10] when present.
	Rating *float64 `json:"rating,omitempty"`

	// GenreIDs is never nil. Genres holds resolved labels.
	GenreIDs []int    `json:"genre_ids"`
	Genres   []string `json:"genres"`

	Status     Status  `json:"status"`
	Provenance string  `json:"provenance"`
	Adult      bool    `json:"adult,omitempty"`
	Popularity float64 `json:"popularity,omitempty"`

	// Department is only set for people.
	Department string `json:"department,omitempty"`

	// Source is the original record, untouched.
	Source json.RawMessage `json:"-"`
}

// FormatID builds the composite identifier for a kind and TMDB id.
func FormatID(kind Kind, sourceID int) string {
	return fmt.Sprintf("%s:%s:%d", Provenance, kind, sourceID)
}

// HasImage reports whether the item has a poster or backdrop.
func (i *Item) HasImage() bool {
	return i.PosterPath != "" || i.BackdropPath != ""
}

// Year returns the year of the primary date, or 0 when absent.
func (i *Item) Year() int {
	if i.Date.IsZero() {
		return 0
	}
	return i.Date.Year()
}

// FilterAdult drops adult items unless allowAdult is set. The input slice is
// not modified.
func FilterAdult(items []Item, allowAdult bool) []Item {
	if allowAdult {
		return items
	}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if !it.Adult {
			out = append(out, it)
		}
	}
	return out
}

// LabelFunc resolves a genre id for a kind to its display label.
type LabelFunc func(kind Kind, id int) (string, bool)

// ApplyGenreLabels fills Genres from GenreIDs for items whose labels are not
// already known. Unknown ids are skipped.
func ApplyGenreLabels(items []Item, lookup LabelFunc) {
	if lookup == nil {
		return
	}
	for i := range items {
		if len(items[i].Genres) > 0 {
			continue
		}
		labels := make([]string, 0, len(items[i].GenreIDs))
		for _, id := range items[i].GenreIDs {
			if name, ok := lookup(items[i].Kind, id); ok {
				labels = append(labels, name)
			}
		}
		items[i].Genres = labels
	}
}
