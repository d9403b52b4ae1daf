// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package hero

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/marquee/internal/config"
	"github.com/tomtom215/marquee/internal/tmdb"
)

type fakeBackend struct {
	mu    sync.Mutex
	pages map[string]*tmdb.Page
	errs  map[string]error
	calls []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{pages: map[string]*tmdb.Page{}, errs: map[string]error{}}
}

func (f *fakeBackend) List(_ context.Context, path string, _ int, _ url.Values) (*tmdb.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, path)
	if err := f.errs[path]; err != nil {
		return nil, err
	}
	if p := f.pages[path]; p != nil {
		return p, nil
	}
	return &tmdb.Page{Page: 1, TotalPages: 1, Results: []json.RawMessage{}}, nil
}

func (f *fakeBackend) set(path string, p *tmdb.Page, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[path] = p
	f.errs[path] = err
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.calls...)
	sort.Strings(out)
	return out
}

// films builds film records with ids from..to; ids in noImage lack artwork.
func films(from, to int, noImage ...int) *tmdb.Page {
	skip := map[int]bool{}
	for _, id := range noImage {
		skip[id] = true
	}
	p := &tmdb.Page{Page: 1, TotalPages: 1}
	for id := from; id <= to; id++ {
		backdrop := fmt.Sprintf(`"/b%d.jpg"`, id)
		if skip[id] {
			backdrop = "null"
		}
		p.Results = append(p.Results, json.RawMessage(fmt.Sprintf(
			`{"id":%d,"title":"Film %d","release_date":"2020-01-01","backdrop_path":%s}`, id, id, backdrop)))
	}
	return p
}

func series(from, to int) *tmdb.Page {
	p := &tmdb.Page{Page: 1, TotalPages: 1}
	for id := from; id <= to; id++ {
		p.Results = append(p.Results, json.RawMessage(fmt.Sprintf(
			`{"id":%d,"name":"Show %d","first_air_date":"2019-01-01","poster_path":"/s%d.jpg"}`, id, id, id)))
	}
	return p
}

func newFilmController(t *testing.T, backend *fakeBackend, opts Options) *Controller {
	t.Helper()
	if opts.Source == "" {
		opts.Source = SourcePopular
	}
	if opts.Kind == "" {
		opts.Kind = KindFilm
	}
	c, err := New(backend, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	synctest.Wait()
	return c
}

func TestNew_InvalidOptions(t *testing.T) {
	if _, err := New(newFakeBackend(), Options{Source: "random"}); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("New(bad source) error = %v", err)
	}
	if _, err := New(newFakeBackend(), Options{Kind: "anime"}); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("New(bad kind) error = %v", err)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.Default().Hero)
	if opts.Interval != DefaultInterval || opts.MaxItems != DefaultMaxItems {
		t.Errorf("OptionsFromConfig() = %+v", opts)
	}
	if opts.Source != SourceTrending || opts.Kind != KindMixed || !opts.AutoRotate {
		t.Errorf("OptionsFromConfig() = %+v", opts)
	}
}

func TestLoad_FiltersAndCaps(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		backend := newFakeBackend()
		backend.set(tmdb.PathPopularFilms, films(1, 15, 2, 4), nil)
		c := newFilmController(t, backend, Options{})
		defer c.Close()

		st := c.State()
		if len(st.Items) != DefaultMaxItems {
			t.Fatalf("items = %d, want %d", len(st.Items), DefaultMaxItems)
		}
		for _, it := range st.Items {
			if !it.HasImage() {
				t.Errorf("item %s has no image", it.ID)
			}
			if it.SourceID == 2 || it.SourceID == 4 {
				t.Errorf("item %d without artwork was kept", it.SourceID)
			}
		}
		if st.Current == nil || st.Current.SourceID != 1 || st.Index != 0 {
			t.Errorf("Current = %+v, Index = %d", st.Current, st.Index)
		}
	})
}

func TestLoad_MixedInterleaves(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		backend := newFakeBackend()
		backend.set(tmdb.PathUpcomingFilms, films(1, 2), nil)
		backend.set(tmdb.PathOnTheAirSeries, series(101, 103), nil)
		c := newFilmController(t, backend, Options{Source: SourceUpcoming, Kind: KindMixed})
		defer c.Close()

		want := []string{"tmdb:film:1", "tmdb:series:101", "tmdb:film:2", "tmdb:series:102", "tmdb:series:103"}
		st := c.State()
		if len(st.Items) != len(want) {
			t.Fatalf("items = %d, want %d", len(st.Items), len(want))
		}
		for i, it := range st.Items {
			if it.ID != want[i] {
				t.Errorf("item %d = %s, want %s", i, it.ID, want[i])
			}
		}

		calls := backend.Calls()
		if len(calls) != 2 || calls[0] != tmdb.PathUpcomingFilms || calls[1] != tmdb.PathOnTheAirSeries {
			t.Errorf("calls = %v", calls)
		}
	})
}

func TestLoad_TrendingSeriesPath(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		backend := newFakeBackend()
		backend.set("/trending/tv/week", series(1, 3), nil)
		c := newFilmController(t, backend, Options{Source: SourceTrending, Kind: KindSeries})
		defer c.Close()

		if got := len(c.State().Items); got != 3 {
			t.Errorf("items = %d, want 3", got)
		}
	})
}

func TestLoad_NoEligibleItems(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		backend := newFakeBackend()
		backend.set(tmdb.PathPopularFilms, films(1, 3, 1, 2, 3), nil)
		c := newFilmController(t, backend, Options{AutoRotate: true})
		defer c.Close()

		if !errors.Is(c.Err(), ErrNoEligibleItems) {
			t.Fatalf("Err() = %v, want ErrNoEligibleItems", c.Err())
		}
		st := c.State()
		if st.Error == "" || st.Current != nil || st.Rotating {
			t.Errorf("State() = %+v", st)
		}
		if err := c.NextContent(); !errors.Is(err, ErrNoEligibleItems) {
			t.Errorf("NextContent() error = %v", err)
		}
	})
}

func TestRotation_WrapsAround(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		backend := newFakeBackend()
		backend.set(tmdb.PathPopularFilms, films(1, 3), nil)
		c := newFilmController(t, backend, Options{AutoRotate: true})
		defer c.Close()

		if !c.State().Rotating {
			t.Fatal("rotation should be running")
		}
		for i, want := range []int{1, 2, 0, 1} {
			time.Sleep(DefaultInterval)
			synctest.Wait()
			if got := c.State().Index; got != want {
				t.Fatalf("after %d intervals index = %d, want %d", i+1, got, want)
			}
		}
	})
}

func TestRotation_PausedNeverChanges(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		backend := newFakeBackend()
		backend.set(tmdb.PathPopularFilms, films(1, 4), nil)
		c := newFilmController(t, backend, Options{AutoRotate: true})
		defer c.Close()

		time.Sleep(3 * time.Second)
		c.PauseRotation()
		if st := c.State(); !st.Paused || st.Rotating {
			t.Fatalf("State() after pause = %+v", st)
		}

		time.Sleep(10 * DefaultInterval)
		synctest.Wait()
		if got := c.State().Index; got != 0 {
			t.Fatalf("index changed while paused: %d", got)
		}

		c.ResumeRotation()
		time.Sleep(DefaultInterval - time.Millisecond)
		synctest.Wait()
		if got := c.State().Index; got != 0 {
			t.Errorf("resume should start a full interval, index = %d", got)
		}
		time.Sleep(time.Millisecond)
		synctest.Wait()
		if got := c.State().Index; got != 1 {
			t.Errorf("index after resumed interval = %d, want 1", got)
		}
	})
}

func TestRotation_ManualNavigationResetsPhase(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		backend := newFakeBackend()
		backend.set(tmdb.PathPopularFilms, films(1, 5), nil)
		c := newFilmController(t, backend, Options{AutoRotate: true})
		defer c.Close()

		time.Sleep(5 * time.Second)
		if err := c.NextContent(); err != nil {
			t.Fatal(err)
		}

		// The original tick at 8s must not fire.
		time.Sleep(3 * time.Second)
		synctest.Wait()
		if got := c.State().Index; got != 1 {
			t.Fatalf("index at 8s = %d, want 1", got)
		}

		time.Sleep(5 * time.Second)
		synctest.Wait()
		if got := c.State().Index; got != 2 {
			t.Fatalf("index at 13s = %d, want 2", got)
		}
	})
}

func TestNavigation(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		backend := newFakeBackend()
		backend.set(tmdb.PathPopularFilms, films(1, 3), nil)
		c := newFilmController(t, backend, Options{})
		defer c.Close()

		if err := c.PreviousContent(); err != nil {
			t.Fatal(err)
		}
		if got := c.State().Index; got != 2 {
			t.Errorf("PreviousContent() from 0 = %d, want 2", got)
		}
		if err := c.NextContent(); err != nil {
			t.Fatal(err)
		}
		if got := c.State().Index; got != 0 {
			t.Errorf("NextContent() from 2 = %d, want 0", got)
		}

		if err := c.SelectContent(3); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("SelectContent(3) error = %v", err)
		}
		if err := c.SelectContent(-1); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("SelectContent(-1) error = %v", err)
		}
		if err := c.SelectContent(1); err != nil {
			t.Fatal(err)
		}
		st := c.State()
		if st.Index != 1 || st.Current.SourceID != 2 {
			t.Errorf("after SelectContent(1): index=%d current=%d", st.Index, st.Current.SourceID)
		}
		if st.Rotating {
			t.Error("auto-rotation disabled, timer should not run")
		}
	})
}

func TestRotation_SingleItemDoesNotRotate(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		backend := newFakeBackend()
		backend.set(tmdb.PathPopularFilms, films(1, 1), nil)
		c := newFilmController(t, backend, Options{AutoRotate: true})
		defer c.Close()

		if c.State().Rotating {
			t.Error("a single item should not rotate")
		}
	})
}

func TestRefreshContent_ClampsIndex(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		backend := newFakeBackend()
		backend.set(tmdb.PathPopularFilms, films(1, 5), nil)
		c := newFilmController(t, backend, Options{})
		defer c.Close()

		if err := c.SelectContent(4); err != nil {
			t.Fatal(err)
		}

		backend.set(tmdb.PathPopularFilms, films(10, 11), nil)
		c.RefreshContent()
		synctest.Wait()

		st := c.State()
		if len(st.Items) != 2 || st.Index != 1 || st.Current.SourceID != 11 {
			t.Errorf("after refresh: items=%d index=%d", len(st.Items), st.Index)
		}
	})
}

func TestRefreshContent_FailureKeepsItems(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		backend := newFakeBackend()
		backend.set(tmdb.PathPopularFilms, films(1, 3), nil)
		c := newFilmController(t, backend, Options{})
		defer c.Close()

		backend.set(tmdb.PathPopularFilms, nil, &tmdb.UpstreamError{Status: http.StatusServiceUnavailable})
		c.RefreshContent()
		synctest.Wait()

		st := c.State()
		if len(st.Items) != 3 || st.Error == "" {
			t.Errorf("State() = items %d, error %q", len(st.Items), st.Error)
		}
		var ue *tmdb.UpstreamError
		if !errors.As(c.Err(), &ue) {
			t.Errorf("Err() = %v, want *tmdb.UpstreamError", c.Err())
		}
	})
}

func TestClose_StopsRotation(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		backend := newFakeBackend()
		backend.set(tmdb.PathPopularFilms, films(1, 3), nil)
		c := newFilmController(t, backend, Options{AutoRotate: true})

		c.Close()
		time.Sleep(5 * DefaultInterval)
		synctest.Wait()
		if got := c.State().Index; got != 0 {
			t.Errorf("index after Close = %d, want 0", got)
		}
		if err := c.NextContent(); err != nil {
			t.Errorf("NextContent() after Close = %v, want nil no-op", err)
		}
	})
}
