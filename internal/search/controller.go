// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package search

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/tomtom215/marquee/internal/config"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/media"
	"github.com/tomtom215/marquee/internal/metrics"
	"github.com/tomtom215/marquee/internal/tmdb"
)

// Defaults applied when Options leaves a field zero.
const (
	DefaultDebounce       = 300 * time.Millisecond
	DefaultMinQueryLength = 2
)

const controllerName = "search"

// Backend is the slice of the access layer the controller needs.
// *tmdb.Client satisfies it.
type Backend interface {
	Search(ctx context.Context, req tmdb.SearchRequest) (*tmdb.Page, error)
}

// Phase is the controller lifecycle state.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseDebouncing Phase = "debouncing"
	PhaseInFlight   Phase = "in_flight"
	PhaseSuccess    Phase = "success"
	PhaseError      Phase = "error"
)

// Options configures a Controller.
type Options struct {
	Debounce       time.Duration
	MinQueryLength int

	// Kind selects the search endpoint. Empty means multi search.
	Kind tmdb.SearchKind

	// Preferences gates include_adult and adult results. Nil means adult
	// content is excluded.
	Preferences media.Preferences

	// Labels resolves genre ids on results. Optional.
	Labels media.LabelFunc

	// OnChange is called with a snapshot after every state change, outside
	// the controller lock. Optional.
	OnChange func(State)
}

// OptionsFromConfig maps the search section of the configuration.
func OptionsFromConfig(cfg config.SearchConfig) Options {
	return Options{
		Debounce:       cfg.Debounce,
		MinQueryLength: cfg.MinQueryLength,
	}
}

// State is a snapshot of the search session.
type State struct {
	Query string
	Kind  tmdb.SearchKind
	Phase Phase

	Results      []media.Item
	Page         int
	TotalPages   int
	TotalResults int
	HasMore      bool

	// LoadingMore is set while a LoadMore request is in flight.
	LoadingMore bool

	// Latency is the round trip of the last settled request.
	Latency time.Duration

	// Error is the human-readable failure of the last request, "" otherwise.
	Error string

	// Skipped counts records the normalizer could not map.
	Skipped int
}

// Controller runs one search session at a time against a Backend.
type Controller struct {
	backend Backend
	opts    Options

	mu       sync.Mutex
	state    State
	gen      uint64
	timer    *time.Timer
	cancel   context.CancelFunc
	closed   bool
	inflight sync.WaitGroup
}

// New creates an idle controller.
func New(backend Backend, opts Options) *Controller {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.MinQueryLength <= 0 {
		opts.MinQueryLength = DefaultMinQueryLength
	}
	if opts.Kind == "" {
		opts.Kind = tmdb.SearchMulti
	}
	return &Controller{
		backend: backend,
		opts:    opts,
		state:   State{Kind: opts.Kind, Phase: PhaseIdle},
	}
}

// State returns a snapshot of the session.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// SetQuery updates the query. A valid query is sent after the debounce
// delay unless it changes again first; a short one clears results now.
func (c *Controller) SetQuery(query string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state.Query = query
	c.scheduleLocked()
	st := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(st)
}

// SetKind switches the search endpoint and reissues the current query
// through the debounce.
func (c *Controller) SetKind(kind tmdb.SearchKind) {
	if kind == "" {
		kind = tmdb.SearchMulti
	}
	c.mu.Lock()
	if c.closed || c.state.Kind == kind {
		c.mu.Unlock()
		return
	}
	c.state.Kind = kind
	c.scheduleLocked()
	st := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(st)
}

// LoadMore requests the next page. It reports false, doing nothing, when
// there is no next page or a request is already in flight.
func (c *Controller) LoadMore() bool {
	c.mu.Lock()
	if c.closed || c.state.Phase == PhaseInFlight || c.state.Phase == PhaseDebouncing ||
		c.state.Page == 0 || c.state.Page >= c.state.TotalPages {
		c.mu.Unlock()
		return false
	}
	c.startLocked(c.state.Page+1, true)
	st := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(st)
	return true
}

// Retry reissues the current query from page 1 without waiting for the
// debounce. It reports false when the query is too short to send.
func (c *Controller) Retry() bool {
	c.mu.Lock()
	if c.closed || !c.validLocked() {
		c.mu.Unlock()
		return false
	}
	c.abortLocked()
	c.startLocked(1, false)
	st := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(st)
	return true
}

// Clear resets the session synchronously and cancels pending work.
func (c *Controller) Clear() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.abortLocked()
	c.state = State{Kind: c.state.Kind, Phase: PhaseIdle}
	st := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(st)
}

// Close cancels pending work and waits for in-flight requests to return.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.abortLocked()
	c.mu.Unlock()

	c.inflight.Wait()
}

func (c *Controller) validLocked() bool {
	return utf8.RuneCountInString(strings.TrimSpace(c.state.Query)) >= c.opts.MinQueryLength
}

// abortLocked invalidates every pending response and cancels timers and
// in-flight requests.
func (c *Controller) abortLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) scheduleLocked() {
	c.abortLocked()

	if !c.validLocked() {
		c.state = State{Query: c.state.Query, Kind: c.state.Kind, Phase: PhaseIdle}
		return
	}

	c.state.Phase = PhaseDebouncing
	c.state.LoadingMore = false
	gen := c.gen
	c.timer = time.AfterFunc(c.opts.Debounce, func() { c.fire(gen) })
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.startLocked(1, false)
	st := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(st)
}

// startLocked launches the request for page. The response is applied only
// while the generation is unchanged.
func (c *Controller) startLocked(page int, appendPage bool) {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.state.Phase = PhaseInFlight
	c.state.LoadingMore = appendPage

	req := tmdb.SearchRequest{
		Kind:         c.state.Kind,
		Query:        strings.TrimSpace(c.state.Query),
		Page:         page,
		IncludeAdult: media.AdultAllowed(c.opts.Preferences),
	}
	gen := c.gen

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		defer cancel()
		c.run(ctx, gen, req, appendPage)
	}()
}

func (c *Controller) run(ctx context.Context, gen uint64, req tmdb.SearchRequest, appendPage bool) {
	start := time.Now()
	page, err := c.backend.Search(ctx, req)
	latency := time.Since(start)

	c.mu.Lock()
	if c.closed || gen != c.gen || ctx.Err() != nil {
		c.mu.Unlock()
		metrics.RecordControllerLoad(controllerName, metrics.OutcomeCanceled)
		return
	}
	c.cancel = nil
	c.state.LoadingMore = false

	if err != nil {
		if tmdb.IsCanceled(err) {
			c.state.Phase = c.settledPhaseLocked()
			st := c.snapshotLocked()
			c.mu.Unlock()
			metrics.RecordControllerLoad(controllerName, metrics.OutcomeCanceled)
			c.notify(st)
			return
		}
		c.state.Phase = PhaseError
		c.state.Error = tmdb.UserMessage(err)
		st := c.snapshotLocked()
		c.mu.Unlock()

		metrics.RecordControllerLoad(controllerName, metrics.OutcomeError)
		logging.Warn().Err(err).Str("query", req.Query).Int("page", req.Page).
			Str("user", identity(c.opts.Preferences)).Msg("Search failed")
		c.notify(st)
		return
	}

	items, skipped := media.NormalizeList(page.Results, kindHint(req.Kind), time.Now())
	items = media.FilterAdult(items, req.IncludeAdult)
	media.ApplyGenreLabels(items, c.opts.Labels)

	if appendPage {
		c.state.Results = append(c.state.Results, items...)
		c.state.Skipped += skipped
	} else {
		c.state.Results = items
		c.state.Skipped = skipped
	}
	c.state.Page = page.Page
	c.state.TotalPages = page.TotalPages
	c.state.TotalResults = page.TotalResults
	c.state.HasMore = page.HasMore()
	c.state.Latency = latency
	c.state.Error = ""
	c.state.Phase = PhaseSuccess
	st := c.snapshotLocked()
	c.mu.Unlock()

	metrics.RecordControllerLoad(controllerName, metrics.OutcomeSuccess)
	metrics.RecordSearchLatency(latency)
	logging.Debug().Str("query", req.Query).Int("page", st.Page).Int("results", len(st.Results)).
		Dur("latency", latency).Msg("Search settled")
	c.notify(st)
}

// settledPhaseLocked is the phase to fall back to after a cancellation
// that did not come from a newer query.
func (c *Controller) settledPhaseLocked() Phase {
	switch {
	case c.state.Error != "":
		return PhaseError
	case c.state.Page > 0:
		return PhaseSuccess
	default:
		return PhaseIdle
	}
}

func (c *Controller) snapshotLocked() State {
	st := c.state
	st.Results = append([]media.Item(nil), c.state.Results...)
	return st
}

func (c *Controller) notify(st State) {
	if c.opts.OnChange != nil {
		c.opts.OnChange(st)
	}
}

func kindHint(k tmdb.SearchKind) media.Kind {
	switch k {
	case tmdb.SearchFilms:
		return media.KindFilm
	case tmdb.SearchSeries:
		return media.KindSeries
	case tmdb.SearchPeople:
		return media.KindPerson
	default:
		return ""
	}
}

func identity(p media.Preferences) string {
	if p == nil {
		return ""
	}
	return p.Identity()
}
