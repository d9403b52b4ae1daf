// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package catalog

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/tomtom215/marquee/internal/config"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/media"
	"github.com/tomtom215/marquee/internal/metrics"
	"github.com/tomtom215/marquee/internal/tmdb"
)

// DefaultRefreshInterval is the auto-refresh period.
const DefaultRefreshInterval = 5 * time.Minute

const controllerName = "catalog"

// Backend is the slice of the access layer the controller needs.
// *tmdb.Client satisfies it.
type Backend interface {
	List(ctx context.Context, path string, page int, extra url.Values) (*tmdb.Page, error)
	Trending(ctx context.Context, m tmdb.TrendingMedia, w tmdb.TimeWindow, page int) (*tmdb.Page, error)
}

// Options configures a Controller.
type Options struct {
	AutoRefresh     bool
	RefreshInterval time.Duration

	// TrendingWindow applies to trending catalogs. Default week.
	TrendingWindow tmdb.TimeWindow

	// Preferences gates adult items. Nil excludes them.
	Preferences media.Preferences

	Labels   media.LabelFunc
	OnChange func(State)
}

// OptionsFromConfig maps the catalog section of the configuration.
func OptionsFromConfig(cfg config.CatalogConfig) Options {
	return Options{
		AutoRefresh:     cfg.AutoRefresh,
		RefreshInterval: cfg.RefreshInterval,
	}
}

// State is a snapshot of one catalog.
type State struct {
	Catalog ID
	Title   string

	// Items is append-only across pages until a refresh or catalog change.
	Items        []media.Item
	Page         int
	TotalPages   int
	TotalResults int
	HasMore      bool

	Loading     bool
	LoadingMore bool
	Error       string

	LastUpdated time.Time
	Skipped     int
}

// Controller holds the state of one named catalog.
type Controller struct {
	backend Backend
	opts    Options

	mu         sync.Mutex
	def        Definition
	state      State
	gen        uint64
	cancel     context.CancelFunc
	failedPage int
	closed     bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a controller for id and starts loading page 1.
func New(backend Backend, id ID, opts Options) (*Controller, error) {
	def, err := Lookup(id)
	if err != nil {
		return nil, err
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.TrendingWindow == "" {
		opts.TrendingWindow = tmdb.TimeWindowWeek
	}

	c := &Controller{
		backend: backend,
		opts:    opts,
		def:     def,
		state:   State{Catalog: def.ID, Title: def.Title},
		done:    make(chan struct{}),
	}

	if opts.AutoRefresh {
		c.wg.Add(1)
		go c.refreshLoop()
	}

	c.mu.Lock()
	c.fetchLocked(1, false)
	st := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(st)

	return c, nil
}

// State returns a snapshot of the catalog.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// SetCatalog switches to another catalog, discarding the current one.
func (c *Controller) SetCatalog(id ID) error {
	def, err := Lookup(id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed || c.def.ID == id {
		c.mu.Unlock()
		return nil
	}
	c.abortLocked()
	c.def = def
	c.state = State{Catalog: def.ID, Title: def.Title}
	c.failedPage = 0
	c.fetchLocked(1, false)
	st := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(st)
	return nil
}

// LoadMore appends the next page. It reports false, doing nothing, when
// there is no next page or a request is in flight.
func (c *Controller) LoadMore() bool {
	c.mu.Lock()
	if c.closed || c.state.Loading || c.state.Page == 0 || c.state.Page >= c.state.TotalPages {
		c.mu.Unlock()
		return false
	}
	c.fetchLocked(c.state.Page+1, true)
	st := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(st)
	return true
}

// Refresh replaces all accumulated pages with a fresh page 1. Current items
// stay visible until the new page arrives.
func (c *Controller) Refresh() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.abortLocked()
	c.fetchLocked(1, false)
	st := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(st)
}

// Retry re-attempts the failed page, appending when it was a LoadMore and
// restarting from page 1 otherwise. It reports false when there is nothing
// to retry.
func (c *Controller) Retry() bool {
	c.mu.Lock()
	if c.closed || c.state.Loading || c.state.Error == "" {
		c.mu.Unlock()
		return false
	}
	if c.failedPage > 1 {
		c.fetchLocked(c.failedPage, true)
	} else {
		c.abortLocked()
		c.state = State{Catalog: c.def.ID, Title: c.def.Title}
		c.fetchLocked(1, false)
	}
	st := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(st)
	return true
}

// Close stops auto-refresh, aborts in-flight work and waits for it.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.abortLocked()
	close(c.done)
	c.mu.Unlock()

	c.wg.Wait()
}

func (c *Controller) refreshLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.autoRefresh()
		}
	}
}

func (c *Controller) autoRefresh() {
	c.mu.Lock()
	if c.closed || c.state.Loading || c.state.Error != "" {
		id := c.def.ID
		c.mu.Unlock()
		logging.Debug().Str("catalog", string(id)).Msg("Auto-refresh skipped")
		return
	}
	c.abortLocked()
	c.fetchLocked(1, false)
	st := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(st)
}

func (c *Controller) abortLocked() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state.Loading = false
	c.state.LoadingMore = false
}

func (c *Controller) fetchLocked(page int, appendPage bool) {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.state.Loading = true
	c.state.LoadingMore = appendPage

	gen := c.gen
	def := c.def

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		c.run(ctx, gen, def, page, appendPage)
	}()
}

func (c *Controller) run(ctx context.Context, gen uint64, def Definition, pageNum int, appendPage bool) {
	page, err := def.fetch(ctx, c.backend, c.opts.TrendingWindow, pageNum)

	c.mu.Lock()
	if c.closed || gen != c.gen || ctx.Err() != nil {
		c.mu.Unlock()
		metrics.RecordControllerLoad(controllerName, metrics.OutcomeCanceled)
		return
	}
	c.cancel = nil
	c.state.Loading = false
	c.state.LoadingMore = false

	if err != nil {
		if tmdb.IsCanceled(err) {
			st := c.snapshotLocked()
			c.mu.Unlock()
			metrics.RecordControllerLoad(controllerName, metrics.OutcomeCanceled)
			c.notify(st)
			return
		}
		c.state.Error = tmdb.UserMessage(err)
		c.failedPage = pageNum
		st := c.snapshotLocked()
		c.mu.Unlock()

		metrics.RecordControllerLoad(controllerName, metrics.OutcomeError)
		logging.Warn().Err(err).Str("catalog", string(def.ID)).
			Str("path", def.Path(c.opts.TrendingWindow)).Int("page", pageNum).Msg("Catalog load failed")
		c.notify(st)
		return
	}

	items, skipped := media.NormalizeList(page.Results, def.Kind, time.Now())
	items = media.FilterAdult(items, media.AdultAllowed(c.opts.Preferences))
	media.ApplyGenreLabels(items, c.opts.Labels)

	if appendPage {
		c.state.Items = append(c.state.Items, items...)
		c.state.Skipped += skipped
	} else {
		c.state.Items = items
		c.state.Skipped = skipped
	}
	c.state.Page = page.Page
	c.state.TotalPages = page.TotalPages
	c.state.TotalResults = page.TotalResults
	c.state.HasMore = page.HasMore()
	c.state.Error = ""
	c.state.LastUpdated = time.Now()
	c.failedPage = 0
	st := c.snapshotLocked()
	c.mu.Unlock()

	metrics.RecordControllerLoad(controllerName, metrics.OutcomeSuccess)
	logging.Debug().Str("catalog", string(def.ID)).Int("page", st.Page).Int("items", len(st.Items)).Msg("Catalog page loaded")
	c.notify(st)
}

func (c *Controller) snapshotLocked() State {
	st := c.state
	st.Items = append([]media.Item(nil), c.state.Items...)
	return st
}

func (c *Controller) notify(st State) {
	if c.opts.OnChange != nil {
		c.opts.OnChange(st)
	}
}
