// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package hero

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/marquee/internal/config"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/media"
	"github.com/tomtom215/marquee/internal/metrics"
	"github.com/tomtom215/marquee/internal/tmdb"
)

// Defaults applied when Options leaves a field zero.
const (
	DefaultInterval = 8 * time.Second
	DefaultMaxItems = 10
)

const controllerName = "hero"

var (
	// ErrNoEligibleItems means the source returned nothing with an image.
	ErrNoEligibleItems = errors.New("hero: no eligible items")

	// ErrIndexOutOfRange is returned by Select for an index outside the working set.
	ErrIndexOutOfRange = errors.New("hero: index out of range")

	// ErrInvalidOptions is returned by New for an unknown source or kind.
	ErrInvalidOptions = errors.New("hero: invalid options")
)

// Source is the list the working set is drawn from.
type Source string

const (
	SourceTrending Source = "trending"
	SourcePopular  Source = "popular"
	SourceUpcoming Source = "upcoming"
)

// Kind selects films, series, or both interleaved.
type Kind string

const (
	KindFilm   Kind = "film"
	KindSeries Kind = "series"
	KindMixed  Kind = "mixed"
)

// Backend is the slice of the access layer the controller needs.
// *tmdb.Client satisfies it.
type Backend interface {
	List(ctx context.Context, path string, page int, extra url.Values) (*tmdb.Page, error)
}

// Options configures a Controller.
type Options struct {
	AutoRotate bool
	Interval   time.Duration
	MaxItems   int
	Source     Source
	Kind       Kind

	// Preferences gates adult items. Nil excludes them.
	Preferences media.Preferences

	Labels   media.LabelFunc
	OnChange func(State)
}

// OptionsFromConfig maps the hero section of the configuration.
func OptionsFromConfig(cfg config.HeroConfig) Options {
	return Options{
		AutoRotate: cfg.AutoRotate,
		Interval:   cfg.RotationInterval,
		MaxItems:   cfg.MaxItems,
		Source:     Source(cfg.Source),
		Kind:       Kind(cfg.Kind),
	}
}

// State is a snapshot of the rotation.
type State struct {
	Items []media.Item
	Index int

	// Current is the featured item, nil when the working set is empty.
	Current *media.Item

	Paused   bool
	Rotating bool
	Loading  bool
	Error    string
}

// Controller owns the hero working set and its rotation timer.
type Controller struct {
	backend Backend
	opts    Options

	mu      sync.Mutex
	items   []media.Item
	index   int
	paused  bool
	loading bool
	err     error
	closed  bool

	gen    uint64
	cancel context.CancelFunc

	// epoch invalidates timer callbacks armed before the last reset.
	epoch uint64
	timer *time.Timer

	wg sync.WaitGroup
}

// New creates a controller and starts loading the working set.
func New(backend Backend, opts Options) (*Controller, error) {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = DefaultMaxItems
	}
	if opts.Source == "" {
		opts.Source = SourceTrending
	}
	if opts.Kind == "" {
		opts.Kind = KindMixed
	}
	if _, err := paths(opts.Source, opts.Kind); err != nil {
		return nil, err
	}

	c := &Controller{backend: backend, opts: opts}

	c.mu.Lock()
	c.loadLocked()
	st := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(st)

	return c, nil
}

// State returns a snapshot of the rotation.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Err returns the last load failure, nil after a successful load.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// RefreshContent refetches the working set. The current index is kept,
// clamped to the new size.
func (c *Controller) RefreshContent() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.loadLocked()
	st := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(st)
}

// PauseRotation stops automatic advancement.
func (c *Controller) PauseRotation() {
	c.mu.Lock()
	if c.closed || c.paused {
		c.mu.Unlock()
		return
	}
	c.paused = true
	c.armLocked()
	st := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(st)
}

// ResumeRotation restarts automatic advancement with a full interval.
func (c *Controller) ResumeRotation() {
	c.mu.Lock()
	if c.closed || !c.paused {
		c.mu.Unlock()
		return
	}
	c.paused = false
	c.armLocked()
	st := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(st)
}

// NextContent moves to the next item, wrapping at the end.
func (c *Controller) NextContent() error {
	return c.navigate(func(n int) (int, error) { return (c.index + 1) % n, nil })
}

// PreviousContent moves to the previous item, wrapping at the start.
func (c *Controller) PreviousContent() error {
	return c.navigate(func(n int) (int, error) { return (c.index - 1 + n) % n, nil })
}

// SelectContent jumps to index i.
func (c *Controller) SelectContent(i int) error {
	return c.navigate(func(n int) (int, error) {
		if i < 0 || i >= n {
			return 0, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, i, n)
		}
		return i, nil
	})
}

// navigate applies a manual index change and restarts the interval.
// pick runs with mu held.
func (c *Controller) navigate(pick func(n int) (int, error)) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if len(c.items) == 0 {
		c.mu.Unlock()
		return ErrNoEligibleItems
	}
	idx, err := pick(len(c.items))
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.index = idx
	c.armLocked()
	st := c.snapshotLocked()
	c.mu.Unlock()

	metrics.RecordHeroRotation(true)
	c.notify(st)
	return nil
}

// Close stops the timer, aborts loading and waits for it.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.armLocked()
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()

	c.wg.Wait()
}

// armLocked cancels any pending tick and, when rotation applies, schedules
// the next one a full interval from now.
func (c *Controller) armLocked() {
	c.epoch++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if !c.rotatingLocked() {
		return
	}
	epoch := c.epoch
	c.timer = time.AfterFunc(c.opts.Interval, func() { c.tick(epoch) })
}

func (c *Controller) rotatingLocked() bool {
	return c.opts.AutoRotate && !c.paused && !c.closed && len(c.items) > 1
}

func (c *Controller) tick(epoch uint64) {
	c.mu.Lock()
	if c.closed || epoch != c.epoch || len(c.items) == 0 {
		c.mu.Unlock()
		return
	}
	c.index = (c.index + 1) % len(c.items)
	c.armLocked()
	st := c.snapshotLocked()
	c.mu.Unlock()

	metrics.RecordHeroRotation(false)
	c.notify(st)
}

func (c *Controller) loadLocked() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.loading = true
	gen := c.gen

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		items, err := c.fetch(ctx)
		c.apply(ctx, gen, items, err)
	}()
}

func (c *Controller) apply(ctx context.Context, gen uint64, items []media.Item, err error) {
	c.mu.Lock()
	if c.closed || gen != c.gen || ctx.Err() != nil {
		c.mu.Unlock()
		metrics.RecordControllerLoad(controllerName, metrics.OutcomeCanceled)
		return
	}
	c.cancel = nil
	c.loading = false

	if err == nil && len(items) == 0 {
		err = ErrNoEligibleItems
	}

	switch {
	case err != nil && tmdb.IsCanceled(err):
		st := c.snapshotLocked()
		c.mu.Unlock()
		metrics.RecordControllerLoad(controllerName, metrics.OutcomeCanceled)
		c.notify(st)
		return
	case errors.Is(err, ErrNoEligibleItems):
		c.err = err
		c.items = nil
		c.index = 0
	case err != nil:
		// Keep showing the previous working set.
		c.err = err
	default:
		c.err = nil
		c.items = items
		if c.index >= len(items) {
			c.index = len(items) - 1
		}
	}
	c.armLocked()
	st := c.snapshotLocked()
	c.mu.Unlock()

	if err != nil {
		metrics.RecordControllerLoad(controllerName, metrics.OutcomeError)
		logging.Warn().Err(err).Str("source", string(c.opts.Source)).Str("kind", string(c.opts.Kind)).Msg("Hero load failed")
	} else {
		metrics.RecordControllerLoad(controllerName, metrics.OutcomeSuccess)
		logging.Debug().Int("items", len(st.Items)).Msg("Hero working set loaded")
	}
	c.notify(st)
}

// fetch loads the eligible working set for the configured source and kind.
func (c *Controller) fetch(ctx context.Context) ([]media.Item, error) {
	p, err := paths(c.opts.Source, c.opts.Kind)
	if err != nil {
		return nil, err
	}

	var films, series []media.Item
	g, gctx := errgroup.WithContext(ctx)
	if p.film != "" {
		g.Go(func() error {
			items, err := c.fetchList(gctx, p.film, media.KindFilm)
			films = items
			return err
		})
	}
	if p.series != "" {
		g.Go(func() error {
			items, err := c.fetchList(gctx, p.series, media.KindSeries)
			series = items
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := interleave(films, series)
	if len(out) > c.opts.MaxItems {
		out = out[:c.opts.MaxItems]
	}
	return out, nil
}

func (c *Controller) fetchList(ctx context.Context, path string, hint media.Kind) ([]media.Item, error) {
	page, err := c.backend.List(ctx, path, 1, nil)
	if err != nil {
		return nil, err
	}
	items, _ := media.NormalizeList(page.Results, hint, time.Now())
	items = media.FilterAdult(items, media.AdultAllowed(c.opts.Preferences))

	eligible := items[:0]
	for _, it := range items {
		if it.HasImage() {
			eligible = append(eligible, it)
		}
	}
	media.ApplyGenreLabels(eligible, c.opts.Labels)
	return eligible, nil
}

type sourcePaths struct {
	film   string
	series string
}

func paths(src Source, kind Kind) (sourcePaths, error) {
	var all sourcePaths
	switch src {
	case SourceTrending:
		all = sourcePaths{
			film:   tmdb.TrendingPath(tmdb.TrendingFilms, tmdb.TimeWindowWeek),
			series: tmdb.TrendingPath(tmdb.TrendingSeries, tmdb.TimeWindowWeek),
		}
	case SourcePopular:
		all = sourcePaths{film: tmdb.PathPopularFilms, series: tmdb.PathPopularSeries}
	case SourceUpcoming:
		all = sourcePaths{film: tmdb.PathUpcomingFilms, series: tmdb.PathOnTheAirSeries}
	default:
		return sourcePaths{}, fmt.Errorf("%w: source %q", ErrInvalidOptions, src)
	}

	switch kind {
	case KindFilm:
		return sourcePaths{film: all.film}, nil
	case KindSeries:
		return sourcePaths{series: all.series}, nil
	case KindMixed:
		return all, nil
	default:
		return sourcePaths{}, fmt.Errorf("%w: kind %q", ErrInvalidOptions, kind)
	}
}

// interleave alternates a and b starting with a, then appends the rest.
func interleave(a, b []media.Item) []media.Item {
	out := make([]media.Item, 0, len(a)+len(b))
	for i := 0; i < len(a) || i < len(b); i++ {
		if i < len(a) {
			out = append(out, a[i])
		}
		if i < len(b) {
			out = append(out, b[i])
		}
	}
	return out
}

func (c *Controller) snapshotLocked() State {
	st := State{
		Items:    append([]media.Item(nil), c.items...),
		Index:    c.index,
		Paused:   c.paused,
		Rotating: c.timer != nil,
		Loading:  c.loading,
	}
	if len(st.Items) > 0 {
		cur := st.Items[c.index]
		st.Current = &cur
	}
	if c.err != nil {
		st.Error = userMessage(c.err)
	}
	return st
}

func userMessage(err error) string {
	if errors.Is(err, ErrNoEligibleItems) {
		return "No featured content is available right now."
	}
	return tmdb.UserMessage(err)
}

func (c *Controller) notify(st State) {
	if c.opts.OnChange != nil {
		c.opts.OnChange(st)
	}
}
