// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/thejerf/suture/v4"
	"golang.org/x/time/rate"

	"github.com/tomtom215/marquee/internal/cache"
	"github.com/tomtom215/marquee/internal/config"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/metrics"
)

// Defaults for the public TMDB v3 API.
const (
	DefaultBaseURL        = "https://api.themoviedb.org/3"
	DefaultRateBudget     = 40
	DefaultRateWindow     = 10 * time.Second
	DefaultRequestSpacing = 250 * time.Millisecond
	DefaultTimeout        = 15 * time.Second

	maxResponseBytes = 8 << 20
)

// Options configures a Client.
type Options struct {
	BaseURL      string
	ImageBaseURL string
	APIKey       string
	ReadToken    string
	Language     string

	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client
	Timeout    time.Duration

	RateBudget int
	RateWindow time.Duration

	// RequestSpacing is the minimum gap between dispatches. Zero selects
	// DefaultRequestSpacing; a negative value disables spacing.
	RequestSpacing time.Duration

	// DetailCacheTTL bounds how long detail lookups are reused. Zero disables the cache.
	DetailCacheTTL time.Duration

	Breaker BreakerOptions
}

// OptionsFromConfig maps the loaded configuration onto client options.
func OptionsFromConfig(cfg *config.Config) Options {
	spacing := cfg.Access.RequestSpacing
	if spacing == 0 {
		spacing = -1
	}
	return Options{
		BaseURL:        cfg.TMDB.BaseURL,
		ImageBaseURL:   cfg.TMDB.ImageBaseURL,
		APIKey:         cfg.TMDB.APIKey,
		ReadToken:      cfg.TMDB.ReadToken,
		Language:       cfg.TMDB.Language,
		Timeout:        cfg.TMDB.Timeout,
		RateBudget:     cfg.Access.RateBudget,
		RateWindow:     cfg.Access.RateWindow,
		RequestSpacing: spacing,
		DetailCacheTTL: cfg.Access.DetailCacheTTL,
		Breaker: BreakerOptions{
			Enabled:      cfg.Access.BreakerEnabled,
			MinRequests:  cfg.Access.BreakerMinRequests,
			FailureRatio: cfg.Access.BreakerFailureRatio,
			Timeout:      cfg.Access.BreakerTimeout,
		},
	}
}

func (o *Options) applyDefaults() {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.ImageBaseURL == "" {
		o.ImageBaseURL = DefaultImageBaseURL
	}
	if o.RateBudget <= 0 {
		o.RateBudget = DefaultRateBudget
	}
	if o.RateWindow <= 0 {
		o.RateWindow = DefaultRateWindow
	}
	switch {
	case o.RequestSpacing == 0:
		o.RequestSpacing = DefaultRequestSpacing
	case o.RequestSpacing < 0:
		o.RequestSpacing = 0
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
}

// RawResponse is a successful upstream response.
type RawResponse struct {
	Path      string
	Status    int
	Body      json.RawMessage
	RequestID string
}

// Decode unmarshals the body into v.
func (r *RawResponse) Decode(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode %s: %w", r.Path, err)
	}
	return nil
}

type ticketState int

const (
	stateQueued ticketState = iota
	stateDispatched
	stateSettled
)

// sent reports whether the request reached the transport.
type result struct {
	resp *RawResponse
	err  error
	sent bool
}

// ticket is one queued submission. state is guarded by Client.mu; done
// receives exactly one result unless the ticket is withdrawn while queued.
type ticket struct {
	id       string
	path     string
	query    url.Values
	ctx      context.Context
	enqueued time.Time
	state    ticketState
	done     chan result
}

// Client is the rate-limited access layer. Every outbound TMDB call goes
// through Submit; a single dispatcher goroutine (Serve) drains the FIFO queue
// one request at a time within the rate budget and request spacing.
//
// Serve must be running for submissions to settle. It is a suture.Service and
// normally runs under the supervisor tree.
type Client struct {
	opts       Options
	httpClient *http.Client
	window     *RateWindow
	spacer     *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*RawResponse]

	mu      sync.Mutex
	queue   []*ticket
	closed  bool
	wake    chan struct{}
	closeCh chan struct{}

	stats statsRecorder

	images  *Images
	genres  *GenreBook
	details *cache.Cache[json.RawMessage]
	flight  flights
}

// New creates a client. Call Serve to start dispatching and Close to release it.
func New(opts Options) *Client {
	opts.applyDefaults()

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	c := &Client{
		opts:       opts,
		httpClient: httpClient,
		window:     NewRateWindow(opts.RateBudget, opts.RateWindow),
		wake:       make(chan struct{}, 1),
		closeCh:    make(chan struct{}),
	}
	if opts.RequestSpacing > 0 {
		c.spacer = rate.NewLimiter(rate.Every(opts.RequestSpacing), 1)
	}
	if opts.Breaker.Enabled {
		c.breaker = newBreaker("tmdb-api", opts.Breaker)
	}
	if opts.DetailCacheTTL > 0 {
		c.details = cache.New[json.RawMessage]("tmdb-details", opts.DetailCacheTTL)
	}
	c.images = newImages(c, opts.ImageBaseURL)
	c.genres = newGenreBook(c)
	return c
}

// Images returns the image URL resolver bound to this client.
func (c *Client) Images() *Images { return c.images }

// Genres returns the session genre book.
func (c *Client) Genres() *GenreBook { return c.genres }

// Options returns the effective options after defaults.
func (c *Client) Options() Options { return c.opts }

// Submit queues a GET for path and blocks until it settles or ctx ends.
//
// A submission canceled while still queued is withdrawn without consuming
// rate budget. One canceled after dispatch aborts the in-flight request; the
// budget is spent either way. Both return an error matching ErrCanceled.
func (c *Client) Submit(ctx context.Context, path string, query url.Values) (*RawResponse, error) {
	if err := ctx.Err(); err != nil {
		c.recordCancel(false)
		return nil, canceledError(path, err)
	}

	id := logging.GenerateRequestID()
	t := &ticket{
		id:       id,
		path:     path,
		query:    query,
		ctx:      logging.ContextWithRequestID(ctx, id),
		enqueued: time.Now(),
		state:    stateQueued,
		done:     make(chan result, 1),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.queue = append(c.queue, t)
	depth := len(c.queue)
	c.mu.Unlock()

	c.signal()
	c.publishGauges(depth)
	logging.Ctx(t.ctx).Debug().Str("path", path).Int("queue_depth", depth).Msg("Ticket enqueued")

	select {
	case r := <-t.done:
		return c.collect(r)
	case <-ctx.Done():
	}

	c.mu.Lock()
	if t.state == stateQueued {
		c.removeLocked(t)
		t.state = stateSettled
		depth = len(c.queue)
		c.mu.Unlock()

		c.signal()
		c.publishGauges(depth)
		c.recordCancel(false)
		logging.Ctx(t.ctx).Debug().Str("path", path).Msg("Ticket withdrawn before dispatch")
		return nil, canceledError(path, ctx.Err())
	}
	c.mu.Unlock()

	// The dispatcher owns the ticket now; the aborted request settles promptly.
	return c.collect(<-t.done)
}

// collect counts a canceled settlement as in-flight only when the request
// reached the transport.
func (c *Client) collect(r result) (*RawResponse, error) {
	if IsCanceled(r.err) {
		c.recordCancel(r.sent)
	}
	return r.resp, r.err
}

// Serve runs the dispatcher until ctx is canceled or the client is closed.
// It implements suture.Service.
func (c *Client) Serve(ctx context.Context) error {
	logging.Info().
		Int("budget", c.opts.RateBudget).
		Dur("window", c.opts.RateWindow).
		Dur("spacing", c.opts.RequestSpacing).
		Msg("TMDB dispatcher started")

	for {
		t, err := c.next(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return suture.ErrDoNotRestart
			}
			return err
		}
		c.dispatch(t)
	}
}

// String names the dispatcher in supervisor events.
func (c *Client) String() string { return "tmdb-dispatcher" }

// Close fails every queued submission with ErrClosed, stops the dispatcher
// and releases the detail cache. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := c.queue
	c.queue = nil
	for _, t := range pending {
		t.state = stateSettled
	}
	c.mu.Unlock()

	close(c.closeCh)
	for _, t := range pending {
		t.done <- result{err: ErrClosed}
	}
	c.publishGauges(0)
	if c.details != nil {
		c.details.Close()
	}
}

// Ping checks upstream reachability through the queue.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Submit(ctx, PathConfiguration, nil)
	return err
}

// QueueDepth is the number of submissions waiting for dispatch.
func (c *Client) QueueDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Window exposes the rate accounting, read-only by convention.
func (c *Client) Window() *RateWindow { return c.window }

func (c *Client) publishGauges(depth int) {
	metrics.UpdateAccessGauges(depth, c.window.Count(time.Now()))
}

func (c *Client) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// removeLocked drops t from the queue. Must be called with mu held.
func (c *Client) removeLocked(t *ticket) {
	for i, q := range c.queue {
		if q == t {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			return
		}
	}
}

// next blocks until the head of the queue may be dispatched, then pops it.
// The head is re-checked after every wait because it may have been withdrawn.
func (c *Client) next(ctx context.Context) (*ticket, error) {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, ErrClosed
		}
		var head *ticket
		if len(c.queue) > 0 {
			head = c.queue[0]
		}
		c.mu.Unlock()

		if head == nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-c.closeCh:
				return nil, ErrClosed
			case <-c.wake:
			}
			continue
		}

		now := time.Now()
		delay := c.window.Delay(now)
		var reservation *rate.Reservation
		if delay == 0 && c.spacer != nil {
			reservation = c.spacer.ReserveN(now, 1)
			if d := reservation.DelayFrom(now); d > 0 {
				reservation.CancelAt(now)
				reservation = nil
				delay = d
			}
		}

		if delay > 0 {
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		c.mu.Lock()
		if len(c.queue) == 0 || c.queue[0] != head {
			c.mu.Unlock()
			if reservation != nil {
				reservation.CancelAt(now)
			}
			continue
		}
		c.queue = c.queue[1:]
		head.state = stateDispatched
		depth := len(c.queue)
		c.mu.Unlock()

		c.publishGauges(depth)
		return head, nil
	}
}

// sleep waits for d, returning early (nil) when the queue changes.
func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closeCh:
		return ErrClosed
	case <-timer.C:
	case <-c.wake:
	}
	return nil
}

func (c *Client) dispatch(t *ticket) {
	endpoint := endpointLabel(t.path)
	wait := time.Since(t.enqueued)
	metrics.RecordQueueWait(wait)

	// Canceled between the last check and the pop: settle without spending budget.
	if err := t.ctx.Err(); err != nil {
		metrics.RecordTMDBRequest(endpoint, metrics.OutcomeCanceled, 0)
		c.settle(t, result{err: canceledError(t.path, err)})
		return
	}

	start := time.Now()
	resp, sent, err := c.execute(t, wait)
	elapsed := time.Since(start)

	outcome := outcomeOf(err)
	metrics.RecordTMDBRequest(endpoint, outcome, elapsed)
	c.stats.record(outcome, elapsed)

	var ue *UpstreamError
	if errors.As(err, &ue) {
		logging.Ctx(t.ctx).Warn().Str("path", t.path).Int("status", ue.Status).Str("message", ue.Message).Msg("Upstream error")
	} else if err != nil && outcome != metrics.OutcomeCanceled {
		logging.Ctx(t.ctx).Warn().Err(err).Str("path", t.path).Msg("TMDB request failed")
	}

	c.settle(t, result{resp: resp, err: err, sent: sent})
}

// execute runs the round trip under the circuit breaker. The rate window is
// charged inside the breaker so rejected calls spend no budget. sent is false
// when the breaker rejected the call.
func (c *Client) execute(t *ticket, wait time.Duration) (resp *RawResponse, sent bool, err error) {
	fn := func() (*RawResponse, error) {
		sent = true
		now := time.Now()
		c.window.Record(now)
		used := c.window.Count(now)
		c.mu.Lock()
		depth := len(c.queue)
		c.mu.Unlock()
		metrics.UpdateAccessGauges(depth, used)
		c.stats.dispatched(now)

		logging.Ctx(t.ctx).Debug().
			Str("path", t.path).
			Dur("wait", wait).
			Int("window_count", used).
			Msg("Dispatching request")

		return c.roundTrip(t)
	}

	if c.breaker == nil {
		resp, err = fn()
	} else {
		resp, err = executeWithBreaker(c.breaker, t.path, fn)
	}
	return resp, sent, err
}

func (c *Client) roundTrip(t *ticket) (*RawResponse, error) {
	reqURL, err := c.buildURL(t.path, t.query)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTransport, t.path, err)
	}

	req, err := http.NewRequestWithContext(t.ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.ReadToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.ReadToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := t.ctx.Err(); ctxErr != nil {
			return nil, canceledError(t.path, ctxErr)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrTransport, t.path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctxErr := t.ctx.Err(); ctxErr != nil {
			return nil, canceledError(t.path, ctxErr)
		}
		return nil, fmt.Errorf("%w: read %s: %w", ErrTransport, t.path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newUpstreamError(resp.StatusCode, body, t.path)
	}

	return &RawResponse{
		Path:      t.path,
		Status:    resp.StatusCode,
		Body:      body,
		RequestID: t.id,
	}, nil
}

func (c *Client) buildURL(path string, query url.Values) (string, error) {
	u, err := url.Parse(strings.TrimRight(c.opts.BaseURL, "/") + path)
	if err != nil {
		return "", err
	}

	q := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if c.opts.ReadToken == "" && c.opts.APIKey != "" {
		q.Set("api_key", c.opts.APIKey)
	}
	if c.opts.Language != "" && !q.Has("language") {
		q.Set("language", c.opts.Language)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) settle(t *ticket, r result) {
	c.mu.Lock()
	t.state = stateSettled
	c.mu.Unlock()
	t.done <- r
}

func (c *Client) recordCancel(inFlight bool) {
	metrics.RecordCancellation(inFlight)
	c.stats.canceled()
}

func canceledError(path string, cause error) error {
	if cause == nil {
		cause = context.Canceled
	}
	return fmt.Errorf("%w: %s: %w", ErrCanceled, path, cause)
}

func outcomeOf(err error) string {
	var ue *UpstreamError
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case IsCanceled(err):
		return metrics.OutcomeCanceled
	case errors.Is(err, ErrCircuitOpen):
		return metrics.OutcomeRejected
	case errors.As(err, &ue):
		return metrics.OutcomeUpstreamError
	default:
		return metrics.OutcomeTransportError
	}
}

// endpointLabel replaces numeric path segments so metric labels stay bounded.
func endpointLabel(path string) string {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		if s != "" && strings.Trim(s, "0123456789") == "" {
			segs[i] = "{id}"
		}
	}
	return strings.Join(segs, "/")
}
