// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/tomtom215/marquee/internal/api"
	"github.com/tomtom215/marquee/internal/catalog"
	"github.com/tomtom215/marquee/internal/config"
	"github.com/tomtom215/marquee/internal/hero"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/media"
	"github.com/tomtom215/marquee/internal/search"
	"github.com/tomtom215/marquee/internal/supervisor"
	"github.com/tomtom215/marquee/internal/supervisor/services"
	"github.com/tomtom215/marquee/internal/tmdb"
)

var (
	// ErrClosed is returned by the controller factories after Close.
	ErrClosed = errors.New("session: closed")

	ErrDiagnosticsDisabled = errors.New("session: diagnostics listener disabled")
)

// Options carries what the configuration file cannot.
type Options struct {
	// Preferences gates adult content for every controller. Nil excludes it.
	Preferences media.Preferences

	// HTTPClient overrides the access layer's transport.
	HTTPClient *http.Client

	// SkipLoggingInit leaves the global logger untouched.
	SkipLoggingInit bool
}

type closer interface {
	Close()
}

// Session owns the access layer, its supervisor tree and the controllers
// built on top of them.
type Session struct {
	cfg    *config.Config
	opts   Options
	client *tmdb.Client
	tree   *supervisor.SupervisorTree
	diag   *services.HTTPServerService

	cancel context.CancelFunc
	done   <-chan error

	mu          sync.Mutex
	controllers []closer
	closed      bool
}

// Open starts a session. ctx bounds the initial genre load only; the
// session runs until Close.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("session: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if !opts.SkipLoggingInit {
		logging.Init(logging.Config{
			Level:     cfg.Logging.Level,
			Format:    cfg.Logging.Format,
			Caller:    cfg.Logging.Caller,
			Timestamp: true,
			Output:    os.Stderr,
		})
	}

	clientOpts := tmdb.OptionsFromConfig(cfg)
	clientOpts.HTTPClient = opts.HTTPClient
	client := tmdb.New(clientOpts)

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Diagnostics.ShutdownTimeout,
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create supervisor tree: %w", err)
	}
	tree.AddAccessService(client)

	var diag *services.HTTPServerService
	if cfg.Diagnostics.Enabled {
		server := api.NewServer(client, cfg.Diagnostics)
		diag = services.NewHTTPServerService("diagnostics-http", cfg.Diagnostics.Addr, server, cfg.Diagnostics.ShutdownTimeout)
		tree.AddAPIService(diag)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:    cfg,
		opts:   opts,
		client: client,
		tree:   tree,
		diag:   diag,
		cancel: cancel,
		done:   tree.ServeBackground(runCtx),
	}

	// Controllers work without labels, so a failed load only costs genre names.
	if err := client.Genres().Load(ctx); err != nil {
		if tmdb.IsCanceled(err) {
			s.Close()
			return nil, err
		}
		logging.Warn().Err(err).Msg("Genre lists unavailable, continuing without labels")
	}

	logging.Info().
		Int("rate_budget", clientOpts.RateBudget).
		Dur("rate_window", clientOpts.RateWindow).
		Bool("breaker", clientOpts.Breaker.Enabled).
		Msg("Session started")
	return s, nil
}

// Client returns the shared access layer.
func (s *Session) Client() *tmdb.Client { return s.client }

// Config returns the configuration the session was opened with.
func (s *Session) Config() *config.Config { return s.cfg }

// Images returns the image URL resolver.
func (s *Session) Images() *tmdb.Images { return s.client.Images() }

// DiagnosticsAddr waits for the diagnostics listener to bind and returns
// its address. It fails immediately when diagnostics are disabled.
func (s *Session) DiagnosticsAddr(ctx context.Context) (net.Addr, error) {
	if s.diag == nil {
		return nil, ErrDiagnosticsDisabled
	}
	return s.diag.Addr(ctx)
}

// NewSearch creates a search controller. onChange may be nil.
func (s *Session) NewSearch(onChange func(search.State)) (*search.Controller, error) {
	opts := search.OptionsFromConfig(s.cfg.Search)
	opts.Preferences = s.opts.Preferences
	opts.Labels = s.client.Genres().Label
	opts.OnChange = onChange

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	c := search.New(s.client, opts)
	s.controllers = append(s.controllers, c)
	return c, nil
}

// NewCatalog creates a controller for catalog id. onChange may be nil.
func (s *Session) NewCatalog(id catalog.ID, onChange func(catalog.State)) (*catalog.Controller, error) {
	opts := catalog.OptionsFromConfig(s.cfg.Catalog)
	opts.Preferences = s.opts.Preferences
	opts.Labels = s.client.Genres().Label
	opts.OnChange = onChange

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	c, err := catalog.New(s.client, id, opts)
	if err != nil {
		return nil, err
	}
	s.controllers = append(s.controllers, c)
	return c, nil
}

// NewHero creates the hero rotation controller. onChange may be nil.
func (s *Session) NewHero(onChange func(hero.State)) (*hero.Controller, error) {
	opts := hero.OptionsFromConfig(s.cfg.Hero)
	opts.Preferences = s.opts.Preferences
	opts.Labels = s.client.Genres().Label
	opts.OnChange = onChange

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	c, err := hero.New(s.client, opts)
	if err != nil {
		return nil, err
	}
	s.controllers = append(s.controllers, c)
	return c, nil
}

// Close stops controllers, fails pending requests and stops the tree.
// It waits at most the configured shutdown timeout. Safe to call twice.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	controllers := s.controllers
	s.controllers = nil
	s.mu.Unlock()

	for _, c := range controllers {
		c.Close()
	}
	s.client.Close()
	s.cancel()

	select {
	case err := <-s.done:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Warn().Err(err).Msg("Supervisor tree stopped with error")
		}
	case <-time.After(s.cfg.Diagnostics.ShutdownTimeout):
		if report, err := s.tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
			logging.Warn().Int("unstopped", len(report)).Msg("Services did not stop in time")
		}
	}
	logging.Info().Msg("Session closed")
}
