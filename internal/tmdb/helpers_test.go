// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package tmdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

// upstreamCall is one request seen by fakeUpstream.
type upstreamCall struct {
	Path   string
	Query  string
	Header http.Header
	At     time.Time
}

// fakeUpstream is an in-memory TMDB. Handlers are matched by exact path,
// falling back to the default handler.
type fakeUpstream struct {
	mu       sync.Mutex
	calls    []upstreamCall
	routes   map[string]func(*http.Request) (int, string)
	fallback func(*http.Request) (int, string)
	latency  time.Duration
	failWith error
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		routes: make(map[string]func(*http.Request) (int, string)),
		fallback: func(*http.Request) (int, string) {
			return http.StatusOK, `{"ok":true}`
		},
	}
}

func (f *fakeUpstream) handle(path string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[path] = func(*http.Request) (int, string) { return status, body }
}

func (f *fakeUpstream) RoundTrip(req *http.Request) (*http.Response, error) {
	path := strings.TrimPrefix(req.URL.Path, "/3")

	f.mu.Lock()
	f.calls = append(f.calls, upstreamCall{Path: path, Query: req.URL.RawQuery, Header: req.Header.Clone(), At: time.Now()})
	handler, ok := f.routes[path]
	if !ok {
		handler = f.fallback
	}
	latency, failWith := f.latency, f.failWith
	f.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		select {
		case <-timer.C:
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		}
	}
	if failWith != nil {
		return nil, failWith
	}

	status, body := handler(req)
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}, nil
}

func (f *fakeUpstream) Calls() []upstreamCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]upstreamCall(nil), f.calls...)
}

func (f *fakeUpstream) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// startClient builds a client over up and runs its dispatcher. The returned
// stop function cancels the dispatcher, closes the client and waits for Serve
// to return; call it before a synctest bubble ends.
func startClient(t *testing.T, up *fakeUpstream, mutate func(*Options)) (*Client, func()) {
	t.Helper()
	opts := Options{
		BaseURL:    "https://api.test/3",
		APIKey:     "test-key",
		HTTPClient: &http.Client{Transport: up},
	}
	if mutate != nil {
		mutate(&opts)
	}
	c := New(opts)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- c.Serve(ctx) }()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			err := <-served
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("Serve() returned %v", err)
			}
			c.Close()
		})
	}
	return c, stop
}
