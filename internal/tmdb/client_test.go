// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package tmdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/marquee/internal/metrics"
)

// cancellationCounts reads the queued and in-flight cancellation counters.
func cancellationCounts() (queued, inFlight float64) {
	return testutil.ToFloat64(metrics.TMDBCancellations.WithLabelValues("queued")),
		testutil.ToFloat64(metrics.TMDBCancellations.WithLabelValues("in_flight"))
}

// maxInAnyWindow returns the largest number of calls falling in a half-open
// interval [t, t+window) that starts at one of the calls.
func maxInAnyWindow(calls []upstreamCall, window time.Duration) int {
	most := 0
	for i := range calls {
		n := 0
		for j := range calls {
			d := calls[j].At.Sub(calls[i].At)
			if d >= 0 && d < window {
				n++
			}
		}
		if n > most {
			most = n
		}
	}
	return most
}

func TestSubmit_Success(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		up := newFakeUpstream()
		up.handle("/movie/550", http.StatusOK, `{"id":550,"title":"Fight Club"}`)
		c, stop := startClient(t, up, func(o *Options) { o.Language = "en-US" })
		defer stop()

		resp, err := c.Submit(context.Background(), "/movie/550", url.Values{"append_to_response": {"credits"}})
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		if resp.Status != http.StatusOK {
			t.Errorf("Status = %d, want 200", resp.Status)
		}
		if resp.RequestID == "" {
			t.Error("RequestID should be set")
		}

		var body struct {
			Title string `json:"title"`
		}
		if err := resp.Decode(&body); err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if body.Title != "Fight Club" {
			t.Errorf("Title = %q", body.Title)
		}

		calls := up.Calls()
		if len(calls) != 1 {
			t.Fatalf("upstream calls = %d, want 1", len(calls))
		}
		q, _ := url.ParseQuery(calls[0].Query)
		if q.Get("api_key") != "test-key" {
			t.Errorf("api_key = %q, want test-key", q.Get("api_key"))
		}
		if q.Get("language") != "en-US" {
			t.Errorf("language = %q, want en-US", q.Get("language"))
		}
		if q.Get("append_to_response") != "credits" {
			t.Errorf("append_to_response = %q", q.Get("append_to_response"))
		}

		if got := testutil.ToFloat64(metrics.TMDBRateWindowUsed); got != 1 {
			t.Errorf("window gauge = %v, want 1", got)
		}
		if got := testutil.ToFloat64(metrics.TMDBQueueDepth); got != 0 {
			t.Errorf("queue depth gauge = %v, want 0", got)
		}
	})
}

func TestSubmit_BearerToken(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		up := newFakeUpstream()
		c, stop := startClient(t, up, func(o *Options) { o.ReadToken = "v4-token" })
		defer stop()

		if _, err := c.Submit(context.Background(), PathConfiguration, nil); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}

		call := up.Calls()[0]
		if got := call.Header.Get("Authorization"); got != "Bearer v4-token" {
			t.Errorf("Authorization = %q", got)
		}
		if strings.Contains(call.Query, "api_key") {
			t.Errorf("api_key should not be sent with a read token: %q", call.Query)
		}
	})
}

func TestRateWindow_NeverExceedsBudget(t *testing.T) {
	tests := []struct {
		name    string
		spacing time.Duration
		lastMin time.Duration
	}{
		{name: "no spacing", spacing: 0, lastMin: 40 * time.Second},
		{name: "default spacing", spacing: DefaultRequestSpacing, lastMin: 40 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			synctest.Test(t, func(t *testing.T) {
				up := newFakeUpstream()
				c, stop := startClient(t, up, func(o *Options) {
					o.RequestSpacing = tt.spacing
					if tt.spacing == 0 {
						o.RequestSpacing = -1
					}
				})
				defer stop()

				const total = 200
				var wg sync.WaitGroup
				errs := make(chan error, total)
				for i := 0; i < total; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						if _, err := c.Submit(context.Background(), fmt.Sprintf("/movie/%d", i), nil); err != nil {
							errs <- err
						}
					}(i)
				}
				wg.Wait()
				close(errs)
				for err := range errs {
					t.Errorf("Submit() error = %v", err)
				}

				calls := up.Calls()
				if len(calls) != total {
					t.Fatalf("upstream calls = %d, want %d", len(calls), total)
				}
				if most := maxInAnyWindow(calls, DefaultRateWindow); most > DefaultRateBudget {
					t.Errorf("max dispatches in a rolling window = %d, budget %d", most, DefaultRateBudget)
				}
				if span := calls[total-1].At.Sub(calls[0].At); span < tt.lastMin-time.Second {
					t.Errorf("200 dispatches spanned %v, want at least %v", span, tt.lastMin-time.Second)
				}
				if got := c.Stats().Dispatched; got != total {
					t.Errorf("Stats().Dispatched = %d, want %d", got, total)
				}
			})
		})
	}
}

func TestSpacing_MinimumGapBetweenDispatches(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		up := newFakeUpstream()
		c, stop := startClient(t, up, nil)
		defer stop()

		var wg sync.WaitGroup
		for i := 0; i < 6; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, _ = c.Submit(context.Background(), fmt.Sprintf("/tv/%d", i), nil)
			}(i)
		}
		wg.Wait()

		calls := up.Calls()
		for i := 1; i < len(calls); i++ {
			gap := calls[i].At.Sub(calls[i-1].At)
			if gap < DefaultRequestSpacing-time.Millisecond {
				t.Errorf("gap %d = %v, want >= %v", i, gap, DefaultRequestSpacing)
			}
		}
	})
}

func TestSubmit_FIFOOrder(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		up := newFakeUpstream()
		c, stop := startClient(t, up, nil)
		defer stop()

		const n = 12
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, _ = c.Submit(context.Background(), fmt.Sprintf("/movie/%d", i), nil)
			}(i)
			// Let the submission enqueue before the next one starts.
			synctest.Wait()
		}
		wg.Wait()

		calls := up.Calls()
		if len(calls) != n {
			t.Fatalf("upstream calls = %d, want %d", len(calls), n)
		}
		for i, call := range calls {
			if want := fmt.Sprintf("/movie/%d", i); call.Path != want {
				t.Errorf("call %d path = %s, want %s", i, call.Path, want)
			}
		}
	})
}

func TestSubmit_CancelBeforeDispatch(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		up := newFakeUpstream()
		c, stop := startClient(t, up, func(o *Options) {
			o.RateBudget = 2
			o.RequestSpacing = -1
		})
		defer stop()

		for i := 0; i < 2; i++ {
			if _, err := c.Submit(context.Background(), fmt.Sprintf("/movie/%d", i), nil); err != nil {
				t.Fatalf("Submit(%d) error = %v", i, err)
			}
		}

		ctx, cancel := context.WithCancel(context.Background())
		errc := make(chan error, 1)
		go func() {
			_, err := c.Submit(ctx, "/movie/queued", nil)
			errc <- err
		}()
		synctest.Wait()

		if got := c.QueueDepth(); got != 1 {
			t.Fatalf("QueueDepth() = %d, want 1 while the window is full", got)
		}

		time.Sleep(2 * time.Second)
		cancel()
		err := <-errc
		if !errors.Is(err, ErrCanceled) {
			t.Fatalf("Submit() error = %v, want ErrCanceled", err)
		}

		synctest.Wait()
		if got := c.QueueDepth(); got != 0 {
			t.Errorf("QueueDepth() = %d after cancel, want 0", got)
		}
		if got := c.Window().Count(time.Now()); got != 2 {
			t.Errorf("window count = %d, want 2 (withdrawn ticket spends no budget)", got)
		}

		// Once the window rolls, the next submission goes straight out.
		time.Sleep(DefaultRateWindow)
		if _, err := c.Submit(context.Background(), "/movie/after", nil); err != nil {
			t.Fatalf("Submit() after roll error = %v", err)
		}

		for _, call := range up.Calls() {
			if call.Path == "/movie/queued" {
				t.Error("withdrawn submission reached the upstream")
			}
		}
		st := c.Stats()
		if st.Canceled != 1 {
			t.Errorf("Stats().Canceled = %d, want 1", st.Canceled)
		}
		if st.Dispatched != 3 {
			t.Errorf("Stats().Dispatched = %d, want 3", st.Dispatched)
		}
	})
}

func TestSubmit_AlreadyCanceledContext(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		up := newFakeUpstream()
		c, stop := startClient(t, up, nil)
		defer stop()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := c.Submit(ctx, "/movie/1", nil); !IsCanceled(err) {
			t.Fatalf("Submit() error = %v, want cancellation", err)
		}
		synctest.Wait()
		if up.CallCount() != 0 {
			t.Error("canceled submission reached the upstream")
		}
	})
}

func TestSubmit_CancelInFlight(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		up := newFakeUpstream()
		up.latency = 5 * time.Second
		c, stop := startClient(t, up, nil)
		defer stop()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		queuedBefore, inFlightBefore := cancellationCounts()
		start := time.Now()
		_, err := c.Submit(ctx, "/movie/slow", nil)
		if !errors.Is(err, ErrCanceled) {
			t.Fatalf("Submit() error = %v, want ErrCanceled", err)
		}
		if elapsed := time.Since(start); elapsed != time.Second {
			t.Errorf("Submit() returned after %v, want 1s", elapsed)
		}
		if got := c.Window().Count(time.Now()); got != 1 {
			t.Errorf("window count = %d, want 1 (in-flight cancel still spends budget)", got)
		}
		if got := c.Stats().Canceled; got != 1 {
			t.Errorf("Stats().Canceled = %d, want 1", got)
		}
		queued, inFlight := cancellationCounts()
		if queued != queuedBefore || inFlight != inFlightBefore+1 {
			t.Errorf("cancellations queued +%v in_flight +%v, want +0 +1", queued-queuedBefore, inFlight-inFlightBefore)
		}
	})
}

// A ticket whose context ends between the pop and the round trip is never
// sent, so it counts as a queued cancellation.
func TestDispatch_CanceledBeforeSendIsNotInFlight(t *testing.T) {
	up := newFakeUpstream()
	c := New(Options{BaseURL: "https://api.test/3", HTTPClient: &http.Client{Transport: up}})
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tk := &ticket{
		path:     "/movie/1",
		ctx:      ctx,
		enqueued: time.Now(),
		state:    stateDispatched,
		done:     make(chan result, 1),
	}

	queuedBefore, inFlightBefore := cancellationCounts()
	c.dispatch(tk)
	r := <-tk.done
	if r.sent {
		t.Error("result.sent = true for a request that never left")
	}
	if _, err := c.collect(r); !errors.Is(err, ErrCanceled) {
		t.Fatalf("collect() error = %v, want ErrCanceled", err)
	}

	queued, inFlight := cancellationCounts()
	if queued != queuedBefore+1 || inFlight != inFlightBefore {
		t.Errorf("cancellations queued +%v in_flight +%v, want +1 +0", queued-queuedBefore, inFlight-inFlightBefore)
	}
	if up.CallCount() != 0 {
		t.Error("canceled ticket reached the upstream")
	}
	if got := c.Window().Count(time.Now()); got != 0 {
		t.Errorf("window count = %d, want 0", got)
	}
}

func TestSubmit_UpstreamErrorDoesNotStallQueue(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		up := newFakeUpstream()
		up.handle("/movie/0", http.StatusNotFound, `{"status_code":34,"status_message":"The resource you requested could not be found."}`)
		c, stop := startClient(t, up, nil)
		defer stop()

		_, err := c.Submit(context.Background(), "/movie/0", nil)
		var ue *UpstreamError
		if !errors.As(err, &ue) {
			t.Fatalf("Submit() error = %v, want *UpstreamError", err)
		}
		if ue.Status != http.StatusNotFound || ue.Code != 34 {
			t.Errorf("UpstreamError = %+v", ue)
		}
		if ue.Message != "The resource you requested could not be found." {
			t.Errorf("Message = %q", ue.Message)
		}
		if ue.Temporary() {
			t.Error("404 should not be temporary")
		}

		if _, err := c.Submit(context.Background(), "/movie/1", nil); err != nil {
			t.Fatalf("Submit() after failure error = %v", err)
		}

		st := c.Stats()
		if st.Failed != 1 || st.Successful != 1 {
			t.Errorf("Stats() failed=%d successful=%d, want 1/1", st.Failed, st.Successful)
		}
	})
}

func TestSubmit_TransportError(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		up := newFakeUpstream()
		up.failWith = errors.New("connection refused")
		c, stop := startClient(t, up, nil)
		defer stop()

		_, err := c.Submit(context.Background(), "/movie/1", nil)
		if !errors.Is(err, ErrTransport) {
			t.Fatalf("Submit() error = %v, want ErrTransport", err)
		}
		if IsCanceled(err) {
			t.Error("transport failure must not look like a cancellation")
		}
	})
}

func TestSubmit_HTTPClientTimeoutIsTransportError(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		up := newFakeUpstream()
		up.latency = 5 * time.Second
		c, stop := startClient(t, up, func(o *Options) {
			o.HTTPClient = &http.Client{Transport: up, Timeout: time.Second}
		})
		defer stop()

		_, err := c.Submit(context.Background(), "/movie/slow", nil)
		if !errors.Is(err, ErrTransport) {
			t.Fatalf("Submit() error = %v, want ErrTransport", err)
		}
		if IsCanceled(err) {
			t.Error("client timeout must not look like a cancellation")
		}
		if got := UserMessage(err); got == "" {
			t.Error("UserMessage() is empty for a client timeout")
		}
		st := c.Stats()
		if st.Failed != 1 || st.Canceled != 0 {
			t.Errorf("Stats() failed=%d canceled=%d, want 1/0", st.Failed, st.Canceled)
		}
	})
}

func TestBreaker_OpensAndRejectsWithoutSpendingBudget(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		up := newFakeUpstream()
		up.fallback = func(*http.Request) (int, string) {
			return http.StatusServiceUnavailable, `{"status_message":"down"}`
		}
		c, stop := startClient(t, up, func(o *Options) {
			o.RequestSpacing = -1
			o.Breaker = BreakerOptions{Enabled: true, MinRequests: 3, FailureRatio: 0.5, Timeout: time.Minute}
		})
		defer stop()

		for i := 0; i < 3; i++ {
			var ue *UpstreamError
			if _, err := c.Submit(context.Background(), "/movie/1", nil); !errors.As(err, &ue) {
				t.Fatalf("Submit(%d) error = %v, want *UpstreamError", i, err)
			}
		}
		if got := c.BreakerState(); got != "open" {
			t.Fatalf("BreakerState() = %q, want open", got)
		}

		_, err := c.Submit(context.Background(), "/movie/1", nil)
		if !errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("Submit() error = %v, want ErrCircuitOpen", err)
		}
		if up.CallCount() != 3 {
			t.Errorf("upstream calls = %d, want 3", up.CallCount())
		}
		if got := c.Window().Count(time.Now()); got != 3 {
			t.Errorf("window count = %d, want 3", got)
		}
		if got := c.Stats().Rejected; got != 1 {
			t.Errorf("Stats().Rejected = %d, want 1", got)
		}
	})
}

func TestBreaker_IgnoresClientErrors(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		up := newFakeUpstream()
		up.fallback = func(*http.Request) (int, string) {
			return http.StatusNotFound, `{}`
		}
		c, stop := startClient(t, up, func(o *Options) {
			o.RequestSpacing = -1
			o.Breaker = BreakerOptions{Enabled: true, MinRequests: 2, FailureRatio: 0.5}
		})
		defer stop()

		for i := 0; i < 5; i++ {
			_, _ = c.Submit(context.Background(), "/movie/404", nil)
		}
		if got := c.BreakerState(); got != "closed" {
			t.Errorf("BreakerState() = %q, want closed", got)
		}
	})
}

func TestBreakerState_Disabled(t *testing.T) {
	c := New(Options{APIKey: "k"})
	defer c.Close()
	if got := c.BreakerState(); got != "disabled" {
		t.Errorf("BreakerState() = %q, want disabled", got)
	}
}

func TestClose_FailsQueuedAndFutureSubmissions(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		up := newFakeUpstream()
		c := New(Options{APIKey: "k", BaseURL: "https://api.test/3", HTTPClient: &http.Client{Transport: up}})

		// No dispatcher running: the submission stays queued.
		errc := make(chan error, 1)
		go func() {
			_, err := c.Submit(context.Background(), "/movie/1", nil)
			errc <- err
		}()
		synctest.Wait()

		c.Close()
		if err := <-errc; !errors.Is(err, ErrClosed) {
			t.Errorf("queued Submit() error = %v, want ErrClosed", err)
		}
		if _, err := c.Submit(context.Background(), "/movie/2", nil); !errors.Is(err, ErrClosed) {
			t.Errorf("Submit() after Close error = %v, want ErrClosed", err)
		}
		if err := c.Serve(context.Background()); !errors.Is(err, suture.ErrDoNotRestart) {
			t.Errorf("Serve() after Close = %v, want suture.ErrDoNotRestart", err)
		}
		c.Close()
		if up.CallCount() != 0 {
			t.Error("closed client reached the upstream")
		}
	})
}

func TestPing(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		up := newFakeUpstream()
		up.handle(PathConfiguration, http.StatusUnauthorized, `{"status_code":7,"status_message":"Invalid API key"}`)
		c, stop := startClient(t, up, nil)
		defer stop()

		err := c.Ping(context.Background())
		var ue *UpstreamError
		if !errors.As(err, &ue) || ue.Status != http.StatusUnauthorized {
			t.Fatalf("Ping() error = %v, want 401 upstream error", err)
		}
	})
}

func TestStats_Snapshot(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		up := newFakeUpstream()
		up.latency = 100 * time.Millisecond
		c, stop := startClient(t, up, nil)
		defer stop()

		for i := 0; i < 3; i++ {
			if _, err := c.Submit(context.Background(), "/movie/1", nil); err != nil {
				t.Fatal(err)
			}
		}

		st := c.Stats()
		if st.Dispatched != 3 || st.Successful != 3 {
			t.Errorf("Stats() = %+v", st)
		}
		if st.AverageLatency != 100*time.Millisecond {
			t.Errorf("AverageLatency = %v, want 100ms", st.AverageLatency)
		}
		if st.WindowUsed != 3 || st.WindowBudget != DefaultRateBudget {
			t.Errorf("window %d/%d, want 3/%d", st.WindowUsed, st.WindowBudget, DefaultRateBudget)
		}
		if st.QueueDepth != 0 {
			t.Errorf("QueueDepth = %d", st.QueueDepth)
		}
		if st.BreakerState != "disabled" {
			t.Errorf("BreakerState = %q", st.BreakerState)
		}
	})
}

func TestEndpointLabel(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/movie/550", "/movie/{id}"},
		{"/tv/1399/season/1/episode/2", "/tv/{id}/season/{id}/episode/{id}"},
		{"/trending/all/week", "/trending/all/week"},
		{"/search/multi", "/search/multi"},
		{"/configuration", "/configuration"},
	}
	for _, tt := range tests {
		if got := endpointLabel(tt.path); got != tt.want {
			t.Errorf("endpointLabel(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestOptions_Defaults(t *testing.T) {
	c := New(Options{APIKey: "k"})
	defer c.Close()

	o := c.Options()
	if o.BaseURL != DefaultBaseURL || o.ImageBaseURL != DefaultImageBaseURL {
		t.Errorf("base URLs = %q, %q", o.BaseURL, o.ImageBaseURL)
	}
	if o.RateBudget != DefaultRateBudget || o.RateWindow != DefaultRateWindow {
		t.Errorf("rate = %d per %v", o.RateBudget, o.RateWindow)
	}
	if o.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v", o.Timeout)
	}
}
