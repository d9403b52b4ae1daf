// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package services

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var _ suture.Service = (*HTTPServerService)(nil)

// shutdownFailer serves normally but reports a failed shutdown.
type shutdownFailer struct {
	*http.Server
	err error
}

func (s shutdownFailer) Shutdown(ctx context.Context) error {
	_ = s.Server.Shutdown(ctx)
	return s.err
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
}

func runService(t *testing.T, svc *HTTPServerService) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()
	return cancel, errCh
}

func boundAddr(t *testing.T, svc *HTTPServerService) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	addr, err := svc.Addr(ctx)
	if err != nil {
		t.Fatalf("Addr() error = %v", err)
	}
	return addr.String()
}

func TestNewHTTPServerService_Defaults(t *testing.T) {
	svc := NewHTTPServerService("", "127.0.0.1:0", &http.Server{}, 0)
	if svc.shutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("shutdownTimeout = %v, want %v", svc.shutdownTimeout, DefaultShutdownTimeout)
	}
	if svc.String() != "http-server" {
		t.Errorf("String() = %q, want http-server", svc.String())
	}
}

func TestHTTPServerService_ServesAndShutsDown(t *testing.T) {
	svc := NewHTTPServerService("diag", "127.0.0.1:0", &http.Server{Handler: okHandler()}, time.Second)
	cancel, errCh := runService(t, svc)

	resp, err := http.Get("http://" + boundAddr(t, svc) + "/")
	if err != nil {
		cancel()
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Errorf("body = %q, want ok", body)
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

func TestHTTPServerService_BindFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer taken.Close()

	svc := NewHTTPServerService("diag", taken.Addr().String(), &http.Server{}, time.Second)
	err = svc.Serve(context.Background())
	if err == nil || !strings.Contains(err.Error(), "listen on") {
		t.Fatalf("Serve() = %v, want listen error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := svc.Addr(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Addr() after failed bind = %v, want deadline exceeded", err)
	}
}

func TestHTTPServerService_ShutdownError(t *testing.T) {
	shutdownErr := errors.New("shutdown timeout")
	server := shutdownFailer{Server: &http.Server{Handler: okHandler()}, err: shutdownErr}
	svc := NewHTTPServerService("diag", "127.0.0.1:0", server, time.Second)

	cancel, errCh := runService(t, svc)
	boundAddr(t, svc)
	cancel()

	if err := <-errCh; !errors.Is(err, shutdownErr) {
		t.Errorf("Serve() = %v, want shutdown error", err)
	}
}

func TestHTTPServerService_ClosedServerIsClean(t *testing.T) {
	server := &http.Server{Handler: okHandler()}
	svc := NewHTTPServerService("diag", "127.0.0.1:0", server, time.Second)

	cancel, errCh := runService(t, svc)
	defer cancel()
	boundAddr(t, svc)

	_ = server.Close()
	if err := <-errCh; err != nil {
		t.Errorf("Serve() = %v, want nil after Close", err)
	}
}
