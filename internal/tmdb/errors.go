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

	"github.com/goccy/go-json"
)

var (
	// ErrCanceled is returned when the caller's context ends before the
	// submission settles.
	ErrCanceled = errors.New("tmdb: request canceled")

	// ErrTransport wraps network failures talking to the upstream.
	ErrTransport = errors.New("tmdb: transport failure")

	// ErrCircuitOpen is returned without dispatching while the upstream
	// circuit breaker is open.
	ErrCircuitOpen = errors.New("tmdb: upstream circuit open")

	// ErrClosed is returned once the access layer has been closed.
	ErrClosed = errors.New("tmdb: access layer closed")
)

// UpstreamError is a non-success HTTP response from TMDB.
type UpstreamError struct {
	Status  int
	Code    int // TMDB status_code, 0 when absent
	Message string
	Path    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("tmdb: %s returned %d: %s", e.Path, e.Status, e.Message)
}

// Temporary reports whether the upstream failure is worth retrying later.
func (e *UpstreamError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// newUpstreamError extracts TMDB's status_message from body when present.
func newUpstreamError(status int, body []byte, path string) *UpstreamError {
	ue := &UpstreamError{Status: status, Path: path}

	var payload struct {
		StatusCode    int    `json:"status_code"`
		StatusMessage string `json:"status_message"`
	}
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil && payload.StatusMessage != "" {
		ue.Code = payload.StatusCode
		ue.Message = payload.StatusMessage
	} else {
		ue.Message = http.StatusText(status)
	}
	return ue
}

// IsCanceled reports whether err came from the caller giving up: ErrCanceled
// (the caller's context ended, deadline included) or a raw context.Canceled.
// Transport failures never count, even when the HTTP client's own timeout
// reports itself as context.DeadlineExceeded.
func IsCanceled(err error) bool {
	if err == nil || errors.Is(err, ErrTransport) {
		return false
	}
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}

// UserMessage maps an access-layer error to the single human-readable string
// controllers expose. Cancellation maps to "".
func UserMessage(err error) string {
	if err == nil || IsCanceled(err) {
		return ""
	}

	var ue *UpstreamError
	switch {
	case errors.As(err, &ue):
		switch {
		case ue.Status == http.StatusUnauthorized:
			return "The metadata service rejected our credentials."
		case ue.Status == http.StatusNotFound:
			return "The requested title could not be found."
		case ue.Status == http.StatusTooManyRequests:
			return "The metadata service is busy. Please try again shortly."
		case ue.Status >= 500:
			return "The metadata service is having trouble. Please try again later."
		default:
			return fmt.Sprintf("The metadata service returned an error: %s", ue.Message)
		}
	case errors.Is(err, ErrCircuitOpen):
		return "The metadata service is temporarily unavailable. Please try again later."
	case errors.Is(err, ErrTransport):
		return "Could not reach the metadata service. Check your connection and try again."
	case errors.Is(err, ErrClosed):
		return "The metadata service connection has been shut down."
	}
	return "Something went wrong while loading content."
}
