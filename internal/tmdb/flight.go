// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package tmdb

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// flights collapses identical concurrent lookups into one submission.
//
// The shared submission runs under its own context, detached from whichever
// caller started it. Each caller stops waiting when its own context ends; the
// submission is canceled only once every caller has gone.
type flights struct {
	group singleflight.Group

	mu    sync.Mutex
	calls map[string]*flightCall
}

type flightCall struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// do runs fn once for all concurrent callers of key.
func (f *flights) do(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, canceledError(key, err)
		}

		call := f.join(ctx, key)
		ch := f.group.DoChan(key, func() (interface{}, error) {
			return fn(call.ctx)
		})

		select {
		case r := <-ch:
			f.leave(key, call)
			// Joined a flight whose callers had all left: start a fresh one.
			if IsCanceled(r.Err) && ctx.Err() == nil {
				continue
			}
			return r.Val, r.Err
		case <-ctx.Done():
			f.leave(key, call)
			return nil, canceledError(key, ctx.Err())
		}
	}
}

func (f *flights) join(ctx context.Context, key string) *flightCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.calls == nil {
		f.calls = make(map[string]*flightCall)
	}
	call, ok := f.calls[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		call = &flightCall{ctx: fctx, cancel: cancel}
		f.calls[key] = call
	}
	call.waiters++
	return call
}

// leave drops one waiter. The last one out cancels the shared context, which
// withdraws a still-queued submission or aborts one in flight.
func (f *flights) leave(key string, call *flightCall) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call.waiters--
	if call.waiters > 0 {
		return
	}
	call.cancel()
	if f.calls[key] == call {
		delete(f.calls, key)
	}
}
