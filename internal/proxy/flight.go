// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

package proxy

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Flight coalesces concurrent upstream fetches for the same cache key
// into one call. Waiters that cancel stop waiting but never cancel the
// shared compute; late arrivals still receive its result.
type Flight struct {
	group singleflight.Group
}

// Do runs fn for key unless an identical flight is already running, in
// which case the caller blocks for its result. The shared return
// reports whether the result came from another caller's flight.
//
// The compute runs on a context detached from the initiating request,
// so one waiter's cancellation cannot fail the rest.
func (f *Flight) Do(ctx context.Context, key string, fn func(ctx context.Context) (*fetchResult, error)) (*fetchResult, bool, error) {
	computeCtx := context.WithoutCancel(ctx)

	ch := f.group.DoChan(key, func() (interface{}, error) {
		return fn(computeCtx)
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Shared, res.Err
		}
		return res.Val.(*fetchResult), res.Shared, nil
	}
}
