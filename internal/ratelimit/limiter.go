// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

// Package ratelimit implements per-client sliding-window rate limiting
// keyed by (identity, endpoint), with optional adaptive scaling driven
// by observed system health.
package ratelimit

import (
	"sync"
	"time"
)

// Limit is the admission policy for one endpoint.
type Limit struct {
	// Requests admitted per Window.
	Requests int

	// Window is the sliding-window duration.
	Window time.Duration

	// MinRequests and MaxRequests clamp adaptive scaling. Zero values
	// default to half and double the configured Requests.
	MinRequests int
	MaxRequests int
}

func (l Limit) min() int {
	if l.MinRequests > 0 {
		return l.MinRequests
	}
	if m := l.Requests / 2; m > 0 {
		return m
	}
	return 1
}

func (l Limit) max() int {
	if l.MaxRequests > 0 {
		return l.MaxRequests
	}
	return l.Requests * 2
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// window holds the admission timestamps for one (identity, endpoint).
type window struct {
	timestamps []time.Time
	lastSeen   time.Time
}

// Limiter admits requests per (identity, endpoint) using exact
// sliding-window counting: each admission is timestamped, and the
// window is trimmed on every check.
type Limiter struct {
	mu           sync.Mutex
	windows      map[string]*window
	defaultLimit Limit
	endpoints    map[string]Limit
	scale        float64
}

// NewLimiter creates a limiter with a default policy and optional
// per-endpoint overrides.
func NewLimiter(defaultLimit Limit, endpoints map[string]Limit) *Limiter {
	l := &Limiter{
		windows:      make(map[string]*window),
		defaultLimit: defaultLimit,
		endpoints:    make(map[string]Limit, len(endpoints)),
		scale:        1.0,
	}
	for name, limit := range endpoints {
		l.endpoints[name] = limit
	}
	return l
}

// limitFor returns the configured policy for an endpoint.
func (l *Limiter) limitFor(endpoint string) Limit {
	if limit, ok := l.endpoints[endpoint]; ok {
		return limit
	}
	return l.defaultLimit
}

// effective applies the adaptive scale factor, clamped to the
// endpoint's configured bounds. Must be called with the lock held.
func (l *Limiter) effective(limit Limit) int {
	n := int(float64(limit.Requests) * l.scale)
	if n < limit.min() {
		n = limit.min()
	}
	if n > limit.max() {
		n = limit.max()
	}
	return n
}

// Allow checks and records one admission for (identity, endpoint).
// Timestamps older than the window are dropped before counting. When
// denied, RetryAfter reports how long until the oldest admission
// leaves the window.
func (l *Limiter) Allow(identity, endpoint string) Decision {
	now := time.Now()
	limit := l.limitFor(endpoint)
	key := identity + "\x00" + endpoint

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		w = &window{}
		l.windows[key] = w
	}
	w.lastSeen = now

	cutoff := now.Add(-limit.Window)
	kept := w.timestamps[:0]
	for _, ts := range w.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.timestamps = kept

	max := l.effective(limit)
	if len(w.timestamps) >= max {
		retry := limit.Window - now.Sub(w.timestamps[0])
		if retry < 0 {
			retry = 0
		}
		return Decision{Allowed: false, Limit: max, Remaining: 0, RetryAfter: retry}
	}

	w.timestamps = append(w.timestamps, now)
	return Decision{Allowed: true, Limit: max, Remaining: max - len(w.timestamps)}
}

// SetScale applies an adaptive scale factor to every endpoint's limit.
// Effective limits stay clamped to each endpoint's configured bounds.
func (l *Limiter) SetScale(factor float64) {
	if factor <= 0 {
		return
	}
	l.mu.Lock()
	l.scale = factor
	l.mu.Unlock()
}

// Scale returns the current adaptive scale factor.
func (l *Limiter) Scale() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scale
}

// EffectiveLimit reports the current admission limit for an endpoint
// after adaptive scaling.
func (l *Limiter) EffectiveLimit(endpoint string) int {
	limit := l.limitFor(endpoint)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.effective(limit)
}

// Cleanup drops windows that have been idle for at least twice their
// endpoint's window duration, bounding memory for one-off identities.
// Returns the number of windows removed.
func (l *Limiter) Cleanup() int {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		endpoint := key[indexAfterNUL(key):]
		limit := l.limitFor(endpoint)
		if now.Sub(w.lastSeen) >= 2*limit.Window {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of live windows.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

func indexAfterNUL(key string) int {
	for i := 0; i < len(key); i++ {
		if key[i] == 0 {
			return i + 1
		}
	}
	return 0
}
