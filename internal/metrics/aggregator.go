// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

// Package metrics provides Prometheus instrumentation plus an
// in-process aggregator with per-endpoint totals and rolling windows.
package metrics

import (
	"sync"
	"time"

	"github.com/fairwaylabs/fairway/internal/ratelimit"
)

// rollingWindow tracks response time and errors over a bucketed
// sliding window. Buckets are a circular buffer advanced lazily on
// each operation.
type rollingWindow struct {
	mu         sync.Mutex
	buckets    []windowBucket
	bucketSize time.Duration
	current    int
	lastUpdate time.Time
}

type windowBucket struct {
	count      int64
	errors     int64
	durationNs int64
}

func newRollingWindow(windowSize time.Duration, numBuckets int) *rollingWindow {
	if numBuckets <= 0 {
		numBuckets = 10
	}
	if windowSize <= 0 {
		windowSize = 5 * time.Minute
	}
	return &rollingWindow{
		buckets:    make([]windowBucket, numBuckets),
		bucketSize: windowSize / time.Duration(numBuckets),
		lastUpdate: time.Now(),
	}
}

func (w *rollingWindow) record(duration time.Duration, isError bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.advance()
	b := &w.buckets[w.current]
	b.count++
	b.durationNs += int64(duration)
	if isError {
		b.errors++
	}
}

// totals returns the summed window: request count, error count, and
// total duration.
func (w *rollingWindow) totals() (count, errors int64, duration time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.advance()
	var ns int64
	for _, b := range w.buckets {
		count += b.count
		errors += b.errors
		ns += b.durationNs
	}
	return count, errors, time.Duration(ns)
}

// snapshot copies the live buckets, oldest first.
func (w *rollingWindow) snapshot() []WindowBucket {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.advance()
	n := len(w.buckets)
	out := make([]WindowBucket, 0, n)
	for i := 1; i <= n; i++ {
		b := w.buckets[(w.current+i)%n]
		wb := WindowBucket{Requests: b.count, Errors: b.errors}
		if b.count > 0 {
			wb.AvgResponseTime = time.Duration(b.durationNs / b.count)
		}
		out = append(out, wb)
	}
	return out
}

// advance rotates expired buckets forward. Must be called with the
// lock held.
func (w *rollingWindow) advance() {
	now := time.Now()
	elapsed := int(now.Sub(w.lastUpdate) / w.bucketSize)
	if elapsed <= 0 {
		return
	}
	if elapsed >= len(w.buckets) {
		for i := range w.buckets {
			w.buckets[i] = windowBucket{}
		}
		w.current = 0
	} else {
		for i := 0; i < elapsed; i++ {
			w.current = (w.current + 1) % len(w.buckets)
			w.buckets[w.current] = windowBucket{}
		}
	}
	w.lastUpdate = now
}

// endpointStats holds one endpoint's lifetime totals plus its rolling
// window. All fields are guarded by mu; every update is O(1).
type endpointStats struct {
	mu               sync.Mutex
	requests         int64
	hitsByTier       map[int]int64
	misses           int64
	staleServes      int64
	errorsByCode     map[int]int64
	bytesTransferred int64
	denials          int64
	breakerTrips     int64
	window           *rollingWindow
}

// EndpointSnapshot is one endpoint's view in a metrics snapshot.
type EndpointSnapshot struct {
	Requests         int64         `json:"requests"`
	HitsByTier       map[int]int64 `json:"hitsByTier"`
	Misses           int64         `json:"misses"`
	StaleServes      int64         `json:"staleServes"`
	ErrorsByCode     map[int]int64 `json:"errorsByCode"`
	BytesTransferred int64         `json:"bytesTransferred"`
	RateLimitDenials int64         `json:"rateLimitDenials"`
	BreakerTrips     int64         `json:"breakerTrips"`
	HitRate          float64       `json:"hitRate"`
	WindowRequests   int64         `json:"windowRequests"`
	WindowErrors     int64         `json:"windowErrors"`
	WindowErrorRate  float64       `json:"windowErrorRate"`
	WindowAvgTime    time.Duration `json:"windowAvgResponseTime"`
}

// WindowBucket is one rolling-window bucket, for bucketed queries.
type WindowBucket struct {
	Requests        int64         `json:"requests"`
	Errors          int64         `json:"errors"`
	AvgResponseTime time.Duration `json:"avgResponseTime"`
}

// Aggregator maintains per-endpoint request statistics. Recording
// never blocks the request path beyond a short mutex hold.
type Aggregator struct {
	mu         sync.RWMutex
	endpoints  map[string]*endpointStats
	windowSize time.Duration
	numBuckets int
}

// NewAggregator creates an aggregator with the given rolling window.
func NewAggregator(windowSize time.Duration, numBuckets int) *Aggregator {
	if windowSize <= 0 {
		windowSize = 5 * time.Minute
	}
	if numBuckets <= 0 {
		numBuckets = 10
	}
	return &Aggregator{
		endpoints:  make(map[string]*endpointStats),
		windowSize: windowSize,
		numBuckets: numBuckets,
	}
}

func (a *Aggregator) stats(endpoint string) *endpointStats {
	a.mu.RLock()
	s, ok := a.endpoints[endpoint]
	a.mu.RUnlock()
	if ok {
		return s
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.endpoints[endpoint]; ok {
		return s
	}
	s = &endpointStats{
		hitsByTier:   make(map[int]int64),
		errorsByCode: make(map[int]int64),
		window:       newRollingWindow(a.windowSize, a.numBuckets),
	}
	a.endpoints[endpoint] = s
	return s
}

// RecordRequest records one completed request.
func (a *Aggregator) RecordRequest(endpoint string, status int, duration time.Duration, bytes int64) {
	s := a.stats(endpoint)
	isError := status >= 400

	s.mu.Lock()
	s.requests++
	s.bytesTransferred += bytes
	if isError {
		s.errorsByCode[status]++
	}
	s.mu.Unlock()

	s.window.record(duration, isError)
}

// RecordCacheHit records a hit at the given 1-based tier level.
func (a *Aggregator) RecordCacheHit(endpoint string, tier int) {
	s := a.stats(endpoint)
	s.mu.Lock()
	s.hitsByTier[tier]++
	s.mu.Unlock()
}

// RecordCacheMiss records a miss across all tiers.
func (a *Aggregator) RecordCacheMiss(endpoint string) {
	s := a.stats(endpoint)
	s.mu.Lock()
	s.misses++
	s.mu.Unlock()
}

// RecordStaleServe records an expired entry served as fallback.
func (a *Aggregator) RecordStaleServe(endpoint string) {
	s := a.stats(endpoint)
	s.mu.Lock()
	s.staleServes++
	s.mu.Unlock()
}

// RecordRateLimitDenial records a 429 issued by the limiter.
func (a *Aggregator) RecordRateLimitDenial(endpoint string) {
	s := a.stats(endpoint)
	s.mu.Lock()
	s.denials++
	s.mu.Unlock()
}

// RecordBreakerTransition records a circuit state change.
func (a *Aggregator) RecordBreakerTransition(endpoint string) {
	s := a.stats(endpoint)
	s.mu.Lock()
	s.breakerTrips++
	s.mu.Unlock()
}

// Snapshot returns the current per-endpoint statistics.
func (a *Aggregator) Snapshot() map[string]EndpointSnapshot {
	a.mu.RLock()
	endpoints := make(map[string]*endpointStats, len(a.endpoints))
	for name, s := range a.endpoints {
		endpoints[name] = s
	}
	a.mu.RUnlock()

	out := make(map[string]EndpointSnapshot, len(endpoints))
	for name, s := range endpoints {
		count, errs, total := s.window.totals()

		s.mu.Lock()
		snap := EndpointSnapshot{
			Requests:         s.requests,
			HitsByTier:       make(map[int]int64, len(s.hitsByTier)),
			Misses:           s.misses,
			StaleServes:      s.staleServes,
			ErrorsByCode:     make(map[int]int64, len(s.errorsByCode)),
			BytesTransferred: s.bytesTransferred,
			RateLimitDenials: s.denials,
			BreakerTrips:     s.breakerTrips,
			WindowRequests:   count,
			WindowErrors:     errs,
		}
		var hits int64
		for tier, n := range s.hitsByTier {
			snap.HitsByTier[tier] = n
			hits += n
		}
		for code, n := range s.errorsByCode {
			snap.ErrorsByCode[code] = n
		}
		if lookups := hits + s.misses; lookups > 0 {
			snap.HitRate = float64(hits) / float64(lookups)
		}
		s.mu.Unlock()

		if count > 0 {
			snap.WindowErrorRate = float64(errs) / float64(count)
			snap.WindowAvgTime = total / time.Duration(count)
		}
		out[name] = snap
	}
	return out
}

// HitsPerHour extrapolates the endpoint's rolling-window request rate
// to an hourly figure, used by adaptive TTL selection.
func (a *Aggregator) HitsPerHour(endpoint string) float64 {
	count, _, _ := a.stats(endpoint).window.totals()
	return float64(count) * float64(time.Hour) / float64(a.windowSize)
}

// Buckets returns the endpoint's rolling window, oldest bucket first.
func (a *Aggregator) Buckets(endpoint string) []WindowBucket {
	return a.stats(endpoint).window.snapshot()
}

// Health condenses the rolling windows of every endpoint into the
// sample consumed by the adaptive rate limiter.
func (a *Aggregator) Health() ratelimit.HealthSample {
	snaps := a.Snapshot()

	var requests, errors int64
	var weighted time.Duration
	var hits, lookups int64
	for _, s := range snaps {
		requests += s.WindowRequests
		errors += s.WindowErrors
		weighted += s.WindowAvgTime * time.Duration(s.WindowRequests)
		for _, n := range s.HitsByTier {
			hits += n
			lookups += n
		}
		lookups += s.Misses
	}

	sample := ratelimit.HealthSample{}
	if requests > 0 {
		sample.ErrorRate = float64(errors) / float64(requests)
		sample.AvgResponseTime = weighted / time.Duration(requests)
	}
	if lookups > 0 {
		sample.CacheHitRate = float64(hits) / float64(lookups)
	}
	return sample
}
