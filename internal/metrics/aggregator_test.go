// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestAggregator_RequestTotals(t *testing.T) {
	a := NewAggregator(time.Minute, 6)

	a.RecordRequest("tournaments", 200, 10*time.Millisecond, 1000)
	a.RecordRequest("tournaments", 200, 30*time.Millisecond, 500)
	a.RecordRequest("tournaments", 502, 5*time.Millisecond, 0)

	snap := a.Snapshot()["tournaments"]
	if snap.Requests != 3 {
		t.Errorf("expected 3 requests, got %d", snap.Requests)
	}
	if snap.BytesTransferred != 1500 {
		t.Errorf("expected 1500 bytes, got %d", snap.BytesTransferred)
	}
	if snap.ErrorsByCode[502] != 1 {
		t.Errorf("expected one 502, got %v", snap.ErrorsByCode)
	}
	if snap.WindowRequests != 3 {
		t.Errorf("expected window count 3, got %d", snap.WindowRequests)
	}
	wantErrRate := 1.0 / 3.0
	if diff := snap.WindowErrorRate - wantErrRate; diff > 0.001 || diff < -0.001 {
		t.Errorf("expected error rate ~%v, got %v", wantErrRate, snap.WindowErrorRate)
	}
	wantAvg := 15 * time.Millisecond
	if snap.WindowAvgTime != wantAvg {
		t.Errorf("expected avg %v, got %v", wantAvg, snap.WindowAvgTime)
	}
}

func TestAggregator_CacheCounters(t *testing.T) {
	a := NewAggregator(time.Minute, 6)

	a.RecordCacheHit("rankings", 1)
	a.RecordCacheHit("rankings", 1)
	a.RecordCacheHit("rankings", 3)
	a.RecordCacheMiss("rankings")
	a.RecordStaleServe("rankings")

	snap := a.Snapshot()["rankings"]
	if snap.HitsByTier[1] != 2 || snap.HitsByTier[3] != 1 {
		t.Errorf("unexpected hit distribution %v", snap.HitsByTier)
	}
	if snap.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", snap.Misses)
	}
	if snap.StaleServes != 1 {
		t.Errorf("expected 1 stale serve, got %d", snap.StaleServes)
	}
	// 3 hits out of 4 lookups.
	if snap.HitRate != 0.75 {
		t.Errorf("expected hit rate 0.75, got %v", snap.HitRate)
	}
}

func TestAggregator_DenialsAndTrips(t *testing.T) {
	a := NewAggregator(time.Minute, 6)

	a.RecordRateLimitDenial("scoring")
	a.RecordRateLimitDenial("scoring")
	a.RecordBreakerTransition("scoring")

	snap := a.Snapshot()["scoring"]
	if snap.RateLimitDenials != 2 {
		t.Errorf("expected 2 denials, got %d", snap.RateLimitDenials)
	}
	if snap.BreakerTrips != 1 {
		t.Errorf("expected 1 breaker transition, got %d", snap.BreakerTrips)
	}
}

func TestAggregator_WindowExpires(t *testing.T) {
	a := NewAggregator(60*time.Millisecond, 6)

	a.RecordRequest("odds", 200, time.Millisecond, 10)
	if snap := a.Snapshot()["odds"]; snap.WindowRequests != 1 {
		t.Fatalf("expected 1 in window, got %d", snap.WindowRequests)
	}

	time.Sleep(80 * time.Millisecond)

	snap := a.Snapshot()["odds"]
	if snap.WindowRequests != 0 {
		t.Errorf("expected window drained, got %d", snap.WindowRequests)
	}
	// Lifetime totals are unaffected by window rotation.
	if snap.Requests != 1 {
		t.Errorf("expected lifetime total 1, got %d", snap.Requests)
	}
}

func TestAggregator_Buckets(t *testing.T) {
	a := NewAggregator(time.Minute, 4)
	a.RecordRequest("field", 200, 20*time.Millisecond, 1)
	a.RecordRequest("field", 500, 40*time.Millisecond, 1)

	buckets := a.Buckets("field")
	if len(buckets) != 4 {
		t.Fatalf("expected 4 buckets, got %d", len(buckets))
	}

	var total, errs int64
	for _, b := range buckets {
		total += b.Requests
		errs += b.Errors
	}
	if total != 2 || errs != 1 {
		t.Errorf("expected totals 2/1 across buckets, got %d/%d", total, errs)
	}
}

func TestAggregator_Health(t *testing.T) {
	a := NewAggregator(time.Minute, 6)

	for i := 0; i < 8; i++ {
		a.RecordRequest("tournaments", 200, 100*time.Millisecond, 10)
		a.RecordCacheHit("tournaments", 1)
	}
	a.RecordRequest("tournaments", 502, 100*time.Millisecond, 0)
	a.RecordCacheMiss("tournaments")

	h := a.Health()
	wantErr := 1.0 / 9.0
	if diff := h.ErrorRate - wantErr; diff > 0.01 || diff < -0.01 {
		t.Errorf("expected error rate ~%v, got %v", wantErr, h.ErrorRate)
	}
	if h.AvgResponseTime != 100*time.Millisecond {
		t.Errorf("expected avg 100ms, got %v", h.AvgResponseTime)
	}
	wantHit := 8.0 / 9.0
	if diff := h.CacheHitRate - wantHit; diff > 0.01 || diff < -0.01 {
		t.Errorf("expected hit rate ~%v, got %v", wantHit, h.CacheHitRate)
	}
}

func TestAggregator_ConcurrentRecording(t *testing.T) {
	a := NewAggregator(time.Minute, 6)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				a.RecordRequest("shared", 200, time.Millisecond, 1)
				a.RecordCacheHit("shared", 1)
			}
		}()
	}
	wg.Wait()

	snap := a.Snapshot()["shared"]
	if snap.Requests != 800 {
		t.Errorf("expected 800 requests, got %d", snap.Requests)
	}
	if snap.HitsByTier[1] != 800 {
		t.Errorf("expected 800 hits, got %d", snap.HitsByTier[1])
	}
}

func TestBreakerStateValue(t *testing.T) {
	tests := map[string]float64{"closed": 0, "half-open": 1, "open": 2, "bogus": -1}
	for state, want := range tests {
		if got := BreakerStateValue(state); got != want {
			t.Errorf("BreakerStateValue(%q) = %v, want %v", state, got, want)
		}
	}
}
