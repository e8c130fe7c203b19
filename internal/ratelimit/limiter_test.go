// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestLimiter_AllowUpToLimit(t *testing.T) {
	l := NewLimiter(Limit{Requests: 3, Window: time.Minute}, nil)

	for i := 0; i < 3; i++ {
		d := l.Allow("sess-1", "tournaments")
		if !d.Allowed {
			t.Fatalf("request %d: expected allow", i)
		}
		if d.Remaining != 3-(i+1) {
			t.Errorf("request %d: expected remaining %d, got %d", i, 3-(i+1), d.Remaining)
		}
	}

	d := l.Allow("sess-1", "tournaments")
	if d.Allowed {
		t.Error("expected denial past the limit")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
		t.Errorf("expected retry-after within the window, got %v", d.RetryAfter)
	}
}

func TestLimiter_IdentitiesIndependent(t *testing.T) {
	l := NewLimiter(Limit{Requests: 1, Window: time.Minute}, nil)

	if !l.Allow("sess-1", "rankings").Allowed {
		t.Fatal("expected first identity allowed")
	}
	if !l.Allow("sess-2", "rankings").Allowed {
		t.Error("expected second identity unaffected by the first")
	}
	if l.Allow("sess-1", "rankings").Allowed {
		t.Error("expected first identity now denied")
	}
}

func TestLimiter_EndpointsIndependent(t *testing.T) {
	l := NewLimiter(Limit{Requests: 1, Window: time.Minute}, nil)

	l.Allow("sess-1", "scoring")
	if !l.Allow("sess-1", "rankings").Allowed {
		t.Error("expected separate window per endpoint")
	}
}

func TestLimiter_WindowSlides(t *testing.T) {
	l := NewLimiter(Limit{Requests: 2, Window: 40 * time.Millisecond}, nil)

	l.Allow("s", "e")
	l.Allow("s", "e")
	if l.Allow("s", "e").Allowed {
		t.Fatal("expected denial at limit")
	}

	time.Sleep(50 * time.Millisecond)

	if !l.Allow("s", "e").Allowed {
		t.Error("expected admission after the window slid past old timestamps")
	}
}

func TestLimiter_PerEndpointOverride(t *testing.T) {
	l := NewLimiter(Limit{Requests: 100, Window: time.Minute}, map[string]Limit{
		"betting-odds": {Requests: 1, Window: time.Minute},
	})

	l.Allow("s", "betting-odds")
	if l.Allow("s", "betting-odds").Allowed {
		t.Error("expected override limit of 1 to apply")
	}
	if !l.Allow("s", "tournaments").Allowed {
		t.Error("expected default limit for other endpoints")
	}
}

func TestLimiter_AdaptiveScaling(t *testing.T) {
	l := NewLimiter(Limit{Requests: 8, Window: time.Minute, MinRequests: 2, MaxRequests: 12}, nil)

	if got := l.EffectiveLimit("e"); got != 8 {
		t.Fatalf("expected baseline 8, got %d", got)
	}

	l.SetScale(0.5)
	if got := l.EffectiveLimit("e"); got != 4 {
		t.Errorf("expected scaled limit 4, got %d", got)
	}

	l.SetScale(1.25)
	if got := l.EffectiveLimit("e"); got != 10 {
		t.Errorf("expected scaled limit 10, got %d", got)
	}

	// Clamped to the endpoint bounds.
	l.SetScale(0.1)
	if got := l.EffectiveLimit("e"); got != 2 {
		t.Errorf("expected clamp to min 2, got %d", got)
	}
	l.SetScale(10)
	if got := l.EffectiveLimit("e"); got != 12 {
		t.Errorf("expected clamp to max 12, got %d", got)
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	l := NewLimiter(Limit{Requests: 5, Window: 10 * time.Millisecond}, nil)

	l.Allow("old", "e")
	if l.Len() != 1 {
		t.Fatalf("expected 1 window, got %d", l.Len())
	}

	// Idle for less than 2x window: kept.
	if removed := l.Cleanup(); removed != 0 {
		t.Errorf("expected no removal yet, got %d", removed)
	}

	time.Sleep(25 * time.Millisecond)

	if removed := l.Cleanup(); removed != 1 {
		t.Errorf("expected 1 stale window removed, got %d", removed)
	}
	if l.Len() != 0 {
		t.Errorf("expected empty limiter, got %d windows", l.Len())
	}
}

func TestLimiter_ConcurrentExactCount(t *testing.T) {
	const limit = 50
	l := NewLimiter(Limit{Requests: limit, Window: time.Minute}, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if l.Allow("shared", "e").Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if allowed != limit {
		t.Errorf("expected exactly %d admissions across goroutines, got %d", limit, allowed)
	}
}

func TestLimiter_ManyIdentities(t *testing.T) {
	l := NewLimiter(Limit{Requests: 2, Window: time.Minute}, nil)
	for i := 0; i < 100; i++ {
		if !l.Allow(fmt.Sprintf("sess-%d", i), "e").Allowed {
			t.Fatalf("identity %d: expected allow", i)
		}
	}
	if l.Len() != 100 {
		t.Errorf("expected 100 windows, got %d", l.Len())
	}
}
