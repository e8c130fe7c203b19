// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

package breaker

import (
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		FailureThreshold: 3,
		OpenTimeout:      30 * time.Millisecond,
		MaxTrials:        2,
		ResetThreshold:   2,
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := New("scoring", testConfig(), nil)

	for i := 0; i < 2; i++ {
		if !b.Admit() {
			t.Fatalf("failure %d: expected closed circuit to admit", i)
		}
		b.Failure()
	}
	if b.State() != StateClosed {
		t.Fatal("expected circuit still closed below threshold")
	}

	b.Admit()
	b.Failure()

	if b.State() != StateOpen {
		t.Errorf("expected open after threshold, got %v", b.State())
	}
	if b.Admit() {
		t.Error("expected open circuit to reject")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := New("scoring", testConfig(), nil)

	b.Failure()
	b.Failure()
	b.Success()
	b.Failure()
	b.Failure()

	if b.State() != StateClosed {
		t.Error("expected success to reset the consecutive failure count")
	}
	if got := b.Snap().ConsecutiveFailures; got != 2 {
		t.Errorf("expected 2 consecutive failures after reset, got %d", got)
	}
}

func openBreaker(t *testing.T, b *Breaker) {
	t.Helper()
	for i := 0; i < 3; i++ {
		b.Failure()
	}
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %v", b.State())
	}
}

func TestBreaker_HalfOpenAfterTimeout(t *testing.T) {
	b := New("scoring", testConfig(), nil)
	openBreaker(t, b)

	if b.Admit() {
		t.Fatal("expected rejection while open")
	}

	time.Sleep(40 * time.Millisecond)

	if !b.Admit() {
		t.Fatal("expected probe admission after open timeout")
	}
	if b.State() != StateHalfOpen {
		t.Errorf("expected half-open, got %v", b.State())
	}
}

func TestBreaker_HalfOpenBoundsConcurrentTrials(t *testing.T) {
	b := New("scoring", testConfig(), nil)
	openBreaker(t, b)
	time.Sleep(40 * time.Millisecond)

	if !b.Admit() || !b.Admit() {
		t.Fatal("expected MaxTrials probes admitted")
	}
	if b.Admit() {
		t.Error("expected third concurrent probe rejected")
	}

	// A completed probe frees a trial slot.
	b.Success()
	if !b.Admit() {
		t.Error("expected admission after a probe completed")
	}
}

func TestBreaker_UnreportedTrialSlotsResetOnTransition(t *testing.T) {
	b := New("scoring", testConfig(), nil)
	openBreaker(t, b)
	time.Sleep(40 * time.Millisecond)

	// Two admitted callers never report an outcome.
	if !b.Admit() || !b.Admit() {
		t.Fatal("expected both trial slots admitted")
	}
	if b.Admit() {
		t.Fatal("expected trial slots exhausted")
	}

	// A reopen reclaims the abandoned slots for the next cycle.
	b.Failure()
	if b.State() != StateOpen {
		t.Fatalf("expected reopen, got %v", b.State())
	}
	time.Sleep(40 * time.Millisecond)
	if !b.Admit() {
		t.Error("expected slots reclaimed after the transition")
	}
	if got := b.Snap().InFlightTrials; got != 1 {
		t.Errorf("expected 1 in-flight trial, got %d", got)
	}
}

func TestBreaker_ClosesAfterResetThreshold(t *testing.T) {
	b := New("scoring", testConfig(), nil)
	openBreaker(t, b)
	time.Sleep(40 * time.Millisecond)

	b.Admit()
	b.Success()
	if b.State() != StateHalfOpen {
		t.Fatal("expected half-open after one success")
	}

	b.Admit()
	b.Success()
	if b.State() != StateClosed {
		t.Errorf("expected closed after %d successes, got %v", testConfig().ResetThreshold, b.State())
	}
	if !b.Admit() {
		t.Error("expected closed circuit to admit")
	}
}

func TestBreaker_TrialFailureReopens(t *testing.T) {
	b := New("scoring", testConfig(), nil)
	openBreaker(t, b)
	time.Sleep(40 * time.Millisecond)

	b.Admit()
	b.Success()
	b.Admit()
	b.Failure()

	if b.State() != StateOpen {
		t.Errorf("expected a failed probe to reopen, got %v", b.State())
	}
	if b.Admit() {
		t.Error("expected rejection immediately after reopening")
	}

	// Recovery counting starts over on the next half-open cycle.
	time.Sleep(40 * time.Millisecond)
	b.Admit()
	if got := b.Snap().HalfOpenSuccesses; got != 0 {
		t.Errorf("expected success count reset, got %d", got)
	}
}

func TestBreaker_TransitionCallback(t *testing.T) {
	type change struct{ from, to State }
	var changes []change
	b := New("scoring", testConfig(), func(name string, from, to State) {
		if name != "scoring" {
			t.Errorf("unexpected breaker name %q", name)
		}
		changes = append(changes, change{from, to})
	})

	openBreaker(t, b)
	time.Sleep(40 * time.Millisecond)
	b.Admit()
	b.Success()
	b.Admit()
	b.Success()

	want := []change{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
	}
	if len(changes) != len(want) {
		t.Fatalf("expected %d transitions, got %d: %v", len(want), len(changes), changes)
	}
	for i, w := range want {
		if changes[i] != w {
			t.Errorf("transition %d: expected %v->%v, got %v->%v", i, w.from, w.to, changes[i].from, changes[i].to)
		}
	}
}

func TestRegistry_PerEndpointIsolation(t *testing.T) {
	r := NewRegistry(testConfig(), nil)

	scoring := r.ForEndpoint("scoring")
	for i := 0; i < 3; i++ {
		scoring.Failure()
	}

	if r.ForEndpoint("scoring").State() != StateOpen {
		t.Error("expected scoring breaker open")
	}
	if r.ForEndpoint("rankings").State() != StateClosed {
		t.Error("expected rankings breaker unaffected")
	}
	if r.ForEndpoint("scoring") != scoring {
		t.Error("expected stable breaker instance per endpoint")
	}

	snaps := r.Snapshots()
	if len(snaps) != 2 {
		t.Errorf("expected 2 breakers, got %d", len(snaps))
	}
	if snaps["scoring"].State != StateOpen {
		t.Errorf("expected open in snapshot, got %v", snaps["scoring"].State)
	}
}
