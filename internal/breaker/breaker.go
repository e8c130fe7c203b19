// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

// Package breaker implements a per-endpoint circuit breaker. Unlike
// failure-rate breakers, recovery is counted separately from half-open
// admission: up to MaxTrials probes run concurrently, and the circuit
// closes after ResetThreshold successes.
package breaker

import (
	"sync"
	"time"

	"github.com/fairwaylabs/fairway/internal/logging"
)

// State is the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds the breaker thresholds shared by all endpoints.
type Config struct {
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int

	// OpenTimeout is how long the circuit stays open before probing.
	OpenTimeout time.Duration

	// MaxTrials bounds concurrent half-open probe requests.
	MaxTrials int

	// ResetThreshold successful probes close the circuit.
	ResetThreshold int
}

// DefaultConfig matches the documented upstream protection defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		OpenTimeout:      60 * time.Second,
		MaxTrials:        5,
		ResetThreshold:   3,
	}
}

// Breaker is the state machine for one endpoint. Callers pair every
// admitted dispatch with exactly one Success or Failure report.
type Breaker struct {
	name string
	cfg  Config

	mu                sync.Mutex
	state             State
	openedAt          time.Time
	consecutiveFails  int
	halfOpenSuccesses int
	inFlightTrials    int

	onChange func(name string, from, to State)
}

// New creates a closed breaker for the named endpoint. onChange, if
// non-nil, is invoked synchronously on every state transition with the
// breaker's lock held; it must not call back into the breaker.
func New(name string, cfg Config, onChange func(name string, from, to State)) *Breaker {
	return &Breaker{name: name, cfg: cfg, state: StateClosed, onChange: onChange}
}

// Name returns the endpoint this breaker guards.
func (b *Breaker) Name() string { return b.name }

// Admit reports whether a dispatch may proceed. An open circuit whose
// timeout has elapsed moves to half-open and admits the caller as a
// probe.
func (b *Breaker) Admit() bool {
	b.mu.Lock()

	if b.state == StateOpen && time.Since(b.openedAt) >= b.cfg.OpenTimeout {
		b.transition(StateHalfOpen)
	}

	switch b.state {
	case StateClosed:
		b.mu.Unlock()
		return true
	case StateHalfOpen:
		// Slots consumed by admitted callers that never report an
		// outcome (e.g. coalesced onto another caller's fetch) stay
		// held until the next transition resets the count. That only
		// under-admits probes, never over-admits.
		if b.inFlightTrials < b.cfg.MaxTrials {
			b.inFlightTrials++
			b.mu.Unlock()
			return true
		}
		b.mu.Unlock()
		return false
	default:
		b.mu.Unlock()
		return false
	}
}

// Success reports a successful dispatch.
func (b *Breaker) Success() {
	b.mu.Lock()
	switch b.state {
	case StateClosed:
		b.consecutiveFails = 0
	case StateHalfOpen:
		if b.inFlightTrials > 0 {
			b.inFlightTrials--
		}
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.cfg.ResetThreshold {
			b.transition(StateClosed)
		}
	}
	// A success landing after the circuit re-opened is stale; ignore it.
	b.mu.Unlock()
}

// Failure reports a failed dispatch.
func (b *Breaker) Failure() {
	b.mu.Lock()
	switch b.state {
	case StateClosed:
		b.consecutiveFails++
		if b.consecutiveFails >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		// One failed probe re-opens immediately.
		b.transition(StateOpen)
	}
	b.mu.Unlock()
}

// State returns the current state without driving transitions.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot reports the breaker's counters for monitoring.
type Snapshot struct {
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	HalfOpenSuccesses   int       `json:"halfOpenSuccesses"`
	InFlightTrials      int       `json:"inFlightTrials"`
	OpenedAt            time.Time `json:"openedAt,omitempty"`
}

// Snap returns the current counters.
func (b *Breaker) Snap() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFails,
		HalfOpenSuccesses:   b.halfOpenSuccesses,
		InFlightTrials:      b.inFlightTrials,
		OpenedAt:            b.openedAt,
	}
}

// transition moves to a new state and resets the counters the new
// state relies on. Must be called with the lock held.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to

	switch to {
	case StateOpen:
		b.openedAt = time.Now()
		b.inFlightTrials = 0
		b.halfOpenSuccesses = 0
	case StateHalfOpen:
		b.inFlightTrials = 0
		b.halfOpenSuccesses = 0
	case StateClosed:
		b.consecutiveFails = 0
		b.inFlightTrials = 0
		b.halfOpenSuccesses = 0
	}

	logging.Info().
		Str("endpoint", b.name).
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("circuit breaker state transition")

	if b.onChange != nil {
		// Invoked with the lock held; callbacks must not call back
		// into the breaker.
		b.onChange(b.name, from, to)
	}
}
