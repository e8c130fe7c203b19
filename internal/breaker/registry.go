// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

package breaker

import "sync"

// Registry lazily creates one breaker per endpoint, all sharing the
// same thresholds.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	cfg      Config
	onChange func(name string, from, to State)
}

// NewRegistry creates a registry. onChange is passed to every breaker.
func NewRegistry(cfg Config, onChange func(name string, from, to State)) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		cfg:      cfg,
		onChange: onChange,
	}
}

// ForEndpoint returns the breaker for an endpoint, creating it closed
// on first use.
func (r *Registry) ForEndpoint(endpoint string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[endpoint]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[endpoint]; ok {
		return b
	}
	b = New(endpoint, r.cfg, r.onChange)
	r.breakers[endpoint] = b
	return b
}

// Snapshots returns the counters of every known breaker by endpoint.
func (r *Registry) Snapshots() map[string]Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Snapshot, len(r.breakers))
	for endpoint, b := range r.breakers {
		out[endpoint] = b.Snap()
	}
	return out
}
