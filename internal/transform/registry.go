// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

// Package transform normalizes upstream feed payloads into the proxy's
// stable response schema. Transformers are pure: the same raw body and
// timestamp always produce the same output.
package transform

import (
	"sync"
	"time"
)

// Func converts a raw upstream body into the normalized schema. The
// timestamp is passed in so outputs stay reproducible.
type Func func(raw []byte, now time.Time) ([]byte, error)

// Identity returns the raw body unchanged.
func Identity(raw []byte, _ time.Time) ([]byte, error) {
	return raw, nil
}

// Registry maps endpoint names to transformer functions. Endpoints
// without a registered function fall back to Identity.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register installs fn for an endpoint, replacing any previous one.
func (r *Registry) Register(endpoint string, fn Func) {
	r.mu.Lock()
	r.funcs[endpoint] = fn
	r.mu.Unlock()
}

// Lookup returns the transformer for an endpoint, falling back to
// Identity. The second return reports whether a specific transformer
// was registered.
func (r *Registry) Lookup(endpoint string) (Func, bool) {
	r.mu.RLock()
	fn, ok := r.funcs[endpoint]
	r.mu.RUnlock()
	if !ok {
		return Identity, false
	}
	return fn, true
}

// Apply runs the endpoint's transformer on the raw body.
func (r *Registry) Apply(endpoint string, raw []byte, now time.Time) ([]byte, error) {
	fn, _ := r.Lookup(endpoint)
	return fn(raw, now)
}

// Endpoints lists the endpoints with registered transformers.
func (r *Registry) Endpoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.funcs))
	for endpoint := range r.funcs {
		out = append(out, endpoint)
	}
	return out
}
