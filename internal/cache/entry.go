// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

// Package cache implements the three-tier response cache: a single bounded
// tier with a pluggable eviction policy, the tiered orchestrator that layers
// L1/L2/L3 with promotion on read, and deterministic cache key derivation.
package cache

import "time"

// Policy selects the eviction discipline for a tier.
type Policy string

const (
	// PolicyLRU evicts the entry with the oldest last access.
	PolicyLRU Policy = "lru"

	// PolicyFIFO evicts the entry with the oldest creation time.
	PolicyFIFO Policy = "fifo"

	// PolicyLFU evicts the entry with the smallest access count,
	// ties broken by oldest last access.
	PolicyLFU Policy = "lfu"
)

// Valid reports whether p names a known eviction policy.
func (p Policy) Valid() bool {
	switch p {
	case PolicyLRU, PolicyFIFO, PolicyLFU:
		return true
	}
	return false
}

// Entry is one cached upstream response as stored in a tier.
//
// Tiers own their entries exclusively: Get returns a copy of the metadata
// fields so callers never observe concurrent mutation, and Body is treated
// as immutable after Put.
type Entry struct {
	// Key is the deterministic cache key (see BuildKey).
	Key string

	// Body is the normalized response payload.
	Body []byte

	// ContentType is the MIME type preserved from the upstream response.
	ContentType string

	// CreatedAt is when this entry was written into the tier.
	CreatedAt time.Time

	// ExpiresAt is CreatedAt plus the TTL the entry was stored with.
	// Always after CreatedAt.
	ExpiresAt time.Time

	// LastAccessedAt is updated on every read hit at this tier.
	LastAccessedAt time.Time

	// AccessCount is incremented on every read hit at this tier.
	AccessCount int64

	// SizeBytes is len(Body) captured at Put time.
	SizeBytes int64
}

// Expired reports whether the entry's TTL has elapsed at the given instant.
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Age returns how long ago the entry was created.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// clone returns a copy of the entry. The body slice is shared: bodies are
// immutable once stored.
func (e *Entry) clone() *Entry {
	c := *e
	return &c
}

// Stats is a snapshot of one tier's counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
}
