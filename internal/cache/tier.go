// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

package cache

import (
	"sync"
	"time"
)

// node is an entry wrapped in an intrusive doubly-linked list element.
// The list orders entries by recency (LRU) or insertion (FIFO); LFU tiers
// keep the insertion order but select eviction victims by access count.
type node struct {
	entry *Entry
	prev  *node
	next  *node
}

// Tier is one bounded in-memory cache table with a TTL and a single
// eviction policy. All access is serialized by one mutex held only for the
// duration of a map or list operation.
//
// Capacity pressure never errors: when a Put of a new key finds the tier
// full, exactly one victim is evicted according to the policy.
type Tier struct {
	mu sync.Mutex

	name       string
	policy     Policy
	maxSize    int
	defaultTTL time.Duration

	items map[string]*node

	// head/tail are sentinels. head.next is the most recently used (LRU)
	// or most recently inserted (FIFO/LFU); tail.prev is the eviction end.
	head *node
	tail *node

	hits      int64
	misses    int64
	evictions int64
}

// NewTier creates a tier with the given capacity, default TTL, and policy.
func NewTier(name string, policy Policy, maxSize int, defaultTTL time.Duration) *Tier {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if !policy.Valid() {
		policy = PolicyLRU
	}

	t := &Tier{
		name:       name,
		policy:     policy,
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		items:      make(map[string]*node, maxSize),
		head:       &node{},
		tail:       &node{},
	}
	t.head.next = t.tail
	t.tail.prev = t.head
	return t
}

// Name returns the tier's configured name (e.g. "l1").
func (t *Tier) Name() string { return t.name }

// Policy returns the tier's eviction policy.
func (t *Tier) Policy() Policy { return t.policy }

// DefaultTTL returns the tier's configured default TTL.
func (t *Tier) DefaultTTL() time.Duration { return t.defaultTTL }

// Get returns a copy of the entry iff present and not expired. A hit
// updates LastAccessedAt and AccessCount atomically under the tier lock.
// An expired entry is deleted in place and counted as a miss.
func (t *Tier) Get(key string) (*Entry, bool) {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.items[key]
	if !ok {
		t.misses++
		return nil, false
	}
	if n.entry.Expired(now) {
		t.removeNode(n)
		t.misses++
		return nil, false
	}

	n.entry.LastAccessedAt = now
	n.entry.AccessCount++
	if t.policy == PolicyLRU {
		t.moveToFront(n)
	}
	t.hits++
	return n.entry.clone(), true
}

// getFresh is the tiered read path's probe. It behaves like Get except
// that an expired entry is left in place: the stale-serve fallback may
// still need it, and the janitor sweep collects it later.
func (t *Tier) getFresh(key string) (*Entry, bool) {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.items[key]
	if !ok || n.entry.Expired(now) {
		t.misses++
		return nil, false
	}

	n.entry.LastAccessedAt = now
	n.entry.AccessCount++
	if t.policy == PolicyLRU {
		t.moveToFront(n)
	}
	t.hits++
	return n.entry.clone(), true
}

// PeekStale returns a copy of the entry if present, even when expired.
// It never mutates access metadata or the recency order; the stale-serve
// path must not promote entries or extend their lifetime.
func (t *Tier) PeekStale(key string) (*Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.items[key]
	if !ok {
		return nil, false
	}
	return n.entry.clone(), true
}

// Put inserts or overwrites the entry under its key using the given TTL
// (the tier default when ttl <= 0). If the key is new and the tier is full,
// exactly one entry is evicted per the tier's policy before the insert.
func (t *Tier) Put(key string, body []byte, contentType string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = t.defaultTTL
	}
	now := time.Now()
	entry := &Entry{
		Key:            key,
		Body:           body,
		ContentType:    contentType,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		LastAccessedAt: now,
		SizeBytes:      int64(len(body)),
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if n, ok := t.items[key]; ok {
		// Overwrite resets the entry's lifecycle, so it becomes the
		// newest element in the recency/insertion order.
		n.entry = entry
		t.moveToFront(n)
		return
	}

	if len(t.items) >= t.maxSize {
		t.evictOne(now)
	}

	n := &node{entry: entry}
	t.addToFront(n)
	t.items[key] = n
}

// PutEntry inserts a pre-built entry verbatim, preserving its timestamps
// and counters. Used when replaying journaled entries at startup.
func (t *Tier) PutEntry(entry *Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n, ok := t.items[entry.Key]; ok {
		n.entry = entry.clone()
		return
	}
	if len(t.items) >= t.maxSize {
		t.evictOne(time.Now())
	}
	n := &node{entry: entry.clone()}
	t.addToFront(n)
	t.items[entry.Key] = n
}

// Delete removes the entry for key. Returns true if it was present.
func (t *Tier) Delete(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.items[key]
	if !ok {
		return false
	}
	t.removeNode(n)
	return true
}

// Keys returns a snapshot of all keys currently in the tier, including
// expired ones not yet collected.
func (t *Tier) Keys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := make([]string, 0, len(t.items))
	for k := range t.items {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the current number of entries.
func (t *Tier) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// Stats returns a snapshot of the tier's counters.
func (t *Tier) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{Hits: t.hits, Misses: t.misses, Evictions: t.evictions, Size: len(t.items)}
}

// CleanupExpired removes all expired entries. Returns the number removed.
// Run periodically by the cache janitor service.
func (t *Tier) CleanupExpired() int {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for n := t.tail.prev; n != t.head; {
		prev := n.prev
		if n.entry.Expired(now) {
			t.removeNode(n)
			removed++
		}
		n = prev
	}
	return removed
}

// Internal methods, called with the lock held.

func (t *Tier) addToFront(n *node) {
	n.prev = t.head
	n.next = t.head.next
	t.head.next.prev = n
	t.head.next = n
}

func (t *Tier) moveToFront(n *node) {
	n.prev.next = n.next
	n.next.prev = n.prev
	t.addToFront(n)
}

func (t *Tier) removeNode(n *node) {
	n.prev.next = n.next
	n.next.prev = n.prev
	delete(t.items, n.entry.Key)
}

// evictOne removes exactly one entry chosen by the tier's policy.
// Expired entries are preferred victims regardless of policy.
func (t *Tier) evictOne(now time.Time) {
	// An expired entry is always a better victim than a live one.
	for n := t.tail.prev; n != t.head; n = n.prev {
		if n.entry.Expired(now) {
			t.removeNode(n)
			t.evictions++
			return
		}
	}

	var victim *node
	switch t.policy {
	case PolicyLRU, PolicyFIFO:
		// The list tail is the least recently used (LRU reorders on
		// access) or the oldest insertion (FIFO never reorders).
		victim = t.tail.prev
	case PolicyLFU:
		// Scan for the smallest access count, ties broken by the
		// oldest last access. Capacity bounds the scan.
		for n := t.tail.prev; n != t.head; n = n.prev {
			if victim == nil ||
				n.entry.AccessCount < victim.entry.AccessCount ||
				(n.entry.AccessCount == victim.entry.AccessCount &&
					n.entry.LastAccessedAt.Before(victim.entry.LastAccessedAt)) {
				victim = n
			}
		}
	}
	if victim == nil || victim == t.head {
		return
	}
	t.removeNode(victim)
	t.evictions++
}
