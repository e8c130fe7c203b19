// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

package cache

import (
	"fmt"
	"regexp"
	"time"
)

// Journal receives write-through notifications so the bottom tier can be
// restored after a restart. Implemented by the persist package; nil when
// persistence is disabled.
type Journal interface {
	Record(entry *Entry)
	Remove(key string)
}

// Tiered composes the enabled cache tiers in probe order (L1 fastest,
// highest level slowest). Reads probe tiers in ascending order and promote
// hits from lower tiers into every faster tier; writes go to all tiers.
//
// Tier locks are only ever taken one at a time in ascending order, so
// promotion cannot deadlock against concurrent writes.
type Tiered struct {
	tiers   []*Tier
	journal Journal
}

// NewTiered creates a tiered cache over the given tiers in probe order.
// At least one tier must be supplied.
func NewTiered(tiers ...*Tier) *Tiered {
	if len(tiers) == 0 {
		panic("cache: tiered cache requires at least one tier")
	}
	return &Tiered{tiers: tiers}
}

// SetJournal attaches a write-through journal for the bottom tier.
func (c *Tiered) SetJournal(j Journal) { c.journal = j }

// Levels returns the number of enabled tiers.
func (c *Tiered) Levels() int { return len(c.tiers) }

// Tier returns the tier at the given 1-based level, or nil.
func (c *Tiered) Tier(level int) *Tier {
	if level < 1 || level > len(c.tiers) {
		return nil
	}
	return c.tiers[level-1]
}

// Get probes tiers in ascending order and returns the first unexpired hit
// along with its 1-based tier level. A hit at level n > 1 is promoted into
// every faster tier using that tier's own default TTL; the source entry is
// left untouched and slower tiers are never written on a fast hit.
//
// Expired entries observed during the probe are skipped but not removed:
// they remain available to GetStale until the janitor sweep collects them.
func (c *Tiered) Get(key string) (*Entry, int, bool) {
	for i, tier := range c.tiers {
		entry, ok := tier.getFresh(key)
		if !ok {
			continue
		}
		for j := 0; j < i; j++ {
			c.tiers[j].Put(key, entry.Body, entry.ContentType, c.tiers[j].DefaultTTL())
		}
		return entry, i + 1, true
	}
	return nil, 0, false
}

// GetStale returns an entry for key from the fastest tier that still holds
// one, expired or not, along with its tier level. Used by the stale-serve
// fallback when the upstream is unreachable. The entry is never promoted
// and its TTL is never extended.
func (c *Tiered) GetStale(key string) (*Entry, int, bool) {
	for i, tier := range c.tiers {
		if entry, ok := tier.PeekStale(key); ok {
			return entry, i + 1, true
		}
	}
	return nil, 0, false
}

// Put writes the body into every tier. Each tier stores the entry with
// explicitTTL when positive, otherwise with its own configured default.
func (c *Tiered) Put(key string, body []byte, contentType string, explicitTTL time.Duration) {
	for _, tier := range c.tiers {
		ttl := explicitTTL
		if ttl <= 0 {
			ttl = tier.DefaultTTL()
		}
		tier.Put(key, body, contentType, ttl)
	}
	if c.journal != nil {
		// Journal the bottom tier's view: longest TTL, survives restart.
		bottom := c.tiers[len(c.tiers)-1]
		if entry, ok := bottom.PeekStale(key); ok {
			c.journal.Record(entry)
		}
	}
}

// Delete removes key from every tier. Returns true if any tier held it.
func (c *Tiered) Delete(key string) bool {
	found := false
	for _, tier := range c.tiers {
		if tier.Delete(key) {
			found = true
		}
	}
	if found && c.journal != nil {
		c.journal.Remove(key)
	}
	return found
}

// Invalidate deletes every key matching the pattern, interpreted as a
// regular expression, from all tiers. Returns the number of unique keys
// deleted: a key living in several tiers counts once.
func (c *Tiered) Invalidate(pattern string) (int, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("invalid invalidation pattern %q: %w", pattern, err)
	}

	deleted := make(map[string]struct{})
	for _, tier := range c.tiers {
		for _, key := range tier.Keys() {
			if !re.MatchString(key) {
				continue
			}
			if tier.Delete(key) {
				deleted[key] = struct{}{}
			}
		}
	}
	if c.journal != nil {
		for key := range deleted {
			c.journal.Remove(key)
		}
	}
	return len(deleted), nil
}

// Seed inserts a pre-built entry directly into the given 1-based tier
// level, preserving its timestamps. Used when replaying the journal at
// startup; already-expired entries are skipped.
func (c *Tiered) Seed(level int, entry *Entry) {
	tier := c.Tier(level)
	if tier == nil || entry == nil {
		return
	}
	if entry.Expired(time.Now()) {
		return
	}
	tier.PutEntry(entry)
}

// Stats returns a per-tier snapshot keyed by tier name.
func (c *Tiered) Stats() map[string]Stats {
	out := make(map[string]Stats, len(c.tiers))
	for _, tier := range c.tiers {
		out[tier.Name()] = tier.Stats()
	}
	return out
}

// CleanupExpired sweeps expired entries from every tier.
// Returns the total number removed.
func (c *Tiered) CleanupExpired() int {
	removed := 0
	for _, tier := range c.tiers {
		removed += tier.CleanupExpired()
	}
	return removed
}
