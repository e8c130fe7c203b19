// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

package proxy

import (
	"time"

	"github.com/fairwaylabs/fairway/internal/transform"
)

// Category classifies an endpoint by how quickly its data goes stale.
type Category int

const (
	// CategoryRealtime covers live scoring and betting odds.
	CategoryRealtime Category = iota
	// CategoryDynamic covers data that shifts within a day.
	CategoryDynamic
	// CategoryReference covers schedules and historical stats.
	CategoryReference
)

// endpointCategories classifies the feed endpoints. Unknown endpoints
// default to dynamic.
var endpointCategories = map[string]Category{
	transform.EndpointScoring:     CategoryRealtime,
	transform.EndpointBettingOdds: CategoryRealtime,
	transform.EndpointField:       CategoryDynamic,
	transform.EndpointRankings:    CategoryDynamic,
	transform.EndpointTournaments: CategoryReference,
	transform.EndpointPlayerStats: CategoryReference,
}

// CategoryFor returns the endpoint's freshness category.
func CategoryFor(endpoint string) Category {
	if c, ok := endpointCategories[endpoint]; ok {
		return c
	}
	return CategoryDynamic
}

// TTLConfig holds the base TTL per category and the global clamp.
type TTLConfig struct {
	Realtime  time.Duration
	Dynamic   time.Duration
	Reference time.Duration
	Min       time.Duration
	Max       time.Duration
}

// DefaultTTLConfig matches the documented freshness targets.
func DefaultTTLConfig() TTLConfig {
	return TTLConfig{
		Realtime:  2 * time.Minute,
		Dynamic:   20 * time.Minute,
		Reference: 6 * time.Hour,
		Min:       30 * time.Second,
		Max:       24 * time.Hour,
	}
}

// TTLSelector computes the write-back TTL for an endpoint. Hot
// endpoints keep entries longer; very large bodies also stretch the
// TTL to amortize the fetch cost.
type TTLSelector struct {
	cfg TTLConfig
}

// NewTTLSelector creates a selector from configuration.
func NewTTLSelector(cfg TTLConfig) *TTLSelector {
	return &TTLSelector{cfg: cfg}
}

// Select computes final_ttl = clamp(base * freq * size). freq is
// min(1 + hitsPerHour/100, 2.0); size is min(1 + bytes/1MB, 1.5).
func (s *TTLSelector) Select(endpoint string, hitsPerHour float64, sizeBytes int64) time.Duration {
	var base time.Duration
	switch CategoryFor(endpoint) {
	case CategoryRealtime:
		base = s.cfg.Realtime
	case CategoryReference:
		base = s.cfg.Reference
	default:
		base = s.cfg.Dynamic
	}

	freq := 1 + hitsPerHour/100
	if freq > 2.0 {
		freq = 2.0
	}
	size := 1 + float64(sizeBytes)/1_000_000
	if size > 1.5 {
		size = 1.5
	}

	ttl := time.Duration(float64(base) * freq * size)
	if ttl < s.cfg.Min {
		return s.cfg.Min
	}
	if ttl > s.cfg.Max {
		return s.cfg.Max
	}
	return ttl
}
