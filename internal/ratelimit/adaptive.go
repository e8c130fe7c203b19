// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

package ratelimit

import "time"

// HealthSample is one observation of system health, fed to the
// adaptive adjuster by the metrics aggregator.
type HealthSample struct {
	// ErrorRate is the fraction of requests that failed, in [0, 1].
	ErrorRate float64

	// AvgResponseTime is the rolling average upstream latency.
	AvgResponseTime time.Duration

	// CacheHitRate is the fraction of requests served from cache, in [0, 1].
	CacheHitRate float64
}

// Score condenses a health sample into [0, 1]. Error rate dominates,
// latency and hit rate refine.
func (s HealthSample) Score() float64 {
	score := 1.0

	score -= s.ErrorRate * 2
	switch {
	case s.AvgResponseTime > 5*time.Second:
		score -= 0.3
	case s.AvgResponseTime > 2*time.Second:
		score -= 0.15
	}
	score += (s.CacheHitRate - 0.5) * 0.2

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// ScaleFactor maps a health score to the limit multiplier applied
// across all endpoints.
func ScaleFactor(score float64) float64 {
	switch {
	case score >= 0.9:
		return 1.25
	case score >= 0.7:
		return 1.0
	case score >= 0.4:
		return 0.75
	default:
		return 0.5
	}
}

// HealthSource supplies the current health sample. Implemented by the
// metrics aggregator.
type HealthSource interface {
	Health() HealthSample
}

// Adjuster periodically rescales a limiter from observed health.
type Adjuster struct {
	limiter *Limiter
	source  HealthSource
}

// NewAdjuster wires a limiter to a health source.
func NewAdjuster(limiter *Limiter, source HealthSource) *Adjuster {
	return &Adjuster{limiter: limiter, source: source}
}

// Tick samples health once and applies the resulting scale factor.
// Returns the factor applied.
func (a *Adjuster) Tick() float64 {
	factor := ScaleFactor(a.source.Health().Score())
	a.limiter.SetScale(factor)
	return factor
}
