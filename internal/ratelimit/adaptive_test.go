// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

package ratelimit

import (
	"testing"
	"time"
)

func TestHealthSample_Score(t *testing.T) {
	tests := []struct {
		name   string
		sample HealthSample
		min    float64
		max    float64
	}{
		{"healthy", HealthSample{ErrorRate: 0, AvgResponseTime: 100 * time.Millisecond, CacheHitRate: 0.9}, 0.9, 1.0},
		{"degraded latency", HealthSample{ErrorRate: 0.05, AvgResponseTime: 3 * time.Second, CacheHitRate: 0.5}, 0.4, 0.9},
		{"failing", HealthSample{ErrorRate: 0.5, AvgResponseTime: 6 * time.Second, CacheHitRate: 0.1}, 0, 0.4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			score := tc.sample.Score()
			if score < tc.min || score > tc.max {
				t.Errorf("score %v outside [%v, %v]", score, tc.min, tc.max)
			}
		})
	}
}

func TestScaleFactor(t *testing.T) {
	tests := []struct {
		score  float64
		factor float64
	}{
		{1.0, 1.25},
		{0.95, 1.25},
		{0.8, 1.0},
		{0.5, 0.75},
		{0.2, 0.5},
		{0, 0.5},
	}
	for _, tc := range tests {
		if got := ScaleFactor(tc.score); got != tc.factor {
			t.Errorf("ScaleFactor(%v) = %v, want %v", tc.score, got, tc.factor)
		}
	}
}

type staticHealth struct{ sample HealthSample }

func (s staticHealth) Health() HealthSample { return s.sample }

func TestAdjuster_Tick(t *testing.T) {
	l := NewLimiter(Limit{Requests: 100, Window: time.Minute, MinRequests: 10, MaxRequests: 200}, nil)

	unhealthy := NewAdjuster(l, staticHealth{HealthSample{ErrorRate: 0.8}})
	if factor := unhealthy.Tick(); factor != 0.5 {
		t.Errorf("expected factor 0.5 under failure, got %v", factor)
	}
	if got := l.EffectiveLimit("e"); got != 50 {
		t.Errorf("expected effective limit 50, got %d", got)
	}

	healthy := NewAdjuster(l, staticHealth{HealthSample{CacheHitRate: 0.95, AvgResponseTime: 50 * time.Millisecond}})
	if factor := healthy.Tick(); factor != 1.25 {
		t.Errorf("expected factor 1.25 when healthy, got %v", factor)
	}
	if got := l.EffectiveLimit("e"); got != 125 {
		t.Errorf("expected effective limit 125, got %d", got)
	}
}
