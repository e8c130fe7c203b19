// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

package services

import (
	"context"
	"time"
)

// MaintenanceService runs a tick function on a fixed interval under
// supervision. Used for the cache janitor, rate limiter housekeeping,
// and the adaptive limit adjuster.
type MaintenanceService struct {
	name     string
	interval time.Duration
	tick     func(ctx context.Context)
}

// NewMaintenanceService creates a periodic service. The first tick
// fires after one interval, not immediately.
func NewMaintenanceService(name string, interval time.Duration, tick func(ctx context.Context)) *MaintenanceService {
	return &MaintenanceService{
		name:     name,
		interval: interval,
		tick:     tick,
	}
}

// Serve implements suture.Service.
func (s *MaintenanceService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// String implements fmt.Stringer for suture's log messages.
func (s *MaintenanceService) String() string {
	return s.name
}
