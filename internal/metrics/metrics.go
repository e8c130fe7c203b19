// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the proxy:
// - Request throughput, latency, and status codes per endpoint
// - Cache hits per tier, misses, evictions
// - Circuit breaker state and transitions
// - Rate limiter denials and adaptive scale
// - Upstream fetch outcomes and retry counts

var (
	// Request metrics
	ProxyRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairway_proxy_requests_total",
			Help: "Total proxied requests",
		},
		[]string{"endpoint", "status_code"},
	)

	ProxyRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fairway_proxy_request_duration_seconds",
			Help:    "Proxied request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	ProxyBytesTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairway_proxy_bytes_transferred_total",
			Help: "Total response bytes sent to clients",
		},
		[]string{"endpoint"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairway_cache_hits_total",
			Help: "Cache hits by endpoint and tier",
		},
		[]string{"endpoint", "tier"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairway_cache_misses_total",
			Help: "Cache misses by endpoint",
		},
		[]string{"endpoint"},
	)

	CacheStaleServes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairway_cache_stale_serves_total",
			Help: "Expired entries served while the upstream was unavailable",
		},
		[]string{"endpoint"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairway_cache_evictions_total",
			Help: "Cache evictions by tier",
		},
		[]string{"tier"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fairway_cache_entries",
			Help: "Current entry count by tier",
		},
		[]string{"tier"},
	)

	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fairway_cache_invalidations_total",
			Help: "Keys removed by pattern invalidation",
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fairway_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"endpoint"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairway_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"endpoint", "from", "to"},
	)

	CircuitBreakerRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairway_circuit_breaker_rejections_total",
			Help: "Requests rejected by an open circuit",
		},
		[]string{"endpoint"},
	)

	// Rate limiter metrics
	RateLimitDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairway_rate_limit_denials_total",
			Help: "Requests denied by the sliding-window limiter",
		},
		[]string{"endpoint"},
	)

	RateLimitScale = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fairway_rate_limit_scale_factor",
			Help: "Current adaptive rate limit scale factor",
		},
	)

	// Upstream metrics
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairway_upstream_requests_total",
			Help: "Upstream fetch outcomes",
		},
		[]string{"endpoint", "outcome"}, // "success", "failure"
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fairway_upstream_request_duration_seconds",
			Help:    "Upstream fetch duration in seconds, including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	SingleFlightCoalesced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairway_singleflight_coalesced_total",
			Help: "Requests that joined an in-flight upstream fetch",
		},
		[]string{"endpoint"},
	)

	// HTTP surface metrics, recorded by middleware. Endpoint-level
	// pipeline metrics above are recorded separately.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairway_api_requests_total",
			Help: "HTTP requests by method, route, and status code",
		},
		[]string{"method", "path", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fairway_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fairway_api_active_requests",
			Help: "HTTP requests currently in flight",
		},
	)

	// Session metrics
	SessionsMinted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fairway_sessions_minted_total",
			Help: "Fresh sessions minted (no token, invalid, or expired)",
		},
	)

	SessionsResumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fairway_sessions_resumed_total",
			Help: "Valid session tokens resumed and rotated",
		},
	)
)

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(method, path, statusCode string, duration float64) {
	APIRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// BreakerStateValue maps a breaker state name to its gauge value.
func BreakerStateValue(state string) float64 {
	switch state {
	case "closed":
		return 0
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}
