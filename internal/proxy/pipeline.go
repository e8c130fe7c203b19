// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

// Package proxy composes the request pipeline: session handling, rate
// limiting, tiered cache lookup, circuit breaking, single-flight
// upstream fetch, transformation, and write-back.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fairwaylabs/fairway/internal/breaker"
	"github.com/fairwaylabs/fairway/internal/cache"
	"github.com/fairwaylabs/fairway/internal/logging"
	"github.com/fairwaylabs/fairway/internal/metrics"
	"github.com/fairwaylabs/fairway/internal/ratelimit"
	"github.com/fairwaylabs/fairway/internal/session"
	"github.com/fairwaylabs/fairway/internal/transform"
	"github.com/fairwaylabs/fairway/internal/upstream"
)

// Error codes surfaced in the response envelope.
const (
	CodeRateLimited         = "RATE_LIMITED"
	CodeCircuitOpen         = "CIRCUIT_OPEN"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeUpstreamError       = "UPSTREAM_ERROR"
	CodeInternal            = "INTERNAL"
)

// Cache status values reported in X-Cache-Status.
const (
	CacheHit   = "HIT"
	CacheMiss  = "MISS"
	CacheStale = "STALE"
)

// errTransform marks a transformer failure, which is an internal error
// rather than an upstream one: no stale fallback, never cached.
var errTransform = errors.New("transform failed")

// Fetcher is the upstream dependency of the pipeline.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string, params map[string]string, headers map[string]string) (*upstream.Response, error)
}

// Request is one proxied client request.
type Request struct {
	Endpoint      string
	Params        map[string]string
	SessionToken  string
	Fingerprint   string
	ClientIP      string
	CacheOverride bool
}

// Response is the pipeline outcome, translated to HTTP by the API
// layer.
type Response struct {
	Status      int
	Body        []byte
	ContentType string

	ErrorCode    string
	ErrorMessage string

	CacheStatus string
	CacheTier   int
	CacheAge    time.Duration

	SessionID    string
	SessionToken string
	SessionFresh bool

	RateRemaining int
	RetryAfter    time.Duration

	TransformationsApplied []string
	ProcessingTime         time.Duration
}

// fetchResult is the shared outcome of one single-flight compute.
type fetchResult struct {
	status      int
	body        []byte
	contentType string
	transformed bool
}

// Pipeline wires the proxy components together.
// Safe for concurrent use.
type Pipeline struct {
	sessions   *session.Envelope
	limiter    *ratelimit.Limiter
	breakers   *breaker.Registry
	cache      *cache.Tiered
	flight     Flight
	fetcher    Fetcher
	transforms *transform.Registry
	ttl        *TTLSelector
	agg        *metrics.Aggregator
}

// Deps bundles the pipeline's collaborators.
type Deps struct {
	Sessions   *session.Envelope
	Limiter    *ratelimit.Limiter
	Breakers   *breaker.Registry
	Cache      *cache.Tiered
	Fetcher    Fetcher
	Transforms *transform.Registry
	TTL        *TTLSelector
	Aggregator *metrics.Aggregator
}

// NewPipeline creates a pipeline from its dependencies.
func NewPipeline(deps Deps) *Pipeline {
	return &Pipeline{
		sessions:   deps.Sessions,
		limiter:    deps.Limiter,
		breakers:   deps.Breakers,
		cache:      deps.Cache,
		fetcher:    deps.Fetcher,
		transforms: deps.Transforms,
		ttl:        deps.TTL,
		agg:        deps.Aggregator,
	}
}

// Process runs one request through the full pipeline. It always
// returns a response; failures are encoded in Status and ErrorCode.
func (p *Pipeline) Process(ctx context.Context, req *Request) *Response {
	start := time.Now()

	record, fresh := p.sessions.Resume(req.SessionToken, req.Fingerprint)
	if fresh {
		metrics.SessionsMinted.Inc()
	} else {
		metrics.SessionsResumed.Inc()
	}

	resp := &Response{
		SessionID:    record.ID,
		SessionFresh: fresh,
		CacheStatus:  CacheMiss,
	}
	defer func() {
		resp.ProcessingTime = time.Since(start)
		p.record(req.Endpoint, resp)
	}()

	token, err := p.sessions.Encrypt(record)
	if err != nil {
		logging.Err(err).Msg("session token encryption failed")
		resp.Status = 500
		resp.ErrorCode = CodeInternal
		resp.ErrorMessage = "session processing failed"
		return resp
	}
	resp.SessionToken = token

	// A fresh session means the client presented no usable token, so its
	// limiter identity falls back to the client address. Keying freshly
	// minted ids would hand out a new window on every token-less request.
	identity := record.ID
	if fresh && req.ClientIP != "" {
		identity = req.ClientIP
	}
	decision := p.limiter.Allow(identity, req.Endpoint)
	resp.RateRemaining = decision.Remaining
	if !decision.Allowed {
		p.agg.RecordRateLimitDenial(req.Endpoint)
		metrics.RateLimitDenials.WithLabelValues(req.Endpoint).Inc()
		resp.Status = 429
		resp.ErrorCode = CodeRateLimited
		resp.ErrorMessage = "rate limit exceeded"
		resp.RetryAfter = decision.RetryAfter
		return resp
	}

	key := cache.BuildKey(req.Endpoint, req.Params)

	// Override requests skip the probe entirely, so they count neither
	// as hits nor misses.
	if !req.CacheOverride {
		if entry, level, ok := p.cache.Get(key); ok {
			p.agg.RecordCacheHit(req.Endpoint, level)
			metrics.CacheHits.WithLabelValues(req.Endpoint, tierLabel(level)).Inc()
			resp.Status = 200
			resp.Body = entry.Body
			resp.ContentType = entry.ContentType
			resp.CacheStatus = CacheHit
			resp.CacheTier = level
			resp.CacheAge = entry.Age(time.Now())
			return resp
		}
		p.agg.RecordCacheMiss(req.Endpoint)
		metrics.CacheMisses.WithLabelValues(req.Endpoint).Inc()
	}

	b := p.breakers.ForEndpoint(req.Endpoint)
	if !b.Admit() {
		metrics.CircuitBreakerRejections.WithLabelValues(req.Endpoint).Inc()
		return p.staleOr(resp, req.Endpoint, key, CodeCircuitOpen, 503, "upstream circuit open")
	}

	result, shared, err := p.flight.Do(ctx, key, func(ctx context.Context) (*fetchResult, error) {
		return p.fetchAndStore(ctx, req, key, b)
	})
	if shared {
		metrics.SingleFlightCoalesced.WithLabelValues(req.Endpoint).Inc()
	}
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			resp.Status = 499
			resp.ErrorCode = CodeInternal
			resp.ErrorMessage = "request cancelled"
			return resp
		case errors.Is(err, errTransform):
			logging.Err(err).Str("endpoint", req.Endpoint).Msg("transformer failed")
			resp.Status = 500
			resp.ErrorCode = CodeInternal
			resp.ErrorMessage = "response transformation failed"
			return resp
		default:
			return p.staleOr(resp, req.Endpoint, key, CodeUpstreamUnavailable, 502, "upstream unavailable")
		}
	}

	resp.Status = result.status
	resp.Body = result.body
	resp.ContentType = result.contentType
	if result.transformed {
		resp.TransformationsApplied = []string{"normalize"}
	}
	if result.status >= 400 {
		resp.ErrorCode = CodeUpstreamError
		resp.ErrorMessage = fmt.Sprintf("upstream returned status %d", result.status)
	}
	return resp
}

// fetchAndStore is the single-flight compute: fetch, report the
// breaker outcome, transform, pick a TTL, and write back.
func (p *Pipeline) fetchAndStore(ctx context.Context, req *Request, key string, b *breaker.Breaker) (*fetchResult, error) {
	fetchStart := time.Now()
	uresp, err := p.fetcher.Fetch(ctx, req.Endpoint, req.Params, nil)
	metrics.UpstreamDuration.WithLabelValues(req.Endpoint).Observe(time.Since(fetchStart).Seconds())
	if err != nil {
		b.Failure()
		metrics.UpstreamRequests.WithLabelValues(req.Endpoint, "failure").Inc()
		return nil, err
	}
	b.Success()
	metrics.UpstreamRequests.WithLabelValues(req.Endpoint, "success").Inc()

	// Upstream 4xx answers pass through verbatim and are not cached.
	if uresp.Status >= 400 {
		return &fetchResult{status: uresp.Status, body: uresp.Body, contentType: uresp.ContentType}, nil
	}

	fn, registered := p.transforms.Lookup(req.Endpoint)
	normalized, err := fn(uresp.Body, time.Now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errTransform, err)
	}
	contentType := "application/json"
	if !registered && uresp.ContentType != "" {
		contentType = uresp.ContentType
	}

	ttl := p.ttl.Select(req.Endpoint, p.agg.HitsPerHour(req.Endpoint), int64(len(normalized)))
	p.cache.Put(key, normalized, contentType, ttl)

	return &fetchResult{status: 200, body: normalized, contentType: contentType, transformed: registered}, nil
}

// staleOr serves an expired entry when the upstream is unreachable,
// falling back to the given error status. Stale entries are never
// promoted and their TTL is never extended.
func (p *Pipeline) staleOr(resp *Response, endpoint, key, code string, failStatus int, message string) *Response {
	if entry, level, ok := p.cache.GetStale(key); ok {
		p.agg.RecordStaleServe(endpoint)
		metrics.CacheStaleServes.WithLabelValues(endpoint).Inc()
		resp.Status = 200
		resp.Body = entry.Body
		resp.ContentType = entry.ContentType
		resp.CacheStatus = CacheStale
		resp.CacheTier = level
		resp.CacheAge = entry.Age(time.Now())
		return resp
	}
	resp.Status = failStatus
	resp.ErrorCode = code
	resp.ErrorMessage = message
	return resp
}

// record publishes per-request metrics after the response is final.
func (p *Pipeline) record(endpoint string, resp *Response) {
	p.agg.RecordRequest(endpoint, resp.Status, resp.ProcessingTime, int64(len(resp.Body)))
	metrics.ProxyRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.Status)).Inc()
	metrics.ProxyRequestDuration.WithLabelValues(endpoint).Observe(resp.ProcessingTime.Seconds())
	metrics.ProxyBytesTransferred.WithLabelValues(endpoint).Add(float64(len(resp.Body)))
}

func tierLabel(level int) string {
	switch level {
	case 1:
		return "l1"
	case 2:
		return "l2"
	case 3:
		return "l3"
	default:
		return "unknown"
	}
}
