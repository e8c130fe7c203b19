// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

// Package upstream implements the HTTP client for the golf data feed,
// with retry, exponential backoff with jitter, and request pacing.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/fairwaylabs/fairway/internal/logging"
)

// maxBodySize bounds how much of an upstream response is read.
const maxBodySize = 16 * 1024 * 1024 // 16MB

// ErrUnavailable is returned when every attempt failed on a retryable
// condition (network error, timeout, HTTP 5xx, HTTP 429).
var ErrUnavailable = errors.New("upstream unavailable")

// Response is the outcome of a successful fetch. Status may still be a
// non-retryable client error; the caller decides how to surface it.
type Response struct {
	Status      int
	Body        []byte
	ContentType string
	Size        int64
}

// Config holds the upstream connection settings. The API key lives
// only here; it is appended to request URLs and never logged or used
// in cache keys.
type Config struct {
	BaseURL           string
	APIKey            string
	APIKeyParam       string // query parameter name, default "key"
	MaxRetries        int
	BaseDelay         time.Duration
	PerAttemptTimeout time.Duration
	RequestsPerSecond float64 // pacing toward the feed; 0 disables
	Burst             int
}

func (c Config) withDefaults() Config {
	if c.APIKeyParam == "" {
		c.APIKeyParam = "key"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.PerAttemptTimeout <= 0 {
		c.PerAttemptTimeout = 30 * time.Second
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	return c
}

// Client fetches endpoints from the golf data feed.
// Safe for concurrent use.
type Client struct {
	cfg    Config
	client *http.Client
	pacer  *rate.Limiter
}

// NewClient creates an upstream client from configuration.
func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()

	var pacer *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		pacer = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}

	return &Client{
		cfg: cfg,
		client: &http.Client{
			// Per-attempt deadlines come from the request context.
			Timeout: 0,
		},
		pacer: pacer,
	}
}

// Fetch performs the upstream request for one endpoint. Retryable
// failures (network error, timeout, 5xx, 429) are retried up to
// MaxRetries with backoff baseDelay * 2^attempt plus uniform jitter.
// Cancelling ctx aborts in-flight attempts and backoff waits.
func (c *Client) Fetch(ctx context.Context, endpoint string, params map[string]string, headers map[string]string) (*Response, error) {
	reqURL := c.buildURL(endpoint, params)
	logURL := c.sanitizeURL(reqURL)

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt - 1)
			logging.Debug().
				Str("endpoint", endpoint).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("retrying upstream fetch")
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		if c.pacer != nil {
			if err := c.pacer.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, retryable, err := c.attempt(ctx, reqURL, headers)
		if err == nil && resp != nil {
			return resp, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		logging.Warn().
			Err(err).
			Str("url", logURL).
			Int("attempt", attempt).
			Msg("upstream attempt failed")
	}

	return nil, fmt.Errorf("%w: %d attempts failed: %v", ErrUnavailable, c.cfg.MaxRetries+1, lastErr)
}

// attempt performs one HTTP round trip under the per-attempt timeout.
// The second return reports whether the failure is retryable.
func (c *Client) attempt(ctx context.Context, reqURL string, headers map[string]string) (*Response, bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.PerAttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// The caller cancelled; don't burn retries on it.
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("upstream request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("read upstream body: %w", err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	return &Response{
		Status:      resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        int64(len(body)),
	}, false, nil
}

// buildURL concatenates base and endpoint, appends sorted parameters,
// then appends the API key last.
func (c *Client) buildURL(endpoint string, params map[string]string) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimRight(c.cfg.BaseURL, "/"))
	sb.WriteString("/")
	sb.WriteString(strings.TrimLeft(endpoint, "/"))

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	sep := "?"
	for _, name := range names {
		sb.WriteString(sep)
		sb.WriteString(url.QueryEscape(name))
		sb.WriteString("=")
		sb.WriteString(url.QueryEscape(params[name]))
		sep = "&"
	}
	if c.cfg.APIKey != "" {
		sb.WriteString(sep)
		sb.WriteString(url.QueryEscape(c.cfg.APIKeyParam))
		sb.WriteString("=")
		sb.WriteString(url.QueryEscape(c.cfg.APIKey))
	}
	return sb.String()
}

// sanitizeURL strips the API key for log output.
func (c *Client) sanitizeURL(reqURL string) string {
	u, err := url.Parse(reqURL)
	if err != nil {
		return "(unparseable url)"
	}
	q := u.Query()
	if q.Has(c.cfg.APIKeyParam) {
		q.Set(c.cfg.APIKeyParam, "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// backoff computes the delay before retry attempt k.
func (c *Client) backoff(k int) time.Duration {
	delay := c.cfg.BaseDelay * time.Duration(1<<uint(k))
	jitter := time.Duration(rand.Int64N(int64(c.cfg.BaseDelay)))
	return delay + jitter
}

// sleep waits for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
