// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

package api

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/fairwaylabs/fairway/internal/cache"
	"github.com/fairwaylabs/fairway/internal/logging"
	"github.com/fairwaylabs/fairway/internal/metrics"
	"github.com/fairwaylabs/fairway/internal/middleware"
	"github.com/fairwaylabs/fairway/internal/models"
	"github.com/fairwaylabs/fairway/internal/proxy"
	"github.com/fairwaylabs/fairway/internal/session"
	"github.com/fairwaylabs/fairway/internal/validation"
)

// SessionCookieName mirrors the X-Session-ID header for browser
// clients.
const SessionCookieName = "golf_session"

// maxRequestBodySize bounds POST /proxy bodies.
const maxRequestBodySize = 1 << 20 // 1 MiB

// cacheOverrideParam is stripped from GET query params before they are
// forwarded upstream.
const cacheOverrideParam = "cacheOverride"

// Handler contains dependencies for the API handlers.
type Handler struct {
	pipeline      *proxy.Pipeline
	cache         *cache.Tiered
	agg           *metrics.Aggregator
	version       string
	secureCookies bool
	startTime     time.Time
}

// NewHandler creates the API handler.
func NewHandler(pipeline *proxy.Pipeline, tiered *cache.Tiered, agg *metrics.Aggregator, version string, secureCookies bool) *Handler {
	return &Handler{
		pipeline:      pipeline,
		cache:         tiered,
		agg:           agg,
		version:       version,
		secureCookies: secureCookies,
		startTime:     time.Now(),
	}
}

// ProxyGET handles GET /proxy/{endpoint}. Query parameters are
// forwarded upstream; the cacheOverride parameter is consumed by the
// proxy itself.
func (h *Handler) ProxyGET(w http.ResponseWriter, r *http.Request) {
	endpoint := chi.URLParam(r, "endpoint")
	if !validation.ValidateEndpointName(endpoint) {
		h.respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid endpoint name", nil)
		return
	}

	params := make(map[string]string)
	cacheOverride := false
	for name, values := range r.URL.Query() {
		if len(values) == 0 {
			continue
		}
		if name == cacheOverrideParam {
			cacheOverride, _ = strconv.ParseBool(values[0])
			continue
		}
		params[name] = values[0]
	}

	h.proxy(w, r, endpoint, params, cacheOverride, "")
}

// ProxyPOST handles POST /proxy/{endpoint} with a JSON body carrying
// parameters and options.
func (h *Handler) ProxyPOST(w http.ResponseWriter, r *http.Request) {
	endpoint := chi.URLParam(r, "endpoint")
	if !validation.ValidateEndpointName(endpoint) {
		h.respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid endpoint name", nil)
		return
	}

	var body models.ProxyRequestBody
	if err := decodeJSONBody(w, r, &body); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed request body", nil)
		return
	}
	if verr := validation.ValidateStruct(&body); verr != nil {
		h.respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", verr.Error(), verr.Details())
		return
	}
	for _, name := range body.Transformations {
		if name != "normalize" {
			h.respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR",
				fmt.Sprintf("unknown transformation %q", name), nil)
			return
		}
	}

	h.proxy(w, r, endpoint, body.Parameters, body.CacheOverride, body.OutputFormat)
}

// proxy runs the pipeline and writes the response envelope, headers,
// and session cookie.
func (h *Handler) proxy(w http.ResponseWriter, r *http.Request, endpoint string, params map[string]string, cacheOverride bool, outputFormat string) {
	ip := clientIP(r)
	presp := h.pipeline.Process(r.Context(), &proxy.Request{
		Endpoint:      endpoint,
		Params:        params,
		SessionToken:  h.sessionToken(r),
		Fingerprint:   session.Fingerprint(r.UserAgent(), ip),
		ClientIP:      ip,
		CacheOverride: cacheOverride,
	})

	ctx := logging.ContextWithSessionID(r.Context(), presp.SessionID)
	logging.Ctx(ctx).Debug().
		Str("endpoint", endpoint).
		Int("status", presp.Status).
		Str("cache_status", presp.CacheStatus).
		Dur("duration", presp.ProcessingTime).
		Msg("proxied request")

	if presp.SessionToken != "" {
		w.Header().Set("X-Session-ID", presp.SessionToken)
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookieName,
			Value:    presp.SessionToken,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
			Secure:   h.secureCookies,
		})
	}
	w.Header().Set("X-Cache-Status", presp.CacheStatus)
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(presp.RateRemaining))
	if presp.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(presp.RetryAfter.Seconds()))))
	}

	// Raw output skips the envelope on success; errors keep it so the
	// client always gets a structured failure.
	if outputFormat == "raw" && presp.ErrorCode == "" {
		w.Header().Set("Content-Type", presp.ContentType)
		w.WriteHeader(presp.Status)
		_, _ = w.Write(presp.Body)
		return
	}

	h.writeEnvelope(w, r, presp)
}

// writeEnvelope renders the pipeline outcome as the API response
// envelope.
func (h *Handler) writeEnvelope(w http.ResponseWriter, r *http.Request, presp *proxy.Response) {
	env := models.APIResponse{
		Success: presp.ErrorCode == "",
		Metadata: models.Metadata{
			RequestID:              middleware.GetRequestID(r.Context()),
			Timestamp:              models.NewTimestamp(time.Now()),
			ProcessingTimeMS:       presp.ProcessingTime.Milliseconds(),
			TransformationsApplied: presp.TransformationsApplied,
			RateLimit:              &models.RateLimitMeta{Remaining: presp.RateRemaining},
		},
	}
	if presp.RetryAfter > 0 {
		env.Metadata.RateLimit.ResetTime = models.NewTimestamp(time.Now().Add(presp.RetryAfter))
	}

	switch presp.CacheStatus {
	case proxy.CacheHit:
		env.Metadata.Cached = "hit"
	case proxy.CacheStale:
		env.Metadata.Cached = "stale"
	}
	if env.Metadata.Cached != "" {
		age := presp.CacheAge.Seconds()
		env.Metadata.CacheAgeSeconds = &age
		env.Metadata.CacheTier = fmt.Sprintf("l%d", presp.CacheTier)
	}

	if presp.ErrorCode != "" {
		env.Error = &models.APIError{
			Code:    presp.ErrorCode,
			Message: presp.ErrorMessage,
		}
	}
	if len(presp.Body) > 0 && presp.ErrorCode == "" {
		if json.Valid(presp.Body) {
			env.Data = json.RawMessage(presp.Body)
		} else if quoted, err := json.Marshal(string(presp.Body)); err == nil {
			env.Data = quoted
		}
	}

	writeJSON(w, presp.Status, env)
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:    "ok",
		Version:   h.version,
		UptimeSec: int64(time.Since(h.startTime).Seconds()),
	})
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Stats())
}

// CacheInvalidate handles POST /api/v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	var req models.InvalidateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed request body", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		h.respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", verr.Error(), verr.Details())
		return
	}

	n, err := h.cache.Invalidate(req.Pattern)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid invalidation pattern", nil)
		return
	}
	metrics.CacheInvalidations.Add(float64(n))
	logging.Ctx(r.Context()).Info().
		Str("pattern", req.Pattern).
		Int("invalidated", n).
		Msg("cache invalidation")
	writeJSON(w, http.StatusOK, models.InvalidateResponse{Invalidated: n})
}

// MetricsSnapshot handles GET /api/v1/metrics/snapshot.
func (h *Handler) MetricsSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.agg.Snapshot())
}

// respondError writes an error envelope without running the pipeline.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	writeJSON(w, status, models.APIResponse{
		Success: false,
		Error:   &models.APIError{Code: code, Message: message, Details: details},
		Metadata: models.Metadata{
			RequestID: middleware.GetRequestID(r.Context()),
			Timestamp: models.NewTimestamp(time.Now()),
		},
	})
}

// sessionToken prefers the header over the cookie so API clients are
// not bound by stale browser state.
func (h *Handler) sessionToken(r *http.Request) string {
	if token := r.Header.Get("X-Session-ID"); token != "" {
		return token
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

// clientIP extracts the caller's IP. Behind chi's RealIP middleware
// RemoteAddr already reflects X-Forwarded-For.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// decodeJSONBody decodes a bounded JSON body, rejecting trailing
// garbage.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Err(err).Msg("response encoding failed")
	}
}
