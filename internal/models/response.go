// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

// Package models defines the wire types of the proxy's HTTP surface.
package models

import (
	"time"

	json "github.com/goccy/go-json"
)

// APIResponse is the envelope for every proxy response, success or
// error.
//
// Example success:
//
//	{
//	  "success": true,
//	  "data": {"items": [...], "metadata": {"count": 3, "transformedAt": "..."}},
//	  "metadata": {
//	    "requestId": "2f9d...",
//	    "timestamp": "2026-04-12T18:30:00Z",
//	    "processingTime": 12,
//	    "cached": "hit",
//	    "cacheTier": "l1",
//	    "rateLimit": {"remaining": 97}
//	  }
//	}
//
// Example error:
//
//	{
//	  "success": false,
//	  "error": {"code": "RATE_LIMITED", "message": "rate limit exceeded"},
//	  "metadata": {"requestId": "2f9d...", "timestamp": "...", "processingTime": 0}
//	}
type APIResponse struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data,omitempty"`
	Error    *APIError       `json:"error,omitempty"`
	Metadata Metadata        `json:"metadata"`
}

// APIError carries a sanitized error to the client. Message never
// contains API keys, internal paths, or stack traces.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Metadata is attached to every response.
type Metadata struct {
	RequestID        string   `json:"requestId"`
	Timestamp        string   `json:"timestamp"`
	ProcessingTimeMS int64    `json:"processingTime"`
	Cached           string   `json:"cached,omitempty"` // "hit" or "stale"
	CacheAgeSeconds  *float64 `json:"cacheAge,omitempty"`
	CacheTier        string   `json:"cacheTier,omitempty"`

	TransformationsApplied []string       `json:"transformationsApplied,omitempty"`
	RateLimit              *RateLimitMeta `json:"rateLimit,omitempty"`
}

// RateLimitMeta reports the caller's remaining budget.
type RateLimitMeta struct {
	Remaining int    `json:"remaining"`
	ResetTime string `json:"resetTime,omitempty"`
}

// ProxyRequestBody is the POST /proxy/{endpoint} payload.
type ProxyRequestBody struct {
	Parameters      map[string]string `json:"parameters" validate:"dive,keys,max=64,endkeys,max=1024"`
	Transformations []string          `json:"transformations,omitempty" validate:"max=8,dive,max=64"`
	OutputFormat    string            `json:"outputFormat,omitempty" validate:"omitempty,oneof=json raw"`
	CacheOverride   bool              `json:"cacheOverride,omitempty"`
}

// InvalidateRequest is the POST /api/v1/cache/invalidate payload.
type InvalidateRequest struct {
	Pattern string `json:"pattern" validate:"required,min=1,max=256"`
}

// InvalidateResponse reports the number of unique keys removed.
type InvalidateResponse struct {
	Invalidated int `json:"invalidated"`
}

// HealthResponse is the GET /healthz payload.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version,omitempty"`
	UptimeSec int64  `json:"uptimeSeconds"`
}

// NewTimestamp renders t in the envelope's timestamp format.
func NewTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
