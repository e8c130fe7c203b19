// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/fairwaylabs/fairway/internal/logging"
)

type contextKey string

const RequestIDKey contextKey = "request_id"

// RequestID middleware generates a unique ID for each request and adds
// it to both the response header and request context. It also
// populates request_id and correlation_id in the logging context for
// distributed tracing, honoring inbound X-Correlation-ID so a caller
// chain keeps one correlation across hops.
func RequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Honor an ID from an upstream proxy when present
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		ctx = logging.ContextWithRequestID(ctx, requestID)

		if correlationID := r.Header.Get("X-Correlation-ID"); correlationID != "" {
			ctx = logging.ContextWithCorrelationID(ctx, correlationID)
			w.Header().Set("X-Correlation-ID", correlationID)
		} else {
			ctx = logging.ContextWithNewCorrelationID(ctx)
			if id := logging.CorrelationIDFromContext(ctx); id != "" {
				w.Header().Set("X-Correlation-ID", id)
			}
		}

		next(w, r.WithContext(ctx))
	}
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
