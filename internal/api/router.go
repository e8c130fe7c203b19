// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairwaylabs/fairway/internal/middleware"
)

// chiMiddleware adapts http.HandlerFunc middleware to Chi's
// func(http.Handler) http.Handler so it can be used with r.Use().
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Router composes the handler with the middleware stack.
type Router struct {
	handler *Handler
	chimw   *ChiMiddleware
}

// NewRouter creates a router from its parts. A nil middleware config
// gets the secure defaults.
func NewRouter(handler *Handler, cfg *ChiMiddlewareConfig) *Router {
	return &Router{
		handler: handler,
		chimw:   NewChiMiddleware(cfg),
	}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chimw.CORS()) // global so OPTIONS preflight works

	// Proxy endpoints. The coarse IP limiter backstops the pipeline's
	// per-session limiter.
	r.Route("/proxy", func(r chi.Router) {
		r.Use(router.chimw.RateLimitByIP())
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		r.Get("/{endpoint}", router.handler.ProxyGET)
		r.Post("/{endpoint}", router.handler.ProxyPOST)
	})

	// Ops endpoints.
	r.Get("/healthz", router.handler.Healthz)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chimw.RateLimitByIP())
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		r.Get("/cache/stats", router.handler.CacheStats)
		r.Post("/cache/invalidate", router.handler.CacheInvalidate)
		r.Get("/metrics/snapshot", router.handler.MetricsSnapshot)
	})

	// Prometheus exposition.
	r.Handle("/metrics", promhttp.Handler())

	return r
}
