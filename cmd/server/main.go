// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

// Fairway server: a caching, rate-limiting, fault-tolerant reverse
// proxy between untrusted clients and a third-party golf data feed.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fairwaylabs/fairway/internal/api"
	"github.com/fairwaylabs/fairway/internal/breaker"
	"github.com/fairwaylabs/fairway/internal/cache"
	"github.com/fairwaylabs/fairway/internal/config"
	"github.com/fairwaylabs/fairway/internal/logging"
	"github.com/fairwaylabs/fairway/internal/metrics"
	"github.com/fairwaylabs/fairway/internal/persist"
	"github.com/fairwaylabs/fairway/internal/proxy"
	"github.com/fairwaylabs/fairway/internal/ratelimit"
	"github.com/fairwaylabs/fairway/internal/session"
	"github.com/fairwaylabs/fairway/internal/supervisor"
	"github.com/fairwaylabs/fairway/internal/supervisor/services"
	"github.com/fairwaylabs/fairway/internal/transform"
	"github.com/fairwaylabs/fairway/internal/upstream"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Str("upstream", cfg.Upstream.BaseURL).
		Msg("starting fairway")

	// Session envelope. Development gets an ephemeral key so tokens do
	// not survive a restart; production requires a configured one.
	masterKey := cfg.Session.MasterKey
	if masterKey == "" {
		masterKey = ephemeralKey()
		logging.Warn().Msg("no session master key configured, using an ephemeral key (sessions reset on restart)")
	}
	sessions, err := session.NewEnvelope(masterKey, cfg.Session.IdleTimeout, cfg.Session.MaxAge)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize session envelope")
	}

	tiered, err := buildCache(cfg.Cache)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to build cache tiers")
	}

	// Optional L3 journal: replay survivors into the bottom tier, then
	// write through on every put.
	var journal *persist.Journal
	if cfg.Persistence.Enabled {
		journal, err = persist.Open(cfg.Persistence.Dir)
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to open cache journal")
		}
		defer func() {
			if err := journal.Close(); err != nil {
				logging.Error().Err(err).Msg("error closing cache journal")
			}
		}()
		restored, err := journal.Replay(tiered, tiered.Levels())
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to replay cache journal")
		}
		tiered.SetJournal(journal)
		logging.Info().Int("restored", restored).Msg("cache journal replayed")
	}

	limiter := ratelimit.NewLimiter(
		toLimit(cfg.RateLimit.Default),
		toEndpointLimits(cfg.RateLimit.Endpoints),
	)

	breakers := breaker.NewRegistry(breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		OpenTimeout:      cfg.Breaker.OpenTimeout,
		MaxTrials:        cfg.Breaker.MaxTrials,
		ResetThreshold:   cfg.Breaker.ResetThreshold,
	}, func(name string, from, to breaker.State) {
		metrics.CircuitBreakerState.WithLabelValues(name).Set(metrics.BreakerStateValue(to.String()))
		metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
	})

	agg := metrics.NewAggregator(5*time.Minute, 10)

	fetcher := upstream.NewClient(upstream.Config{
		BaseURL:           cfg.Upstream.BaseURL,
		APIKey:            cfg.Upstream.APIKey,
		APIKeyParam:       cfg.Upstream.APIKeyParam,
		MaxRetries:        cfg.Upstream.MaxRetries,
		BaseDelay:         cfg.Upstream.BaseDelay,
		PerAttemptTimeout: cfg.Upstream.PerAttemptTimeout,
		RequestsPerSecond: cfg.Upstream.RequestsPerSecond,
		Burst:             cfg.Upstream.Burst,
	})

	pipeline := proxy.NewPipeline(proxy.Deps{
		Sessions:   sessions,
		Limiter:    limiter,
		Breakers:   breakers,
		Cache:      tiered,
		Fetcher:    fetcher,
		Transforms: transform.Builtin(),
		TTL: proxy.NewTTLSelector(proxy.TTLConfig{
			Realtime:  cfg.TTL.Realtime,
			Dynamic:   cfg.TTL.Dynamic,
			Reference: cfg.TTL.Reference,
			Min:       cfg.TTL.Min,
			Max:       cfg.TTL.Max,
		}),
		Aggregator: agg,
	})

	handler := api.NewHandler(pipeline, tiered, agg, version, cfg.IsProduction())
	router := api.NewRouter(handler, &api.ChiMiddlewareConfig{
		CORSAllowedOrigins:   cfg.Server.CORSOrigins,
		CORSAllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		CORSAllowedHeaders:   []string{"Content-Type", "X-Session-ID", "X-Request-ID", "X-Correlation-ID"},
		CORSExposedHeaders:   []string{"X-Session-ID", "X-Request-ID", "X-Correlation-ID", "X-Cache-Status", "X-RateLimit-Remaining", "Retry-After"},
		CORSAllowCredentials: true,
		CORSMaxAge:           86400,
		RateLimitRequests:    cfg.Server.IPRateLimitRequests,
		RateLimitWindow:      cfg.Server.IPRateLimitWindow,
		RateLimitDisabled:    cfg.Server.IPRateLimitDisabled,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	lastEvictions := map[string]int64{}
	tree.AddMaintenanceService(services.NewMaintenanceService("cache-janitor", cfg.Cache.JanitorInterval, func(context.Context) {
		if removed := tiered.CleanupExpired(); removed > 0 {
			logging.Debug().Int("removed", removed).Msg("janitor swept expired entries")
		}
		for name, st := range tiered.Stats() {
			metrics.CacheEntries.WithLabelValues(name).Set(float64(st.Size))
			if delta := st.Evictions - lastEvictions[name]; delta > 0 {
				metrics.CacheEvictions.WithLabelValues(name).Add(float64(delta))
			}
			lastEvictions[name] = st.Evictions
		}
	}))
	tree.AddMaintenanceService(services.NewMaintenanceService("limiter-housekeeping", cfg.RateLimit.CleanupInterval, func(context.Context) {
		limiter.Cleanup()
	}))
	adjuster := ratelimit.NewAdjuster(limiter, agg)
	tree.AddMaintenanceService(services.NewMaintenanceService("adaptive-limits", cfg.RateLimit.AdaptiveInterval, func(context.Context) {
		metrics.RateLimitScale.Set(adjuster.Tick())
	}))

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("http server service added")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor tree error")
		os.Exit(1)
	}
	logging.Info().Msg("stopped gracefully")
}

// buildCache assembles the enabled tiers in L1, L2, L3 order.
func buildCache(cfg config.CacheConfig) (*cache.Tiered, error) {
	var tiers []*cache.Tier
	for _, tc := range []struct {
		name string
		cfg  config.TierConfig
	}{
		{"l1", cfg.L1},
		{"l2", cfg.L2},
		{"l3", cfg.L3},
	} {
		if !tc.cfg.Enabled {
			continue
		}
		policy, err := parsePolicy(tc.cfg.Policy)
		if err != nil {
			return nil, fmt.Errorf("tier %s: %w", tc.name, err)
		}
		tiers = append(tiers, cache.NewTier(tc.name, policy, tc.cfg.MaxSize, tc.cfg.DefaultTTL))
	}
	if len(tiers) == 0 {
		return nil, errors.New("no cache tiers enabled")
	}
	return cache.NewTiered(tiers...), nil
}

func parsePolicy(s string) (cache.Policy, error) {
	switch s {
	case "lru":
		return cache.PolicyLRU, nil
	case "fifo":
		return cache.PolicyFIFO, nil
	case "lfu":
		return cache.PolicyLFU, nil
	default:
		return "", fmt.Errorf("unknown eviction policy %q", s)
	}
}

func toLimit(lc config.LimitConfig) ratelimit.Limit {
	return ratelimit.Limit{
		Requests:    lc.Requests,
		Window:      lc.Window,
		MinRequests: lc.MinRequests,
		MaxRequests: lc.MaxRequests,
	}
}

func toEndpointLimits(m map[string]config.LimitConfig) map[string]ratelimit.Limit {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]ratelimit.Limit, len(m))
	for endpoint, lc := range m {
		out[endpoint] = toLimit(lc)
	}
	return out
}

// ephemeralKey generates a random development-only master key.
func ephemeralKey() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		logging.Fatal().Err(err).Msg("failed to generate ephemeral key")
	}
	return hex.EncodeToString(buf)
}
