// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

// Package config loads and validates the proxy configuration from
// layered sources: built-in defaults, an optional YAML file, and
// FAIRWAY_-prefixed environment variables, in ascending precedence.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Upstream    UpstreamConfig    `koanf:"upstream"`
	Cache       CacheConfig       `koanf:"cache"`
	Session     SessionConfig     `koanf:"session"`
	RateLimit   RateLimitConfig   `koanf:"rate_limit"`
	Breaker     BreakerConfig     `koanf:"breaker"`
	TTL         TTLConfig         `koanf:"ttl"`
	Persistence PersistenceConfig `koanf:"persistence"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Environment     string        `koanf:"environment"` // "development" or "production"
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	CORSOrigins []string `koanf:"cors_origins"`

	// Coarse per-IP limiter in front of the pipeline's session limiter
	IPRateLimitRequests int           `koanf:"ip_rate_limit_requests"`
	IPRateLimitWindow   time.Duration `koanf:"ip_rate_limit_window"`
	IPRateLimitDisabled bool          `koanf:"ip_rate_limit_disabled"`
}

// UpstreamConfig configures the golf data feed client.
type UpstreamConfig struct {
	BaseURL           string        `koanf:"base_url"`
	APIKey            string        `koanf:"api_key"`
	APIKeyParam       string        `koanf:"api_key_param"`
	MaxRetries        int           `koanf:"max_retries"`
	BaseDelay         time.Duration `koanf:"base_delay"`
	PerAttemptTimeout time.Duration `koanf:"per_attempt_timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
}

// TierConfig configures one cache tier.
type TierConfig struct {
	Enabled    bool          `koanf:"enabled"`
	MaxSize    int           `koanf:"max_size"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
	Policy     string        `koanf:"policy"` // "lru", "fifo", "lfu"
}

// CacheConfig configures the three tiers and the janitor.
type CacheConfig struct {
	L1              TierConfig    `koanf:"l1"`
	L2              TierConfig    `koanf:"l2"`
	L3              TierConfig    `koanf:"l3"`
	JanitorInterval time.Duration `koanf:"janitor_interval"`
}

// SessionConfig configures the encrypted session envelope.
type SessionConfig struct {
	MasterKey   string        `koanf:"master_key"`
	IdleTimeout time.Duration `koanf:"idle_timeout"`
	MaxAge      time.Duration `koanf:"max_age"`
}

// LimitConfig is one rate limit window.
type LimitConfig struct {
	Requests    int           `koanf:"requests"`
	Window      time.Duration `koanf:"window"`
	MinRequests int           `koanf:"min_requests"`
	MaxRequests int           `koanf:"max_requests"`
}

// RateLimitConfig configures the per-session sliding-window limiter.
type RateLimitConfig struct {
	Default          LimitConfig            `koanf:"default"`
	Endpoints        map[string]LimitConfig `koanf:"endpoints"`
	CleanupInterval  time.Duration          `koanf:"cleanup_interval"`
	AdaptiveInterval time.Duration          `koanf:"adaptive_interval"`
}

// BreakerConfig configures per-endpoint circuit breakers.
type BreakerConfig struct {
	FailureThreshold int           `koanf:"failure_threshold"`
	OpenTimeout      time.Duration `koanf:"open_timeout"`
	MaxTrials        int           `koanf:"max_trials"`
	ResetThreshold   int           `koanf:"reset_threshold"`
}

// TTLConfig configures cache TTL selection by endpoint category.
type TTLConfig struct {
	Realtime  time.Duration `koanf:"realtime"`
	Dynamic   time.Duration `koanf:"dynamic"`
	Reference time.Duration `koanf:"reference"`
	Min       time.Duration `koanf:"min"`
	Max       time.Duration `koanf:"max"`
}

// PersistenceConfig configures the optional L3 journal.
type PersistenceConfig struct {
	Enabled bool   `koanf:"enabled"`
	Dir     string `koanf:"dir"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // "json" or "console"
	Caller bool   `koanf:"caller"`
}

// IsProduction reports whether the server runs with production
// hardening (secure cookies, mandatory secrets).
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Validate checks the configuration for fatal misconfiguration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Server.Environment {
	case "development", "production":
	default:
		return fmt.Errorf("server.environment %q must be development or production", c.Server.Environment)
	}

	for name, tier := range map[string]TierConfig{"l1": c.Cache.L1, "l2": c.Cache.L2, "l3": c.Cache.L3} {
		if !tier.Enabled {
			continue
		}
		if tier.MaxSize <= 0 {
			return fmt.Errorf("cache.%s.max_size must be positive", name)
		}
		if tier.DefaultTTL <= 0 {
			return fmt.Errorf("cache.%s.default_ttl must be positive", name)
		}
		switch tier.Policy {
		case "lru", "fifo", "lfu":
		default:
			return fmt.Errorf("cache.%s.policy %q must be lru, fifo, or lfu", name, tier.Policy)
		}
	}
	if !c.Cache.L1.Enabled && !c.Cache.L2.Enabled && !c.Cache.L3.Enabled {
		return fmt.Errorf("at least one cache tier must be enabled")
	}

	if c.RateLimit.Default.Requests <= 0 || c.RateLimit.Default.Window <= 0 {
		return fmt.Errorf("rate_limit.default requires positive requests and window")
	}

	if c.IsProduction() {
		if c.Session.MasterKey == "" {
			return fmt.Errorf("session.master_key is required in production")
		}
		if c.Upstream.BaseURL == "" {
			return fmt.Errorf("upstream.base_url is required in production")
		}
		if c.Upstream.APIKey == "" {
			return fmt.Errorf("upstream.api_key is required in production")
		}
	}

	if c.Persistence.Enabled && c.Persistence.Dir == "" {
		return fmt.Errorf("persistence.dir is required when persistence is enabled")
	}

	return nil
}
