// Fairway - Caching Reverse Proxy for Golf Data Feeds
// Copyright 2026 Fairway Labs
// SPDX-License-Identifier: MIT
// https://github.com/fairwaylabs/fairway

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"fairway.yaml",
	"fairway.yml",
	"/etc/fairway/config.yaml",
	"/etc/fairway/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "FAIRWAY_CONFIG_PATH"

// envPrefix namespaces all environment overrides.
const envPrefix = "FAIRWAY_"

// Default returns a Config with development defaults. Production
// deployments must supply the master key, upstream base URL, and API
// key.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                "0.0.0.0",
			Port:                8712,
			Environment:         "development",
			ShutdownTimeout:     10 * time.Second,
			CORSOrigins:         []string{},
			IPRateLimitRequests: 600,
			IPRateLimitWindow:   time.Minute,
		},
		Upstream: UpstreamConfig{
			BaseURL:           "",
			APIKey:            "",
			APIKeyParam:       "key",
			MaxRetries:        3,
			BaseDelay:         time.Second,
			PerAttemptTimeout: 30 * time.Second,
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Cache: CacheConfig{
			L1:              TierConfig{Enabled: true, MaxSize: 1000, DefaultTTL: 5 * time.Minute, Policy: "lru"},
			L2:              TierConfig{Enabled: true, MaxSize: 5000, DefaultTTL: 30 * time.Minute, Policy: "fifo"},
			L3:              TierConfig{Enabled: true, MaxSize: 20000, DefaultTTL: 24 * time.Hour, Policy: "lfu"},
			JanitorInterval: time.Minute,
		},
		Session: SessionConfig{
			MasterKey:   "",
			IdleTimeout: 30 * time.Minute,
			MaxAge:      7 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Default:          LimitConfig{Requests: 100, Window: time.Minute},
			Endpoints:        map[string]LimitConfig{},
			CleanupInterval:  time.Minute,
			AdaptiveInterval: 30 * time.Second,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			OpenTimeout:      60 * time.Second,
			MaxTrials:        5,
			ResetThreshold:   3,
		},
		TTL: TTLConfig{
			Realtime:  2 * time.Minute,
			Dynamic:   20 * time.Minute,
			Reference: 6 * time.Hour,
			Min:       30 * time.Second,
			Max:       24 * time.Hour,
		},
		Persistence: PersistenceConfig{
			Enabled: false,
			Dir:     "/data/fairway/journal",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// and FAIRWAY_ environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration invalid: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first existing config file path.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// configSections maps env segments back to koanf paths. Ordered so
// rate_limit matches before a hypothetical "rate" section would.
var configSections = []string{
	"rate_limit", "server", "upstream", "cache", "session",
	"breaker", "ttl", "persistence", "logging",
}

// cacheSubsections are the nested tier blocks under cache.
var cacheSubsections = []string{"l1", "l2", "l3"}

// envTransformFunc maps FAIRWAY_SECTION_FIELD_NAME to
// section.field_name, e.g. FAIRWAY_RATE_LIMIT_CLEANUP_INTERVAL ->
// rate_limit.cleanup_interval and FAIRWAY_CACHE_L1_MAX_SIZE ->
// cache.l1.max_size.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	for _, section := range configSections {
		if !strings.HasPrefix(key, section+"_") {
			continue
		}
		rest := key[len(section)+1:]
		if section == "cache" {
			for _, sub := range cacheSubsections {
				if strings.HasPrefix(rest, sub+"_") {
					return section + "." + sub + "." + rest[len(sub)+1:]
				}
			}
		}
		if section == "rate_limit" {
			if strings.HasPrefix(rest, "default_") {
				return section + ".default." + rest[len("default_"):]
			}
		}
		return section + "." + rest
	}
	return key
}

// sliceConfigPaths are parsed from comma-separated env strings.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated env values into slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}
