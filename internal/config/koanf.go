// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

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

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/marquee/config.yaml",
	"/etc/marquee/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with the documented defaults.
func defaultConfig() *Config {
	return &Config{
		TMDB: TMDBConfig{
			BaseURL:      "https://api.themoviedb.org/3",
			ImageBaseURL: "https://image.tmdb.org/t/p/",
			Language:     "en-US",
			Timeout:      15 * time.Second,
		},
		Access: AccessConfig{
			RateBudget:          40,
			RateWindow:          10 * time.Second,
			RequestSpacing:      250 * time.Millisecond,
			DetailCacheTTL:      10 * time.Minute,
			BreakerEnabled:      true,
			BreakerMinRequests:  10,
			BreakerFailureRatio: 0.6,
			BreakerTimeout:      30 * time.Second,
		},
		Search: SearchConfig{
			Debounce:       300 * time.Millisecond,
			MinQueryLength: 2,
		},
		Catalog: CatalogConfig{
			AutoRefresh:     true,
			RefreshInterval: 5 * time.Minute,
		},
		Hero: HeroConfig{
			AutoRotate:       true,
			RotationInterval: 8 * time.Second,
			MaxItems:         10,
			Source:           "trending",
			Kind:             "mixed",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Diagnostics: DiagnosticsConfig{
			Addr:              "127.0.0.1:9464",
			CORSOrigins:       []string{},
			RateLimitRequests: 300,
			RateLimitWindow:   time.Minute,
			ShutdownTimeout:   10 * time.Second,
		},
	}
}

// Default returns the built-in configuration without consulting files or the environment.
func Default() *Config {
	return defaultConfig()
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in that order of precedence (ENV > File > Defaults),
// then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first config file that exists, or "".
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

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	"tmdb_api_key":        "tmdb.api_key",
	"tmdb_read_token":     "tmdb.read_token",
	"tmdb_base_url":       "tmdb.base_url",
	"tmdb_image_base_url": "tmdb.image_base_url",
	"tmdb_language":       "tmdb.language",
	"tmdb_timeout":        "tmdb.timeout",

	"tmdb_rate_budget":      "access.rate_budget",
	"tmdb_rate_window":      "access.rate_window",
	"tmdb_request_spacing":  "access.request_spacing",
	"tmdb_detail_cache_ttl": "access.detail_cache_ttl",
	"tmdb_breaker_enabled":  "access.breaker_enabled",
	"tmdb_breaker_min":      "access.breaker_min_requests",
	"tmdb_breaker_ratio":    "access.breaker_failure_ratio",
	"tmdb_breaker_timeout":  "access.breaker_timeout",

	"search_debounce":         "search.debounce",
	"search_min_query_length": "search.min_query_length",

	"catalog_auto_refresh":     "catalog.auto_refresh",
	"catalog_refresh_interval": "catalog.refresh_interval",

	"hero_auto_rotate":       "hero.auto_rotate",
	"hero_rotation_interval": "hero.rotation_interval",
	"hero_max_items":         "hero.max_items",
	"hero_source":            "hero.source",
	"hero_kind":              "hero.kind",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"diagnostics_enabled":          "diagnostics.enabled",
	"diagnostics_addr":             "diagnostics.addr",
	"diagnostics_cors_origins":     "diagnostics.cors_origins",
	"diagnostics_rate_limit":       "diagnostics.rate_limit_requests",
	"diagnostics_rate_window":      "diagnostics.rate_limit_window",
	"diagnostics_shutdown_timeout": "diagnostics.shutdown_timeout",
}

// sliceConfigPaths are parsed as comma-separated lists when they arrive as strings.
var sliceConfigPaths = []string{
	"diagnostics.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Environment variables arrive as strings; YAML lists are
// left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
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
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unknown variables map to "" and are skipped so unrelated environment
// does not leak into the configuration.
//
// Examples:
//   - TMDB_API_KEY -> tmdb.api_key
//   - TMDB_RATE_BUDGET -> access.rate_budget
//   - HERO_ROTATION_INTERVAL -> hero.rotation_interval
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
