// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

// Package config loads Marquee configuration with Koanf v2.
//
// Loading order (later layers override earlier ones):
//  1. Built-in defaults (defaultConfig)
//  2. Optional YAML file (CONFIG_PATH, ./config.yaml, /etc/marquee/config.yaml)
//  3. Environment variables (TMDB_API_KEY, TMDB_RATE_BUDGET, SEARCH_DEBOUNCE, ...)
//
// The result is validated with struct tags (internal/validation) plus a few
// cross-field rules in Validate.
package config

import (
	"time"
)

// Config holds all Marquee configuration.
type Config struct {
	TMDB    TMDBConfig    `koanf:"tmdb"`
	Access  AccessConfig  `koanf:"access"`
	Search  SearchConfig  `koanf:"search"`
	Catalog CatalogConfig `koanf:"catalog"`
	Hero    HeroConfig    `koanf:"hero"`
	Logging LoggingConfig `koanf:"logging"`

	Diagnostics DiagnosticsConfig `koanf:"diagnostics"`
}

// TMDBConfig describes the upstream metadata service.
type TMDBConfig struct {
	// APIKey is the v3 key sent as the api_key query parameter.
	APIKey string `koanf:"api_key"`

	// ReadToken is the v4 read access token sent as a bearer header.
	// Takes precedence over APIKey when both are set.
	ReadToken string `koanf:"read_token"`

	BaseURL      string        `koanf:"base_url" validate:"required,http_url"`
	ImageBaseURL string        `koanf:"image_base_url" validate:"required,http_url"`
	Language     string        `koanf:"language"`
	Timeout      time.Duration `koanf:"timeout" validate:"gt=0"`
}

// AccessConfig governs the rate-limited access layer.
type AccessConfig struct {
	// RateBudget is the maximum number of requests per RateWindow.
	RateBudget int           `koanf:"rate_budget" validate:"gte=1,lte=1000"`
	RateWindow time.Duration `koanf:"rate_window" validate:"gt=0"`

	// RequestSpacing is the minimum gap between two dispatches.
	RequestSpacing time.Duration `koanf:"request_spacing" validate:"gte=0"`

	// DetailCacheTTL bounds how long detail lookups are reused. Zero disables the cache.
	DetailCacheTTL time.Duration `koanf:"detail_cache_ttl" validate:"gte=0"`

	BreakerEnabled      bool          `koanf:"breaker_enabled"`
	BreakerMinRequests  uint32        `koanf:"breaker_min_requests" validate:"gte=1"`
	BreakerFailureRatio float64       `koanf:"breaker_failure_ratio" validate:"gt=0,lte=1"`
	BreakerTimeout      time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

// SearchConfig tunes the search controller.
type SearchConfig struct {
	Debounce       time.Duration `koanf:"debounce" validate:"gte=0"`
	MinQueryLength int           `koanf:"min_query_length" validate:"gte=1"`
}

// CatalogConfig tunes catalog controllers.
type CatalogConfig struct {
	AutoRefresh     bool          `koanf:"auto_refresh"`
	RefreshInterval time.Duration `koanf:"refresh_interval" validate:"gt=0"`
}

// HeroConfig tunes the hero rotation controller.
type HeroConfig struct {
	AutoRotate       bool          `koanf:"auto_rotate"`
	RotationInterval time.Duration `koanf:"rotation_interval" validate:"gt=0"`
	MaxItems         int           `koanf:"max_items" validate:"gte=1,lte=50"`
	Source           string        `koanf:"source" validate:"oneof=trending popular upcoming"`
	Kind             string        `koanf:"kind" validate:"oneof=film series mixed"`
}

// DiagnosticsConfig controls the optional diagnostics HTTP listener
// (health, metrics and access-layer stats).
type DiagnosticsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr" validate:"required_if=Enabled true"`

	// CORSOrigins lists browser origins allowed to read diagnostics.
	CORSOrigins []string `koanf:"cors_origins"`

	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gte=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// LoggingConfig mirrors logging.Config for file/env loading.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}
