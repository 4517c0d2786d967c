// Aniscope - Anime Discovery and Preference Ranking
// Copyright 2026 Aniscope Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aniscope/aniscope

// Package config loads application configuration with layered sources:
// built-in defaults, an optional YAML file, then environment variables.
// Precedence: ENV > file > defaults.
package config

import (
	"fmt"
	"time"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/aniscope/config.yaml",
	"/etc/aniscope/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "ANISCOPE_CONFIG_PATH"

// EnvPrefix is the prefix for configuration environment variables.
// Double underscores separate nesting levels: ANISCOPE_SERVER__PORT=8080
// maps to server.port.
const EnvPrefix = "ANISCOPE_"

// Config is the root application configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
	Catalog CatalogConfig `koanf:"catalog"`
	Cache   CacheConfig   `koanf:"cache"`
	Scoring ScoringConfig `koanf:"scoring"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout" validate:"min=1s"`

	// CORSOrigins lists allowed browser origins. The browser front end is
	// the primary consumer, so CORS is on by default.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitReqs requests per RateLimitWindow per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"min=1s"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// CatalogConfig configures the upstream GraphQL catalog/ratings client.
type CatalogConfig struct {
	// URL is the GraphQL endpoint serving both catalog and ratings queries.
	URL     string        `koanf:"url" validate:"required,url"`
	Timeout time.Duration `koanf:"timeout" validate:"min=1s"`

	// MaxRetries bounds retry attempts on transient failures; delays grow
	// exponentially from RetryBaseDelay.
	MaxRetries     int           `koanf:"max_retries" validate:"min=0,max=10"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay" validate:"min=10ms"`

	// RequestsPerMinute throttles upstream calls (the public AniList API
	// allows 90/min).
	RequestsPerMinute int `koanf:"requests_per_minute" validate:"min=1"`

	// MaxRatingPages caps sequential pagination when fetching a user's
	// complete rating history.
	MaxRatingPages int `koanf:"max_rating_pages" validate:"min=1,max=50"`

	// PerPage is the page size requested from the upstream API.
	PerPage int `koanf:"per_page" validate:"min=1,max=50"`
}

// CacheConfig configures the durable cache store.
type CacheConfig struct {
	// Path is the on-disk badger directory. Ignored when InMemory is set.
	Path string `koanf:"path"`

	// InMemory runs badger without persistence; used in tests.
	InMemory bool `koanf:"in_memory"`

	// TTL is the entry validity window. Expired entries are deleted on
	// read, not proactively swept.
	TTL time.Duration `koanf:"ttl" validate:"min=1m"`

	// MaxEntryBytes is the serialized size ceiling per entry. Catalog and
	// ratings payloads over the ceiling are skipped; profile payloads are
	// retried in reduced form.
	MaxEntryBytes int `koanf:"max_entry_bytes" validate:"min=1024"`

	// MaxCapacityBytes is the storage budget across all entries. Writes
	// that would exceed it trigger oldest-first eviction.
	MaxCapacityBytes int64 `koanf:"max_capacity_bytes" validate:"min=65536"`

	// EvictFraction is the share of same-prefix entries removed, oldest
	// first, when the capacity budget is exceeded.
	EvictFraction float64 `koanf:"evict_fraction" validate:"gt=0,lte=0.5"`

	// Compression selects the payload codec: "deflate" or "none".
	Compression string `koanf:"compression" validate:"oneof=deflate none"`

	// TopContributors bounds contributing-item provenance lists before
	// persistence.
	TopContributors int `koanf:"top_contributors" validate:"min=1"`
}

// TargetRange is a normalization target range. Asymmetric ranges are allowed.
type TargetRange struct {
	Min float64 `koanf:"min"`
	Max float64 `koanf:"max"`
}

// ScoringConfig configures the preference aggregator and scorer. The cap and
// range constants are configurable rather than hard-coded, with the
// historically observed values as defaults.
type ScoringConfig struct {
	// MaxBoostPercent is the popularity-adjustment ceiling: categories
	// backed by the most items are boosted by up to this percentage.
	MaxBoostPercent float64 `koanf:"max_boost_percent" validate:"min=0,max=100"`

	// Per-category normalization target ranges.
	GenreRange    TargetRange `koanf:"genre_range"`
	StudioRange   TargetRange `koanf:"studio_range"`
	DirectorRange TargetRange `koanf:"director_range"`
	TagRange      TargetRange `koanf:"tag_range"`

	// Per-category modifier caps, as a percentage of an item's base score.
	StudioCapPercent   float64 `koanf:"studio_cap_percent" validate:"min=0,max=100"`
	DirectorCapPercent float64 `koanf:"director_cap_percent" validate:"min=0,max=100"`
	GenreCapPercent    float64 `koanf:"genre_cap_percent" validate:"min=0,max=100"`
	TagCapPercent      float64 `koanf:"tag_cap_percent" validate:"min=0,max=100"`

	// Seed drives the top-pick interleaving order in default ranking.
	Seed int64 `koanf:"seed"`
}

// defaultConfig returns a Config with all defaults applied. Defaults load
// first, then file and env overrides.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8480,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   120,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Catalog: CatalogConfig{
			URL:               "https://graphql.anilist.co",
			Timeout:           15 * time.Second,
			MaxRetries:        3,
			RetryBaseDelay:    500 * time.Millisecond,
			RequestsPerMinute: 90,
			MaxRatingPages:    10,
			PerPage:           50,
		},
		Cache: CacheConfig{
			Path:             "/data/aniscope/cache",
			InMemory:         false,
			TTL:              24 * time.Hour,
			MaxEntryBytes:    50 * 1024,
			MaxCapacityBytes: 5 * 1024 * 1024, // mirrors the ~5MB origin quota of the web client
			EvictFraction:    0.25,
			Compression:      "deflate",
			TopContributors:  10,
		},
		Scoring: ScoringConfig{
			MaxBoostPercent:    20,
			GenreRange:         TargetRange{Min: -10, Max: 10},
			StudioRange:        TargetRange{Min: -20, Max: 20},
			DirectorRange:      TargetRange{Min: -20, Max: 20},
			TagRange:           TargetRange{Min: -10, Max: 10},
			StudioCapPercent:   20,
			DirectorCapPercent: 20,
			GenreCapPercent:    10,
			TagCapPercent:      15,
			Seed:               42,
		},
	}
}

// Validate checks the configuration for structural and cross-field errors.
func (c *Config) Validate() error {
	if err := validateStruct(c); err != nil {
		return err
	}

	for name, r := range map[string]TargetRange{
		"scoring.genre_range":    c.Scoring.GenreRange,
		"scoring.studio_range":   c.Scoring.StudioRange,
		"scoring.director_range": c.Scoring.DirectorRange,
		"scoring.tag_range":      c.Scoring.TagRange,
	} {
		if r.Min > 0 || r.Max < 0 {
			return fmt.Errorf("%s must span zero (got [%v, %v])", name, r.Min, r.Max)
		}
		if r.Min == 0 && r.Max == 0 {
			return fmt.Errorf("%s must not be empty", name)
		}
	}

	if !c.Cache.InMemory && c.Cache.Path == "" {
		return fmt.Errorf("cache.path is required unless cache.in_memory is set")
	}

	return nil
}
