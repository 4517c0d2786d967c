// Aniscope - Anime Discovery and Preference Ranking
// Copyright 2026 Aniscope Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aniscope/aniscope

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8480 {
		t.Errorf("Server.Port = %d, want 8480", cfg.Server.Port)
	}
	if cfg.Catalog.URL != "https://graphql.anilist.co" {
		t.Errorf("Catalog.URL = %q", cfg.Catalog.URL)
	}
	if cfg.Cache.TTL != 24*time.Hour {
		t.Errorf("Cache.TTL = %v, want 24h", cfg.Cache.TTL)
	}
	if cfg.Scoring.Seed != 42 {
		t.Errorf("Scoring.Seed = %d, want 42", cfg.Scoring.Seed)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ANISCOPE_SERVER__PORT", "9000")
	t.Setenv("ANISCOPE_CACHE__COMPRESSION", "none")
	t.Setenv("ANISCOPE_CATALOG__MAX_RETRIES", "5")
	t.Setenv("ANISCOPE_CATALOG__TIMEOUT", "45s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Cache.Compression != "none" {
		t.Errorf("Cache.Compression = %q, want none", cfg.Cache.Compression)
	}
	if cfg.Catalog.MaxRetries != 5 {
		t.Errorf("Catalog.MaxRetries = %d, want 5", cfg.Catalog.MaxRetries)
	}
	if cfg.Catalog.Timeout != 45*time.Second {
		t.Errorf("Catalog.Timeout = %v, want 45s", cfg.Catalog.Timeout)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 8888
cache:
  ttl: 12h
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8888 {
		t.Errorf("Server.Port = %d, want 8888 from file", cfg.Server.Port)
	}
	if cfg.Cache.TTL != 12*time.Hour {
		t.Errorf("Cache.TTL = %v, want 12h from file", cfg.Cache.TTL)
	}
	// Untouched keys keep their defaults.
	if cfg.Cache.Compression != "deflate" {
		t.Errorf("Cache.Compression = %q, want default deflate", cfg.Cache.Compression)
	}
}

func TestEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8888\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("ANISCOPE_SERVER__PORT", "9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want env override 9000", cfg.Server.Port)
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ANISCOPE_SERVER__PORT", "server.port"},
		{"ANISCOPE_CACHE__MAX_ENTRY_BYTES", "cache.max_entry_bytes"},
		{"ANISCOPE_CATALOG__RETRY_BASE_DELAY", "catalog.retry_base_delay"},
		{"ANISCOPE_LOGGING__LEVEL", "logging.level"},
	}
	for _, tt := range tests {
		if got := envTransform(tt.in); got != tt.want {
			t.Errorf("envTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantSub: "Port",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantSub: "Level",
		},
		{
			name:    "unknown compression codec",
			mutate:  func(c *Config) { c.Cache.Compression = "zstd" },
			wantSub: "Compression",
		},
		{
			name:    "genre range not spanning zero",
			mutate:  func(c *Config) { c.Scoring.GenreRange = TargetRange{Min: 5, Max: 10} },
			wantSub: "span zero",
		},
		{
			name:    "empty studio range",
			mutate:  func(c *Config) { c.Scoring.StudioRange = TargetRange{} },
			wantSub: "empty",
		},
		{
			name: "missing cache path without in-memory",
			mutate: func(c *Config) {
				c.Cache.Path = ""
				c.Cache.InMemory = false
			},
			wantSub: "cache.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Validate() error = %q, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := defaultConfig().Validate(); err != nil {
		t.Errorf("defaultConfig().Validate() = %v, want nil", err)
	}
}
