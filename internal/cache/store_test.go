// Aniscope - Anime Discovery and Preference Ranking
// Copyright 2026 Aniscope Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aniscope/aniscope

package cache

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aniscope/aniscope/internal/config"
	"github.com/aniscope/aniscope/internal/logging"
	"github.com/aniscope/aniscope/internal/models"
)

// fakeClock is a manually advanced time source for expiry tests.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func testConfig() config.CacheConfig {
	return config.CacheConfig{
		InMemory:         true,
		TTL:              24 * time.Hour,
		MaxEntryBytes:    50 * 1024,
		MaxCapacityBytes: 5 * 1024 * 1024,
		EvictFraction:    0.25,
		Compression:      "deflate",
		TopContributors:  2,
	}
}

func newTestStore(t *testing.T, cfg config.CacheConfig) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
	store, err := New(cfg, logging.NewTestLogger(io.Discard), WithClock(clock.Now))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return store, clock
}

func catalogPage(ids ...int) models.CatalogPage {
	page := models.CatalogPage{
		PageInfo: models.PageInfo{Total: len(ids), CurrentPage: 1, PerPage: 50},
	}
	for _, id := range ids {
		page.Media = append(page.Media, models.CatalogItem{
			ID:    id,
			Title: models.Title{Romaji: fmt.Sprintf("Show %d", id)},
		})
	}
	return page
}

func TestStoreRoundTrip(t *testing.T) {
	store, _ := newTestStore(t, testConfig())

	key := CatalogKey{Season: "winter", Year: 2026, Page: 1, PerPage: 50}
	saved := catalogPage(100, 200, 300)
	store.Save(key, saved)

	var got models.CatalogPage
	if !store.Get(key, &got) {
		t.Fatal("Get() = miss, want hit")
	}
	if len(got.Media) != 3 {
		t.Fatalf("got %d media entries, want 3", len(got.Media))
	}
	if got.Media[0].ID != 100 || got.Media[0].Title.Romaji != "Show 100" {
		t.Errorf("first entry = %+v, want ID 100 / Show 100", got.Media[0])
	}
}

func TestStoreMissOnUnknownKey(t *testing.T) {
	store, _ := newTestStore(t, testConfig())

	var got models.CatalogPage
	if store.Get(CatalogKey{Season: "fall", Year: 2025, Page: 1, PerPage: 50}, &got) {
		t.Error("Get() = hit for never-written key, want miss")
	}
}

func TestStoreExpiryDeletesOnRead(t *testing.T) {
	store, clock := newTestStore(t, testConfig())

	key := RatingsKey{UserID: 9, Page: 1, PerPage: 50}
	store.Save(key, models.RatingsPage{
		MediaList: []models.RatedItem{{ItemID: 1, Score: 9}},
	})

	var got models.RatingsPage
	if !store.Get(key, &got) {
		t.Fatal("Get() before expiry = miss, want hit")
	}

	clock.Advance(24*time.Hour + time.Minute)
	if store.Get(key, &got) {
		t.Fatal("Get() after TTL = hit, want miss")
	}

	// The expired entry must be gone, not merely hidden.
	clock.Advance(-25 * time.Hour)
	if store.Get(key, &got) {
		t.Error("expired entry was not deleted on read")
	}
}

func TestStoreEntryJustInsideTTL(t *testing.T) {
	store, clock := newTestStore(t, testConfig())

	key := ProfileKey{Username: "fresh"}
	store.Save(key, models.UserPreferenceProfile{Username: "fresh"})

	clock.Advance(24*time.Hour - time.Second)
	var got models.UserPreferenceProfile
	if !store.Get(key, &got) {
		t.Error("entry just inside the TTL window should still hit")
	}
}

func TestStoreShapeMismatchIsCorruption(t *testing.T) {
	store, _ := newTestStore(t, testConfig())

	// A ratings payload written under a catalog key must be rejected on
	// read-back, not silently decoded into the wrong type.
	key := CatalogKey{Season: "winter", Year: 2026, Page: 1, PerPage: 50}
	store.Save(key, models.RatingsPage{
		MediaList: []models.RatedItem{{ItemID: 1, Score: 8}},
	})

	var got models.CatalogPage
	if store.Get(key, &got) {
		t.Fatal("Get() = hit for mismatched payload shape, want miss")
	}

	// The corrupt entry is discarded, so a correct rewrite succeeds.
	store.Save(key, catalogPage(1))
	if !store.Get(key, &got) {
		t.Error("Get() after rewrite = miss, want hit")
	}
}

func TestStoreOversizeCatalogSkipped(t *testing.T) {
	cfg := testConfig()
	cfg.MaxEntryBytes = 1024
	cfg.Compression = "none"
	store, _ := newTestStore(t, cfg)

	page := catalogPage(1)
	page.Media[0].Description = strings.Repeat("x", 4096)

	key := CatalogKey{Season: "spring", Year: 2026, Page: 1, PerPage: 50}
	store.Save(key, page)

	var got models.CatalogPage
	if store.Get(key, &got) {
		t.Error("oversize catalog entry was stored, want skipped")
	}
}

func TestStoreOversizeProfileReduced(t *testing.T) {
	cfg := testConfig()
	cfg.MaxEntryBytes = 2048
	cfg.Compression = "none"
	cfg.TopContributors = 2
	store, _ := newTestStore(t, cfg)

	contributors := make([]models.ContributingItem, 8)
	for i := range contributors {
		contributors[i] = models.ContributingItem{
			Title:      fmt.Sprintf("Contributor %d", i),
			UserScore:  9,
			PointValue: 3,
			ImageURL:   "https://img.example/" + strings.Repeat("a", 400),
		}
	}
	profile := models.UserPreferenceProfile{
		Username: "collector",
		Genres: []models.PreferenceScore{
			{Name: "Action", RawScore: 3.5, Count: 8, ContributingItems: contributors},
		},
	}

	key := ProfileKey{Username: "collector"}
	store.Save(key, profile)

	var got models.UserPreferenceProfile
	if !store.Get(key, &got) {
		t.Fatal("oversize profile was dropped, want reduced form stored")
	}
	if got.Genres[0].RawScore != 3.5 || got.Genres[0].Count != 8 {
		t.Errorf("reduction changed the score: %+v", got.Genres[0])
	}
	if len(got.Genres[0].ContributingItems) != 2 {
		t.Errorf("contributing items = %d, want trimmed to 2", len(got.Genres[0].ContributingItems))
	}
	for _, item := range got.Genres[0].ContributingItems {
		if item.ImageURL != "" {
			t.Errorf("image URL survived reduction: %q", item.ImageURL)
		}
	}
}

func TestStoreEvictsOldestUnderPressure(t *testing.T) {
	cfg := testConfig()
	cfg.MaxEntryBytes = 50 * 1024
	cfg.MaxCapacityBytes = 8 * 1024
	cfg.Compression = "none"
	store, clock := newTestStore(t, cfg)

	// Fill well past capacity with aging entries.
	for page := 1; page <= 12; page++ {
		p := catalogPage(page)
		p.Media[0].Description = strings.Repeat("d", 1024)
		store.Save(CatalogKey{Season: "winter", Year: 2026, Page: page, PerPage: 50}, p)
		clock.Advance(time.Minute)
	}

	var got models.CatalogPage
	oldest := CatalogKey{Season: "winter", Year: 2026, Page: 1, PerPage: 50}
	newest := CatalogKey{Season: "winter", Year: 2026, Page: 12, PerPage: 50}

	if store.Get(oldest, &got) {
		t.Error("oldest entry survived eviction, want evicted first")
	}
	if !store.Get(newest, &got) {
		t.Error("newest entry was evicted, want retained")
	}
}

func TestStoreEvictionScopedToNamespace(t *testing.T) {
	cfg := testConfig()
	cfg.MaxCapacityBytes = 8 * 1024
	cfg.Compression = "none"
	store, clock := newTestStore(t, cfg)

	// An old profile entry must survive catalog-driven eviction.
	store.Save(ProfileKey{Username: "keeper"}, models.UserPreferenceProfile{Username: "keeper"})
	clock.Advance(time.Hour)

	for page := 1; page <= 12; page++ {
		p := catalogPage(page)
		p.Media[0].Description = strings.Repeat("d", 1024)
		store.Save(CatalogKey{Season: "winter", Year: 2026, Page: page, PerPage: 50}, p)
		clock.Advance(time.Minute)
	}

	var profile models.UserPreferenceProfile
	if !store.Get(ProfileKey{Username: "keeper"}, &profile) {
		t.Error("profile entry was evicted by catalog-namespace pressure")
	}
}

func TestStoreDeleteAndClear(t *testing.T) {
	store, _ := newTestStore(t, testConfig())

	k1 := ProfileKey{Username: "a"}
	k2 := ProfileKey{Username: "b"}
	store.Save(k1, models.UserPreferenceProfile{Username: "a"})
	store.Save(k2, models.UserPreferenceProfile{Username: "b"})

	if err := store.Delete(k1); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	var got models.UserPreferenceProfile
	if store.Get(k1, &got) {
		t.Error("deleted entry still readable")
	}
	if !store.Get(k2, &got) {
		t.Error("Delete() removed an unrelated entry")
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if store.Get(k2, &got) {
		t.Error("entry survived Clear()")
	}
}

func TestStoreStats(t *testing.T) {
	store, clock := newTestStore(t, testConfig())

	firstWrite := clock.Now()
	store.Save(CatalogKey{Season: "winter", Year: 2026, Page: 1, PerPage: 50}, catalogPage(1))
	clock.Advance(time.Hour)
	store.Save(CatalogKey{Season: "winter", Year: 2026, Page: 2, PerPage: 50}, catalogPage(2))
	store.Save(ProfileKey{Username: "x"}, models.UserPreferenceProfile{Username: "x"})

	stats := store.Stats()
	if stats.Entries != 3 {
		t.Errorf("Entries = %d, want 3", stats.Entries)
	}
	if stats.ByNamespace["catalog"] != 2 {
		t.Errorf("catalog entries = %d, want 2", stats.ByNamespace["catalog"])
	}
	if stats.ByNamespace["profile"] != 1 {
		t.Errorf("profile entries = %d, want 1", stats.ByNamespace["profile"])
	}
	if stats.Bytes <= 0 {
		t.Errorf("Bytes = %d, want > 0", stats.Bytes)
	}
	if stats.Compression != "deflate" {
		t.Errorf("Compression = %q, want deflate", stats.Compression)
	}

	// Oldest reports the first write per namespace, not the latest.
	if got := stats.Oldest["catalog"]; got != firstWrite.Format(time.RFC3339) {
		t.Errorf("Oldest[catalog] = %q, want %q", got, firstWrite.Format(time.RFC3339))
	}
	if got := stats.Oldest["profile"]; got != clock.Now().Format(time.RFC3339) {
		t.Errorf("Oldest[profile] = %q, want %q", got, clock.Now().Format(time.RFC3339))
	}
}

func TestCodecRoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat(`{"title":"repetitive json"}`, 100))

	for _, name := range []string{"deflate", "none"} {
		t.Run(name, func(t *testing.T) {
			codec := newCodec(name)
			encoded, err := codec.Encode(payload)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			decoded, err := codec.Decode(encoded)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if string(decoded) != string(payload) {
				t.Error("round trip changed payload")
			}
			if name == "deflate" && len(encoded) >= len(payload) {
				t.Errorf("deflate did not shrink repetitive payload: %d >= %d", len(encoded), len(payload))
			}
		})
	}
}
