// Aniscope - Anime Discovery and Preference Ranking
// Copyright 2026 Aniscope Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aniscope/aniscope

package rank

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/aniscope/aniscope/internal/cache"
	"github.com/aniscope/aniscope/internal/catalog"
	"github.com/aniscope/aniscope/internal/config"
	"github.com/aniscope/aniscope/internal/logging"
	"github.com/aniscope/aniscope/internal/models"
)

// mockSource is a hand-rolled catalog.Source with call counters so tests can
// verify cache hits versus upstream fetches.
type mockSource struct {
	page  *models.CatalogPage
	users map[string]int
	pages map[int][]*models.RatingsPage

	seasonCalls  int
	resolveCalls int
	ratingCalls  int
}

func (m *mockSource) FetchSeasonPage(_ context.Context, _ string, _, _, _ int) (*models.CatalogPage, error) {
	m.seasonCalls++
	return m.page, nil
}

func (m *mockSource) ResolveUserID(_ context.Context, username string) (int, error) {
	m.resolveCalls++
	id, ok := m.users[username]
	if !ok {
		return 0, catalog.ErrUserNotFound
	}
	return id, nil
}

func (m *mockSource) FetchRatingsPage(_ context.Context, userID, page, _ int) (*models.RatingsPage, error) {
	m.ratingCalls++
	pages := m.pages[userID]
	if page > len(pages) {
		return &models.RatingsPage{MediaList: []models.RatedItem{}}, nil
	}
	return pages[page-1], nil
}

func testRankConfig() config.Config {
	return config.Config{
		Catalog: config.CatalogConfig{
			MaxRatingPages: 10,
			PerPage:        50,
		},
		Scoring: config.ScoringConfig{
			MaxBoostPercent:    20,
			GenreRange:         config.TargetRange{Min: -10, Max: 10},
			StudioRange:        config.TargetRange{Min: -20, Max: 20},
			DirectorRange:      config.TargetRange{Min: -20, Max: 20},
			TagRange:           config.TargetRange{Min: -10, Max: 10},
			StudioCapPercent:   20,
			DirectorCapPercent: 20,
			GenreCapPercent:    10,
			TagCapPercent:      15,
			Seed:               42,
		},
	}
}

func newRankTestStore(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.New(config.CacheConfig{
		InMemory:         true,
		TTL:              24 * time.Hour,
		MaxEntryBytes:    50 * 1024,
		MaxCapacityBytes: 5 * 1024 * 1024,
		EvictFraction:    0.25,
		Compression:      "deflate",
		TopContributors:  10,
	}, logging.NewTestLogger(io.Discard))
	if err != nil {
		t.Fatalf("cache.New() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func item(id int, title string, popularity int, genres ...string) models.CatalogItem {
	return models.CatalogItem{
		ID:         id,
		Title:      models.Title{English: title},
		Popularity: popularity,
		Genres:     genres,
		Format:     "TV",
	}
}

func ratingFor(id int, title string, stars float64, genres ...string) models.RatedItem {
	return models.RatedItem{
		ItemID: id,
		Score:  stars,
		Media: models.CatalogItem{
			ID:     id,
			Title:  models.Title{English: title},
			Genres: genres,
		},
	}
}

func newTestOrchestrator(t *testing.T, source *mockSource, withStore bool) *Orchestrator {
	t.Helper()
	var store *cache.Store
	if withStore {
		store = newRankTestStore(t)
	}
	return New(testRankConfig(), source, store, logging.NewTestLogger(io.Discard))
}

func defaultMock() *mockSource {
	return &mockSource{
		page: &models.CatalogPage{
			Media: []models.CatalogItem{
				item(1, "Popular Action", 100000, "Action"),
				item(2, "Mid Drama", 10000, "Drama"),
				item(3, "Niche Horror", 1000, "Horror"),
			},
			PageInfo: models.PageInfo{Total: 3, CurrentPage: 1, LastPage: 1, PerPage: 50},
		},
		users: map[string]int{"viewer": 42},
		pages: map[int][]*models.RatingsPage{
			42: {
				{
					MediaList: []models.RatedItem{
						ratingFor(900, "Rated Horror", 5, "Horror"),
						ratingFor(901, "Rated Action", 2, "Action"),
					},
					PageInfo: models.PageInfo{HasNextPage: false},
				},
			},
		},
	}
}

func TestRankingsUnpersonalized(t *testing.T) {
	source := defaultMock()
	o := newTestOrchestrator(t, source, false)

	result, err := o.Rankings(context.Background(), Request{Season: "WINTER", Year: 2026, Page: 1, PerPage: 50})
	if err != nil {
		t.Fatalf("Rankings() error = %v", err)
	}
	if len(result.Items) != 3 {
		t.Fatalf("got %d items, want 3", len(result.Items))
	}
	for _, it := range result.Items {
		if it.Scores != nil {
			t.Errorf("unpersonalized request produced scores for item %d", it.Item.ID)
		}
	}
	// Upstream popularity order is preserved.
	if result.Items[0].Item.ID != 1 {
		t.Errorf("first item = %d, want 1", result.Items[0].Item.ID)
	}
}

func TestRankingsPersonalized(t *testing.T) {
	source := defaultMock()
	o := newTestOrchestrator(t, source, false)

	result, err := o.Rankings(context.Background(), Request{
		Season: "WINTER", Year: 2026, Page: 1, PerPage: 50,
		Usernames: []string{"viewer"},
	})
	if err != nil {
		t.Fatalf("Rankings() error = %v", err)
	}

	for _, it := range result.Items {
		if it.Scores == nil {
			t.Fatalf("item %d missing scores", it.Item.ID)
		}
		if len(it.Scores.Users) != 1 || it.Scores.Users[0].Username != "viewer" {
			t.Errorf("item %d users = %+v", it.Item.ID, it.Scores.Users)
		}
		if it.Scores.Combined.Score == 0 && it.Item.Popularity > 0 {
			t.Errorf("item %d has zero combined score despite popularity", it.Item.ID)
		}
	}

	// One item must carry the user's top-pick marker and lead the order.
	if len(result.Items[0].TopPickFor) == 0 {
		t.Error("default order did not surface the top pick first")
	}
}

func TestRankingsUnknownUserDegrades(t *testing.T) {
	source := defaultMock()
	o := newTestOrchestrator(t, source, false)

	result, err := o.Rankings(context.Background(), Request{
		Season: "WINTER", Year: 2026, Page: 1, PerPage: 50,
		Usernames: []string{"ghost"},
	})
	if err != nil {
		t.Fatalf("Rankings() error = %v, want soft degradation", err)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("warnings = %v, want one entry for the unknown user", result.Warnings)
	}
	if len(result.Items) != 3 {
		t.Errorf("got %d items, want full unscored page", len(result.Items))
	}
}

func TestCatalogPageServedFromCache(t *testing.T) {
	source := defaultMock()
	o := newTestOrchestrator(t, source, true)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := o.CatalogPage(ctx, "WINTER", 2026, 1, 50); err != nil {
			t.Fatalf("CatalogPage() error = %v", err)
		}
	}
	if source.seasonCalls != 1 {
		t.Errorf("upstream fetches = %d, want 1 (cache must serve repeats)", source.seasonCalls)
	}
}

func TestCompleteRatingsMergesPagesAndCaches(t *testing.T) {
	source := defaultMock()
	source.pages[42] = []*models.RatingsPage{
		{MediaList: []models.RatedItem{ratingFor(1, "A", 5)}, PageInfo: models.PageInfo{HasNextPage: true}},
		{MediaList: []models.RatedItem{ratingFor(2, "B", 4)}, PageInfo: models.PageInfo{HasNextPage: false}},
	}
	o := newTestOrchestrator(t, source, true)

	ratings, err := o.CompleteRatings(context.Background(), "viewer")
	if err != nil {
		t.Fatalf("CompleteRatings() error = %v", err)
	}
	if len(ratings) != 2 {
		t.Fatalf("got %d merged ratings, want 2", len(ratings))
	}
	if source.ratingCalls != 2 {
		t.Errorf("rating fetches = %d, want 2", source.ratingCalls)
	}

	// Second call is served entirely from the merged snapshot.
	if _, err := o.CompleteRatings(context.Background(), "viewer"); err != nil {
		t.Fatalf("second CompleteRatings() error = %v", err)
	}
	if source.ratingCalls != 2 {
		t.Errorf("rating fetches after cached call = %d, want 2", source.ratingCalls)
	}
}

func TestCompleteRatingsPageCap(t *testing.T) {
	source := defaultMock()

	// Upstream claims more pages forever; the sequential fetch must stop at
	// the configured cap.
	endless := make([]*models.RatingsPage, 50)
	for i := range endless {
		endless[i] = &models.RatingsPage{
			MediaList: []models.RatedItem{ratingFor(1000+i, "Endless", 4)},
			PageInfo:  models.PageInfo{HasNextPage: true},
		}
	}
	source.pages[42] = endless
	o := newTestOrchestrator(t, source, false)

	ratings, err := o.CompleteRatings(context.Background(), "viewer")
	if err != nil {
		t.Fatalf("CompleteRatings() error = %v", err)
	}
	if source.ratingCalls != 10 {
		t.Errorf("rating fetches = %d, want 10 (hard page cap)", source.ratingCalls)
	}
	if len(ratings) != 10 {
		t.Errorf("merged ratings = %d, want 10", len(ratings))
	}
}

func TestRankingsGenreAndFormatFilters(t *testing.T) {
	source := defaultMock()
	source.page.Media[2].Format = "MOVIE"
	o := newTestOrchestrator(t, source, false)

	result, err := o.Rankings(context.Background(), Request{
		Season: "WINTER", Year: 2026, Page: 1, PerPage: 50,
		Genre: "action",
	})
	if err != nil {
		t.Fatalf("Rankings() error = %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].Item.ID != 1 {
		t.Errorf("genre filter returned %+v, want only item 1", result.Items)
	}

	result, err = o.Rankings(context.Background(), Request{
		Season: "WINTER", Year: 2026, Page: 1, PerPage: 50,
		Format: "movie",
	})
	if err != nil {
		t.Fatalf("Rankings() error = %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].Item.ID != 3 {
		t.Errorf("format filter returned %+v, want only item 3", result.Items)
	}
}

func TestSortModes(t *testing.T) {
	source := defaultMock()
	o := newTestOrchestrator(t, source, false)
	ctx := context.Background()

	byTitle, err := o.Rankings(ctx, Request{Season: "WINTER", Year: 2026, Page: 1, PerPage: 50, Sort: "title"})
	if err != nil {
		t.Fatalf("Rankings() error = %v", err)
	}
	if byTitle.Items[0].Item.Title.English != "Mid Drama" {
		t.Errorf("title sort first item = %q", byTitle.Items[0].Item.Title.English)
	}

	byPop, err := o.Rankings(ctx, Request{Season: "WINTER", Year: 2026, Page: 1, PerPage: 50, Sort: "popularity"})
	if err != nil {
		t.Fatalf("Rankings() error = %v", err)
	}
	if byPop.Items[0].Item.ID != 1 || byPop.Items[2].Item.ID != 3 {
		t.Errorf("popularity sort order = %v", []int{byPop.Items[0].Item.ID, byPop.Items[1].Item.ID, byPop.Items[2].Item.ID})
	}
}

func TestDefaultOrderDeterministic(t *testing.T) {
	run := func() []int {
		source := defaultMock()
		o := newTestOrchestrator(t, source, false)
		result, err := o.Rankings(context.Background(), Request{
			Season: "WINTER", Year: 2026, Page: 1, PerPage: 50,
			Usernames: []string{"viewer"},
		})
		if err != nil {
			t.Fatalf("Rankings() error = %v", err)
		}
		ids := make([]int, len(result.Items))
		for i, it := range result.Items {
			ids[i] = it.Item.ID
		}
		return ids
	}

	first := run()
	second := run()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("order differs across runs with identical seed: %v vs %v", first, second)
		}
	}
}

func TestCombinedScoreServedFromCache(t *testing.T) {
	source := defaultMock()
	source.users["friend"] = 43
	source.pages[43] = []*models.RatingsPage{{
		MediaList: []models.RatedItem{ratingFor(902, "Rated Drama", 4, "Drama")},
		PageInfo:  models.PageInfo{HasNextPage: false},
	}}

	store := newRankTestStore(t)
	sentinel := models.CombinedScore{
		Score:     99,
		Breakdown: models.PreferenceBreakdown{Base: 99, Total: 99},
	}
	store.Save(cache.CombinedScoreKey{ItemID: 1, Usernames: []string{"viewer", "friend"}}, sentinel)

	o := New(testRankConfig(), source, store, logging.NewTestLogger(io.Discard))
	result, err := o.Rankings(context.Background(), Request{
		Season: "WINTER", Year: 2026, Page: 1, PerPage: 50,
		// Reversed member order must still hit the seeded entry.
		Usernames: []string{"friend", "viewer"},
	})
	if err != nil {
		t.Fatalf("Rankings() error = %v", err)
	}

	var hit *models.RankedItem
	for i := range result.Items {
		if result.Items[i].Item.ID == 1 {
			hit = &result.Items[i]
		}
	}
	if hit == nil || hit.Scores == nil {
		t.Fatal("item 1 missing from scored results")
	}
	if hit.Scores.Combined.Score != 99 {
		t.Errorf("combined score = %v, want cached 99", hit.Scores.Combined.Score)
	}

	// Misses are computed and written back for the next request.
	var stored models.CombinedScore
	key := cache.CombinedScoreKey{ItemID: 2, Usernames: []string{"friend", "viewer"}}
	if !store.Get(key, &stored) {
		t.Error("combined score for item 2 was not written back on miss")
	}
}

func TestProfileForUnknownUserIsEmpty(t *testing.T) {
	source := defaultMock()
	o := newTestOrchestrator(t, source, false)

	profile, err := o.Profile(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Profile() error = %v, want soft empty profile", err)
	}
	if !profile.IsEmpty() {
		t.Errorf("profile for unknown user not empty: %+v", profile)
	}
}
