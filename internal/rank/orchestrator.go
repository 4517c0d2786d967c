// Aniscope - Anime Discovery and Preference Ranking
// Copyright 2026 Aniscope Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aniscope/aniscope

// Package rank ties the engine together: it fetches and caches catalog pages
// and rating histories, drives profile aggregation and scoring, and produces
// the sorted, filtered item list served by the API.
package rank

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aniscope/aniscope/internal/cache"
	"github.com/aniscope/aniscope/internal/catalog"
	"github.com/aniscope/aniscope/internal/config"
	"github.com/aniscope/aniscope/internal/metrics"
	"github.com/aniscope/aniscope/internal/models"
	"github.com/aniscope/aniscope/internal/scoring"
)

// Request describes one rankings query.
type Request struct {
	Season  string
	Year    int
	Page    int
	PerPage int

	// Usernames selects whose preferences drive the ranking. Empty means an
	// unpersonalized, popularity-ordered catalog page.
	Usernames []string

	// Sort is one of "default", "score", "popularity", "title". The default
	// order surfaces each user's top pick first, interleaved via the seeded
	// shuffle, with the remainder by combined score descending.
	Sort string

	// Genre and Format filter candidates before scoring output. Matching is
	// case-insensitive.
	Genre  string
	Format string
}

// Result is a scored, ordered page of catalog items.
type Result struct {
	Items    []models.RankedItem `json:"items"`
	PageInfo models.PageInfo     `json:"pageInfo"`

	// Warnings lists non-fatal degradations, e.g. usernames that did not
	// resolve and were ranked without.
	Warnings []string `json:"warnings,omitempty"`
}

// Orchestrator coordinates fetching, caching, aggregation, and scoring.
type Orchestrator struct {
	cfg    config.Config
	source catalog.Source
	store  *cache.Store
	agg    *scoring.Aggregator
	scorer *scoring.Scorer
	log    zerolog.Logger
}

// New creates an Orchestrator. The store may be nil, which disables all
// durable caching (every request recomputes from the upstream source).
func New(cfg config.Config, source catalog.Source, store *cache.Store, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		source: source,
		store:  store,
		agg:    scoring.NewAggregator(cfg.Scoring, store, logger),
		scorer: scoring.NewScorer(cfg.Scoring, logger),
		log:    logger,
	}
}

// CatalogPage returns one season page, served from cache when fresh.
func (o *Orchestrator) CatalogPage(ctx context.Context, season string, year, page, perPage int) (*models.CatalogPage, error) {
	key := cache.CatalogKey{Season: season, Year: year, Page: page, PerPage: perPage}

	if o.store != nil {
		var cached models.CatalogPage
		if o.store.Get(key, &cached) {
			return &cached, nil
		}
	}

	fetched, err := o.source.FetchSeasonPage(ctx, season, year, page, perPage)
	if err != nil {
		return nil, fmt.Errorf("fetch season page: %w", err)
	}
	if o.store != nil {
		o.store.Save(key, fetched)
	}
	return fetched, nil
}

// CompleteRatings returns a user's full rating history, fetching sequential
// pages up to the configured cap and caching both the per-page results and
// the merged snapshot. An unknown username returns catalog.ErrUserNotFound.
func (o *Orchestrator) CompleteRatings(ctx context.Context, username string) ([]models.RatedItem, error) {
	userID, err := o.source.ResolveUserID(ctx, username)
	if err != nil {
		return nil, err
	}

	completeKey := cache.CompleteRatingsKey{UserID: userID}
	if o.store != nil {
		var snapshot models.RatingsPage
		if o.store.Get(completeKey, &snapshot) {
			return snapshot.MediaList, nil
		}
	}

	perPage := o.cfg.Catalog.PerPage
	var merged []models.RatedItem
	for page := 1; page <= o.cfg.Catalog.MaxRatingPages; page++ {
		ratings, err := o.ratingsPage(ctx, userID, page, perPage)
		if err != nil {
			return nil, err
		}
		merged = append(merged, ratings.MediaList...)
		if !ratings.PageInfo.HasNextPage {
			break
		}
	}

	if o.store != nil {
		o.store.Save(completeKey, models.RatingsPage{
			MediaList: merged,
			PageInfo:  models.PageInfo{Total: len(merged), CurrentPage: 1, LastPage: 1, PerPage: len(merged)},
		})
	}
	return merged, nil
}

func (o *Orchestrator) ratingsPage(ctx context.Context, userID, page, perPage int) (*models.RatingsPage, error) {
	key := cache.RatingsKey{UserID: userID, Page: page, PerPage: perPage}

	if o.store != nil {
		var cached models.RatingsPage
		if o.store.Get(key, &cached) {
			return &cached, nil
		}
	}

	fetched, err := o.source.FetchRatingsPage(ctx, userID, page, perPage)
	if err != nil {
		return nil, fmt.Errorf("fetch ratings page %d: %w", page, err)
	}
	if o.store != nil {
		o.store.Save(key, fetched)
	}
	return fetched, nil
}

// Profile returns a user's aggregated preference profile. An unknown user
// yields an empty profile rather than an error; the empty profile is not
// cached so a later account creation is picked up immediately.
func (o *Orchestrator) Profile(ctx context.Context, username string) (*models.UserPreferenceProfile, error) {
	ratings, err := o.CompleteRatings(ctx, username)
	if err != nil {
		if errors.Is(err, catalog.ErrUserNotFound) {
			return &models.UserPreferenceProfile{
				Username:  username,
				Genres:    []models.PreferenceScore{},
				Studios:   []models.PreferenceScore{},
				Directors: []models.PreferenceScore{},
				Tags:      []models.PreferenceScore{},
			}, nil
		}
		return nil, err
	}
	return o.agg.Profile(username, ratings), nil
}

// Rankings produces the scored, sorted, filtered page for a request. Unknown
// usernames degrade to a warning; upstream failure of the catalog page itself
// is fatal for the request.
func (o *Orchestrator) Rankings(ctx context.Context, req Request) (*Result, error) {
	page, err := o.CatalogPage(ctx, req.Season, req.Year, req.Page, req.PerPage)
	if err != nil {
		return nil, err
	}

	result := &Result{PageInfo: page.PageInfo}

	var profiles []*models.UserPreferenceProfile
	for _, username := range req.Usernames {
		if strings.TrimSpace(username) == "" {
			continue
		}
		profile, err := o.Profile(ctx, username)
		if err != nil {
			return nil, err
		}
		if profile.IsEmpty() {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("no rating history for %q, ranking without it", username))
			continue
		}
		profiles = append(profiles, profile)
	}

	candidates := filterItems(page.Media, req.Genre, req.Format)

	start := time.Now()
	result.Items = o.scoreAll(candidates, profiles)
	metrics.ScoringDuration.Observe(time.Since(start).Seconds())

	o.sortItems(result.Items, req.Sort, len(profiles) > 0)
	return result, nil
}

// scoreAll scores every candidate and annotates top picks. Combined scores
// for multi-user groups go through the combined cache namespace: a fresh
// cached value wins over recombination, a miss is computed and written back.
func (o *Orchestrator) scoreAll(candidates []models.CatalogItem, profiles []*models.UserPreferenceProfile) []models.RankedItem {
	items := make([]models.RankedItem, 0, len(candidates))
	for i := range candidates {
		ranked := models.RankedItem{Item: candidates[i]}
		if len(profiles) > 0 {
			ranked.Scores = o.scorer.ScoreItem(&candidates[i], profiles)
			if o.store != nil && len(profiles) > 1 {
				ranked.Scores.Combined = o.combinedFor(ranked.Scores, profiles)
			}
		}
		items = append(items, ranked)
	}

	for _, profile := range profiles {
		if idx := o.topPickIndex(items, profile); idx >= 0 {
			items[idx].TopPickFor = append(items[idx].TopPickFor, profile.Username)
		}
	}
	return items
}

// combinedFor resolves an item's combined score for a user group through the
// cache: the key sorts usernames so member order does not fragment the
// namespace, and the entry shares the profile TTL so both go stale together.
func (o *Orchestrator) combinedFor(scores *models.ItemScores, profiles []*models.UserPreferenceProfile) models.CombinedScore {
	usernames := make([]string, 0, len(profiles))
	for _, p := range profiles {
		usernames = append(usernames, p.Username)
	}
	key := cache.CombinedScoreKey{ItemID: scores.ItemID, Usernames: usernames}

	var cached models.CombinedScore
	if o.store.Get(key, &cached) {
		return cached
	}
	o.store.Save(key, scores.Combined)
	return scores.Combined
}

// topPickIndex finds a user's top pick within the candidate set: the
// profile's designated pick when present, else that user's highest-scoring
// candidate.
func (o *Orchestrator) topPickIndex(items []models.RankedItem, profile *models.UserPreferenceProfile) int {
	bestIdx := -1
	bestScore := 0.0
	for i := range items {
		if profile.TopPick != 0 && items[i].Item.ID == profile.TopPick {
			return i
		}
		if items[i].Scores == nil {
			continue
		}
		for _, u := range items[i].Scores.Users {
			if u.Username != profile.Username {
				continue
			}
			if bestIdx == -1 || u.Score > bestScore {
				bestIdx = i
				bestScore = u.Score
			}
		}
	}
	return bestIdx
}

func filterItems(media []models.CatalogItem, genre, format string) []models.CatalogItem {
	if genre == "" && format == "" {
		return media
	}
	out := make([]models.CatalogItem, 0, len(media))
	for _, item := range media {
		if format != "" && !strings.EqualFold(item.Format, format) {
			continue
		}
		if genre != "" && !hasGenre(item.Genres, genre) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func hasGenre(genres []string, want string) bool {
	for _, g := range genres {
		if strings.EqualFold(g, want) {
			return true
		}
	}
	return false
}

// sortItems orders the result page. Personalized requests default to the
// top-pick interleave; unpersonalized requests keep upstream popularity order.
func (o *Orchestrator) sortItems(items []models.RankedItem, sortBy string, personalized bool) {
	switch strings.ToLower(sortBy) {
	case "popularity":
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Item.Popularity > items[j].Item.Popularity
		})
	case "title":
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Item.Title.Preferred() < items[j].Item.Title.Preferred()
		})
	case "score":
		sortByCombined(items)
	default:
		if personalized {
			o.defaultOrder(items)
		}
	}
}

func sortByCombined(items []models.RankedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return combinedScore(items[i]) > combinedScore(items[j])
	})
}

func combinedScore(item models.RankedItem) float64 {
	if item.Scores == nil {
		return 0
	}
	return item.Scores.Combined.Score
}
