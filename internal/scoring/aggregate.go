// Aniscope - Anime Discovery and Preference Ranking
// Copyright 2026 Aniscope Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aniscope/aniscope

package scoring

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aniscope/aniscope/internal/cache"
	"github.com/aniscope/aniscope/internal/config"
	"github.com/aniscope/aniscope/internal/metrics"
	"github.com/aniscope/aniscope/internal/models"
)

// Aggregator turns rating histories into preference profiles. Profiles are
// cached read-through (memory, then durable store, then recompute) and
// written through on recomputation. The aggregator owns its memory cache
// explicitly so tests can run independent instances.
type Aggregator struct {
	cfg   config.ScoringConfig
	store *cache.Store
	log   zerolog.Logger

	mu     sync.RWMutex
	memory map[string]*models.UserPreferenceProfile
}

// NewAggregator creates an Aggregator backed by the given durable store.
// A nil store disables durable caching; the memory layer still applies.
func NewAggregator(cfg config.ScoringConfig, store *cache.Store, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		cfg:    cfg,
		store:  store,
		log:    logger,
		memory: make(map[string]*models.UserPreferenceProfile),
	}
}

// Profile returns the preference profile for username, computing it from
// ratings only when no cached profile exists. An empty rating history yields
// an empty profile, never an error.
func (a *Aggregator) Profile(username string, ratings []models.RatedItem) *models.UserPreferenceProfile {
	key := strings.ToLower(username)

	a.mu.RLock()
	cached, ok := a.memory[key]
	a.mu.RUnlock()
	if ok {
		metrics.ProfileAggregations.WithLabelValues("memory").Inc()
		return cached
	}

	if a.store != nil {
		var stored models.UserPreferenceProfile
		if a.store.Get(cache.ProfileKey{Username: username}, &stored) {
			metrics.ProfileAggregations.WithLabelValues("cache").Inc()
			a.remember(key, &stored)
			return &stored
		}
	}

	profile := a.compute(username, ratings)
	metrics.ProfileAggregations.WithLabelValues("computed").Inc()

	a.remember(key, profile)
	if a.store != nil {
		a.store.Save(cache.ProfileKey{Username: username}, profile)
	}
	return profile
}

// Invalidate drops the cached profile for username from both layers, forcing
// recomputation on the next Profile call.
func (a *Aggregator) Invalidate(username string) {
	key := strings.ToLower(username)
	a.mu.Lock()
	delete(a.memory, key)
	a.mu.Unlock()
	if a.store != nil {
		if err := a.store.Delete(cache.ProfileKey{Username: username}); err != nil {
			a.log.Warn().Err(err).Str("username", username).Msg("Failed to invalidate stored profile")
		}
	}
}

func (a *Aggregator) remember(key string, profile *models.UserPreferenceProfile) {
	a.mu.Lock()
	a.memory[key] = profile
	a.mu.Unlock()
}

// accumulator collects running totals for one category value.
type accumulator struct {
	total float64
	count int
	items []models.ContributingItem
}

// compute builds a profile from scratch: dedup franchises, convert stars to
// points, accumulate per category, then average, popularity-adjust, and
// normalize each category with its configured target range.
func (a *Aggregator) compute(username string, ratings []models.RatedItem) *models.UserPreferenceProfile {
	profile := &models.UserPreferenceProfile{
		Username:    username,
		Genres:      []models.PreferenceScore{},
		Studios:     []models.PreferenceScore{},
		Directors:   []models.PreferenceScore{},
		Tags:        []models.PreferenceScore{},
		GeneratedAt: time.Now().UTC(),
	}

	deduped := DedupFranchises(ratings)

	genres := map[string]*accumulator{}
	studios := map[string]*accumulator{}
	directors := map[string]*accumulator{}
	tags := map[string]*accumulator{}

	scored := 0
	for i := range deduped {
		item := &deduped[i]
		points, ok := PointsForStars(item.Stars())
		if !ok {
			continue
		}
		scored++

		provenance := models.ContributingItem{
			Title:      item.Media.Title.Preferred(),
			UserScore:  item.Score,
			PointValue: points,
			ImageURL:   item.Media.CoverImage.Medium,
		}

		for _, genre := range item.Media.Genres {
			accumulate(genres, genre, points, provenance)
		}
		for _, studio := range item.Media.StudioNames() {
			accumulate(studios, studio, points, provenance)
		}
		for _, edge := range item.Media.Staff {
			if edge.Name == "" || !strings.Contains(strings.ToLower(edge.Role), "director") {
				continue
			}
			p := provenance
			p.Role = edge.Role
			accumulate(directors, edge.Name, points, p)
		}
		for _, tag := range item.Media.Tags {
			weighted := TagWeight(points, tag.Rank)
			p := provenance
			p.ModifiedValue = round1(weighted)
			accumulate(tags, tag.Name, weighted, p)
		}
	}

	if scored == 0 {
		a.log.Debug().Str("username", username).Msg("No scoreable ratings, returning empty profile")
		return profile
	}

	profile.Genres = a.finalize(genres, a.cfg.GenreRange)
	profile.Studios = a.finalize(studios, a.cfg.StudioRange)
	profile.Directors = a.finalize(directors, a.cfg.DirectorRange)
	profile.Tags = a.finalize(tags, a.cfg.TagRange)
	profile.TopPick = topPick(deduped)

	a.log.Debug().
		Str("username", username).
		Int("rated", len(ratings)).
		Int("after_dedup", len(deduped)).
		Int("scored", scored).
		Int("genres", len(profile.Genres)).
		Int("studios", len(profile.Studios)).
		Int("directors", len(profile.Directors)).
		Int("tags", len(profile.Tags)).
		Msg("Computed preference profile")

	return profile
}

func accumulate(m map[string]*accumulator, name string, points float64, item models.ContributingItem) {
	acc, ok := m[name]
	if !ok {
		acc = &accumulator{}
		m[name] = acc
	}
	acc.total += points
	acc.count++
	acc.items = append(acc.items, item)
}

// finalize averages each accumulator, applies the popularity boost, and
// normalizes into the category's target range. Output is sorted by
// normalized score descending (name ascending on ties) for stable results.
func (a *Aggregator) finalize(m map[string]*accumulator, target config.TargetRange) []models.PreferenceScore {
	if len(m) == 0 {
		return []models.PreferenceScore{}
	}

	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	scores := make([]models.PreferenceScore, 0, len(names))
	for _, name := range names {
		acc := m[name]
		scores = append(scores, models.PreferenceScore{
			Name:              name,
			RawScore:          round1(acc.total / float64(acc.count)),
			Count:             acc.count,
			ContributingItems: acc.items,
		})
	}

	scores = PopularityAdjust(scores, a.cfg.MaxBoostPercent)
	scores = Normalize(scores, target)

	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].NormalizedScore != scores[j].NormalizedScore {
			return scores[i].NormalizedScore > scores[j].NormalizedScore
		}
		return scores[i].Name < scores[j].Name
	})
	return scores
}

// topPick selects the user's designated top pick: the highest-scored item
// after dedup, ties broken by lowest id.
func topPick(items []models.RatedItem) int {
	bestID := 0
	bestScore := -1.0
	for i := range items {
		switch {
		case items[i].Score > bestScore:
			bestScore = items[i].Score
			bestID = items[i].ItemID
		case items[i].Score == bestScore && items[i].ItemID < bestID:
			bestID = items[i].ItemID
		}
	}
	return bestID
}
