// Aniscope - Anime Discovery and Preference Ranking
// Copyright 2026 Aniscope Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aniscope/aniscope

package models

import "time"

// ContributingItem is the provenance record behind a preference score,
// retained for UI drill-down. Lists are bounded to a configured top-N before
// persistence to control cache entry size.
type ContributingItem struct {
	Title     string  `json:"title"`
	UserScore float64 `json:"userScore"`

	// PointValue is the signed point contribution before any weighting.
	PointValue float64 `json:"pointValue"`

	// ModifiedValue is the contribution after weighting (tag relevance),
	// when it differs from PointValue.
	ModifiedValue float64 `json:"modifiedValue,omitempty"`

	ImageURL string `json:"imageUrl,omitempty"`

	// Role is set for director contributions (the credited staff role).
	Role string `json:"role,omitempty"`
}

// PreferenceScore is the aggregated preference for one category value
// (a single genre, studio, director, or tag) for one user.
//
// Instances are created fresh on each aggregation pass and are immutable once
// computed; recomputation supersedes the whole value. Count is always >= 1:
// zero-count categories are never materialized.
type PreferenceScore struct {
	Name string `json:"name"`

	// RawScore is the average signed point value across contributing items,
	// rounded to one decimal.
	RawScore float64 `json:"rawScore"`

	// Count is the number of contributing items.
	Count int `json:"count"`

	// PopularityAdjustedScore is RawScore boosted by contribution count.
	PopularityAdjustedScore float64 `json:"popularityAdjustedScore,omitempty"`

	// NormalizedScore is the final score mapped into the category's
	// configured target range.
	NormalizedScore float64 `json:"normalizedScore,omitempty"`

	ContributingItems []ContributingItem `json:"contributingItems,omitempty"`
}

// UserPreferenceProfile is a user's aggregated preference vectors across all
// category types. Keyed and cached by username.
type UserPreferenceProfile struct {
	Username string `json:"username"`

	Genres    []PreferenceScore `json:"genres"`
	Studios   []PreferenceScore `json:"studios"`
	Directors []PreferenceScore `json:"directors"`
	Tags      []PreferenceScore `json:"tags"`

	// TopPick is the user's highest-rated item after franchise dedup, used
	// as the designated top pick when it appears in a candidate set.
	TopPick int `json:"topPick,omitempty"`

	GeneratedAt time.Time `json:"generatedAt,omitempty"`
}

// IsEmpty reports whether the profile has no preference data at all.
func (p *UserPreferenceProfile) IsEmpty() bool {
	return len(p.Genres) == 0 && len(p.Studios) == 0 &&
		len(p.Directors) == 0 && len(p.Tags) == 0
}

// PreferenceBreakdown itemizes the components of a composite score. Every
// component is clamped before summation, so Total always equals the sum of
// the five parts.
type PreferenceBreakdown struct {
	Base     float64 `json:"base"`
	Studio   float64 `json:"studio"`
	Director float64 `json:"director"`
	Genre    float64 `json:"genre"`
	Tag      float64 `json:"tag"`
	Total    float64 `json:"total"`
}

// UserScore is one user's composite score for a candidate item.
type UserScore struct {
	Username  string              `json:"username"`
	Score     float64             `json:"score"`
	Breakdown PreferenceBreakdown `json:"breakdown"`
}

// CombinedScore is the arithmetic mean of per-user composite scores. The
// shared base component is unchanged by averaging; only preference deltas
// dilute with group size.
type CombinedScore struct {
	Score     float64             `json:"score"`
	Breakdown PreferenceBreakdown `json:"breakdown"`
}

// ItemScores holds the scoring result for one candidate item. It is a
// separate record rather than a mutation of the catalog item.
type ItemScores struct {
	ItemID   int           `json:"itemId"`
	Users    []UserScore   `json:"users"`
	Combined CombinedScore `json:"combined"`
}

// RankedItem pairs a catalog item with its scoring result for API responses.
type RankedItem struct {
	Item   CatalogItem `json:"item"`
	Scores *ItemScores `json:"preferenceScores,omitempty"`

	// TopPickFor lists usernames for whom this item is the top pick.
	TopPickFor []string `json:"topPickFor,omitempty"`
}
