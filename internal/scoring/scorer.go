// Aniscope - Anime Discovery and Preference Ranking
// Copyright 2026 Aniscope Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aniscope/aniscope

package scoring

import (
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aniscope/aniscope/internal/config"
	"github.com/aniscope/aniscope/internal/models"
)

// baseEpsilon keeps the base-score logarithm defined at zero popularity.
const baseEpsilon = 1

// Scorer applies preference profiles to candidate catalog items. Scoring is a
// pure transformation: results are returned as a separate record and the
// catalog item is never modified.
type Scorer struct {
	cfg config.ScoringConfig
	log zerolog.Logger
}

// NewScorer creates a Scorer with the given category caps and target ranges.
func NewScorer(cfg config.ScoringConfig, logger zerolog.Logger) *Scorer {
	return &Scorer{cfg: cfg, log: logger}
}

// BaseScore derives the popularity component of an item's composite score:
// log10(popularity + epsilon) * 2, so 1K popularity scores ~6.0, 10K ~8.0,
// 100K ~10.0. Items without a popularity figure score 0.
func (s *Scorer) BaseScore(popularity int) float64 {
	if popularity <= 0 {
		return 0
	}
	return math.Log10(float64(popularity)+baseEpsilon) * 2
}

// ScoreItem scores one candidate against every given profile and combines
// the results. Nil or empty profiles contribute a base-only score.
func (s *Scorer) ScoreItem(item *models.CatalogItem, profiles []*models.UserPreferenceProfile) *models.ItemScores {
	result := &models.ItemScores{ItemID: item.ID}
	for _, profile := range profiles {
		if profile == nil {
			continue
		}
		result.Users = append(result.Users, s.scoreForUser(item, profile))
	}
	result.Combined = CombineScores(result.Users)
	return result
}

// scoreForUser computes one user's composite score with its itemized
// breakdown. Every modifier is clamped to its configured percentage of the
// base score before summation, so Total always equals the sum of the parts.
func (s *Scorer) scoreForUser(item *models.CatalogItem, profile *models.UserPreferenceProfile) models.UserScore {
	base := s.BaseScore(item.Popularity)

	breakdown := models.PreferenceBreakdown{
		Base:     round1(base),
		Studio:   s.averagedImpact(profile.Studios, item.StudioNames(), base, s.cfg.StudioCapPercent),
		Director: s.averagedImpact(profile.Directors, item.Directors(), base, s.cfg.DirectorCapPercent),
		Genre:    s.diminishingImpact(profile.Genres, item.Genres, base, s.cfg.GenreCapPercent),
		Tag:      s.diminishingImpact(profile.Tags, tagNames(item.Tags), base, s.cfg.TagCapPercent),
	}
	breakdown.Total = round1(breakdown.Base + breakdown.Studio + breakdown.Director + breakdown.Genre + breakdown.Tag)

	return models.UserScore{
		Username:  profile.Username,
		Score:     breakdown.Total,
		Breakdown: breakdown,
	}
}

// averagedImpact is the studio/director modifier: average the normalized
// scores of all matching preference entries, scale to a fraction of base,
// clamp to the category cap.
func (s *Scorer) averagedImpact(prefs []models.PreferenceScore, names []string, base, capPercent float64) float64 {
	avg, matched := matchedAverage(prefs, names)
	if matched == 0 {
		return 0
	}
	return round1(clampImpact(avg, base, capPercent))
}

// diminishingImpact is the genre/tag modifier: matching many values should
// add confidence, but with sub-linear returns, so the matched average is
// scaled by sqrt of the match count before the usual impact conversion.
func (s *Scorer) diminishingImpact(prefs []models.PreferenceScore, names []string, base, capPercent float64) float64 {
	avg, matched := matchedAverage(prefs, names)
	if matched == 0 {
		return 0
	}
	raw := avg * math.Sqrt(float64(matched))
	return round1(clampImpact(raw, base, capPercent))
}

// clampImpact converts a normalized preference magnitude into a score delta:
// (value/10) * 2 * base, bounded to ±capPercent of base.
func clampImpact(value, base, capPercent float64) float64 {
	impact := (value / 10) * 2 * base
	limit := base * capPercent / 100
	if impact > limit {
		return limit
	}
	if impact < -limit {
		return -limit
	}
	return impact
}

// matchedAverage averages the normalized scores of the preference entries
// matching any of names. Matching tries exact name first, then a
// case-insensitive pass.
func matchedAverage(prefs []models.PreferenceScore, names []string) (avg float64, matched int) {
	var total float64
	for _, name := range names {
		pref, ok := findPreference(prefs, name)
		if !ok {
			continue
		}
		total += pref.NormalizedScore
		matched++
	}
	if matched == 0 {
		return 0, 0
	}
	return total / float64(matched), matched
}

func findPreference(prefs []models.PreferenceScore, name string) (models.PreferenceScore, bool) {
	for _, p := range prefs {
		if p.Name == name {
			return p, true
		}
	}
	for _, p := range prefs {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return models.PreferenceScore{}, false
}

func tagNames(tags []models.Tag) []string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return names
}

// CombineScores averages per-user composite scores into a group score. Every
// breakdown field is the arithmetic mean across users: the shared base
// component is unchanged by averaging, only the preference deltas dilute
// with group size.
func CombineScores(users []models.UserScore) models.CombinedScore {
	if len(users) == 0 {
		return models.CombinedScore{}
	}

	var combined models.PreferenceBreakdown
	for _, u := range users {
		combined.Base += u.Breakdown.Base
		combined.Studio += u.Breakdown.Studio
		combined.Director += u.Breakdown.Director
		combined.Genre += u.Breakdown.Genre
		combined.Tag += u.Breakdown.Tag
		combined.Total += u.Breakdown.Total
	}

	n := float64(len(users))
	combined.Base = round1(combined.Base / n)
	combined.Studio = round1(combined.Studio / n)
	combined.Director = round1(combined.Director / n)
	combined.Genre = round1(combined.Genre / n)
	combined.Tag = round1(combined.Tag / n)
	combined.Total = round1(combined.Total / n)

	return models.CombinedScore{Score: combined.Total, Breakdown: combined}
}
