// Aniscope - Anime Discovery and Preference Ranking
// Copyright 2026 Aniscope Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aniscope/aniscope

package scoring

import (
	"math"

	"github.com/aniscope/aniscope/internal/config"
	"github.com/aniscope/aniscope/internal/models"
)

// PopularityAdjust returns a copy of scores with PopularityAdjustedScore
// populated. Categories backed by more contributing items get boosted toward
// the configured ceiling: boost = 1 + (count/maxCount) * (maxBoostPercent/100).
// The input slice is not modified.
func PopularityAdjust(scores []models.PreferenceScore, maxBoostPercent float64) []models.PreferenceScore {
	if len(scores) == 0 {
		return nil
	}

	maxCount := 0
	for _, s := range scores {
		if s.Count > maxCount {
			maxCount = s.Count
		}
	}

	out := make([]models.PreferenceScore, len(scores))
	copy(out, scores)
	if maxCount == 0 {
		return out
	}

	for i := range out {
		boost := 1 + (float64(out[i].Count)/float64(maxCount))*(maxBoostPercent/100)
		out[i].PopularityAdjustedScore = round1(out[i].RawScore * boost)
	}
	return out
}

// Normalize returns a copy of scores with NormalizedScore mapped into the
// target range using a 50/50 blend of linear and logarithmic percentiles.
// The blend compresses outlier dominance while preserving relative order:
// purely linear would let one extreme favorite flatten every other
// distinction, purely logarithmic over-compresses small samples.
//
// Positive scores map into (0, target.Max], negative scores mirror into
// [target.Min, 0) using absolute values, zero scores map to exactly 0.
// An all-equal input yields 0 for every item. Output preserves input order.
// Never fails: any degenerate input resolves to zeroes.
func Normalize(scores []models.PreferenceScore, target config.TargetRange) []models.PreferenceScore {
	if len(scores) == 0 {
		return nil
	}

	out := make([]models.PreferenceScore, len(scores))
	copy(out, scores)

	values := make([]float64, len(out))
	for i := range out {
		values[i] = scoreToUse(out[i])
	}

	if allEqual(values) {
		for i := range out {
			out[i].NormalizedScore = 0
		}
		return out
	}

	var maxPos, maxNeg float64
	for _, v := range values {
		if v > maxPos {
			maxPos = v
		}
		if -v > maxNeg {
			maxNeg = -v
		}
	}

	for i, v := range values {
		switch {
		case v > 0:
			out[i].NormalizedScore = round1(blend(v, maxPos) * target.Max)
		case v < 0:
			out[i].NormalizedScore = round1(blend(-v, maxNeg) * target.Min)
		default:
			out[i].NormalizedScore = 0
		}
	}
	return out
}

// scoreToUse prefers the popularity-adjusted score, falling back to the raw
// average when adjustment has not run.
func scoreToUse(s models.PreferenceScore) float64 {
	if s.PopularityAdjustedScore != 0 {
		return s.PopularityAdjustedScore
	}
	return s.RawScore
}

// blend mixes linear and logarithmic percentiles 50/50. v and maxV are
// positive magnitudes with v <= maxV.
func blend(v, maxV float64) float64 {
	linear := v / maxV
	logarithmic := math.Log(v+1) / math.Log(maxV+1)
	return 0.5*linear + 0.5*logarithmic
}

func allEqual(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}
