// Aniscope - Anime Discovery and Preference Ranking
// Copyright 2026 Aniscope Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aniscope/aniscope

// Package scoring implements the preference engine: converting a user's
// rating history into weighted per-category preference profiles, and applying
// those profiles to score unseen catalog items.
package scoring

import "math"

// starPoints is the fixed star-to-points mapping. The asymmetry is
// deliberate: strong positive signal outweighs strong negative signal roughly
// 2:1 because viewers rate generously on average. These five values are a
// compatibility contract and must not be tuned.
var starPoints = map[int]float64{
	5: 10,
	4: 3,
	3: 1,
	2: -1,
	1: -5,
}

// PointsForStars converts a 1-5 star rating to signed preference points.
// Fractional stars (from 10-point-scale accounts) round to the nearest star.
// Unrated (zero) returns ok=false: the item is excluded from aggregation
// entirely, not scored as zero.
func PointsForStars(stars float64) (points float64, ok bool) {
	if stars <= 0 {
		return 0, false
	}
	star := int(math.Round(stars))
	if star < 1 {
		return 0, false
	}
	if star > 5 {
		star = 5
	}
	return starPoints[star], true
}

// TagWeight scales a point value by a tag's relevance rank (0-100). The
// multiplier spans [0.5, 1.0]: a barely relevant tag contributes half of what
// a perfectly matched tag would.
func TagWeight(points float64, rank int) float64 {
	if rank < 0 {
		rank = 0
	}
	if rank > 100 {
		rank = 100
	}
	return points * (0.5 + float64(rank)/200)
}

// round1 rounds to one decimal place, the precision used for all averaged
// and adjusted scores.
func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
