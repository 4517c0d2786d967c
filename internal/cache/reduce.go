// Aniscope - Anime Discovery and Preference Ranking
// Copyright 2026 Aniscope Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aniscope/aniscope

package cache

import (
	"github.com/goccy/go-json"

	"github.com/aniscope/aniscope/internal/models"
)

// reduceProfile shrinks an oversized profile payload so it can fit under the
// per-entry ceiling: contributing-item lists are truncated to topN and image
// URLs are dropped. The preference scores themselves are untouched, so a
// reduced profile ranks identically to the full one.
func reduceProfile(payload json.RawMessage, topN int) (json.RawMessage, bool) {
	var profile models.UserPreferenceProfile
	if err := json.Unmarshal(payload, &profile); err != nil {
		return nil, false
	}

	for _, scores := range [][]models.PreferenceScore{
		profile.Genres, profile.Studios, profile.Directors, profile.Tags,
	} {
		for i := range scores {
			items := scores[i].ContributingItems
			if len(items) > topN {
				items = items[:topN]
			}
			for j := range items {
				items[j].ImageURL = ""
			}
			scores[i].ContributingItems = items
		}
	}

	reduced, err := json.Marshal(&profile)
	if err != nil {
		return nil, false
	}
	return reduced, true
}
