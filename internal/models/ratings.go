// Aniscope - Anime Discovery and Preference Ranking
// Copyright 2026 Aniscope Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aniscope/aniscope

package models

import "time"

// RatedItem is one entry from a user's rating history. Produced by the
// ratings API; consumed read-only by the aggregator.
type RatedItem struct {
	// ItemID is the upstream media identifier of the rated item.
	ItemID int `json:"itemId"`

	// Score is the user's raw score. Depending on the account's list
	// settings this is a 0-5 star value or a 0-10 point value; the
	// aggregator normalizes to the 1-5 star scale before point mapping.
	Score float64 `json:"score"`

	// CompletedAt is when the user finished the item, if recorded.
	CompletedAt time.Time `json:"completedAt,omitempty"`

	// CreatedAt is when the list entry was created.
	CreatedAt time.Time `json:"createdAt,omitempty"`

	// Media is the catalog payload for the rated item.
	Media CatalogItem `json:"media"`
}

// Stars converts the raw score to the 1-5 star scale. Scores above 5 are
// assumed to be on the 10-point scale and halved. Unrated entries return 0.
func (r *RatedItem) Stars() float64 {
	if r.Score <= 0 {
		return 0
	}
	if r.Score > 5 {
		return r.Score / 2
	}
	return r.Score
}
