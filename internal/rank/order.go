// Aniscope - Anime Discovery and Preference Ranking
// Copyright 2026 Aniscope Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aniscope/aniscope

package rank

import (
	"math/rand"

	"github.com/aniscope/aniscope/internal/models"
)

// defaultOrder arranges a personalized page: every user's top pick comes
// first, interleaved by a seeded shuffle so no user's pick consistently wins
// position one, then the remainder by combined score descending.
//
// The shuffle is deterministic for a given seed and item set, which keeps
// pagination stable across repeated requests.
func (o *Orchestrator) defaultOrder(items []models.RankedItem) {
	var picks, rest []models.RankedItem
	for _, item := range items {
		if len(item.TopPickFor) > 0 {
			picks = append(picks, item)
		} else {
			rest = append(rest, item)
		}
	}
	if len(picks) == 0 {
		sortByCombined(items)
		return
	}

	rng := rand.New(rand.NewSource(o.cfg.Scoring.Seed)) //nolint:gosec // ordering heuristic, not security
	rng.Shuffle(len(picks), func(i, j int) {
		picks[i], picks[j] = picks[j], picks[i]
	})
	sortByCombined(rest)

	copy(items, picks)
	copy(items[len(picks):], rest)
}
