// Aniscope - Anime Discovery and Preference Ranking
// Copyright 2026 Aniscope Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aniscope/aniscope

package scoring

import (
	"regexp"
	"strings"

	"github.com/aniscope/aniscope/internal/models"
)

// Sequel and season markers stripped during title normalization. Without
// dedup, a franchise with five rated seasons would contribute five times the
// preference weight of a one-off title.
var franchiseMarkers = []*regexp.Regexp{
	regexp.MustCompile(`\bseason\s*\d+\b`),
	regexp.MustCompile(`\bpart\s*\d+\b`),
	regexp.MustCompile(`\b\d+(?:st|nd|rd|th)\s+season\b`),
	regexp.MustCompile(`\s+\d+(?:st|nd|rd|th)$`),
	regexp.MustCompile(`\s+(?:ii|iii|iv|v|vi|vii|viii|ix|x)$`),
	regexp.MustCompile(`\s+(?:19|20)\d{2}$`),
}

var whitespace = regexp.MustCompile(`\s+`)

// franchiseBase normalizes a title to its franchise base form: lowercase,
// subtitle-after-colon removed, season/part/sequel markers stripped.
func franchiseBase(title string) string {
	base := strings.ToLower(title)
	if i := strings.Index(base, ":"); i > 0 {
		base = base[:i]
	}
	for _, marker := range franchiseMarkers {
		base = marker.ReplaceAllString(base, "")
	}
	return strings.TrimSpace(whitespace.ReplaceAllString(base, " "))
}

// DedupFranchises collapses rated items sharing a franchise base title to a
// single representative each. The representative is chosen by, in order:
// highest user score, earliest completion date, earliest creation timestamp,
// lowest item id. This ordering is a determinism contract: changing it
// changes which season's genres and staff feed the profile.
//
// Output preserves the input order of each group's first occurrence, so the
// function is idempotent.
func DedupFranchises(items []models.RatedItem) []models.RatedItem {
	if len(items) == 0 {
		return nil
	}

	best := make(map[string]models.RatedItem, len(items))
	order := make([]string, 0, len(items))

	for _, item := range items {
		base := franchiseBase(item.Media.Title.Preferred())
		current, seen := best[base]
		if !seen {
			best[base] = item
			order = append(order, base)
			continue
		}
		if preferRepresentative(item, current) {
			best[base] = item
		}
	}

	out := make([]models.RatedItem, 0, len(order))
	for _, base := range order {
		out = append(out, best[base])
	}
	return out
}

// preferRepresentative reports whether candidate should replace current as a
// franchise's representative.
func preferRepresentative(candidate, current models.RatedItem) bool {
	if candidate.Score != current.Score {
		return candidate.Score > current.Score
	}
	if c, k := candidate.CompletedAt, current.CompletedAt; !c.Equal(k) {
		// A recorded completion beats a missing one; earlier beats later.
		switch {
		case c.IsZero():
			return false
		case k.IsZero():
			return true
		default:
			return c.Before(k)
		}
	}
	if c, k := candidate.CreatedAt, current.CreatedAt; !c.Equal(k) {
		switch {
		case c.IsZero():
			return false
		case k.IsZero():
			return true
		default:
			return c.Before(k)
		}
	}
	return candidate.ItemID < current.ItemID
}
