// Aniscope - Anime Discovery and Preference Ranking
// Copyright 2026 Aniscope Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aniscope/aniscope

package scoring

import "testing"

func TestPointsForStars(t *testing.T) {
	tests := []struct {
		stars  float64
		points float64
		ok     bool
	}{
		{5, 10, true},
		{4, 3, true},
		{3, 1, true},
		{2, -1, true},
		{1, -5, true},
		{0, 0, false},
		{-1, 0, false},
		// Fractional stars from 10-point accounts round to the nearest star.
		{4.5, 10, true},
		{3.4, 1, true},
		{2.5, 1, true},
		// Out-of-range input clamps rather than panicking.
		{7, 10, true},
		{0.4, 0, false},
	}

	for _, tt := range tests {
		points, ok := PointsForStars(tt.stars)
		if points != tt.points || ok != tt.ok {
			t.Errorf("PointsForStars(%v) = (%v, %v), want (%v, %v)",
				tt.stars, points, ok, tt.points, tt.ok)
		}
	}
}

func TestTagWeight(t *testing.T) {
	tests := []struct {
		name   string
		points float64
		rank   int
		want   float64
	}{
		{"full relevance keeps full points", 10, 100, 10},
		{"zero relevance halves points", 10, 0, 5},
		{"mid relevance scales linearly", 10, 50, 7.5},
		{"negative points scale the same way", -5, 100, -5},
		{"negative points at zero relevance", -5, 0, -2.5},
		{"rank clamped above 100", 10, 150, 10},
		{"rank clamped below 0", 10, -10, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TagWeight(tt.points, tt.rank); got != tt.want {
				t.Errorf("TagWeight(%v, %d) = %v, want %v", tt.points, tt.rank, got, tt.want)
			}
		})
	}
}
