// Aniscope - Anime Discovery and Preference Ranking
// Copyright 2026 Aniscope Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aniscope/aniscope

package models

import (
	"testing"
	"time"
)

func TestTitlePreferred(t *testing.T) {
	tests := []struct {
		name  string
		title Title
		want  string
	}{
		{"english wins", Title{English: "Frieren", Romaji: "Sousou no Frieren", Native: "葬送のフリーレン"}, "Frieren"},
		{"romaji fallback", Title{Romaji: "Sousou no Frieren", Native: "葬送のフリーレン"}, "Sousou no Frieren"},
		{"native last", Title{Native: "葬送のフリーレン"}, "葬送のフリーレン"},
		{"all empty", Title{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.title.Preferred(); got != tt.want {
				t.Errorf("Preferred() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDirectors(t *testing.T) {
	item := CatalogItem{Staff: []StaffEdge{
		{Role: "Director", Name: "A"},
		{Role: "Episode Director", Name: "B"},
		{Role: "Assistant Director", Name: "C"},
		{Role: "Character Design", Name: "D"},
		{Role: "Music", Name: "E"},
		{Role: "Director", Name: ""},
	}}

	got := item.Directors()
	want := []string{"A", "B", "C"}
	if len(got) != len(want) {
		t.Fatalf("Directors() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Directors()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStudioNames(t *testing.T) {
	item := CatalogItem{Studios: []Studio{
		{ID: 1, Name: "Madhouse"},
		{ID: 2, Name: ""},
		{ID: 3, Name: "MAPPA"},
	}}
	got := item.StudioNames()
	if len(got) != 2 || got[0] != "Madhouse" || got[1] != "MAPPA" {
		t.Errorf("StudioNames() = %v, want [Madhouse MAPPA]", got)
	}
}

func TestStars(t *testing.T) {
	tests := []struct {
		score float64
		want  float64
	}{
		{0, 0},
		{-1, 0},
		{3, 3},
		{5, 5},
		{7, 3.5},  // 10-point scale halved
		{10, 5},
		{4.5, 4.5},
	}
	for _, tt := range tests {
		r := RatedItem{Score: tt.score}
		if got := r.Stars(); got != tt.want {
			t.Errorf("Stars() with score %v = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestFuzzyDate(t *testing.T) {
	if !(FuzzyDate{}).IsZero() {
		t.Error("empty FuzzyDate not zero")
	}
	if !(FuzzyDate{}).Time().IsZero() {
		t.Error("zero FuzzyDate yields non-zero time")
	}

	full := FuzzyDate{Year: 2026, Month: 3, Day: 15}
	if got := full.Time(); !got.Equal(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Time() = %v", got)
	}

	// Missing components default to January 1st.
	yearOnly := FuzzyDate{Year: 2026}
	if got := yearOnly.Time(); !got.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Time() with year only = %v", got)
	}
}

func TestProfileIsEmpty(t *testing.T) {
	empty := UserPreferenceProfile{Username: "viewer"}
	if !empty.IsEmpty() {
		t.Error("profile with no categories should be empty")
	}

	withGenres := UserPreferenceProfile{Genres: []PreferenceScore{{Name: "Action", RawScore: 5, Count: 1}}}
	if withGenres.IsEmpty() {
		t.Error("profile with genre data should not be empty")
	}
}
