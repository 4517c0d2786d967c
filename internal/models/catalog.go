// Aniscope - Anime Discovery and Preference Ranking
// Copyright 2026 Aniscope Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aniscope/aniscope

// Package models defines the shared data types exchanged between the catalog
// client, the scoring engine, the cache store, and the HTTP API.
//
// Catalog types mirror the upstream GraphQL media shape. Scoring never mutates
// catalog records in place; derived scores live in separate result types.
package models

import (
	"strings"
	"time"
)

// Title holds the localized names of a catalog item.
type Title struct {
	Romaji  string `json:"romaji,omitempty"`
	English string `json:"english,omitempty"`
	Native  string `json:"native,omitempty"`
}

// Preferred returns the best display title: English, then romaji, then native.
func (t Title) Preferred() string {
	switch {
	case t.English != "":
		return t.English
	case t.Romaji != "":
		return t.Romaji
	default:
		return t.Native
	}
}

// CoverImage holds cover art URLs at multiple resolutions.
type CoverImage struct {
	ExtraLarge string `json:"extraLarge,omitempty"`
	Large      string `json:"large,omitempty"`
	Medium     string `json:"medium,omitempty"`
	Color      string `json:"color,omitempty"`
}

// Trailer describes an external trailer video.
type Trailer struct {
	ID        string `json:"id,omitempty"`
	Site      string `json:"site,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// Tag is a descriptive tag with an upstream relevance rank.
type Tag struct {
	Name string `json:"name"`

	// Rank is the upstream relevance rank (0-100). Higher means the tag
	// describes the item more accurately.
	Rank int `json:"rank"`

	Category string `json:"category,omitempty"`
}

// Studio identifies a production studio.
type Studio struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// StaffEdge links a staff member to an item through their credited role.
type StaffEdge struct {
	Role string `json:"role"`
	Name string `json:"name"`
}

// FuzzyDate is an upstream date with optional components.
type FuzzyDate struct {
	Year  int `json:"year,omitempty"`
	Month int `json:"month,omitempty"`
	Day   int `json:"day,omitempty"`
}

// IsZero reports whether no date component is set.
func (d FuzzyDate) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Time converts the fuzzy date to a time.Time, substituting January/1st for
// missing components. Returns the zero time for a zero date.
func (d FuzzyDate) Time() time.Time {
	if d.IsZero() {
		return time.Time{}
	}
	month := d.Month
	if month == 0 {
		month = 1
	}
	day := d.Day
	if day == 0 {
		day = 1
	}
	return time.Date(d.Year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// CatalogItem is a single media record returned by the external catalog API.
type CatalogItem struct {
	// ID is the upstream media identifier.
	ID int `json:"id"`

	Title       Title      `json:"title"`
	Description string     `json:"description,omitempty"`
	CoverImage  CoverImage `json:"coverImage"`
	BannerImage string     `json:"bannerImage,omitempty"`
	Trailer     *Trailer   `json:"trailer,omitempty"`

	// Season is the airing season (WINTER, SPRING, SUMMER, FALL).
	Season     string `json:"season,omitempty"`
	SeasonYear int    `json:"seasonYear,omitempty"`
	Format     string `json:"format,omitempty"`
	Status     string `json:"status,omitempty"`
	Episodes   int    `json:"episodes,omitempty"`

	Genres []string `json:"genres,omitempty"`
	Tags   []Tag    `json:"tags,omitempty"`

	// AverageScore is the upstream community score (0-100).
	AverageScore int `json:"averageScore,omitempty"`

	// Popularity is the number of upstream users tracking the item.
	Popularity int `json:"popularity,omitempty"`

	StartDate FuzzyDate `json:"startDate"`
	EndDate   FuzzyDate `json:"endDate"`

	Studios []Studio    `json:"studios,omitempty"`
	Staff   []StaffEdge `json:"staff,omitempty"`
}

// Directors returns the names of staff credited in a directing role.
// Role matching is a case-insensitive substring check so variants like
// "Director", "Episode Director", and "Assistant Director" all count.
// A single item may credit multiple directors.
func (m *CatalogItem) Directors() []string {
	var directors []string
	for _, edge := range m.Staff {
		if edge.Name == "" {
			continue
		}
		if strings.Contains(strings.ToLower(edge.Role), "director") {
			directors = append(directors, edge.Name)
		}
	}
	return directors
}

// StudioNames returns the names of all credited studios.
func (m *CatalogItem) StudioNames() []string {
	names := make([]string, 0, len(m.Studios))
	for _, s := range m.Studios {
		if s.Name != "" {
			names = append(names, s.Name)
		}
	}
	return names
}

// PageInfo is the upstream pagination metadata.
type PageInfo struct {
	Total       int  `json:"total"`
	CurrentPage int  `json:"currentPage"`
	LastPage    int  `json:"lastPage"`
	HasNextPage bool `json:"hasNextPage"`
	PerPage     int  `json:"perPage"`
}

// CatalogPage is one page of catalog media. The "media" field is the shape
// discriminant the cache store validates on read-back.
type CatalogPage struct {
	Media    []CatalogItem `json:"media"`
	PageInfo PageInfo      `json:"pageInfo"`
}

// RatingsPage is one page of a user's rated media. The "mediaList" field is
// the shape discriminant the cache store validates on read-back.
type RatingsPage struct {
	MediaList []RatedItem `json:"mediaList"`
	PageInfo  PageInfo    `json:"pageInfo"`
}
