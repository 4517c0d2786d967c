// Aniscope - Anime Discovery and Preference Ranking
// Copyright 2026 Aniscope Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aniscope/aniscope

package cache

import (
	"fmt"
	"sort"
	"strings"
)

// Namespace is the key prefix segment that separates entry families. Eviction
// sweeps are scoped to a single namespace and never touch unrelated ones.
type Namespace string

const (
	// NamespaceCatalog holds cached catalog pages.
	NamespaceCatalog Namespace = "catalog"

	// NamespaceRatings holds per-page rating fetches.
	NamespaceRatings Namespace = "ratings"

	// NamespaceCompleteRatings holds all-pages-merged rating snapshots.
	NamespaceCompleteRatings Namespace = "ratings_all"

	// NamespaceProfile holds aggregated preference profiles.
	NamespaceProfile Namespace = "profile"

	// NamespaceCombined holds per-item combined preference scores.
	NamespaceCombined Namespace = "combined"
)

// Key identifies a cache entry. It is an explicit sum type: each concrete
// key carries its own namespace and deterministic string form, replacing
// runtime field-presence sniffing with exhaustive typing.
type Key interface {
	// Namespace returns the key's entry family.
	Namespace() Namespace

	// Storage returns the full storage key including the namespace prefix.
	Storage() string
}

// CatalogKey identifies one cached catalog page.
type CatalogKey struct {
	Season  string
	Year    int
	Page    int
	PerPage int
}

// Namespace implements Key.
func (k CatalogKey) Namespace() Namespace { return NamespaceCatalog }

// Storage implements Key.
func (k CatalogKey) Storage() string {
	return fmt.Sprintf("%s:%s_%d_%d_%d",
		NamespaceCatalog, strings.ToLower(k.Season), k.Year, k.Page, k.PerPage)
}

// RatingsKey identifies one cached page of a user's ratings.
type RatingsKey struct {
	UserID  int
	Page    int
	PerPage int
}

// Namespace implements Key.
func (k RatingsKey) Namespace() Namespace { return NamespaceRatings }

// Storage implements Key.
func (k RatingsKey) Storage() string {
	return fmt.Sprintf("%s:user_%d_%d_%d", NamespaceRatings, k.UserID, k.Page, k.PerPage)
}

// CompleteRatingsKey identifies a user's merged rating snapshot.
type CompleteRatingsKey struct {
	UserID int
}

// Namespace implements Key.
func (k CompleteRatingsKey) Namespace() Namespace { return NamespaceCompleteRatings }

// Storage implements Key.
func (k CompleteRatingsKey) Storage() string {
	return fmt.Sprintf("%s:user_%d", NamespaceCompleteRatings, k.UserID)
}

// ProfileKey identifies an aggregated preference profile by username.
type ProfileKey struct {
	Username string
}

// Namespace implements Key.
func (k ProfileKey) Namespace() Namespace { return NamespaceProfile }

// Storage implements Key.
func (k ProfileKey) Storage() string {
	return fmt.Sprintf("%s:%s", NamespaceProfile, strings.ToLower(k.Username))
}

// CombinedScoreKey identifies a combined preference score for one item and a
// set of users. Usernames are sorted so key generation is order-independent.
type CombinedScoreKey struct {
	ItemID    int
	Usernames []string
}

// Namespace implements Key.
func (k CombinedScoreKey) Namespace() Namespace { return NamespaceCombined }

// Storage implements Key.
func (k CombinedScoreKey) Storage() string {
	names := make([]string, len(k.Usernames))
	for i, n := range k.Usernames {
		names[i] = strings.ToLower(n)
	}
	sort.Strings(names)
	return fmt.Sprintf("%s:%d_%s", NamespaceCombined, k.ItemID, strings.Join(names, "+"))
}
