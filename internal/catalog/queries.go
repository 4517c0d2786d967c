// Aniscope - Anime Discovery and Preference Ranking
// Copyright 2026 Aniscope Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aniscope/aniscope

package catalog

import (
	"time"

	"github.com/aniscope/aniscope/internal/models"
)

// GraphQL documents for the three upstream operations. The media field set
// is shared between the season browse and the per-user rating list so both
// paths hydrate the same CatalogItem shape.

const mediaFields = `
id
title { romaji english native }
description
coverImage { extraLarge large medium color }
bannerImage
trailer { id site thumbnail }
season
seasonYear
format
status
episodes
genres
tags { name rank category }
averageScore
popularity
startDate { year month day }
endDate { year month day }
studios(isMain: true) { nodes { id name } }
staff { edges { role node { name { full } } } }
`

const seasonPageQuery = `
query ($season: MediaSeason, $seasonYear: Int, $page: Int, $perPage: Int) {
  Page(page: $page, perPage: $perPage) {
    pageInfo { total currentPage lastPage hasNextPage perPage }
    media(season: $season, seasonYear: $seasonYear, type: ANIME, sort: POPULARITY_DESC) {
      ` + mediaFields + `
    }
  }
}`

const userQuery = `
query ($name: String) {
  User(name: $name) { id name }
}`

const ratingsPageQuery = `
query ($userId: Int, $page: Int, $perPage: Int) {
  Page(page: $page, perPage: $perPage) {
    pageInfo { total currentPage lastPage hasNextPage perPage }
    mediaList(userId: $userId, type: ANIME, status_in: [COMPLETED, CURRENT, REPEATING]) {
      score
      completedAt { year month day }
      createdAt
      media {
        ` + mediaFields + `
      }
    }
  }
}`

// Wire types mirror the upstream response nesting, which differs from the
// flat internal model (studios under nodes, staff names under node.name.full).

type wireStudios struct {
	Nodes []models.Studio `json:"nodes"`
}

type wireStaffName struct {
	Full string `json:"full"`
}

type wireStaffNode struct {
	Name wireStaffName `json:"name"`
}

type wireStaffEdge struct {
	Role string        `json:"role"`
	Node wireStaffNode `json:"node"`
}

type wireStaff struct {
	Edges []wireStaffEdge `json:"edges"`
}

type wireMedia struct {
	ID           int              `json:"id"`
	Title        models.Title     `json:"title"`
	Description  string           `json:"description"`
	CoverImage   models.CoverImage `json:"coverImage"`
	BannerImage  string           `json:"bannerImage"`
	Trailer      *models.Trailer  `json:"trailer"`
	Season       string           `json:"season"`
	SeasonYear   int              `json:"seasonYear"`
	Format       string           `json:"format"`
	Status       string           `json:"status"`
	Episodes     int              `json:"episodes"`
	Genres       []string         `json:"genres"`
	Tags         []models.Tag     `json:"tags"`
	AverageScore int              `json:"averageScore"`
	Popularity   int              `json:"popularity"`
	StartDate    models.FuzzyDate `json:"startDate"`
	EndDate      models.FuzzyDate `json:"endDate"`
	Studios      wireStudios      `json:"studios"`
	Staff        wireStaff        `json:"staff"`
}

func (w *wireMedia) toModel() models.CatalogItem {
	item := models.CatalogItem{
		ID:           w.ID,
		Title:        w.Title,
		Description:  w.Description,
		CoverImage:   w.CoverImage,
		BannerImage:  w.BannerImage,
		Trailer:      w.Trailer,
		Season:       w.Season,
		SeasonYear:   w.SeasonYear,
		Format:       w.Format,
		Status:       w.Status,
		Episodes:     w.Episodes,
		Genres:       w.Genres,
		Tags:         w.Tags,
		AverageScore: w.AverageScore,
		Popularity:   w.Popularity,
		StartDate:    w.StartDate,
		EndDate:      w.EndDate,
		Studios:      w.Studios.Nodes,
	}
	for _, edge := range w.Staff.Edges {
		item.Staff = append(item.Staff, models.StaffEdge{Role: edge.Role, Name: edge.Node.Name.Full})
	}
	return item
}

// wirePage uses pointer slices so an absent field (contract violation) is
// distinguishable from a legitimately empty result list.
type wirePage struct {
	PageInfo  models.PageInfo  `json:"pageInfo"`
	Media     *[]wireMedia     `json:"media"`
	MediaList *[]wireListEntry `json:"mediaList"`
}

type wireListEntry struct {
	Score       float64          `json:"score"`
	CompletedAt models.FuzzyDate `json:"completedAt"`
	CreatedAt   int64            `json:"createdAt"`
	Media       wireMedia        `json:"media"`
}

func (w *wireListEntry) toModel() models.RatedItem {
	item := models.RatedItem{
		ItemID:      w.Media.ID,
		Score:       w.Score,
		CompletedAt: w.CompletedAt.Time(),
		Media:       w.Media.toModel(),
	}
	if w.CreatedAt > 0 {
		item.CreatedAt = time.Unix(w.CreatedAt, 0).UTC()
	}
	return item
}

type wireUser struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
