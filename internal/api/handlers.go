// Aniscope - Anime Discovery and Preference Ranking
// Copyright 2026 Aniscope Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aniscope/aniscope

// Package api provides the HTTP surface over the ranking engine using the
// chi router. Responses are JSON; failures map to the engine's error
// taxonomy (unknown user 404, upstream unavailable or contract violation
// 502, everything else 500).
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/aniscope/aniscope/internal/cache"
	"github.com/aniscope/aniscope/internal/catalog"
	"github.com/aniscope/aniscope/internal/config"
	"github.com/aniscope/aniscope/internal/logging"
	"github.com/aniscope/aniscope/internal/models"
	"github.com/aniscope/aniscope/internal/rank"
)

// Handler holds the dependencies for all API endpoints.
type Handler struct {
	cfg   config.Config
	orch  *rank.Orchestrator
	store *cache.Store
	log   zerolog.Logger
}

// NewHandler creates the endpoint handler set. The store may be nil when
// caching is disabled; the cache endpoints then serve empty stats.
func NewHandler(cfg config.Config, orch *rank.Orchestrator, store *cache.Store, logger zerolog.Logger) *Handler {
	return &Handler{cfg: cfg, orch: orch, store: store, log: logger}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps engine errors to HTTP statuses. Logging goes through the
// request-scoped logger so the correlation id set by the RequestID middleware
// appears on every failure line.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var validation *catalog.ValidationError
	var upstream *catalog.UpstreamError

	switch {
	case errors.Is(err, catalog.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.As(err, &validation), errors.As(err, &upstream):
		status = http.StatusBadGateway
	}

	logger := logging.Ctx(r.Context())
	event := logger.Warn()
	if status == http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("Request failed")

	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// seasonFor maps a month to its airing season.
func seasonFor(t time.Time) (string, int) {
	switch {
	case t.Month() <= 3:
		return "WINTER", t.Year()
	case t.Month() <= 6:
		return "SPRING", t.Year()
	case t.Month() <= 9:
		return "SUMMER", t.Year()
	default:
		return "FALL", t.Year()
	}
}

// pageParams extracts season/year/page/perPage, defaulting to the current
// airing season and the configured page size.
func (h *Handler) pageParams(r *http.Request) (season string, year, page, perPage int) {
	season, year = seasonFor(time.Now())
	if s := r.URL.Query().Get("season"); s != "" {
		season = strings.ToUpper(s)
	}
	year = intParam(r, "year", year)
	page = intParam(r, "page", 1)
	perPage = intParam(r, "perPage", h.cfg.Catalog.PerPage)
	if perPage > 50 || perPage < 1 {
		perPage = h.cfg.Catalog.PerPage
	}
	return season, year, page, perPage
}

func intParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

// Catalog serves one cached season page without personalization. When the
// upstream is unavailable after retries, the response degrades to an empty
// page with zeroed pagination so the front end renders an empty grid rather
// than an error panel.
//
// GET /api/v1/catalog?season=WINTER&year=2026&page=1&perPage=50
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	season, year, page, perPage := h.pageParams(r)

	result, err := h.orch.CatalogPage(r.Context(), season, year, page, perPage)
	if err != nil {
		var upstream *catalog.UpstreamError
		if errors.As(err, &upstream) {
			h.log.Warn().Err(err).Msg("Upstream unavailable, serving empty catalog page")
			h.writeJSON(w, http.StatusOK, models.CatalogPage{Media: []models.CatalogItem{}})
			return
		}
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// Rankings serves the scored, sorted page for one or more users.
//
// GET /api/v1/rankings?users=alice,bob&season=WINTER&year=2026&sort=default&genre=Action
func (h *Handler) Rankings(w http.ResponseWriter, r *http.Request) {
	season, year, page, perPage := h.pageParams(r)

	var usernames []string
	if raw := r.URL.Query().Get("users"); raw != "" {
		for _, u := range strings.Split(raw, ",") {
			if u = strings.TrimSpace(u); u != "" {
				usernames = append(usernames, u)
			}
		}
	}

	result, err := h.orch.Rankings(r.Context(), rank.Request{
		Season:    season,
		Year:      year,
		Page:      page,
		PerPage:   perPage,
		Usernames: usernames,
		Sort:      r.URL.Query().Get("sort"),
		Genre:     r.URL.Query().Get("genre"),
		Format:    r.URL.Query().Get("format"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// Profile serves a user's aggregated preference profile. Unknown users get
// an empty profile, not an error: the front end renders that as "no history
// yet" rather than a failure panel.
//
// GET /api/v1/users/{username}/profile
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	profile, err := h.orch.Profile(r.Context(), username)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, profile)
}

// Ratings serves a user's complete merged rating history. Unlike Profile,
// an unknown username here is a hard 404: the endpoint's whole purpose is
// that user's data.
//
// GET /api/v1/users/{username}/ratings
func (h *Handler) Ratings(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	ratings, err := h.orch.CompleteRatings(r.Context(), username)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if ratings == nil {
		ratings = []models.RatedItem{}
	}
	h.writeJSON(w, http.StatusOK, models.RatingsPage{
		MediaList: ratings,
		PageInfo:  models.PageInfo{Total: len(ratings), CurrentPage: 1, LastPage: 1, PerPage: len(ratings)},
	})
}

// CacheStats reports cache occupancy by namespace.
//
// GET /api/v1/cache/stats
func (h *Handler) CacheStats(w http.ResponseWriter, _ *http.Request) {
	if h.store == nil {
		h.writeJSON(w, http.StatusOK, cache.Stats{ByNamespace: map[string]int{}})
		return
	}
	h.writeJSON(w, http.StatusOK, h.store.Stats())
}

// CacheClear drops every cache entry.
//
// DELETE /api/v1/cache
func (h *Handler) CacheClear(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		if err := h.store.Clear(); err != nil {
			h.writeError(w, r, err)
			return
		}
		h.log.Info().Msg("Cache cleared via API")
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health reports liveness.
//
// GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
