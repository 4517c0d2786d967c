// Aniscope - Anime Discovery and Preference Ranking
// Copyright 2026 Aniscope Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aniscope/aniscope

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aniscope/aniscope/internal/config"
)

// NewRouter assembles the chi router with the global middleware stack and
// all API routes. The browser front end is the primary consumer, so CORS is
// part of the global stack to answer OPTIONS preflights.
func NewRouter(cfg config.ServerConfig, handler *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.Limit(cfg.RateLimitReqs, cfg.RateLimitWindow, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Use(PrometheusMetrics())

		r.Get("/health", handler.Health)
		r.Get("/catalog", handler.Catalog)
		r.Get("/rankings", handler.Rankings)
		r.Get("/users/{username}/profile", handler.Profile)
		r.Get("/users/{username}/ratings", handler.Ratings)
		r.Get("/cache/stats", handler.CacheStats)
		r.Delete("/cache", handler.CacheClear)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
