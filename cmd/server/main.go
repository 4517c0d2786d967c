// Aniscope - Anime Discovery and Preference Ranking
// Copyright 2026 Aniscope Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aniscope/aniscope

// Aniscope server: seasonal anime catalog with per-user preference
// ranking, backed by a durable local cache over the AniList GraphQL API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/aniscope/aniscope/internal/api"
	"github.com/aniscope/aniscope/internal/cache"
	"github.com/aniscope/aniscope/internal/catalog"
	"github.com/aniscope/aniscope/internal/config"
	"github.com/aniscope/aniscope/internal/logging"
	"github.com/aniscope/aniscope/internal/rank"
	"github.com/aniscope/aniscope/internal/server"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logging.Info().
		Str("version", version).
		Str("upstream", cfg.Catalog.URL).
		Msg("Starting Aniscope")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := cache.New(cfg.Cache, logging.WithComponent("cache"))
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Cache.Path).Msg("Failed to open cache store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Cache store close failed")
		}
	}()

	source := catalog.New(cfg.Catalog, logging.WithComponent("catalog"))
	orch := rank.New(*cfg, source, store, logging.WithComponent("rank"))
	handler := api.NewHandler(*cfg, orch, store, logging.WithComponent("api"))

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(cfg.Server, handler),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// The sutureslog hook API is (&Handler{Logger: ...}).MustHook();
	// it bridges supervisor events into the application logger.
	hook := (&sutureslog.Handler{Logger: logging.NewSlogLogger()}).MustHook()
	supervisor := suture.New("aniscope", suture.Spec{
		EventHook:        hook,
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})
	supervisor.Add(server.NewHTTPService(httpServer, 10*time.Second))
	logging.Info().Str("addr", httpServer.Addr).Msg("HTTP server added to supervisor")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := supervisor.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutting down, waiting for supervisor")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor error")
		}
	}

	// Drain until the supervisor has fully stopped.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	logging.Info().Msg("Stopped")
}
