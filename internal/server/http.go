// Aniscope - Anime Discovery and Preference Ranking
// Copyright 2026 Aniscope Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aniscope/aniscope

// Package server adapts the HTTP server to suture's supervised service
// model, so a crashed listener is restarted with backoff instead of
// taking the process down.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Listener matches the *http.Server lifecycle methods the service needs.
// Tests substitute a mock.
type Listener interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService runs a Listener under a suture supervisor. ListenAndServe
// blocks, so it runs in a goroutine while Serve waits on the context;
// cancellation triggers a graceful Shutdown with its own deadline.
type HTTPService struct {
	listener        Listener
	shutdownTimeout time.Duration
}

// NewHTTPService wraps a listener for supervision.
func NewHTTPService(listener Listener, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{listener: listener, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service. Returns nil only when the listener
// stopped cleanly; http.ErrServerClosed is the expected shutdown signal
// and is not an error.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.listener.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		// The supervisor context is already canceled; shutdown needs
		// its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.listener.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

// String identifies the service in supervisor logs.
func (s *HTTPService) String() string {
	return "http-server"
}
