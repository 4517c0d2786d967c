// Aniscope - Anime Discovery and Preference Ranking
// Copyright 2026 Aniscope Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aniscope/aniscope

// Package catalog implements the client for the upstream GraphQL media API:
// season catalog pages, username resolution, and per-user rating lists.
//
// Resilience mechanisms:
//   - Rate limiting: a token bucket sized to the upstream per-minute budget
//   - Retries: exponential backoff on 429/5xx and transport errors, up to a
//     configured attempt cap
//   - Circuit breaker: opens after 60% failures over a minimum of 10
//     requests, rejecting calls outright until the upstream recovers
//
// All methods accept a context for cancellation and are safe for concurrent
// use.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/aniscope/aniscope/internal/config"
	"github.com/aniscope/aniscope/internal/metrics"
	"github.com/aniscope/aniscope/internal/models"
)

// maxErrorBodySize bounds how much of an error response body is read for
// diagnostics.
const maxErrorBodySize = 64 * 1024

// maxResponseBodySize bounds how much of a success response body is read. A
// full 50-item season page with descriptions, tags, and staff runs well past
// 100KB, so this cap only guards against a pathological upstream.
const maxResponseBodySize = 8 * 1024 * 1024

// API names the two logical upstream surfaces for metrics and errors.
const (
	apiCatalog = "catalog"
	apiRatings = "ratings"
)

// Source is the read-only upstream data source consumed by the orchestrator.
// Implemented by Client in production and by mocks in tests.
type Source interface {
	FetchSeasonPage(ctx context.Context, season string, year, page, perPage int) (*models.CatalogPage, error)
	ResolveUserID(ctx context.Context, username string) (int, error)
	FetchRatingsPage(ctx context.Context, userID, page, perPage int) (*models.RatingsPage, error)
}

// Client talks to the upstream GraphQL endpoint.
type Client struct {
	cfg        config.CatalogConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	cb         *gobreaker.CircuitBreaker[*gqlResult]
	log        zerolog.Logger
}

var _ Source = (*Client)(nil)

// gqlResult is a completed HTTP exchange: status plus raw body.
type gqlResult struct {
	status int
	body   []byte
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlErrorEntry struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlErrorEntry `json:"errors"`
}

// New creates a catalog client for the configured endpoint.
func New(cfg config.CatalogConfig, logger zerolog.Logger) *Client {
	cbName := "graphql-upstream"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[*gqlResult](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(
			rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)),
			cfg.RequestsPerMinute,
		),
		cb:  cb,
		log: logger,
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// FetchSeasonPage returns one page of the seasonal catalog, sorted by
// popularity descending.
func (c *Client) FetchSeasonPage(ctx context.Context, season string, year, page, perPage int) (*models.CatalogPage, error) {
	data, err := c.do(ctx, apiCatalog, seasonPageQuery, map[string]any{
		"season":     season,
		"seasonYear": year,
		"page":       page,
		"perPage":    perPage,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Page *wirePage `json:"Page"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &ValidationError{API: apiCatalog, Detail: fmt.Sprintf("unparsable page payload: %v", err)}
	}
	if payload.Page == nil || payload.Page.Media == nil {
		return nil, &ValidationError{API: apiCatalog, Detail: "response missing Page.media"}
	}

	out := &models.CatalogPage{
		Media:    make([]models.CatalogItem, 0, len(*payload.Page.Media)),
		PageInfo: payload.Page.PageInfo,
	}
	for i := range *payload.Page.Media {
		out.Media = append(out.Media, (*payload.Page.Media)[i].toModel())
	}
	return out, nil
}

// ResolveUserID resolves a username to its numeric upstream id. An unknown
// or private account returns ErrUserNotFound, not an upstream error.
func (c *Client) ResolveUserID(ctx context.Context, username string) (int, error) {
	data, err := c.do(ctx, apiRatings, userQuery, map[string]any{"name": username})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}

	var payload struct {
		User *wireUser `json:"User"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, &ValidationError{API: apiRatings, Detail: fmt.Sprintf("unparsable user payload: %v", err)}
	}
	if payload.User == nil || payload.User.ID == 0 {
		return 0, ErrUserNotFound
	}
	return payload.User.ID, nil
}

// FetchRatingsPage returns one page of a user's rated media list.
func (c *Client) FetchRatingsPage(ctx context.Context, userID, page, perPage int) (*models.RatingsPage, error) {
	data, err := c.do(ctx, apiRatings, ratingsPageQuery, map[string]any{
		"userId":  userID,
		"page":    page,
		"perPage": perPage,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Page *wirePage `json:"Page"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &ValidationError{API: apiRatings, Detail: fmt.Sprintf("unparsable page payload: %v", err)}
	}
	if payload.Page == nil || payload.Page.MediaList == nil {
		return nil, &ValidationError{API: apiRatings, Detail: "response missing Page.mediaList"}
	}

	out := &models.RatingsPage{
		MediaList: make([]models.RatedItem, 0, len(*payload.Page.MediaList)),
		PageInfo:  payload.Page.PageInfo,
	}
	for i := range *payload.Page.MediaList {
		out.MediaList = append(out.MediaList, (*payload.Page.MediaList)[i].toModel())
	}
	return out, nil
}

// do executes one GraphQL request with rate limiting, circuit breaking, and
// exponential-backoff retries on transient failures.
func (c *Client) do(ctx context.Context, api, query string, variables map[string]any) (json.RawMessage, error) {
	payload, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.UpstreamRetries.WithLabelValues(api).Inc()
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &UpstreamError{API: api, Err: err}
		}

		start := time.Now()
		result, err := c.cb.Execute(func() (*gqlResult, error) {
			return c.post(ctx, payload)
		})
		metrics.UpstreamRequestDuration.WithLabelValues(api).Observe(time.Since(start).Seconds())

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				metrics.UpstreamRequests.WithLabelValues(api, "rejected").Inc()
				return nil, &UpstreamError{API: api, Err: err}
			}
			metrics.UpstreamRequests.WithLabelValues(api, "error").Inc()
			lastErr = &UpstreamError{API: api, Err: err}
			c.log.Warn().Err(err).Str("api", api).Int("attempt", attempt+1).Msg("Upstream request failed")
			continue
		}

		if retryable(result.status) {
			metrics.UpstreamRequests.WithLabelValues(api, "error").Inc()
			lastErr = &UpstreamError{API: api, StatusCode: result.status, Err: errors.New(string(truncate(result.body)))}
			c.log.Warn().Int("status", result.status).Str("api", api).Int("attempt", attempt+1).Msg("Upstream returned retryable status")
			continue
		}

		data, err := c.parse(api, result)
		if err != nil {
			metrics.UpstreamRequests.WithLabelValues(api, "error").Inc()
			return nil, err
		}
		metrics.UpstreamRequests.WithLabelValues(api, "success").Inc()
		return data, nil
	}

	return nil, lastErr
}

// parse decodes a completed exchange into the GraphQL data payload,
// translating GraphQL-level errors into the error taxonomy.
func (c *Client) parse(api string, result *gqlResult) (json.RawMessage, error) {
	var resp gqlResponse
	if err := json.Unmarshal(result.body, &resp); err != nil {
		return nil, &ValidationError{API: api, Detail: fmt.Sprintf("unparsable response body: %v", err)}
	}

	if len(resp.Errors) > 0 {
		for _, e := range resp.Errors {
			if e.Status == 404 {
				return nil, ErrUserNotFound
			}
		}
		return nil, &UpstreamError{
			API:        api,
			StatusCode: result.status,
			Err:        errors.New(resp.Errors[0].Message),
		}
	}

	if result.status != http.StatusOK {
		return nil, &UpstreamError{API: api, StatusCode: result.status, Err: errors.New(string(truncate(result.body)))}
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil, &ValidationError{API: api, Detail: "response has neither data nor errors"}
	}
	return resp.Data, nil
}

// post performs the HTTP exchange. Transport errors and 5xx responses are
// returned as errors so the circuit breaker counts them as failures;
// contract-level statuses (404, 400) come back as results.
func (c *Client) post(ctx context.Context, payload []byte) (*gqlResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // read side already consumed

	if resp.StatusCode >= 500 {
		// Error bodies are only read for diagnostics, so a tight cap is fine.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, fmt.Errorf("upstream status %d: %s", resp.StatusCode, truncate(body))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, err
	}
	return &gqlResult{status: resp.StatusCode, body: body}, nil
}

// backoff sleeps for an exponentially growing delay, honoring cancellation.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	delay := c.cfg.RetryBaseDelay << (attempt - 1)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

func truncate(body []byte) []byte {
	const limit = 256
	if len(body) > limit {
		return body[:limit]
	}
	return body
}
