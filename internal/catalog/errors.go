// Aniscope - Anime Discovery and Preference Ranking
// Copyright 2026 Aniscope Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aniscope/aniscope

package catalog

import (
	"errors"
	"fmt"
)

// ErrUserNotFound is returned when a username does not resolve to an
// upstream account (typo or private profile). It is an expected, common case:
// callers degrade to an empty result rather than surfacing a failure.
var ErrUserNotFound = errors.New("user not found")

// UpstreamError reports a transport or HTTP-level failure talking to the
// GraphQL API: the API was unreachable or answered outside its contract's
// success path.
type UpstreamError struct {
	API        string // "catalog" or "ratings"
	StatusCode int    // 0 when the request never completed
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API request failed with status %d: %v", e.API, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s API request failed: %v", e.API, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ValidationError reports a reachable API returning a response that violates
// the expected contract (missing fields, unparsable payload). Kept distinct
// from UpstreamError so callers can tell "API down" from "API changed".
type ValidationError struct {
	API    string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s API contract violation: %s", e.API, e.Detail)
}

// retryable reports whether an HTTP status is worth retrying with backoff.
func retryable(status int) bool {
	return status == 429 || status >= 500
}
