package models

import "errors"

var (
	// ErrDatasetNotFound covers both a missing dataset and an ownership
	// mismatch, so callers cannot probe for other users' dataset IDs.
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrInvalidFilters marks malformed filter input from the client.
	ErrInvalidFilters = errors.New("invalid filters")

	// ErrNarrativeUnavailable wraps any narrative-generation failure
	// (network, timeout, malformed model response).
	ErrNarrativeUnavailable = errors.New("narrative generation unavailable")

	// ErrCacheMiss is returned by cache tiers when a key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")
)
