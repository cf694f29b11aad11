// Package domain holds the error taxonomy shared across the pipeline.
package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimited signals the identity exhausted its search quota.
	ErrRateLimited = errors.New("rate limited")
	// ErrGeocodeNotFound signals the destination text resolved to nothing.
	ErrGeocodeNotFound = errors.New("destination not found")
	// ErrGeocodeService signals a non-OK geocoder status.
	ErrGeocodeService = errors.New("geocoding service error")
	// ErrSourceUnavailable signals the source place metadata could not be
	// fetched. Fatal to a search: scoring needs the source place.
	ErrSourceUnavailable = errors.New("source place unavailable")
	// ErrDirectoryUnavailable signals a place directory failure.
	ErrDirectoryUnavailable = errors.New("place directory unavailable")
	// ErrSearchInFlight signals a second execute against an orchestrator
	// that is already running a search.
	ErrSearchInFlight = errors.New("search already in flight")
	// ErrCacheEntryNotFound signals a missing results-cache entry.
	ErrCacheEntryNotFound = errors.New("cache entry not found")
	// ErrPipelineInternal is the catch-all for unexpected stage failures.
	ErrPipelineInternal = errors.New("pipeline internal error")
)

// RateLimitScope attributes which identity limit blocked a request.
type RateLimitScope string

// Rate limit scopes, reported user before IP.
const (
	ScopeUser RateLimitScope = "user"
	ScopeIP   RateLimitScope = "ip"
)

// RateLimitError wraps ErrRateLimited with the blocking scope and the time
// the window resets.
type RateLimitError struct {
	Scope   RateLimitScope
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s (%s limit, resets at %s)",
		ErrRateLimited.Error(), e.Scope, e.ResetAt.UTC().Format(time.RFC3339))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// GeocodeNotFoundError wraps ErrGeocodeNotFound with the literal
// destination text so the user can correct it.
type GeocodeNotFoundError struct {
	Query string
}

func (e *GeocodeNotFoundError) Error() string {
	return fmt.Sprintf("%s: %q", ErrGeocodeNotFound.Error(), e.Query)
}

func (e *GeocodeNotFoundError) Unwrap() error { return ErrGeocodeNotFound }

// PipelineError records which stage failed and why. Exactly one of these
// surfaces per failed search.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("stage %s: %s", e.Stage, e.Err.Error())
}

func (e *PipelineError) Unwrap() error { return e.Err }
