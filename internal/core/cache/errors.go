// Package cache defines domain-specific errors
package cache

import "errors"

var (
	// ErrBackend wraps failures of the optional cold backend. Callers treat
	// it as a miss; it never fails a run.
	ErrBackend = errors.New("cache backend error")
	// ErrInvalidCapacity is returned for a non-positive LRU size.
	ErrInvalidCapacity = errors.New("cache capacity must be positive")
)
