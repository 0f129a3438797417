package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/flowengine/flowengine/internal/core/artifact"
	imetrics "github.com/flowengine/flowengine/internal/infrastructure/metrics"
)

// Backend is an optional cold store behind the in-process LRU. Backend
// failures degrade to cache-miss behavior; they are logged and counted but
// never fail a run.
type Backend interface {
	Get(ctx context.Context, fingerprint string) (*artifact.BuildResult, error)
	Put(ctx context.Context, fingerprint string, result *artifact.BuildResult) error
}

// Store maps structural fingerprints to build results. It is safe for
// concurrent use and is shared across runs and across different flows:
// entries are keyed by content, so cross-run sharing cannot leak state.
type Store struct {
	lru     *lru.Cache[string, *artifact.BuildResult]
	group   singleflight.Group
	backend Backend
	logger  *zap.Logger
}

const defaultCapacity = 1024

// NewStore creates a bounded cache. A nil logger defaults to no-op; a nil
// backend disables the cold tier.
func NewStore(capacity int, backend Backend, logger *zap.Logger) (*Store, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l, err := lru.NewWithEvict[string, *artifact.BuildResult](capacity, func(string, *artifact.BuildResult) {
		imetrics.IncCacheEvictions()
	})
	if err != nil {
		return nil, err
	}
	return &Store{lru: l, backend: backend, logger: logger.Named("cache")}, nil
}

// DefaultStore creates a Store with the default capacity and no backend.
func DefaultStore() *Store {
	s, err := NewStore(defaultCapacity, nil, nil)
	if err != nil {
		// Unreachable with a positive constant capacity.
		panic(err)
	}
	return s
}

// Get returns the cached result for a fingerprint, consulting the cold
// backend on an LRU miss.
func (s *Store) Get(ctx context.Context, fingerprint string) (*artifact.BuildResult, bool) {
	if r, ok := s.lru.Get(fingerprint); ok {
		imetrics.IncCacheHits()
		return r, true
	}
	if s.backend != nil {
		r, err := s.backend.Get(ctx, fingerprint)
		if err != nil {
			imetrics.IncCacheBackendErrs()
			s.logger.Warn("backend get failed; treating as miss",
				zap.String("fingerprint", fingerprint), zap.Error(err))
		} else if r != nil {
			s.lru.Add(fingerprint, r)
			imetrics.IncCacheHits()
			return r, true
		}
	}
	imetrics.IncCacheMisses()
	return nil, false
}

// Put stores a successful result under its fingerprint.
func (s *Store) Put(ctx context.Context, fingerprint string, result *artifact.BuildResult) {
	if result == nil || !result.OK() {
		return
	}
	s.lru.Add(fingerprint, result)
	if s.backend != nil {
		if err := s.backend.Put(ctx, fingerprint, result); err != nil {
			imetrics.IncCacheBackendErrs()
			s.logger.Warn("backend put failed",
				zap.String("fingerprint", fingerprint), zap.Error(err))
		}
	}
}

// BuildOnce returns the cached result for the fingerprint or invokes build
// exactly once, even under concurrent callers: requests arriving while the
// first build for the same fingerprint is in flight wait for it instead of
// duplicating work. The bool reports whether the result came from cache.
func (s *Store) BuildOnce(
	ctx context.Context,
	fingerprint string,
	build func(ctx context.Context) (*artifact.BuildResult, error),
) (*artifact.BuildResult, bool, error) {
	if r, ok := s.Get(ctx, fingerprint); ok {
		return r, true, nil
	}
	// Only the caller whose closure actually ran did the work; callers
	// collapsed onto an in-flight build received a cached result.
	executed := false
	v, err, _ := s.group.Do(fingerprint, func() (interface{}, error) {
		executed = true
		r, err := build(ctx)
		if err != nil {
			return nil, err
		}
		s.Put(ctx, fingerprint, r)
		return r, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*artifact.BuildResult), !executed, nil
}

// Len returns the number of warm entries.
func (s *Store) Len() int { return s.lru.Len() }

// Purge drops every warm entry. The cold backend is untouched.
func (s *Store) Purge() { s.lru.Purge() }
