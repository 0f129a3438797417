// Package memory provides an in-memory record store, the default when no
// database is configured. Suited for tests and single-process setups.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/flowengine/flowengine/internal/core/record"
)

// Store keeps run history in process memory with an optional cap on
// retained build records per flow.
type Store struct {
	mu        sync.RWMutex
	runs      map[string]*record.RunRecord
	builds    []*record.VertexBuildRecord
	maxBuilds int
}

// Option tunes a Store.
type Option func(*Store)

// WithMaxBuilds caps retained build records; the oldest are evicted first.
// Zero means unlimited.
func WithMaxBuilds(n int) Option {
	return func(s *Store) { s.maxBuilds = n }
}

// NewStore creates an empty in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{runs: make(map[string]*record.RunRecord)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveRun inserts or replaces a run record.
func (s *Store) SaveRun(_ context.Context, run *record.RunRecord) error {
	if err := run.Validate(); err != nil {
		return err
	}
	cp := *run
	s.mu.Lock()
	s.runs[run.ID] = &cp
	s.mu.Unlock()
	return nil
}

// SaveVertexBuild appends a build record.
func (s *Store) SaveVertexBuild(_ context.Context, build *record.VertexBuildRecord) error {
	if err := build.Validate(); err != nil {
		return err
	}
	cp := *build
	s.mu.Lock()
	s.builds = append(s.builds, &cp)
	if s.maxBuilds > 0 && len(s.builds) > s.maxBuilds {
		s.builds = s.builds[len(s.builds)-s.maxBuilds:]
	}
	s.mu.Unlock()
	return nil
}

// ListRuns returns matching run records, newest first.
func (s *Store) ListRuns(_ context.Context, filter record.Filter) ([]*record.RunRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	matched := make([]*record.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		if matchRun(run, filter) {
			cp := *run
			matched = append(matched, &cp)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})
	return paginateRuns(matched, filter), nil
}

// ListVertexBuilds returns matching build records, newest first.
func (s *Store) ListVertexBuilds(_ context.Context, filter record.Filter) ([]*record.VertexBuildRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	matched := make([]*record.VertexBuildRecord, 0, len(s.builds))
	for _, build := range s.builds {
		if matchBuild(build, filter) {
			cp := *build
			matched = append(matched, &cp)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	return paginateBuilds(matched, filter), nil
}

func matchRun(run *record.RunRecord, f record.Filter) bool {
	if f.FlowID != "" && run.FlowID != f.FlowID {
		return false
	}
	if f.RunID != "" && run.ID != f.RunID {
		return false
	}
	return inWindow(run.StartedAt, f)
}

func matchBuild(build *record.VertexBuildRecord, f record.Filter) bool {
	if f.FlowID != "" && build.FlowID != f.FlowID {
		return false
	}
	if f.RunID != "" && build.RunID != f.RunID {
		return false
	}
	if f.VertexID != "" && build.VertexID != f.VertexID {
		return false
	}
	return inWindow(build.Timestamp, f)
}

func inWindow(t time.Time, f record.Filter) bool {
	if f.Since != nil && !t.After(*f.Since) {
		return false
	}
	if f.Before != nil && !t.Before(*f.Before) {
		return false
	}
	return true
}

func paginateRuns(runs []*record.RunRecord, f record.Filter) []*record.RunRecord {
	if f.Offset > 0 {
		if f.Offset >= len(runs) {
			return nil
		}
		runs = runs[f.Offset:]
	}
	if f.Limit > 0 && len(runs) > f.Limit {
		runs = runs[:f.Limit]
	}
	return runs
}

func paginateBuilds(builds []*record.VertexBuildRecord, f record.Filter) []*record.VertexBuildRecord {
	if f.Offset > 0 {
		if f.Offset >= len(builds) {
			return nil
		}
		builds = builds[f.Offset:]
	}
	if f.Limit > 0 && len(builds) > f.Limit {
		builds = builds[:f.Limit]
	}
	return builds
}
