// Package graphrepo stores flow definitions for the serving layer.
package graphrepo

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/flowengine/flowengine/internal/core/graph"
	"github.com/flowengine/flowengine/pkg/validation"
)

// FlowRepository is the storage interface for flow definitions.
type FlowRepository interface {
	Save(ctx context.Context, f *graph.Flow) error
	Get(ctx context.Context, id string) (*graph.Flow, error)
	List(ctx context.Context) ([]*graph.Flow, error)
	Delete(ctx context.Context, id string) error
}

// InMemoryFlowRepository keeps flows in a process-local map. Flows are
// validated structurally on save.
type InMemoryFlowRepository struct {
	mu    sync.RWMutex
	flows map[string]*graph.Flow
}

// NewInMemoryFlowRepository creates an empty repository.
func NewInMemoryFlowRepository() *InMemoryFlowRepository {
	return &InMemoryFlowRepository{flows: make(map[string]*graph.Flow)}
}

// Save validates and stores a flow, replacing any previous definition.
func (r *InMemoryFlowRepository) Save(ctx context.Context, f *graph.Flow) error {
	if err := validation.ValidateFlow(f); err != nil {
		return fmt.Errorf("invalid flow: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flows[f.ID] = f
	return nil
}

// Get returns a stored flow by ID.
func (r *InMemoryFlowRepository) Get(ctx context.Context, id string) (*graph.Flow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.flows[id]
	if !ok {
		return nil, graph.ErrFlowNotFound
	}
	return f, nil
}

// List returns all stored flows sorted by ID.
func (r *InMemoryFlowRepository) List(ctx context.Context) ([]*graph.Flow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*graph.Flow, 0, len(r.flows))
	for _, f := range r.flows {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Delete removes a flow by ID.
func (r *InMemoryFlowRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.flows[id]; !ok {
		return graph.ErrFlowNotFound
	}
	delete(r.flows, id)
	return nil
}
