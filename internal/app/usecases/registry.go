// Package usecases orchestrates runs: it binds parameters, executes
// vertices through the cache, and drives the layer-by-layer runner.
package usecases

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/flowengine/flowengine/internal/core/artifact"
)

// Builder produces a vertex's outputs from its resolved parameters. The
// returned map is keyed by output port name. Builders may return log
// entries alongside outputs; both end up in the build record.
type Builder interface {
	Build(ctx context.Context, params map[string]interface{}) (map[string]interface{}, []artifact.LogEntry, error)
}

// BuilderFunc adapts a function to the Builder interface.
type BuilderFunc func(ctx context.Context, params map[string]interface{}) (map[string]interface{}, []artifact.LogEntry, error)

func (f BuilderFunc) Build(ctx context.Context, params map[string]interface{}) (map[string]interface{}, []artifact.LogEntry, error) {
	return f(ctx, params)
}

// Registry maps vertex types to builders. Safe for concurrent use;
// registration normally happens once at startup.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry creates an empty builder registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register binds a vertex type to its builder. Re-registering a type
// replaces the previous builder.
func (r *Registry) Register(vertexType string, b Builder) error {
	if vertexType == "" {
		return fmt.Errorf("register builder: empty vertex type")
	}
	if b == nil {
		return fmt.Errorf("register builder: nil builder for type %q", vertexType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[vertexType] = b
	return nil
}

// Lookup returns the builder for a vertex type.
func (r *Registry) Lookup(vertexType string) (Builder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builders[vertexType]
	return b, ok
}

// Types lists the registered vertex types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.builders))
	for t := range r.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
