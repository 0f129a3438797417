package validation

import (
	"errors"
	"fmt"

	"github.com/flowengine/flowengine/internal/core/graph"
)

// FlowOptions controls optional flow checks.
type FlowOptions struct {
	// CheckCycles enables directed cycle detection. Planning rejects
	// cycles anyway; enable this to fail earlier, at save time.
	CheckCycles bool
}

// ValidateFlow performs structural validation on an assembled flow. It is
// meant for flows arriving from external sources where the construction
// guards may have been bypassed.
func ValidateFlow(f *graph.Flow, opts ...FlowOptions) error {
	if f == nil {
		return errors.New("flow is nil")
	}
	if f.ID == "" {
		return errors.New("flow ID is empty")
	}
	if len(f.Vertices) == 0 {
		return graph.ErrEmptyFlow
	}

	for id, v := range f.Vertices {
		if v == nil {
			return fmt.Errorf("%w: %s", graph.ErrNilVertex, id)
		}
		if err := v.Validate(); err != nil {
			return fmt.Errorf("vertex %s: %w", id, err)
		}
	}

	type edgeKey struct{ s, so, t, ti string }
	seen := make(map[edgeKey]bool, len(f.Edges))
	for _, e := range f.Edges {
		if e == nil {
			return graph.ErrNilEdge
		}
		if err := e.Validate(); err != nil {
			return err
		}
		src, ok := f.Vertices[e.Source]
		if !ok {
			return fmt.Errorf("%w: %s", graph.ErrSourceNotFound, e.Source)
		}
		dst, ok := f.Vertices[e.Target]
		if !ok {
			return fmt.Errorf("%w: %s", graph.ErrTargetNotFound, e.Target)
		}
		if !src.HasOutput(e.SourceOutput) {
			return fmt.Errorf("%w: %s.%s", graph.ErrUnknownOutput, e.Source, e.SourceOutput)
		}
		if !dst.HasInput(e.TargetInput) {
			return fmt.Errorf("%w: %s.%s", graph.ErrUnknownInput, e.Target, e.TargetInput)
		}
		k := edgeKey{e.Source, e.SourceOutput, e.Target, e.TargetInput}
		if seen[k] {
			return graph.ErrDuplicateEdge
		}
		seen[k] = true
	}

	var cfg FlowOptions
	if len(opts) > 0 {
		cfg = opts[0]
	}
	if cfg.CheckCycles && hasCycle(f) {
		return graph.ErrCyclicGraph
	}
	return nil
}

// hasCycle runs DFS with coloring over the edge list.
func hasCycle(f *graph.Flow) bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(f.Vertices))
	adj := make(map[string][]string, len(f.Vertices))
	for _, e := range f.Edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
	}
	var dfs func(string) bool
	dfs = func(u string) bool {
		color[u] = gray
		for _, v := range adj[u] {
			if color[v] == gray {
				return true
			}
			if color[v] == white && dfs(v) {
				return true
			}
		}
		color[u] = black
		return false
	}
	for id := range f.Vertices {
		if color[id] == white && dfs(id) {
			return true
		}
	}
	return false
}
