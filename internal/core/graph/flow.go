// Package graph provides the core flow-graph domain entities
// following Clean Architecture principles with zero external dependencies.
package graph

import (
	"fmt"
	"sort"

	"github.com/flowengine/flowengine/internal/core/artifact"
)

// Flow is the in-memory representation of a graph of vertices and directed
// edges. Derived adjacency indices are computed once per run by BuildIndex
// and are read-only afterwards, so concurrently executing vertex tasks may
// share them without locking.
type Flow struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Vertices map[string]*Vertex `json:"vertices"`
	Edges    []*Edge            `json:"edges"`

	indexed      bool
	inDegree     map[string]int
	successors   map[string][]string
	predecessors map[string][]string
}

// NewFlow creates an empty flow.
func NewFlow(id, name string) *Flow {
	return &Flow{
		ID:       id,
		Name:     name,
		Vertices: make(map[string]*Vertex),
	}
}

// AddVertex adds a vertex to the flow
func (f *Flow) AddVertex(v *Vertex) error {
	if v == nil {
		return ErrNilVertex
	}
	if err := v.Validate(); err != nil {
		return err
	}
	if f.Vertices == nil {
		f.Vertices = make(map[string]*Vertex)
	}
	if _, exists := f.Vertices[v.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateVertex, v.ID)
	}
	f.Vertices[v.ID] = v
	f.indexed = false
	return nil
}

// AddEdge adds an edge to the flow. Both endpoints must exist and must
// declare the named ports.
func (f *Flow) AddEdge(e *Edge) error {
	if e == nil {
		return ErrNilEdge
	}
	if err := e.Validate(); err != nil {
		return err
	}
	src, ok := f.Vertices[e.Source]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, e.Source)
	}
	dst, ok := f.Vertices[e.Target]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTargetNotFound, e.Target)
	}
	if !src.HasOutput(e.SourceOutput) {
		return fmt.Errorf("%w: %s.%s", ErrUnknownOutput, e.Source, e.SourceOutput)
	}
	if !dst.HasInput(e.TargetInput) {
		return fmt.Errorf("%w: %s.%s", ErrUnknownInput, e.Target, e.TargetInput)
	}
	for _, existing := range f.Edges {
		if existing.equal(e) {
			return ErrDuplicateEdge
		}
	}
	f.Edges = append(f.Edges, e)
	f.indexed = false
	return nil
}

// GetVertex returns a vertex by id.
func (f *Flow) GetVertex(id string) (*Vertex, error) {
	v, ok := f.Vertices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVertexNotFound, id)
	}
	return v, nil
}

// BuildIndex derives the in-degree, successor and predecessor maps. It is
// idempotent and must be re-run after any mutation.
func (f *Flow) BuildIndex() {
	f.inDegree = make(map[string]int, len(f.Vertices))
	f.successors = make(map[string][]string, len(f.Vertices))
	f.predecessors = make(map[string][]string, len(f.Vertices))

	for id := range f.Vertices {
		f.inDegree[id] = 0
	}
	seen := make(map[[2]string]bool, len(f.Edges))
	for _, e := range f.Edges {
		pair := [2]string{e.Source, e.Target}
		if seen[pair] {
			// Parallel edges between the same vertices feed distinct inputs
			// but count once for scheduling.
			continue
		}
		seen[pair] = true
		f.inDegree[e.Target]++
		f.successors[e.Source] = append(f.successors[e.Source], e.Target)
		f.predecessors[e.Target] = append(f.predecessors[e.Target], e.Source)
	}
	for _, adj := range []map[string][]string{f.successors, f.predecessors} {
		for _, ids := range adj {
			sort.Strings(ids)
		}
	}
	f.indexed = true
}

// Indexed reports whether the adjacency indices are current.
func (f *Flow) Indexed() bool { return f.indexed }

// InDegree returns the number of distinct predecessors feeding a vertex.
func (f *Flow) InDegree(id string) int { return f.inDegree[id] }

// Successors returns the ids of vertices depending on id, sorted.
func (f *Flow) Successors(id string) []string { return f.successors[id] }

// Predecessors returns the ids of vertices id depends on, sorted.
func (f *Flow) Predecessors(id string) []string { return f.predecessors[id] }

// PredecessorSet returns the direct predecessors of id as a set.
func (f *Flow) PredecessorSet(id string) map[string]bool {
	set := make(map[string]bool, len(f.predecessors[id]))
	for _, p := range f.predecessors[id] {
		set[p] = true
	}
	return set
}

// IncomingEdges returns the edges feeding a vertex.
func (f *Flow) IncomingEdges(id string) []*Edge {
	var in []*Edge
	for _, e := range f.Edges {
		if e.Target == id {
			in = append(in, e)
		}
	}
	return in
}

// ApplyTweaks overrides vertex parameters before a run. Tweaks targeting an
// unknown vertex are a structural error; the flow is left untouched in that
// case. Applying tweaks invalidates the adjacency indices so fingerprints
// and plans are recomputed.
func (f *Flow) ApplyTweaks(tweaks map[string]map[string]interface{}) error {
	for id := range tweaks {
		if _, ok := f.Vertices[id]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownTweakVertex, id)
		}
	}
	for id, params := range tweaks {
		v := f.Vertices[id]
		if v.Params == nil {
			v.Params = make(map[string]interface{}, len(params))
		}
		for name, value := range params {
			v.Params[name] = value
		}
	}
	if len(tweaks) > 0 {
		f.indexed = false
	}
	return nil
}

// ResetBuildState returns every vertex to unbuilt. Runs on a reused Flow
// object must not observe state from a previous run.
func (f *Flow) ResetBuildState() {
	for _, v := range f.Vertices {
		v.SetState(artifact.StateUnbuilt)
	}
}

// VertexIDs returns all vertex ids, sorted for determinism.
func (f *Flow) VertexIDs() []string {
	ids := make([]string, 0, len(f.Vertices))
	for id := range f.Vertices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
