package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/flowengine/flowengine/internal/core/reference"
)

// PlanLayers computes a valid build order as layers of vertex ids: each
// layer contains every vertex whose remaining in-degree is zero, so members
// of one layer may build concurrently while layers themselves are strictly
// ordered (Kahn-style topological layering).
//
// Planning fails before any execution when the flow contains a cycle, when
// a required input has neither a feeding edge nor a default, or when a
// parameter reference points outside the vertex's predecessor set.
func PlanLayers(f *Flow) ([][]string, error) {
	if len(f.Vertices) == 0 {
		return nil, ErrEmptyFlow
	}
	if !f.indexed {
		f.BuildIndex()
	}
	if err := checkRequiredInputs(f); err != nil {
		return nil, err
	}
	if err := checkReferences(f); err != nil {
		return nil, err
	}

	remaining := make(map[string]int, len(f.Vertices))
	for id := range f.Vertices {
		remaining[id] = f.InDegree(id)
	}

	var layers [][]string
	placed := 0
	for placed < len(f.Vertices) {
		var layer []string
		for id, deg := range remaining {
			if deg == 0 {
				layer = append(layer, id)
			}
		}
		if len(layer) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrCyclicGraph, strings.Join(sortedKeys(remaining), ", "))
		}
		sort.Strings(layer)
		for _, id := range layer {
			delete(remaining, id)
			for _, succ := range f.Successors(id) {
				remaining[succ]--
			}
		}
		layers = append(layers, layer)
		placed += len(layer)
	}
	return layers, nil
}

// checkRequiredInputs fails fast for any vertex with a required input that
// no edge feeds and no default covers. An isolated vertex with no declared
// inputs is a valid entry point and passes.
func checkRequiredInputs(f *Flow) error {
	for _, id := range f.VertexIDs() {
		v := f.Vertices[id]
		fed := make(map[string]bool)
		for _, e := range f.IncomingEdges(id) {
			fed[e.TargetInput] = true
		}
		for _, in := range v.Inputs {
			if in.Required && !fed[in.Name] && in.Default == nil {
				return fmt.Errorf("%w: vertex %s input %s", ErrMissingDependency, id, in.Name)
			}
		}
	}
	return nil
}

// checkReferences verifies at plan time that every parameter reference
// targets a direct or transitive predecessor with the named declared
// output. Referencing anything else is a configuration error, caught here
// so binding can assume referenced vertices are already built.
func checkReferences(f *Flow) error {
	for _, id := range f.VertexIDs() {
		v := f.Vertices[id]
		upstream := f.transitivePredecessors(id)
		for _, ref := range collectRefs(v.Params) {
			src, ok := f.Vertices[ref.Node]
			if !ok || !upstream[ref.Node] {
				return fmt.Errorf("%w: vertex %s references @%s", ErrRefOutsideParents, id, ref.Node)
			}
			if !src.HasOutput(ref.Output) {
				return fmt.Errorf("%w: %s.%s", ErrUnknownOutput, ref.Node, ref.Output)
			}
		}
	}
	return nil
}

// transitivePredecessors returns every vertex reachable by walking
// dependency edges backwards from id.
func (f *Flow) transitivePredecessors(id string) map[string]bool {
	seen := make(map[string]bool)
	stack := append([]string(nil), f.Predecessors(id)...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		stack = append(stack, f.Predecessors(cur)...)
	}
	return seen
}

// collectRefs scans a parameter value tree for reference expressions in
// string leaves.
func collectRefs(value interface{}) []reference.Ref {
	var refs []reference.Ref
	switch v := value.(type) {
	case string:
		for _, m := range reference.Scan(v) {
			refs = append(refs, m.Ref)
		}
	case []interface{}:
		for _, item := range v {
			refs = append(refs, collectRefs(item)...)
		}
	case map[string]interface{}:
		for _, item := range v {
			refs = append(refs, collectRefs(item)...)
		}
	}
	return refs
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
