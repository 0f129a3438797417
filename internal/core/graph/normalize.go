package graph

import "sort"

// Normalized forms are the fingerprint inputs: canonical field order, no
// UI-only state, no mutable build state. encoding/json renders map keys in
// sorted order, so marshaling a normalized form is deterministic.

// NormalizedEdge is an incoming edge in canonical form.
type NormalizedEdge struct {
	Source       string `json:"source"`
	SourceOutput string `json:"source_output"`
	TargetInput  string `json:"target_input"`
}

// NormalizedVertex is one vertex in canonical form.
type NormalizedVertex struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Params     map[string]interface{} `json:"params,omitempty"`
	ParamTypes map[string]ParamType   `json:"param_types,omitempty"`
	Inputs     []Port                 `json:"inputs,omitempty"`
	Outputs    []Port                 `json:"outputs,omitempty"`
	Incoming   []NormalizedEdge       `json:"incoming,omitempty"`
}

// VertexSignature is the structural identity of a vertex: its own
// normalized form plus, recursively, the signatures of every predecessor.
// A parameter change anywhere upstream therefore changes the signature of
// all downstream vertices, while cosmetic edits change nothing.
type VertexSignature struct {
	Vertex       NormalizedVertex  `json:"vertex"`
	Predecessors []VertexSignature `json:"predecessors,omitempty"`
}

// NormalizeVertex returns the canonical form of one vertex including its
// incoming edge set.
func (f *Flow) NormalizeVertex(id string) (NormalizedVertex, error) {
	v, err := f.GetVertex(id)
	if err != nil {
		return NormalizedVertex{}, err
	}
	nv := NormalizedVertex{
		ID:         v.ID,
		Type:       v.Type,
		Params:     copyParams(v.Params),
		ParamTypes: copyParamTypes(v.ParamTypes),
		Inputs:     sortedPorts(v.Inputs),
		Outputs:    sortedPorts(v.Outputs),
	}
	for _, e := range f.IncomingEdges(id) {
		nv.Incoming = append(nv.Incoming, NormalizedEdge{
			Source:       e.Source,
			SourceOutput: e.SourceOutput,
			TargetInput:  e.TargetInput,
		})
	}
	sort.Slice(nv.Incoming, func(i, j int) bool {
		a, b := nv.Incoming[i], nv.Incoming[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.SourceOutput != b.SourceOutput {
			return a.SourceOutput < b.SourceOutput
		}
		return a.TargetInput < b.TargetInput
	})
	return nv, nil
}

// Signature returns the structural identity of a vertex and its entire
// upstream subgraph. The flow must be indexed.
func (f *Flow) Signature(id string) (VertexSignature, error) {
	if !f.indexed {
		f.BuildIndex()
	}
	memo := make(map[string]VertexSignature, len(f.Vertices))
	return f.signature(id, memo)
}

func (f *Flow) signature(id string, memo map[string]VertexSignature) (VertexSignature, error) {
	if sig, ok := memo[id]; ok {
		return sig, nil
	}
	nv, err := f.NormalizeVertex(id)
	if err != nil {
		return VertexSignature{}, err
	}
	sig := VertexSignature{Vertex: nv}
	for _, pred := range f.Predecessors(id) {
		ps, err := f.signature(pred, memo)
		if err != nil {
			return VertexSignature{}, err
		}
		sig.Predecessors = append(sig.Predecessors, ps)
	}
	memo[id] = sig
	return sig, nil
}

// Normalize returns the canonical form of the whole flow, keyed by vertex
// id, for run-level fingerprinting.
func (f *Flow) Normalize() (map[string]NormalizedVertex, error) {
	out := make(map[string]NormalizedVertex, len(f.Vertices))
	for id := range f.Vertices {
		nv, err := f.NormalizeVertex(id)
		if err != nil {
			return nil, err
		}
		out[id] = nv
	}
	return out, nil
}

// copyParams deep-copies a parameter map so a normalized form stays fixed
// when the live vertex is mutated afterwards (tweaks, builders).
func copyParams(src map[string]interface{}) map[string]interface{} {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = copyValue(v)
	}
	return dst
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return copyParams(t)
	case []interface{}:
		cp := make([]interface{}, len(t))
		for i, e := range t {
			cp[i] = copyValue(e)
		}
		return cp
	default:
		return v
	}
}

func copyParamTypes(src map[string]ParamType) map[string]ParamType {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]ParamType, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func sortedPorts(ports []Port) []Port {
	if len(ports) == 0 {
		return nil
	}
	cp := make([]Port, len(ports))
	copy(cp, ports)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Name < cp[j].Name })
	return cp
}
