package graph

import (
	"encoding/json"
	"fmt"
)

// Payload is the serialized graph document produced by the visual editor.
// UI-only fields (position, selection, viewport) are decoded but never
// influence execution semantics or fingerprints.
type Payload struct {
	ID       string          `json:"id"`
	Name     string          `json:"name" validate:"required"`
	Nodes    []NodePayload   `json:"nodes" validate:"required,min=1,dive"`
	Edges    []EdgePayload   `json:"edges" validate:"dive"`
	Viewport json.RawMessage `json:"viewport,omitempty"`
}

// NodePayload is one node entry of the graph document.
type NodePayload struct {
	ID         string                 `json:"id" validate:"required"`
	Type       string                 `json:"type" validate:"required"`
	Params     map[string]interface{} `json:"params,omitempty"`
	ParamTypes map[string]ParamType   `json:"param_types,omitempty"`
	Inputs     []Port                 `json:"inputs,omitempty"`
	Outputs    []Port                 `json:"outputs,omitempty"`

	// Cosmetic editor state, ignored for execution and fingerprinting.
	Position json.RawMessage `json:"position,omitempty"`
	Selected bool            `json:"selected,omitempty"`
}

// EdgePayload is one edge entry of the graph document.
type EdgePayload struct {
	Source       string `json:"source" validate:"required"`
	SourceOutput string `json:"source_output" validate:"required"`
	Target       string `json:"target" validate:"required"`
	TargetInput  string `json:"target_input" validate:"required"`
}

// DecodePayload parses a graph document from JSON.
func DecodePayload(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding graph payload: %w", err)
	}
	return &p, nil
}

// Flow converts the payload into the in-memory model, dropping UI-only
// fields. Structural problems (duplicate ids, dangling edges, undeclared
// ports) surface here, before any planning or execution.
func (p *Payload) Flow() (*Flow, error) {
	if len(p.Nodes) == 0 {
		return nil, ErrEmptyFlow
	}
	f := NewFlow(p.ID, p.Name)
	for i := range p.Nodes {
		n := &p.Nodes[i]
		v := &Vertex{
			ID:         n.ID,
			Type:       n.Type,
			Params:     n.Params,
			ParamTypes: n.ParamTypes,
			Inputs:     n.Inputs,
			Outputs:    n.Outputs,
		}
		if err := f.AddVertex(v); err != nil {
			return nil, err
		}
	}
	for i := range p.Edges {
		e := &p.Edges[i]
		edge := &Edge{
			Source:       e.Source,
			SourceOutput: e.SourceOutput,
			Target:       e.Target,
			TargetInput:  e.TargetInput,
		}
		if err := f.AddEdge(edge); err != nil {
			return nil, err
		}
	}
	f.BuildIndex()
	return f, nil
}
