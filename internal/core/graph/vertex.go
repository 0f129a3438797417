// Package graph provides vertex definitions
package graph

import (
	"sync"

	"github.com/flowengine/flowengine/internal/core/artifact"
)

// ParamType is the declared coercion type of a vertex parameter.
type ParamType string

const (
	ParamTypeString ParamType = "string"
	ParamTypeInt    ParamType = "int"
	ParamTypeFloat  ParamType = "float"
	ParamTypeBool   ParamType = "bool"
	ParamTypeList   ParamType = "list"
	ParamTypeDict   ParamType = "dict"
	// ParamTypeAny disables coercion; the bound value passes through as-is.
	ParamTypeAny ParamType = "any"
)

// Valid reports whether t is a known parameter type.
func (t ParamType) Valid() bool {
	switch t {
	case ParamTypeString, ParamTypeInt, ParamTypeFloat, ParamTypeBool,
		ParamTypeList, ParamTypeDict, ParamTypeAny:
		return true
	}
	return false
}

// Port declares a named input or output of a vertex.
type Port struct {
	Name     string      `json:"name"`
	Required bool        `json:"required,omitempty"`
	Default  interface{} `json:"default,omitempty"`
}

// Vertex represents one unit of work in a flow: a stable slug, a type tag
// selecting the external build logic, raw parameter configuration and
// declared ports. Its build state is mutable and owned by the flow for the
// duration of a run.
type Vertex struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Params     map[string]interface{} `json:"params,omitempty"`
	ParamTypes map[string]ParamType   `json:"param_types,omitempty"`
	Inputs     []Port                 `json:"inputs,omitempty"`
	Outputs    []Port                 `json:"outputs,omitempty"`

	mu    sync.Mutex
	state artifact.State
}

// Validate ensures vertex integrity
func (v *Vertex) Validate() error {
	if v.ID == "" {
		return ErrInvalidVertexID
	}
	if v.Type == "" {
		return ErrInvalidVertexType
	}
	for _, t := range v.ParamTypes {
		if !t.Valid() {
			return ErrInvalidParamType
		}
	}
	return nil
}

// State returns the current build state, defaulting to unbuilt.
func (v *Vertex) State() artifact.State {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == "" {
		return artifact.StateUnbuilt
	}
	return v.state
}

// SetState transitions the build state.
func (v *Vertex) SetState(s artifact.State) {
	v.mu.Lock()
	v.state = s
	v.mu.Unlock()
}

// HasOutput reports whether name is a declared output.
func (v *Vertex) HasOutput(name string) bool {
	for _, p := range v.Outputs {
		if p.Name == name {
			return true
		}
	}
	return false
}

// HasInput reports whether name is a declared input.
func (v *Vertex) HasInput(name string) bool {
	for _, p := range v.Inputs {
		if p.Name == name {
			return true
		}
	}
	return false
}

// ParamTypeOf returns the declared type for a parameter, defaulting to any.
func (v *Vertex) ParamTypeOf(name string) ParamType {
	if t, ok := v.ParamTypes[name]; ok {
		return t
	}
	return ParamTypeAny
}
