package dto

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig      = errors.New("invalid run configuration")
	ErrInvalidErrorPolicy = errors.New("invalid error policy")
	ErrNilFlow            = errors.New("flow is required")
	ErrNilBuilder         = errors.New("no builder registered for vertex type")
	ErrRunNotFound        = errors.New("run not found")
	ErrRunFinished        = errors.New("run already finished")

	ErrUpstreamResultMissing = errors.New("upstream result not available")
	ErrReferencePathNotFound = errors.New("reference path not found")
)

// ParameterBindingError reports a parameter that could not be resolved or
// coerced for a vertex build.
type ParameterBindingError struct {
	Vertex string
	Param  string
	Err    error
}

func (e *ParameterBindingError) Error() string {
	return fmt.Sprintf("vertex %s: parameter %q: %v", e.Vertex, e.Param, e.Err)
}

func (e *ParameterBindingError) Unwrap() error { return e.Err }

// VertexExecutionError reports a failed vertex build. Timeout marks
// deadline expiry as distinct from builder failure.
type VertexExecutionError struct {
	Vertex  string
	Timeout bool
	Err     error
}

func (e *VertexExecutionError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("vertex %s: build timed out: %v", e.Vertex, e.Err)
	}
	return fmt.Sprintf("vertex %s: build failed: %v", e.Vertex, e.Err)
}

func (e *VertexExecutionError) Unwrap() error { return e.Err }
