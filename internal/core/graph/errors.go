// Package graph defines domain-specific errors
package graph

import "errors"

// Domain errors - defined once, used everywhere
var (
	// Flow errors
	ErrEmptyFlow    = errors.New("flow has no vertices")
	ErrCyclicGraph  = errors.New("cyclic dependency detected")
	ErrFlowNotFound = errors.New("flow not found")

	// Vertex errors
	ErrNilVertex         = errors.New("vertex cannot be nil")
	ErrInvalidVertexID   = errors.New("invalid vertex ID")
	ErrInvalidVertexType = errors.New("invalid vertex type tag")
	ErrVertexNotFound    = errors.New("vertex not found")
	ErrDuplicateVertex   = errors.New("duplicate vertex ID")
	ErrInvalidParamType  = errors.New("invalid declared parameter type")

	// Edge errors
	ErrNilEdge        = errors.New("edge cannot be nil")
	ErrInvalidSource  = errors.New("invalid source vertex")
	ErrInvalidTarget  = errors.New("invalid target vertex")
	ErrSourceNotFound = errors.New("source vertex not found")
	ErrTargetNotFound = errors.New("target vertex not found")
	ErrUnknownOutput  = errors.New("edge names an undeclared output")
	ErrUnknownInput   = errors.New("edge names an undeclared input")
	ErrDuplicateEdge  = errors.New("duplicate edge")
	ErrSelfLoop       = errors.New("self-loops are not allowed")

	// Planning errors
	ErrMissingDependency = errors.New("required input has no feeding edge and no default")
	ErrRefOutsideParents = errors.New("parameter references a vertex outside the predecessor set")

	// Tweak errors
	ErrUnknownTweakVertex = errors.New("tweak targets an unknown vertex")
)
