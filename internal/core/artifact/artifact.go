// Package artifact provides the core build-result domain entities
// following Clean Architecture principles with zero external dependencies.
package artifact

import (
	"fmt"
	"time"
)

// State represents the build lifecycle of a vertex.
type State string

const (
	// StateUnbuilt means the vertex has not been dispatched yet
	StateUnbuilt State = "unbuilt"
	// StateBuilding means a build is in flight
	StateBuilding State = "building"
	// StateBuilt means the build produced a result
	StateBuilt State = "built"
	// StateErrored means the build raised or timed out
	StateErrored State = "errored"
	// StateSkipped means a required predecessor errored, so the vertex never ran
	StateSkipped State = "skipped"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateBuilt || s == StateErrored || s == StateSkipped
}

// LogEntry is one line of side-channel output emitted by a builder.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// BuildResult captures everything a vertex build produced. It is immutable
// once created: the executor constructs it, everything else only reads it.
type BuildResult struct {
	Outputs map[string]interface{} `json:"outputs"`
	Text    string                 `json:"text,omitempty"`
	Logs    []LogEntry             `json:"logs,omitempty"`
	Elapsed time.Duration          `json:"elapsed"`
	Cached  bool                   `json:"cached"`
	Error   string                 `json:"error,omitempty"`
}

// OK reports whether the build succeeded. An empty Outputs map with no error
// is a valid result (an absent optional upstream value is not a failure).
func (r *BuildResult) OK() bool {
	return r != nil && r.Error == ""
}

// Output returns a named output value.
func (r *BuildResult) Output(name string) (interface{}, bool) {
	if r == nil || r.Outputs == nil {
		return nil, false
	}
	v, ok := r.Outputs[name]
	return v, ok
}

// Summary returns the human-readable representation, falling back to a
// compact rendering of the outputs.
func (r *BuildResult) Summary() string {
	if r.Text != "" {
		return r.Text
	}
	return fmt.Sprintf("%v", r.Outputs)
}

// WithCached returns a shallow copy flagged as served from cache. The
// original result stays untouched so cache entries remain pristine.
func (r *BuildResult) WithCached() *BuildResult {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Cached = true
	return &cp
}
