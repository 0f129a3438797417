// Package graph provides edge definitions
package graph

// Edge represents a directed dependency from one vertex's output to another
// vertex's input.
type Edge struct {
	Source       string `json:"source"`
	SourceOutput string `json:"source_output"`
	Target       string `json:"target"`
	TargetInput  string `json:"target_input"`
}

// Validate ensures edge integrity
func (e *Edge) Validate() error {
	if e.Source == "" || e.SourceOutput == "" {
		return ErrInvalidSource
	}
	if e.Target == "" || e.TargetInput == "" {
		return ErrInvalidTarget
	}
	if e.Source == e.Target {
		return ErrSelfLoop
	}
	return nil
}

// equal reports whether two edges connect the same ports.
func (e *Edge) equal(other *Edge) bool {
	return e.Source == other.Source && e.SourceOutput == other.SourceOutput &&
		e.Target == other.Target && e.TargetInput == other.TargetInput
}
