package record

import (
	"context"
	"time"
)

// Store persists run and vertex build records. The engine writes through a
// fire-and-forget recorder, so implementations only need to be safe for
// concurrent use, not fast.
type Store interface {
	// SaveRun inserts or updates a run record.
	SaveRun(ctx context.Context, run *RunRecord) error

	// SaveVertexBuild appends a vertex build record.
	SaveVertexBuild(ctx context.Context, build *VertexBuildRecord) error

	// ListRuns returns run records matching the filter, newest first.
	ListRuns(ctx context.Context, filter Filter) ([]*RunRecord, error)

	// ListVertexBuilds returns build records matching the filter, newest first.
	ListVertexBuilds(ctx context.Context, filter Filter) ([]*VertexBuildRecord, error)
}

// Filter narrows record queries. Zero-value fields match everything.
type Filter struct {
	FlowID   string     `json:"flow_id,omitempty"`
	RunID    string     `json:"run_id,omitempty"`
	VertexID string     `json:"vertex_id,omitempty"`
	Limit    int        `json:"limit,omitempty"`
	Offset   int        `json:"offset,omitempty"`
	Since    *time.Time `json:"since,omitempty"`
	Before   *time.Time `json:"before,omitempty"`
}

// Validate ensures filter parameters are valid.
func (f *Filter) Validate() error {
	if f.Limit < 0 {
		return ErrInvalidLimit
	}
	if f.Offset < 0 {
		return ErrInvalidOffset
	}
	if f.Since != nil && f.Before != nil && f.Since.After(*f.Before) {
		return ErrInvalidTimeRange
	}
	return nil
}
