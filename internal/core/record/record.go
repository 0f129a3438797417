// Package record holds the persisted history of runs and vertex builds,
// plus the storage interface the engine writes through.
package record

import (
	"time"

	"github.com/flowengine/flowengine/internal/core/artifact"
)

// RunStatus is the terminal (or in-flight) status of a run.
type RunStatus string

const (
	RunPlanned             RunStatus = "planned"
	RunRunning             RunStatus = "running"
	RunCompleted           RunStatus = "completed"
	RunCompletedWithErrors RunStatus = "completed_with_errors"
	RunFailed              RunStatus = "failed"
	RunCancelled           RunStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunCompletedWithErrors, RunFailed, RunCancelled:
		return true
	}
	return false
}

// RunRecord summarizes one run of a flow.
type RunRecord struct {
	ID            string    `json:"id"`
	FlowID        string    `json:"flow_id"`
	Status        RunStatus `json:"status"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at,omitempty"`
	VerticesBuilt int       `json:"vertices_built"`
	VerticesError int       `json:"vertices_errored"`
	VerticesSkip  int       `json:"vertices_skipped"`
	Error         string    `json:"error,omitempty"`
}

// Validate ensures run record integrity before persistence.
func (r *RunRecord) Validate() error {
	if r.ID == "" {
		return ErrInvalidRunID
	}
	if r.FlowID == "" {
		return ErrInvalidFlowID
	}
	if r.Status == "" {
		return ErrInvalidStatus
	}
	return nil
}

// VertexBuildRecord is the persisted outcome of one vertex build within a
// run. Params is a snapshot of the resolved parameters the build saw;
// Cached marks results served from the cache, Valid marks successful
// builds.
type VertexBuildRecord struct {
	ID        string                 `json:"id"`
	RunID     string                 `json:"run_id"`
	FlowID    string                 `json:"flow_id"`
	VertexID  string                 `json:"vertex_id"`
	Valid     bool                   `json:"valid"`
	Cached    bool                   `json:"cached"`
	Params    map[string]interface{} `json:"params,omitempty"`
	Outputs   map[string]interface{} `json:"outputs,omitempty"`
	Logs      []artifact.LogEntry    `json:"logs,omitempty"`
	Error     string                 `json:"error,omitempty"`
	ElapsedMS int64                  `json:"elapsed_ms"`
	Timestamp time.Time              `json:"timestamp"`
}

// Validate ensures build record integrity before persistence.
func (r *VertexBuildRecord) Validate() error {
	if r.ID == "" {
		return ErrInvalidRecordID
	}
	if r.RunID == "" {
		return ErrInvalidRunID
	}
	if r.VertexID == "" {
		return ErrInvalidVertexID
	}
	return nil
}
