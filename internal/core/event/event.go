// Package event provides the per-run lifecycle event stream: a single
// writer appends ordered events, multiple observers consume them over
// bounded buffers.
package event

import "time"

// Kind enumerates the lifecycle events a run can emit.
type Kind string

const (
	KindRunStarted     Kind = "run_started"
	KindVertexQueued   Kind = "vertex_queued"
	KindVertexStarted  Kind = "vertex_started"
	KindVertexLog      Kind = "vertex_log"
	KindVertexFinished Kind = "vertex_finished"
	KindVertexErrored  Kind = "vertex_errored"
	KindRunFinished    Kind = "run_finished"
)

// Event is one entry of a run's stream. Seq is monotonic within the run;
// delivery order to each observer matches emission order.
type Event struct {
	Seq       uint64                 `json:"seq"`
	Kind      Kind                   `json:"kind"`
	RunID     string                 `json:"run_id"`
	VertexID  string                 `json:"vertex_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     string                 `json:"error,omitempty"`
}
