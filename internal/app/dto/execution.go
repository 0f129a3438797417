// Package dto carries the request and result shapes crossing the
// application boundary: run configuration, run summaries, and the typed
// errors the engine reports per vertex.
package dto

import (
	"time"

	"github.com/flowengine/flowengine/internal/core/record"
)

// ErrorPolicy controls how a run reacts to a vertex build failure.
type ErrorPolicy string

const (
	// ContinueIndependent skips the failed vertex's dependents and keeps
	// building every branch that does not depend on it.
	ContinueIndependent ErrorPolicy = "continue_independent"
	// FailFast cancels the whole run on the first failure.
	FailFast ErrorPolicy = "fail_fast"
)

// Valid reports whether the policy is one of the known values.
func (p ErrorPolicy) Valid() bool {
	return p == ContinueIndependent || p == FailFast
}

// RunConfig tunes one run. The zero value is usable after Normalize.
type RunConfig struct {
	// Concurrency bounds how many vertices build at once within a layer.
	Concurrency int `json:"concurrency" validate:"gte=0"`
	// VertexTimeout bounds each vertex build. Zero means no per-vertex limit.
	VertexTimeout time.Duration `json:"vertex_timeout" validate:"gte=0"`
	// EventBuffer is the per-subscriber event channel capacity.
	EventBuffer int `json:"event_buffer" validate:"gte=0"`
	// ErrorPolicy defaults to ContinueIndependent.
	ErrorPolicy ErrorPolicy `json:"error_policy,omitempty"`
	// CacheEnabled turns the build cache on. On by default.
	CacheEnabled *bool `json:"cache_enabled,omitempty"`
	// Tweaks are per-vertex parameter overrides applied before planning.
	Tweaks map[string]map[string]interface{} `json:"tweaks,omitempty"`
}

// DefaultConcurrency bounds concurrent vertex builds when the caller does
// not say otherwise.
const DefaultConcurrency = 8

// Normalize fills defaults and rejects unknown enum values.
func (c *RunConfig) Normalize() error {
	if c.Concurrency < 0 || c.VertexTimeout < 0 || c.EventBuffer < 0 {
		return ErrInvalidConfig
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.ErrorPolicy == "" {
		c.ErrorPolicy = ContinueIndependent
	}
	if !c.ErrorPolicy.Valid() {
		return ErrInvalidErrorPolicy
	}
	if c.CacheEnabled == nil {
		enabled := true
		c.CacheEnabled = &enabled
	}
	return nil
}

// CacheOn reports the effective cache setting.
func (c *RunConfig) CacheOn() bool {
	return c.CacheEnabled == nil || *c.CacheEnabled
}

// RunSummary is what a finished (or failed) run reports back.
type RunSummary struct {
	RunID      string           `json:"run_id"`
	FlowID     string           `json:"flow_id"`
	Status     record.RunStatus `json:"status"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Built      int              `json:"built"`
	Errored    int              `json:"errored"`
	Skipped    int              `json:"skipped"`
	// VertexErrors maps vertex ID to its failure message, for errored
	// vertices only.
	VertexErrors map[string]string `json:"vertex_errors,omitempty"`
	Error        string            `json:"error,omitempty"`
}
