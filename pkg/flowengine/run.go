package flowengine

import (
	"context"
	"sync"

	"github.com/flowengine/flowengine/internal/app/dto"
	"github.com/flowengine/flowengine/internal/app/usecases"
	"github.com/flowengine/flowengine/internal/core/artifact"
	"github.com/flowengine/flowengine/internal/core/event"
	"github.com/flowengine/flowengine/internal/core/record"
)

// Run is a handle on one flow execution. It is safe for concurrent use.
type Run struct {
	id     string
	flowID string
	runner *usecases.Runner
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.RWMutex
	summary *dto.RunSummary
	err     error
}

// ID returns the run identifier assigned at planning time.
func (r *Run) ID() string { return r.id }

// FlowID returns the ID of the flow being executed.
func (r *Run) FlowID() string { return r.flowID }

// Status reports the current run status.
func (r *Run) Status() record.RunStatus { return r.runner.Status() }

// Layers returns the planned execution layers.
func (r *Run) Layers() [][]string { return r.runner.Layers() }

// Subscribe attaches an event listener. The returned cancel func must be
// called when the listener is done; the channel closes when the run
// finishes or the subscriber falls too far behind.
func (r *Run) Subscribe(ctx context.Context) (<-chan event.Event, func()) {
	return r.runner.Subscribe(ctx)
}

// Results exposes the per-vertex build results.
func (r *Run) Results() *artifact.Pool { return r.runner.Results() }

// Cancel stops the run. Vertices already building observe context
// cancellation; nothing new is dispatched.
func (r *Run) Cancel() { r.cancel() }

// Done is closed when the run has finished and its summary is available.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run finishes or ctx is cancelled. Waiting does
// not cancel the run itself.
func (r *Run) Wait(ctx context.Context) (*dto.RunSummary, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.summary, r.err
}

// Summary returns the run summary, or nil while the run is in flight.
func (r *Run) Summary() *dto.RunSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.summary
}
