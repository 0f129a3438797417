package usecases

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/flowengine/flowengine/internal/app/dto"
	"github.com/flowengine/flowengine/internal/core/artifact"
	"github.com/flowengine/flowengine/internal/core/event"
	"github.com/flowengine/flowengine/internal/core/graph"
	"github.com/flowengine/flowengine/internal/core/record"
	imetrics "github.com/flowengine/flowengine/internal/infrastructure/metrics"
)

// Runner drives one run of a flow: layers are computed up front, then
// dispatched in order with bounded concurrency inside each layer. A vertex
// whose predecessor errored or was skipped is skipped itself; depending on
// the error policy the rest of the flow either keeps going or the run is
// cancelled on first failure.
type Runner struct {
	flow     *graph.Flow
	config   dto.RunConfig
	executor *VertexExecutor
	recorder Recorder
	logger   *zap.Logger

	runID  string
	layers [][]string
	pool   *artifact.Pool
	bus    *event.Bus

	mu     sync.Mutex
	status record.RunStatus
}

// NewRunner plans a run. Tweaks from the config are applied to the flow
// before planning; planning failures (cycles, missing dependencies, bad
// references) surface here, before anything executes.
func NewRunner(
	flow *graph.Flow,
	config dto.RunConfig,
	executor *VertexExecutor,
	recorder Recorder,
	logger *zap.Logger,
) (*Runner, error) {
	if flow == nil {
		return nil, dto.ErrNilFlow
	}
	if err := config.Normalize(); err != nil {
		return nil, err
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(config.Tweaks) > 0 {
		if err := flow.ApplyTweaks(config.Tweaks); err != nil {
			return nil, err
		}
	}
	if !flow.Indexed() {
		flow.BuildIndex()
	}
	flow.ResetBuildState()

	layers, err := graph.PlanLayers(flow)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	return &Runner{
		flow:     flow,
		config:   config,
		executor: executor,
		recorder: recorder,
		logger:   logger.Named("runner").With(zap.String("run_id", runID)),
		runID:    runID,
		layers:   layers,
		pool:     artifact.NewPool(),
		bus:      event.NewBus(runID, config.EventBuffer, logger),
	}, nil
}

// RunID returns the identifier assigned at planning time.
func (r *Runner) RunID() string { return r.runID }

// Layers returns the planned execution layers.
func (r *Runner) Layers() [][]string { return r.layers }

// Status returns the current run status.
func (r *Runner) Status() record.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == "" {
		return record.RunPlanned
	}
	return r.status
}

func (r *Runner) setStatus(s record.RunStatus) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

// Subscribe attaches an observer to the run's event stream.
func (r *Runner) Subscribe(ctx context.Context) (<-chan event.Event, func()) {
	return r.bus.Subscribe(ctx)
}

// Results returns the pool of build results accumulated so far.
func (r *Runner) Results() *artifact.Pool { return r.pool }

// Run executes the planned layers and blocks until the run reaches a
// terminal status. The summary is always returned; the error is non-nil
// only for failed or cancelled runs.
func (r *Runner) Run(ctx context.Context) (*dto.RunSummary, error) {
	started := time.Now()
	r.setStatus(record.RunRunning)
	imetrics.IncRunsStarted()
	r.bus.Emit(event.KindRunStarted, "", map[string]interface{}{
		"flow_id": r.flow.ID,
		"layers":  len(r.layers),
	}, "")

	var (
		errMu        sync.Mutex
		vertexErrors = make(map[string]string)
		blocked      = make(map[string]bool)
		runErr       error
	)

	markBlocked := func(id string) {
		errMu.Lock()
		blocked[id] = true
		errMu.Unlock()
	}
	isBlocked := func(id string) bool {
		errMu.Lock()
		defer errMu.Unlock()
		for _, pred := range r.flow.Predecessors(id) {
			if blocked[pred] {
				return true
			}
		}
		return false
	}

	for _, layer := range r.layers {
		if ctx.Err() != nil {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		sem := semaphore.NewWeighted(int64(r.config.Concurrency))

		for _, id := range layer {
			if isBlocked(id) {
				v, _ := r.flow.GetVertex(id)
				v.SetState(artifact.StateSkipped)
				markBlocked(id)
				imetrics.IncVerticesSkipped(1)
				continue
			}

			r.bus.Emit(event.KindVertexQueued, id, nil, "")
			if err := sem.Acquire(gctx, 1); err != nil {
				break
			}
			id := id
			g.Go(func() error {
				defer sem.Release(1)
				v, _ := r.flow.GetVertex(id)
				if _, err := r.executor.BuildVertex(gctx, r.flow, v, r.runID, &r.config, r.pool, r.bus); err != nil {
					errMu.Lock()
					vertexErrors[id] = err.Error()
					blocked[id] = true
					errMu.Unlock()
					if r.config.ErrorPolicy == dto.FailFast {
						return err
					}
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			runErr = err
			break
		}
	}

	status := r.finalStatus(ctx, runErr, vertexErrors)
	summary := r.summarize(status, started, vertexErrors, runErr)

	r.setStatus(status)
	imetrics.IncRunsFinished(string(status))
	r.bus.Emit(event.KindRunFinished, "", map[string]interface{}{
		"status":  string(status),
		"built":   summary.Built,
		"errored": summary.Errored,
		"skipped": summary.Skipped,
	}, summary.Error)
	r.bus.Close()

	r.recorder.RecordRun(&record.RunRecord{
		ID:            r.runID,
		FlowID:        r.flow.ID,
		Status:        status,
		StartedAt:     started,
		FinishedAt:    summary.FinishedAt,
		VerticesBuilt: summary.Built,
		VerticesError: summary.Errored,
		VerticesSkip:  summary.Skipped,
		Error:         summary.Error,
	})

	r.logger.Info("run finished",
		zap.String("status", string(status)),
		zap.Int("built", summary.Built),
		zap.Int("errored", summary.Errored),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("elapsed", summary.FinishedAt.Sub(started)))

	switch status {
	case record.RunCancelled:
		return summary, context.Cause(ctx)
	case record.RunFailed:
		return summary, runErr
	default:
		return summary, nil
	}
}

func (r *Runner) finalStatus(ctx context.Context, runErr error, vertexErrors map[string]string) record.RunStatus {
	switch {
	case ctx.Err() != nil:
		return record.RunCancelled
	case runErr != nil:
		return record.RunFailed
	case len(vertexErrors) > 0:
		return record.RunCompletedWithErrors
	default:
		return record.RunCompleted
	}
}

func (r *Runner) summarize(status record.RunStatus, started time.Time, vertexErrors map[string]string, runErr error) *dto.RunSummary {
	summary := &dto.RunSummary{
		RunID:     r.runID,
		FlowID:    r.flow.ID,
		Status:    status,
		StartedAt: started,
	}
	for _, id := range r.flow.VertexIDs() {
		v, _ := r.flow.GetVertex(id)
		switch v.State() {
		case artifact.StateBuilt:
			summary.Built++
		case artifact.StateErrored:
			summary.Errored++
		case artifact.StateSkipped:
			summary.Skipped++
		}
	}
	if len(vertexErrors) > 0 {
		summary.VertexErrors = vertexErrors
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	} else if status == record.RunCancelled {
		summary.Error = context.Canceled.Error()
	}
	summary.FinishedAt = time.Now()
	return summary
}
