package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flowengine/flowengine/internal/app/dto"
	"github.com/flowengine/flowengine/internal/core/artifact"
	"github.com/flowengine/flowengine/internal/core/cache"
	"github.com/flowengine/flowengine/internal/core/event"
	"github.com/flowengine/flowengine/internal/core/graph"
	"github.com/flowengine/flowengine/internal/core/record"
	imetrics "github.com/flowengine/flowengine/internal/infrastructure/metrics"
)

// VertexExecutor builds single vertices: it binds parameters from the
// result pool, routes the build through the fingerprint cache, and reports
// outcome through events, records, and metrics.
type VertexExecutor struct {
	registry *Registry
	cache    *cache.Store
	recorder Recorder
	logger   *zap.Logger
}

// NewVertexExecutor wires an executor. A nil recorder discards records;
// a nil logger defaults to no-op.
func NewVertexExecutor(registry *Registry, store *cache.Store, recorder Recorder, logger *zap.Logger) *VertexExecutor {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VertexExecutor{
		registry: registry,
		cache:    store,
		recorder: recorder,
		logger:   logger.Named("executor"),
	}
}

// BuildVertex executes one vertex within a run. The result lands in pool
// on success; the vertex state, event stream, and build record reflect the
// outcome either way.
func (e *VertexExecutor) BuildVertex(
	ctx context.Context,
	f *graph.Flow,
	v *graph.Vertex,
	runID string,
	cfg *dto.RunConfig,
	pool *artifact.Pool,
	bus *event.Bus,
) (*artifact.BuildResult, error) {
	builder, ok := e.registry.Lookup(v.Type)
	if !ok {
		err := fmt.Errorf("%w: %q", dto.ErrNilBuilder, v.Type)
		e.fail(f, v, runID, nil, bus, time.Now(), err, false)
		return nil, &dto.VertexExecutionError{Vertex: v.ID, Err: err}
	}

	v.SetState(artifact.StateBuilding)
	bus.Emit(event.KindVertexStarted, v.ID, nil, "")
	start := time.Now()

	params, err := BindParams(f, v, pool)
	if err != nil {
		e.fail(f, v, runID, nil, bus, start, err, false)
		return nil, err
	}

	build := func(buildCtx context.Context) (*artifact.BuildResult, error) {
		return e.invoke(buildCtx, builder, v, params, cfg.VertexTimeout)
	}

	var (
		result *artifact.BuildResult
		cached bool
	)
	if cfg.CacheOn() {
		fp, fpErr := cache.VertexFingerprint(f, v.ID)
		if fpErr != nil {
			e.fail(f, v, runID, params, bus, start, fpErr, false)
			return nil, &dto.VertexExecutionError{Vertex: v.ID, Err: fpErr}
		}
		result, cached, err = e.cache.BuildOnce(ctx, fp, build)
	} else {
		result, err = build(ctx)
	}
	if err != nil {
		timeout := errors.Is(err, context.DeadlineExceeded)
		e.fail(f, v, runID, params, bus, start, err, timeout)
		return nil, &dto.VertexExecutionError{Vertex: v.ID, Timeout: timeout, Err: err}
	}
	if cached {
		result = result.WithCached()
	}

	pool.Set(v.ID, result)
	v.SetState(artifact.StateBuilt)
	imetrics.IncVerticesBuilt()
	for _, entry := range result.Logs {
		bus.Emit(event.KindVertexLog, v.ID, map[string]interface{}{
			"level":   entry.Level,
			"message": entry.Message,
		}, "")
	}
	bus.Emit(event.KindVertexFinished, v.ID, map[string]interface{}{
		"cached":     result.Cached,
		"elapsed_ms": result.Elapsed.Milliseconds(),
	}, "")
	e.record(v, runID, f.ID, params, result, "")
	return result, nil
}

// invoke runs the builder with the per-vertex timeout and panic recovery.
// The builder runs in its own goroutine so a builder that never checks its
// context still fails at the deadline; the stray goroutine is abandoned and
// its eventual result discarded.
func (e *VertexExecutor) invoke(
	ctx context.Context,
	builder Builder,
	v *graph.Vertex,
	params map[string]interface{},
	timeout time.Duration,
) (*artifact.BuildResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type buildOutcome struct {
		outputs map[string]interface{}
		logs    []artifact.LogEntry
		err     error
	}

	start := time.Now()
	done := make(chan buildOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("builder panicked",
					zap.String("vertex", v.ID), zap.String("type", v.Type), zap.Any("panic", r))
				done <- buildOutcome{err: fmt.Errorf("builder panic: %v", r)}
			}
		}()
		outputs, logs, err := builder.Build(ctx, params)
		done <- buildOutcome{outputs: outputs, logs: logs, err: err}
	}()

	var out buildOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if out.err != nil {
		err := out.err
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return nil, err
	}
	// A builder that ran past its deadline without noticing does not get
	// to report success. Plain cancellation is different: an in-flight
	// build that finishes keeps its result.
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, ctx.Err()
	}
	outputs := out.outputs
	if outputs == nil {
		outputs = map[string]interface{}{}
	}
	result := &artifact.BuildResult{
		Outputs: outputs,
		Logs:    out.logs,
		Elapsed: time.Since(start),
	}
	if text, ok := outputs["text"].(string); ok {
		result.Text = text
	}
	return result, nil
}

func (e *VertexExecutor) fail(
	f *graph.Flow,
	v *graph.Vertex,
	runID string,
	params map[string]interface{},
	bus *event.Bus,
	start time.Time,
	cause error,
	timeout bool,
) {
	v.SetState(artifact.StateErrored)
	imetrics.IncVerticesErrored()
	bus.Emit(event.KindVertexErrored, v.ID, map[string]interface{}{
		"elapsed_ms": time.Since(start).Milliseconds(),
		"timeout":    timeout,
	}, cause.Error())
	e.record(v, runID, f.ID, params, &artifact.BuildResult{
		Elapsed: time.Since(start),
		Error:   cause.Error(),
	}, cause.Error())
	e.logger.Warn("vertex build failed",
		zap.String("run_id", runID),
		zap.String("vertex", v.ID),
		zap.Bool("timeout", timeout),
		zap.Error(cause))
}

func (e *VertexExecutor) record(v *graph.Vertex, runID, flowID string, params map[string]interface{}, result *artifact.BuildResult, errText string) {
	e.recorder.RecordVertexBuild(&record.VertexBuildRecord{
		ID:        uuid.NewString(),
		RunID:     runID,
		FlowID:    flowID,
		VertexID:  v.ID,
		Valid:     errText == "",
		Cached:    result.Cached,
		Params:    params,
		Outputs:   result.Outputs,
		Logs:      result.Logs,
		Error:     errText,
		ElapsedMS: result.Elapsed.Milliseconds(),
		Timestamp: time.Now(),
	})
}
