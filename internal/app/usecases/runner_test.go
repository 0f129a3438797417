package usecases

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowengine/flowengine/internal/app/dto"
	"github.com/flowengine/flowengine/internal/core/artifact"
	"github.com/flowengine/flowengine/internal/core/cache"
	"github.com/flowengine/flowengine/internal/core/event"
	"github.com/flowengine/flowengine/internal/core/graph"
	"github.com/flowengine/flowengine/internal/core/record"
)

// capturingRecorder collects records synchronously for assertions.
type capturingRecorder struct {
	mu     sync.Mutex
	runs   []*record.RunRecord
	builds []*record.VertexBuildRecord
}

func (r *capturingRecorder) RecordRun(run *record.RunRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
}

func (r *capturingRecorder) RecordVertexBuild(b *record.VertexBuildRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builds = append(r.builds, b)
}

func (r *capturingRecorder) buildFor(vertexID string) *record.VertexBuildRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.builds {
		if b.VertexID == vertexID {
			return b
		}
	}
	return nil
}

func passthroughBuilder(output string) Builder {
	return BuilderFunc(func(_ context.Context, params map[string]interface{}) (map[string]interface{}, []artifact.LogEntry, error) {
		return map[string]interface{}{"out": output}, nil, nil
	})
}

func failingBuilder(msg string) Builder {
	return BuilderFunc(func(context.Context, map[string]interface{}) (map[string]interface{}, []artifact.LogEntry, error) {
		return nil, nil, errors.New(msg)
	})
}

// diamondFlow is a -> {b, c} -> d.
func diamondFlow(t *testing.T) *graph.Flow {
	t.Helper()
	f := graph.NewFlow("diamond", "diamond")
	for _, id := range []string{"a", "b", "c", "d"} {
		v := &graph.Vertex{ID: id, Type: id, Outputs: []graph.Port{{Name: "out"}}}
		if id != "a" {
			v.Inputs = []graph.Port{{Name: "in"}}
		}
		require.NoError(t, f.AddVertex(v))
	}
	for _, e := range []*graph.Edge{
		{Source: "a", SourceOutput: "out", Target: "b", TargetInput: "in"},
		{Source: "a", SourceOutput: "out", Target: "c", TargetInput: "in"},
		{Source: "b", SourceOutput: "out", Target: "d", TargetInput: "in"},
		{Source: "c", SourceOutput: "out", Target: "d", TargetInput: "in"},
	} {
		require.NoError(t, f.AddEdge(e))
	}
	f.BuildIndex()
	return f
}

func newTestRunner(t *testing.T, f *graph.Flow, reg *Registry, cfg dto.RunConfig, rec Recorder) *Runner {
	t.Helper()
	exec := NewVertexExecutor(reg, cache.DefaultStore(), rec, nil)
	r, err := NewRunner(f, cfg, exec, rec, nil)
	require.NoError(t, err)
	return r
}

func TestRunner_CompletesDiamond(t *testing.T) {
	f := diamondFlow(t)
	reg := NewRegistry()
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, reg.Register(id, passthroughBuilder(id)))
	}

	rec := &capturingRecorder{}
	r := newTestRunner(t, f, reg, dto.RunConfig{}, rec)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, record.RunCompleted, summary.Status)
	assert.Equal(t, 4, summary.Built)
	assert.Zero(t, summary.Errored)
	assert.Zero(t, summary.Skipped)
	assert.Equal(t, 4, r.Results().Len())

	require.Len(t, rec.runs, 1)
	assert.Equal(t, record.RunCompleted, rec.runs[0].Status)
}

func TestRunner_PartialFailureSkipsDependents(t *testing.T) {
	f := diamondFlow(t)
	reg := NewRegistry()
	require.NoError(t, reg.Register("a", passthroughBuilder("a")))
	require.NoError(t, reg.Register("b", failingBuilder("b blew up")))
	require.NoError(t, reg.Register("c", passthroughBuilder("c")))
	require.NoError(t, reg.Register("d", passthroughBuilder("d")))

	rec := &capturingRecorder{}
	r := newTestRunner(t, f, reg, dto.RunConfig{ErrorPolicy: dto.ContinueIndependent}, rec)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, record.RunCompletedWithErrors, summary.Status)
	assert.Equal(t, 2, summary.Built) // a and c
	assert.Equal(t, 1, summary.Errored)
	assert.Equal(t, 1, summary.Skipped) // d depends on b
	assert.Contains(t, summary.VertexErrors["b"], "b blew up")

	c, _ := f.GetVertex("c")
	assert.Equal(t, artifact.StateBuilt, c.State())
	d, _ := f.GetVertex("d")
	assert.Equal(t, artifact.StateSkipped, d.State())

	bRec := rec.buildFor("b")
	require.NotNil(t, bRec)
	assert.False(t, bRec.Valid)
}

func TestRunner_FailFastStopsRun(t *testing.T) {
	f := diamondFlow(t)
	reg := NewRegistry()
	require.NoError(t, reg.Register("a", failingBuilder("first failure")))
	for _, id := range []string{"b", "c", "d"} {
		require.NoError(t, reg.Register(id, passthroughBuilder(id)))
	}

	r := newTestRunner(t, f, reg, dto.RunConfig{ErrorPolicy: dto.FailFast}, &capturingRecorder{})

	summary, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, record.RunFailed, summary.Status)
	assert.Zero(t, summary.Built)

	var execErr *dto.VertexExecutionError
	assert.ErrorAs(t, err, &execErr)
}

func TestRunner_CancellationBetweenLayers(t *testing.T) {
	f := diamondFlow(t)
	ctx, cancel := context.WithCancel(context.Background())

	reg := NewRegistry()
	// Cancel while the first layer is still building.
	require.NoError(t, reg.Register("a", BuilderFunc(func(bctx context.Context, _ map[string]interface{}) (map[string]interface{}, []artifact.LogEntry, error) {
		cancel()
		return map[string]interface{}{"out": "a"}, nil, nil
	})))
	for _, id := range []string{"b", "c", "d"} {
		require.NoError(t, reg.Register(id, passthroughBuilder(id)))
	}

	r := newTestRunner(t, f, reg, dto.RunConfig{}, &capturingRecorder{})

	summary, err := r.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, record.RunCancelled, summary.Status)
	// Layer 2 never dispatched.
	b, _ := f.GetVertex("b")
	assert.NotEqual(t, artifact.StateBuilt, b.State())
}

func TestRunner_EmitsLifecycleEvents(t *testing.T) {
	f := diamondFlow(t)
	reg := NewRegistry()
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, reg.Register(id, passthroughBuilder(id)))
	}

	r := newTestRunner(t, f, reg, dto.RunConfig{}, &capturingRecorder{})
	ch, unsub := r.Subscribe(context.Background())
	defer unsub()

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	var kinds []event.Kind
	var lastSeq uint64
	for ev := range ch {
		assert.Greater(t, ev.Seq, lastSeq, "sequence is strictly increasing")
		lastSeq = ev.Seq
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, event.KindRunStarted, kinds[0])
	assert.Equal(t, event.KindRunFinished, kinds[len(kinds)-1])

	finished := 0
	for _, k := range kinds {
		if k == event.KindVertexFinished {
			finished++
		}
	}
	assert.Equal(t, 4, finished)
}

func TestRunner_PlanningErrorsSurfaceBeforeRun(t *testing.T) {
	f := graph.NewFlow("cyclic", "cyclic")
	for _, id := range []string{"x", "y"} {
		require.NoError(t, f.AddVertex(&graph.Vertex{
			ID: id, Type: "t",
			Inputs:  []graph.Port{{Name: "in"}},
			Outputs: []graph.Port{{Name: "out"}},
		}))
	}
	require.NoError(t, f.AddEdge(&graph.Edge{Source: "x", SourceOutput: "out", Target: "y", TargetInput: "in"}))
	require.NoError(t, f.AddEdge(&graph.Edge{Source: "y", SourceOutput: "out", Target: "x", TargetInput: "in"}))
	f.BuildIndex()

	exec := NewVertexExecutor(NewRegistry(), cache.DefaultStore(), nil, nil)
	_, err := NewRunner(f, dto.RunConfig{}, exec, nil, nil)
	assert.ErrorIs(t, err, graph.ErrCyclicGraph)
}

func TestRunner_TweaksApplyBeforePlanning(t *testing.T) {
	f := graph.NewFlow("tweaked", "tweaked")
	require.NoError(t, f.AddVertex(&graph.Vertex{
		ID: "a", Type: "echo",
		Params:  map[string]interface{}{"value": "original"},
		Outputs: []graph.Port{{Name: "out"}},
	}))
	f.BuildIndex()

	reg := NewRegistry()
	require.NoError(t, reg.Register("echo", BuilderFunc(func(_ context.Context, params map[string]interface{}) (map[string]interface{}, []artifact.LogEntry, error) {
		return map[string]interface{}{"out": params["value"]}, nil, nil
	})))

	cfg := dto.RunConfig{Tweaks: map[string]map[string]interface{}{
		"a": {"value": "tweaked"},
	}}
	r := newTestRunner(t, f, reg, cfg, &capturingRecorder{})

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	out, ok := r.Results().Output("a", "out")
	require.True(t, ok)
	assert.Equal(t, "tweaked", out)
}

func TestRunner_UnknownTweakVertexRejected(t *testing.T) {
	f := graph.NewFlow("t", "t")
	require.NoError(t, f.AddVertex(&graph.Vertex{ID: "a", Type: "echo", Outputs: []graph.Port{{Name: "out"}}}))
	f.BuildIndex()

	exec := NewVertexExecutor(NewRegistry(), cache.DefaultStore(), nil, nil)
	cfg := dto.RunConfig{Tweaks: map[string]map[string]interface{}{"ghost": {"v": 1}}}
	_, err := NewRunner(f, cfg, exec, nil, nil)
	assert.ErrorIs(t, err, graph.ErrUnknownTweakVertex)
}

func TestRunner_VertexTimeout(t *testing.T) {
	f := graph.NewFlow("slow", "slow")
	require.NoError(t, f.AddVertex(&graph.Vertex{ID: "s", Type: "sleep", Outputs: []graph.Port{{Name: "out"}}}))
	f.BuildIndex()

	reg := NewRegistry()
	require.NoError(t, reg.Register("sleep", BuilderFunc(func(bctx context.Context, _ map[string]interface{}) (map[string]interface{}, []artifact.LogEntry, error) {
		select {
		case <-time.After(5 * time.Second):
			return map[string]interface{}{"out": "done"}, nil, nil
		case <-bctx.Done():
			return nil, nil, bctx.Err()
		}
	})))

	rec := &capturingRecorder{}
	r := newTestRunner(t, f, reg, dto.RunConfig{VertexTimeout: 20 * time.Millisecond}, rec)

	summary, err := r.Run(context.Background())
	require.NoError(t, err) // ContinueIndependent keeps the run alive
	assert.Equal(t, record.RunCompletedWithErrors, summary.Status)
	assert.Equal(t, 1, summary.Errored)
}

func TestRunner_VertexTimeoutForcedOnUncooperativeBuilder(t *testing.T) {
	f := graph.NewFlow("stubborn", "stubborn")
	require.NoError(t, f.AddVertex(&graph.Vertex{ID: "s", Type: "stubborn", Outputs: []graph.Port{{Name: "out"}}}))
	f.BuildIndex()

	// Never looks at its context.
	reg := NewRegistry()
	require.NoError(t, reg.Register("stubborn", BuilderFunc(func(context.Context, map[string]interface{}) (map[string]interface{}, []artifact.LogEntry, error) {
		time.Sleep(500 * time.Millisecond)
		return map[string]interface{}{"out": "late"}, nil, nil
	})))

	rec := &capturingRecorder{}
	r := newTestRunner(t, f, reg, dto.RunConfig{VertexTimeout: 20 * time.Millisecond}, rec)

	start := time.Now()
	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 400*time.Millisecond, "run must not wait out the builder")
	assert.Equal(t, record.RunCompletedWithErrors, summary.Status)
	assert.Equal(t, 1, summary.Errored)

	require.Contains(t, summary.VertexErrors, "s")
	assert.Contains(t, summary.VertexErrors["s"], context.DeadlineExceeded.Error())
	built := rec.buildFor("s")
	require.NotNil(t, built)
	assert.False(t, built.Valid)
}
