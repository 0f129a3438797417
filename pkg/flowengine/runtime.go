package flowengine

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	graphrepo "github.com/flowengine/flowengine/internal/adapters/repository/graph"
	"github.com/flowengine/flowengine/internal/app/dto"
	"github.com/flowengine/flowengine/internal/app/usecases"
	"github.com/flowengine/flowengine/internal/core/cache"
	"github.com/flowengine/flowengine/internal/core/event"
	"github.com/flowengine/flowengine/internal/core/graph"
	"github.com/flowengine/flowengine/internal/core/record"
	"github.com/flowengine/flowengine/pkg/prebuilt"
	"github.com/flowengine/flowengine/pkg/validation"
)

// Re-exported types so callers can stay on the public package.
type (
	Flow       = graph.Flow
	Vertex     = graph.Vertex
	Edge       = graph.Edge
	Payload    = graph.Payload
	RunConfig  = dto.RunConfig
	RunSummary = dto.RunSummary
	Event      = event.Event
	RunStatus  = record.RunStatus
)

// Runtime owns the long-lived pieces of the engine and tracks every run
// it has started.
type Runtime struct {
	registry *usecases.Registry
	cache    *cache.Store
	recorder usecases.Recorder
	flows    graphrepo.FlowRepository
	logger   *zap.Logger

	mu   sync.RWMutex
	runs map[string]*Run
}

// Option customizes a Runtime.
type Option func(*Runtime)

// WithRegistry replaces the builder registry. The default registry has
// the prebuilt builders installed.
func WithRegistry(reg *usecases.Registry) Option {
	return func(rt *Runtime) { rt.registry = reg }
}

// WithCache replaces the build cache.
func WithCache(store *cache.Store) Option {
	return func(rt *Runtime) { rt.cache = store }
}

// WithRecorder sets the run/vertex persistence sink. The default is a
// no-op recorder.
func WithRecorder(rec usecases.Recorder) Option {
	return func(rt *Runtime) { rt.recorder = rec }
}

// WithFlowRepository replaces the flow store. The default keeps flows
// in memory.
func WithFlowRepository(repo graphrepo.FlowRepository) Option {
	return func(rt *Runtime) { rt.flows = repo }
}

// WithLogger sets the base logger for the runtime and its runs.
func WithLogger(logger *zap.Logger) Option {
	return func(rt *Runtime) { rt.logger = logger }
}

// NewRuntime builds a runtime from options. Without options it runs
// fully in memory with the prebuilt builders registered.
func NewRuntime(opts ...Option) (*Runtime, error) {
	rt := &Runtime{runs: make(map[string]*Run)}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.logger == nil {
		rt.logger = zap.NewNop()
	}
	if rt.registry == nil {
		rt.registry = usecases.NewRegistry()
		if err := prebuilt.RegisterAll(rt.registry); err != nil {
			return nil, err
		}
	}
	if rt.cache == nil {
		rt.cache = cache.DefaultStore()
	}
	if rt.recorder == nil {
		rt.recorder = usecases.NopRecorder{}
	}
	if rt.flows == nil {
		rt.flows = graphrepo.NewInMemoryFlowRepository()
	}
	return rt, nil
}

// Registry exposes the builder registry for custom registrations.
func (rt *Runtime) Registry() *usecases.Registry { return rt.registry }

// SaveFlow validates and stores a flow.
func (rt *Runtime) SaveFlow(ctx context.Context, f *graph.Flow) error {
	return rt.flows.Save(ctx, f)
}

// GetFlow fetches a stored flow by ID.
func (rt *Runtime) GetFlow(ctx context.Context, id string) (*graph.Flow, error) {
	return rt.flows.Get(ctx, id)
}

// ListFlows returns all stored flows sorted by ID.
func (rt *Runtime) ListFlows(ctx context.Context) ([]*graph.Flow, error) {
	return rt.flows.List(ctx)
}

// DeleteFlow removes a stored flow.
func (rt *Runtime) DeleteFlow(ctx context.Context, id string) error {
	return rt.flows.Delete(ctx, id)
}

// Start plans and launches a run of the given flow. The returned handle
// is registered with the runtime and stays queryable after the run ends.
func (rt *Runtime) Start(ctx context.Context, f *graph.Flow, cfg dto.RunConfig) (*Run, error) {
	executor := usecases.NewVertexExecutor(rt.registry, rt.cache, rt.recorder, rt.logger)
	runner, err := usecases.NewRunner(f, cfg, executor, rt.recorder, rt.logger)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{
		id:     runner.RunID(),
		flowID: f.ID,
		runner: runner,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	rt.mu.Lock()
	rt.runs[run.id] = run
	rt.mu.Unlock()

	go func() {
		defer cancel()
		summary, err := runner.Run(runCtx)
		run.mu.Lock()
		run.summary = summary
		run.err = err
		run.mu.Unlock()
		close(run.done)
	}()
	return run, nil
}

// StartPayload decodes a JSON flow payload, validates it, and starts a
// run.
func (rt *Runtime) StartPayload(ctx context.Context, data []byte, cfg dto.RunConfig) (*Run, error) {
	payload, err := graph.DecodePayload(data)
	if err != nil {
		return nil, err
	}
	return rt.StartFromPayload(ctx, payload, cfg)
}

// StartFromPayload validates an already-decoded payload and starts a run.
func (rt *Runtime) StartFromPayload(ctx context.Context, payload *graph.Payload, cfg dto.RunConfig) (*Run, error) {
	if err := validation.ValidatePayload(payload); err != nil {
		return nil, err
	}
	f, err := payload.Flow()
	if err != nil {
		return nil, err
	}
	return rt.Start(ctx, f, cfg)
}

// StartStored runs a previously saved flow by ID.
func (rt *Runtime) StartStored(ctx context.Context, flowID string, cfg dto.RunConfig) (*Run, error) {
	f, err := rt.flows.Get(ctx, flowID)
	if err != nil {
		return nil, err
	}
	return rt.Start(ctx, f, cfg)
}

// Run looks up a run handle by ID.
func (rt *Runtime) Run(id string) (*Run, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	run, ok := rt.runs[id]
	return run, ok
}

// Runs returns the IDs of every run the runtime has started, sorted.
func (rt *Runtime) Runs() []string {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	ids := make([]string, 0, len(rt.runs))
	for id := range rt.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close releases runtime resources. Runs in flight are cancelled.
func (rt *Runtime) Close() {
	rt.mu.RLock()
	for _, run := range rt.runs {
		run.Cancel()
	}
	rt.mu.RUnlock()
	if closer, ok := rt.recorder.(interface{ Close() }); ok {
		closer.Close()
	}
}
