package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/flowengine/flowengine/internal/app/dto"
	"github.com/flowengine/flowengine/internal/core/graph"
	"github.com/flowengine/flowengine/pkg/flowengine"
	"github.com/flowengine/flowengine/pkg/prebuilt"
)

// workloadManager runs a synthetic diamond flow in a loop to generate
// metrics load for dashboard and alerting checks.
type workloadManager struct {
	rt     *flowengine.Runtime
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

func newWorkloadManager(rt *flowengine.Runtime, logger *zap.Logger) *workloadManager {
	return &workloadManager{rt: rt, logger: logger.Named("workload")}
}

func (m *workloadManager) start(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		http.Error(w, "workload already running", http.StatusConflict)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.loop(ctx)
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintln(w, "workload started")
}

func (m *workloadManager) stop(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel == nil {
		http.Error(w, "workload not running", http.StatusConflict)
		return
	}
	m.cancel()
	m.cancel = nil
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintln(w, "workload stopped")
}

func (m *workloadManager) stopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *workloadManager) loop(ctx context.Context) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	disabled := false
	cfg := dto.RunConfig{CacheEnabled: &disabled}
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		run, err := m.rt.Start(ctx, workloadFlow(i), cfg)
		if err != nil {
			m.logger.Warn("workload run", zap.Error(err))
			continue
		}
		if _, err := run.Wait(ctx); err != nil {
			return
		}
	}
}

// workloadFlow builds a small diamond: constant fans out to two
// templates merged back together. The iteration number keeps each run's
// fingerprints distinct so the cache does not absorb the load.
func workloadFlow(i int) *graph.Flow {
	f := graph.NewFlow(fmt.Sprintf("workload-%d", i), "synthetic workload")
	out := []graph.Port{{Name: "out"}}
	in := []graph.Port{{Name: "values"}}

	_ = f.AddVertex(&graph.Vertex{
		ID: "seed", Type: prebuilt.TypeConstant,
		Params:  map[string]interface{}{"value": i},
		Outputs: out,
	})
	for _, id := range []string{"left", "right"} {
		_ = f.AddVertex(&graph.Vertex{
			ID: id, Type: prebuilt.TypeTemplate,
			Params:  map[string]interface{}{"template": id + " {n}", "n": "@seed.out"},
			Inputs:  []graph.Port{{Name: "n"}},
			Outputs: out,
		})
		_ = f.AddEdge(&graph.Edge{Source: "seed", SourceOutput: "out", Target: id, TargetInput: "n"})
	}
	_ = f.AddVertex(&graph.Vertex{
		ID: "join", Type: prebuilt.TypeMerge,
		Params:  map[string]interface{}{"mode": "concat", "separator": " | "},
		Inputs:  in,
		Outputs: out,
	})
	_ = f.AddEdge(&graph.Edge{Source: "left", SourceOutput: "out", Target: "join", TargetInput: "values"})
	_ = f.AddEdge(&graph.Edge{Source: "right", SourceOutput: "out", Target: "join", TargetInput: "values"})
	return f
}
