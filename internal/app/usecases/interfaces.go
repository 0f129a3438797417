package usecases

import (
	"github.com/flowengine/flowengine/internal/core/record"
)

// Recorder accepts run history writes. Implementations are fire-and-forget:
// calls never block the run path and persistence failures never fail a run.
type Recorder interface {
	// RecordRun enqueues a run record write.
	RecordRun(run *record.RunRecord)

	// RecordVertexBuild enqueues a vertex build record write.
	RecordVertexBuild(build *record.VertexBuildRecord)
}

// NopRecorder discards all records. Used when history persistence is
// disabled.
type NopRecorder struct{}

func (NopRecorder) RecordRun(*record.RunRecord)                 {}
func (NopRecorder) RecordVertexBuild(*record.VertexBuildRecord) {}
