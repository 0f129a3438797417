package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunStatus_Terminal(t *testing.T) {
	tests := []struct {
		status   RunStatus
		terminal bool
	}{
		{RunPlanned, false},
		{RunRunning, false},
		{RunCompleted, true},
		{RunCompletedWithErrors, true},
		{RunFailed, true},
		{RunCancelled, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.terminal, tt.status.Terminal(), string(tt.status))
	}
}

func TestRunRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		run     RunRecord
		wantErr error
	}{
		{
			name: "valid",
			run:  RunRecord{ID: "r1", FlowID: "f1", Status: RunCompleted},
		},
		{
			name:    "missing id",
			run:     RunRecord{FlowID: "f1", Status: RunCompleted},
			wantErr: ErrInvalidRunID,
		},
		{
			name:    "missing flow id",
			run:     RunRecord{ID: "r1", Status: RunCompleted},
			wantErr: ErrInvalidFlowID,
		},
		{
			name:    "missing status",
			run:     RunRecord{ID: "r1", FlowID: "f1"},
			wantErr: ErrInvalidStatus,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestVertexBuildRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		build   VertexBuildRecord
		wantErr error
	}{
		{
			name:  "valid",
			build: VertexBuildRecord{ID: "b1", RunID: "r1", VertexID: "v1"},
		},
		{
			name:    "missing id",
			build:   VertexBuildRecord{RunID: "r1", VertexID: "v1"},
			wantErr: ErrInvalidRecordID,
		},
		{
			name:    "missing run id",
			build:   VertexBuildRecord{ID: "b1", VertexID: "v1"},
			wantErr: ErrInvalidRunID,
		},
		{
			name:    "missing vertex id",
			build:   VertexBuildRecord{ID: "b1", RunID: "r1"},
			wantErr: ErrInvalidVertexID,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFilter_Validate(t *testing.T) {
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(24 * time.Hour)

	assert.NoError(t, (&Filter{Limit: 10, Since: &early, Before: &late}).Validate())
	assert.ErrorIs(t, (&Filter{Limit: -1}).Validate(), ErrInvalidLimit)
	assert.ErrorIs(t, (&Filter{Offset: -1}).Validate(), ErrInvalidOffset)
	assert.ErrorIs(t, (&Filter{Since: &late, Before: &early}).Validate(), ErrInvalidTimeRange)
}
