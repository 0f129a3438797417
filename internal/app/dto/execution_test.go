package dto

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunConfig_NormalizeDefaults(t *testing.T) {
	var c RunConfig
	require.NoError(t, c.Normalize())

	assert.Equal(t, DefaultConcurrency, c.Concurrency)
	assert.Equal(t, ContinueIndependent, c.ErrorPolicy)
	assert.True(t, c.CacheOn())
}

func TestRunConfig_NormalizeKeepsExplicitValues(t *testing.T) {
	disabled := false
	c := RunConfig{
		Concurrency:   2,
		VertexTimeout: 30 * time.Second,
		ErrorPolicy:   FailFast,
		CacheEnabled:  &disabled,
	}
	require.NoError(t, c.Normalize())

	assert.Equal(t, 2, c.Concurrency)
	assert.Equal(t, FailFast, c.ErrorPolicy)
	assert.False(t, c.CacheOn())
}

func TestRunConfig_NormalizeRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		config  RunConfig
		wantErr error
	}{
		{"negative concurrency", RunConfig{Concurrency: -1}, ErrInvalidConfig},
		{"negative timeout", RunConfig{VertexTimeout: -time.Second}, ErrInvalidConfig},
		{"unknown policy", RunConfig{ErrorPolicy: "explode"}, ErrInvalidErrorPolicy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.config.Normalize(), tt.wantErr)
		})
	}
}

func TestParameterBindingError(t *testing.T) {
	cause := errors.New("reference not found")
	err := &ParameterBindingError{Vertex: "v1", Param: "template", Err: cause}

	assert.Contains(t, err.Error(), "v1")
	assert.Contains(t, err.Error(), "template")
	assert.ErrorIs(t, err, cause)
}

func TestVertexExecutionError(t *testing.T) {
	cause := errors.New("boom")

	err := &VertexExecutionError{Vertex: "v1", Err: cause}
	assert.Contains(t, err.Error(), "build failed")
	assert.ErrorIs(t, err, cause)

	timeout := &VertexExecutionError{Vertex: "v1", Timeout: true, Err: cause}
	assert.Contains(t, timeout.Error(), "timed out")
}
