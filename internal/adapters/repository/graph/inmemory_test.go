package graphrepo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowengine/flowengine/internal/core/graph"
)

func testFlow(t *testing.T, id string) *graph.Flow {
	t.Helper()
	f := graph.NewFlow(id, "repo test")
	require.NoError(t, f.AddVertex(&graph.Vertex{
		ID: "a", Type: "constant", Outputs: []graph.Port{{Name: "out"}},
	}))
	require.NoError(t, f.AddVertex(&graph.Vertex{
		ID: "b", Type: "template",
		Inputs:  []graph.Port{{Name: "in"}},
		Outputs: []graph.Port{{Name: "out"}},
	}))
	require.NoError(t, f.AddEdge(&graph.Edge{
		Source: "a", SourceOutput: "out", Target: "b", TargetInput: "in",
	}))
	return f
}

func TestInMemoryFlowRepository_SaveAndGet(t *testing.T) {
	repo := NewInMemoryFlowRepository()
	ctx := context.Background()

	f := testFlow(t, "f1")
	require.NoError(t, repo.Save(ctx, f))

	loaded, err := repo.Get(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, f.ID, loaded.ID)
	assert.Len(t, loaded.Vertices, 2)
}

func TestInMemoryFlowRepository_GetNotFound(t *testing.T) {
	repo := NewInMemoryFlowRepository()

	f, err := repo.Get(context.Background(), "does-not-exist")
	assert.Nil(t, f)
	assert.ErrorIs(t, err, graph.ErrFlowNotFound)
}

func TestInMemoryFlowRepository_SaveInvalidRejected(t *testing.T) {
	repo := NewInMemoryFlowRepository()

	f := testFlow(t, "bad")
	f.Edges = append(f.Edges, &graph.Edge{
		Source: "b", SourceOutput: "out", Target: "missing", TargetInput: "in",
	})
	assert.Error(t, repo.Save(context.Background(), f))
}

func TestInMemoryFlowRepository_ListSorted(t *testing.T) {
	repo := NewInMemoryFlowRepository()
	ctx := context.Background()

	for _, id := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, repo.Save(ctx, testFlow(t, id)))
	}

	flows, err := repo.List(ctx)
	require.NoError(t, err)
	ids := make([]string, len(flows))
	for i, f := range flows {
		ids[i] = f.ID
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, ids)
}

func TestInMemoryFlowRepository_Delete(t *testing.T) {
	repo := NewInMemoryFlowRepository()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testFlow(t, "f1")))
	require.NoError(t, repo.Delete(ctx, "f1"))

	_, err := repo.Get(ctx, "f1")
	assert.ErrorIs(t, err, graph.ErrFlowNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "f1"), graph.ErrFlowNotFound)
}
