package usecases

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowengine/flowengine/internal/app/dto"
	"github.com/flowengine/flowengine/internal/core/artifact"
	"github.com/flowengine/flowengine/internal/core/graph"
)

func bindFlow(t *testing.T) *graph.Flow {
	t.Helper()
	f := graph.NewFlow("f", "bind")
	require.NoError(t, f.AddVertex(&graph.Vertex{
		ID: "src", Type: "constant",
		Outputs: []graph.Port{{Name: "out"}, {Name: "meta"}},
	}))
	require.NoError(t, f.AddVertex(&graph.Vertex{
		ID: "dst", Type: "template",
		Params: map[string]interface{}{
			"greeting": "Hello @src.out!",
			"raw":      "@src.meta",
		},
		ParamTypes: map[string]graph.ParamType{"greeting": graph.ParamTypeString},
		Inputs:     []graph.Port{{Name: "in"}, {Name: "fallback", Default: 7}},
		Outputs:    []graph.Port{{Name: "out"}},
	}))
	require.NoError(t, f.AddEdge(&graph.Edge{
		Source: "src", SourceOutput: "out", Target: "dst", TargetInput: "in",
	}))
	f.BuildIndex()
	return f
}

func TestBindParams_ReferenceSubstitution(t *testing.T) {
	f := bindFlow(t)
	pool := artifact.NewPool()
	pool.Set("src", &artifact.BuildResult{Outputs: map[string]interface{}{
		"out":  "world",
		"meta": map[string]interface{}{"lang": "en"},
	}})

	dst, err := f.GetVertex("dst")
	require.NoError(t, err)
	bound, err := BindParams(f, dst, pool)
	require.NoError(t, err)

	// Mixed text stringifies; a whole-field reference keeps its type.
	assert.Equal(t, "Hello world!", bound["greeting"])
	assert.Equal(t, map[string]interface{}{"lang": "en"}, bound["raw"])
	// Edge-fed input and untouched default.
	assert.Equal(t, "world", bound["in"])
	assert.Equal(t, 7, bound["fallback"])
}

func TestBindParams_MissingUpstreamResult(t *testing.T) {
	f := bindFlow(t)
	dst, err := f.GetVertex("dst")
	require.NoError(t, err)

	_, err = BindParams(f, dst, artifact.NewPool())
	require.Error(t, err)
	var bindErr *dto.ParameterBindingError
	require.ErrorAs(t, err, &bindErr)
	assert.Equal(t, "dst", bindErr.Vertex)
	assert.ErrorIs(t, err, dto.ErrUpstreamResultMissing)
}

func TestBindParams_PathIntoReference(t *testing.T) {
	f := graph.NewFlow("f", "path")
	require.NoError(t, f.AddVertex(&graph.Vertex{
		ID: "src", Type: "constant", Outputs: []graph.Port{{Name: "out"}},
	}))
	require.NoError(t, f.AddVertex(&graph.Vertex{
		ID: "dst", Type: "template",
		Params:  map[string]interface{}{"first": "@src.out.items[0]", "missing": "@src.out.nope"},
		Outputs: []graph.Port{{Name: "out"}},
	}))
	f.BuildIndex()

	pool := artifact.NewPool()
	pool.Set("src", &artifact.BuildResult{Outputs: map[string]interface{}{
		"out": map[string]interface{}{"items": []interface{}{"a", "b"}},
	}})

	dst, err := f.GetVertex("dst")
	require.NoError(t, err)
	_, err = BindParams(f, dst, pool)
	assert.ErrorIs(t, err, dto.ErrReferencePathNotFound)

	dst.Params = map[string]interface{}{"first": "@src.out.items[0]"}
	bound, err := BindParams(f, dst, pool)
	require.NoError(t, err)
	assert.Equal(t, "a", bound["first"])
}

func TestBindParams_NestedContainers(t *testing.T) {
	f := graph.NewFlow("f", "nested")
	require.NoError(t, f.AddVertex(&graph.Vertex{
		ID: "src", Type: "constant", Outputs: []graph.Port{{Name: "out"}},
	}))
	require.NoError(t, f.AddVertex(&graph.Vertex{
		ID: "dst", Type: "merge",
		Params: map[string]interface{}{
			"config": map[string]interface{}{
				"inner": "@src.out",
				"list":  []interface{}{"@src.out", "literal"},
			},
		},
		Outputs: []graph.Port{{Name: "out"}},
	}))
	f.BuildIndex()

	pool := artifact.NewPool()
	pool.Set("src", &artifact.BuildResult{Outputs: map[string]interface{}{"out": 42}})

	dst, err := f.GetVertex("dst")
	require.NoError(t, err)
	bound, err := BindParams(f, dst, pool)
	require.NoError(t, err)

	config := bound["config"].(map[string]interface{})
	assert.Equal(t, 42, config["inner"])
	assert.Equal(t, []interface{}{42, "literal"}, config["list"])
}

func TestBindParams_MultipleEdgesCollectIntoList(t *testing.T) {
	f := graph.NewFlow("f", "fanin")
	for _, id := range []string{"a", "b"} {
		require.NoError(t, f.AddVertex(&graph.Vertex{
			ID: id, Type: "constant", Outputs: []graph.Port{{Name: "out"}},
		}))
	}
	require.NoError(t, f.AddVertex(&graph.Vertex{
		ID: "sink", Type: "merge",
		Inputs:  []graph.Port{{Name: "values"}},
		Outputs: []graph.Port{{Name: "out"}},
	}))
	require.NoError(t, f.AddEdge(&graph.Edge{Source: "a", SourceOutput: "out", Target: "sink", TargetInput: "values"}))
	require.NoError(t, f.AddEdge(&graph.Edge{Source: "b", SourceOutput: "out", Target: "sink", TargetInput: "values"}))
	f.BuildIndex()

	pool := artifact.NewPool()
	pool.Set("a", &artifact.BuildResult{Outputs: map[string]interface{}{"out": "first"}})
	pool.Set("b", &artifact.BuildResult{Outputs: map[string]interface{}{"out": "second"}})

	sink, err := f.GetVertex("sink")
	require.NoError(t, err)
	bound, err := BindParams(f, sink, pool)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"first", "second"}, bound["values"])
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name    string
		in      interface{}
		typ     graph.ParamType
		want    interface{}
		wantErr bool
	}{
		{"int from float", float64(3), graph.ParamTypeInt, 3, false},
		{"int from string", " 42 ", graph.ParamTypeInt, 42, false},
		{"int truncation rejected", 3.5, graph.ParamTypeInt, nil, true},
		{"float from int", 2, graph.ParamTypeFloat, 2.0, false},
		{"bool from string", "true", graph.ParamTypeBool, true, false},
		{"bool from garbage", "yep", graph.ParamTypeBool, nil, true},
		{"string from number", 12, graph.ParamTypeString, "12", false},
		{"list wraps scalar", "x", graph.ParamTypeList, []interface{}{"x"}, false},
		{"dict passthrough", map[string]interface{}{"k": 1}, graph.ParamTypeDict, map[string]interface{}{"k": 1}, false},
		{"dict from scalar rejected", "x", graph.ParamTypeDict, nil, true},
		{"any passthrough", []int{1}, graph.ParamTypeAny, []int{1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerce(tt.in, tt.typ)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
