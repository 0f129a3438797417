package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePayload = `{
  "id": "flow-1",
  "name": "sample",
  "nodes": [
    {
      "id": "loader",
      "type": "constant",
      "params": {"value": "hello"},
      "outputs": [{"name": "out"}],
      "position": {"x": 120, "y": 40},
      "selected": true
    },
    {
      "id": "echo",
      "type": "template",
      "params": {"template": "got @loader.out"},
      "inputs": [{"name": "in", "required": true}],
      "outputs": [{"name": "out"}]
    }
  ],
  "edges": [
    {"source": "loader", "source_output": "out", "target": "echo", "target_input": "in"}
  ],
  "viewport": {"zoom": 1.5}
}`

func TestDecodePayload(t *testing.T) {
	p, err := DecodePayload([]byte(samplePayload))
	require.NoError(t, err)
	assert.Equal(t, "flow-1", p.ID)
	require.Len(t, p.Nodes, 2)
	assert.True(t, p.Nodes[0].Selected)

	_, err = DecodePayload([]byte("{not json"))
	assert.Error(t, err)
}

func TestPayload_Flow(t *testing.T) {
	p, err := DecodePayload([]byte(samplePayload))
	require.NoError(t, err)

	f, err := p.Flow()
	require.NoError(t, err)
	assert.Len(t, f.Vertices, 2)
	assert.Len(t, f.Edges, 1)
	assert.True(t, f.Indexed())
	assert.Equal(t, 1, f.InDegree("echo"))
}

func TestPayload_Flow_DanglingEdge(t *testing.T) {
	p, err := DecodePayload([]byte(samplePayload))
	require.NoError(t, err)
	p.Edges = append(p.Edges, EdgePayload{
		Source: "loader", SourceOutput: "out", Target: "ghost", TargetInput: "in",
	})

	_, err = p.Flow()
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

func TestSignature_IgnoresCosmeticFields(t *testing.T) {
	build := func(payload string) VertexSignature {
		p, err := DecodePayload([]byte(payload))
		require.NoError(t, err)
		f, err := p.Flow()
		require.NoError(t, err)
		sig, err := f.Signature("echo")
		require.NoError(t, err)
		return sig
	}

	base := build(samplePayload)

	moved := samplePayload
	mp, err := DecodePayload([]byte(moved))
	require.NoError(t, err)
	mp.Nodes[0].Position = json.RawMessage(`{"x": 999, "y": -3}`)
	mp.Nodes[0].Selected = false
	mf, err := mp.Flow()
	require.NoError(t, err)
	movedSig, err := mf.Signature("echo")
	require.NoError(t, err)

	baseJSON, err := json.Marshal(base)
	require.NoError(t, err)
	movedJSON, err := json.Marshal(movedSig)
	require.NoError(t, err)
	assert.Equal(t, baseJSON, movedJSON)
}

func TestSignature_ChangesWithUpstreamParams(t *testing.T) {
	p, err := DecodePayload([]byte(samplePayload))
	require.NoError(t, err)
	f, err := p.Flow()
	require.NoError(t, err)
	before, err := f.Signature("echo")
	require.NoError(t, err)

	f.Vertices["loader"].Params["value"] = "changed"
	after, err := f.Signature("echo")
	require.NoError(t, err)

	beforeJSON, _ := json.Marshal(before)
	afterJSON, _ := json.Marshal(after)
	assert.NotEqual(t, beforeJSON, afterJSON)
}

func TestNormalizeVertex_DetachedFromLiveVertex(t *testing.T) {
	p, err := DecodePayload([]byte(samplePayload))
	require.NoError(t, err)
	f, err := p.Flow()
	require.NoError(t, err)

	f.Vertices["loader"].Params["nested"] = map[string]interface{}{"k": "v"}
	nv, err := f.NormalizeVertex("loader")
	require.NoError(t, err)

	f.Vertices["loader"].Params["value"] = "mutated"
	f.Vertices["loader"].Params["nested"].(map[string]interface{})["k"] = "mutated"

	assert.Equal(t, "hello", nv.Params["value"])
	assert.Equal(t, "v", nv.Params["nested"].(map[string]interface{})["k"])
}
