package graph

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNodeLink_JSON(t *testing.T) {
	doc := `{
		"directed": false,
		"nodes": [
			{"id": "a", "name": "Alpha", "entity_type": "ORG"},
			{"id": 2, "label": "Two"},
			{"name": "no id"}
		],
		"links": [
			{"source": "a", "target": 2, "weight": 3, "relation": "owns"},
			{"source": "a"}
		]
	}`

	raw, err := ParseNodeLink([]byte(doc), FormatJSON)
	require.NoError(t, err)
	require.Len(t, raw.Nodes, 2)
	assert.Equal(t, "a", raw.Nodes[0].ID)
	assert.Equal(t, "2", raw.Nodes[1].ID)
	assert.NotContains(t, raw.Nodes[0].Attrs, "id")

	require.Len(t, raw.Edges, 1)
	e := raw.Edges[0]
	assert.Equal(t, "a", e.Source)
	assert.Equal(t, "2", e.Target)
	assert.Equal(t, 3.0, EdgeWeight(e.Attrs))
	assert.Equal(t, "owns", Relationship(e.Attrs))
	assert.NotContains(t, e.Attrs, "source")
}

func TestParseNodeLink_YAMLWithEdgesKey(t *testing.T) {
	doc := `
nodes:
  - id: paris
    name: Paris
    type: PLACE
  - id: france
edges:
  - source: paris
    target: france
    relation: capital_of
    weight: 2
`
	raw, err := ParseNodeLink([]byte(doc), FormatYAML)
	require.NoError(t, err)
	require.Len(t, raw.Nodes, 2)
	require.Len(t, raw.Edges, 1)
	assert.Equal(t, 2.0, EdgeWeight(raw.Edges[0].Attrs))

	snap := BuildSnapshot(raw, nil)
	n, ok := snap.Node("paris")
	require.True(t, ok)
	assert.Equal(t, "Paris", n.Label)
	assert.Equal(t, "PLACE", n.Type)
}

func TestParseNodeLink_Errors(t *testing.T) {
	_, err := ParseNodeLink([]byte("{"), FormatJSON)
	assert.Error(t, err)

	_, err = ParseNodeLink([]byte("nodes: [\n"), FormatYAML)
	assert.Error(t, err)

	_, err = ParseNodeLink([]byte("{}"), NodeLinkFormat("toml"))
	assert.Error(t, err)
}

func TestNodeLinkFile_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"nodes":[{"id":"x"}],"links":[]}`), 0o644))

	src, err := OpenSource(path, SourceOptions{})
	require.NoError(t, err)
	raw, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, raw.Nodes, 1)
}
