package vis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kgchat/backend/internal/centrality"
	"kgchat/backend/internal/conversation"
	"kgchat/backend/internal/graph"
	"kgchat/backend/internal/scoring"
	"kgchat/backend/internal/subgraph"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixture() *graph.Snapshot {
	return graph.BuildSnapshot(&graph.RawGraph{
		Nodes: []graph.RawNode{
			{ID: "ada", Attrs: map[string]any{"name": "Ada Lovelace", "entity_type": "person", "description": "Mathematician"}},
			{ID: "engine", Attrs: map[string]any{"name": "Analytical Engine", "entity_type": "WORK"}},
			{ID: "london", Attrs: map[string]any{"name": "London", "type": "CITY"}},
		},
		Edges: []graph.RawEdge{
			{Source: "engine", Target: "ada", Attrs: map[string]any{"relation": "described", "weight": "2.5", "keywords": "notes"}},
			{Source: "ada", Target: "london", Attrs: map[string]any{"weight": "heavy"}},
		},
	}, centrality.Default(nil))
}

func TestRender_Payload(t *testing.T) {
	snap := fixture()
	tr := conversation.NewTracker(0.95)
	tr.Update([]string{"ada"}, t0, 0)
	v := scoring.NewScorer(scoring.DefaultWeights()).Bind(snap, tr.State(), graph.NewIDSet("ada"), t0)

	p := Render(snap.Full(), v)
	require.Len(t, p.Nodes, 3)
	require.Len(t, p.Links, 2)

	ada := p.Nodes[0]
	assert.Equal(t, "ada", ada.ID)
	assert.Equal(t, "Ada Lovelace", ada.Label)
	assert.Equal(t, "Mathematician", ada.Description)
	assert.Equal(t, "#1f77b4", ada.Color, "type is upper-cased for the palette")
	assert.True(t, ada.IsFocal)
	assert.Equal(t, 1.0, ada.Frequency)
	assert.Equal(t, snap.Centrality("ada"), ada.Centrality)
	assert.Equal(t, MinSize+SizeScale, ada.Size, "most important node gets exactly the full scale")

	assert.Equal(t, "#8c564b", p.Nodes[1].Color)
	assert.Equal(t, DefaultColor, p.Nodes[2].Color)
	assert.False(t, p.Nodes[1].IsFocal)
	for _, n := range p.Nodes {
		assert.GreaterOrEqual(t, n.Size, MinSize)
		assert.LessOrEqual(t, n.Size, MinSize+SizeScale)
	}

	assert.Equal(t, Link{Source: "ada", Target: "engine", Relationship: "described", Weight: 2.5, Keywords: "notes"}, p.Links[0])
	assert.Equal(t, Link{Source: "ada", Target: "london", Relationship: "related", Weight: 1.0}, p.Links[1])
}

func TestRender_ZeroImportance(t *testing.T) {
	snap := fixture()
	v := scoring.NewScorer(scoring.Weights{}).Bind(snap, conversation.NewTracker(0.95).State(), nil, t0)
	p := Render(snap.Full(), v)
	for _, n := range p.Nodes {
		assert.Equal(t, MinSize, n.Size)
	}
}

func TestRender_DeduplicatesAndHandlesNil(t *testing.T) {
	snap := fixture()
	v := scoring.NewScorer(scoring.DefaultWeights()).Bind(snap, nil, nil, t0)

	full := snap.Full()
	dup := &graph.Subgraph{
		Nodes: append(append([]*graph.Node{}, full.Nodes...), full.Nodes[0], nil),
		Edges: append(append([]*graph.Edge{}, full.Edges...), &graph.Edge{Source: "engine", Target: "ada"}),
	}
	p := Render(dup, v)
	assert.Len(t, p.Nodes, 3)
	assert.Len(t, p.Links, 2)

	empty := Render(nil, v)
	assert.NotNil(t, empty.Nodes)
	assert.NotNil(t, empty.Links)
}

func TestRender_RoundTripWithBuilder(t *testing.T) {
	snap := fixture()
	focal := graph.NewIDSet("engine", "london")
	v := scoring.NewScorer(scoring.DefaultWeights()).Bind(snap, conversation.NewTracker(0.95).State(), focal, t0)

	res := subgraph.NewBuilder(nil).Build(v, 1, 1)
	p := Render(res.Subgraph, v)

	built := graph.NewIDSet(res.Subgraph.NodeIDs()...)
	rendered := graph.NewIDSet()
	for _, n := range p.Nodes {
		assert.True(t, built.Has(n.ID))
		assert.False(t, rendered.Has(n.ID))
		rendered.Add(n.ID)
		assert.Equal(t, focal.Has(n.ID), n.IsFocal)
	}
	for id := range focal {
		assert.True(t, rendered.Has(id))
	}
}

func TestColorFor(t *testing.T) {
	assert.Equal(t, "#2ca02c", ColorFor("Event"))
	assert.Equal(t, "#17becf", ColorFor("DATE"))
	assert.Equal(t, DefaultColor, ColorFor(""))
}
