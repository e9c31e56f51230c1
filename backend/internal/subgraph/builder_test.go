package subgraph

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"kgchat/backend/internal/centrality"
	"kgchat/backend/internal/conversation"
	"kgchat/backend/internal/graph"
	"kgchat/backend/internal/scoring"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func snapshotOf(edges ...string) *graph.Snapshot {
	raw := &graph.RawGraph{}
	for _, e := range edges {
		var a, b string
		if _, err := fmt.Sscanf(e, "%s %s", &a, &b); err == nil {
			raw.Edges = append(raw.Edges, graph.RawEdge{Source: a, Target: b})
			continue
		}
		raw.Nodes = append(raw.Nodes, graph.RawNode{ID: e})
	}
	return graph.BuildSnapshot(raw, centrality.Default(nil))
}

func view(snap *graph.Snapshot, state *conversation.State, focal ...string) *scoring.View {
	if state == nil {
		state = conversation.NewTracker(0.95).State()
	}
	return scoring.NewScorer(scoring.DefaultWeights()).Bind(snap, state, graph.NewIDSet(focal...), t0)
}

func build(t *testing.T, v *scoring.View, hops, nodes int) *Result {
	t.Helper()
	return NewBuilder(zaptest.NewLogger(t)).Build(v, hops, nodes)
}

func TestBuild_EmptyGraph(t *testing.T) {
	res := build(t, view(graph.EmptySnapshot(), nil, "a"), 2, 10)
	assert.Empty(t, res.Subgraph.Nodes)
	assert.Empty(t, res.Subgraph.Edges)
}

func TestBuild_DisconnectedPairExample(t *testing.T) {
	// A-B and C-D, with B made more central than C and D through a third
	// neighbour.
	snap := snapshotOf("A B", "C D", "B E")
	require.Greater(t, snap.Centrality("A"), 0.0)
	require.Greater(t, snap.Centrality("B"), snap.Centrality("C"))

	res := build(t, view(snap, nil, "A"), 1, 4)
	assert.Equal(t, []string{"A", "B"}, res.Subgraph.NodeIDs())
	require.Len(t, res.Subgraph.Edges, 1)
	assert.False(t, res.UsedFallback)
	assert.Equal(t, 1, res.ComponentsAfter)
}

func TestBuild_EgoRadius(t *testing.T) {
	snap := snapshotOf("a b", "b c", "c d", "d e")

	tests := []struct {
		hops int
		want []string
	}{
		{0, []string{"c"}},
		{1, []string{"b", "c", "d"}},
		{2, []string{"a", "b", "c", "d", "e"}},
		{-3, []string{"c"}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("hops=%d", tt.hops), func(t *testing.T) {
			res := build(t, view(snap, nil, "c"), tt.hops, 100)
			assert.Equal(t, tt.want, res.Subgraph.NodeIDs())
		})
	}
}

func TestBuild_FallbackToMostCentral(t *testing.T) {
	snap := snapshotOf("hub a", "hub b", "hub c", "x y")

	res := build(t, view(snap, nil), 2, 2)
	assert.True(t, res.UsedFallback)
	want := snap.TopCentral(2)
	sort.Strings(want)
	assert.Equal(t, want, res.Subgraph.NodeIDs())
	assert.Contains(t, res.Subgraph.NodeIDs(), "hub")

	unknown := build(t, view(snap, nil, "nope"), 2, 2)
	assert.True(t, unknown.UsedFallback)
	assert.Equal(t, res.Subgraph.NodeIDs(), unknown.Subgraph.NodeIDs())
}

func TestBuild_ForcesFocalBeyondBudget(t *testing.T) {
	snap := snapshotOf("a b", "a c", "a d", "x y")

	res := build(t, view(snap, nil, "a", "x", "missing"), 1, 0)
	assert.Equal(t, []string{"a", "x"}, res.Subgraph.NodeIDs())

	res = build(t, view(snap, nil, "a", "x"), 1, 1)
	assert.Len(t, res.Subgraph.Nodes, 2, "top node is a focal entity already")
}

func TestBuild_RankingPrefersConversationHistory(t *testing.T) {
	snap := snapshotOf("f n1", "f n2", "f n3")
	tr := conversation.NewTracker(0.95)
	tr.Update([]string{"n3"}, t0, 0)

	res := build(t, view(snap, tr.State(), "f"), 1, 2)
	assert.Equal(t, []string{"f", "n3"}, res.Subgraph.NodeIDs())
}

func TestBuild_RankingTiesBrokenByID(t *testing.T) {
	snap := snapshotOf("f n3", "f n1", "f n2")
	res := build(t, view(snap, nil, "f"), 1, 3)
	assert.Equal(t, []string{"f", "n1", "n2"}, res.Subgraph.NodeIDs())
}

func TestBuild_ConnectivityRepair(t *testing.T) {
	// f1 - p - f2, with both focal entities selected but p outside the ego
	// radius of zero.
	snap := snapshotOf("f1 p", "p f2", "f2 q")

	t.Run("focal fragments stay apart", func(t *testing.T) {
		res := build(t, view(snap, nil, "f1", "f2"), 0, 3)
		assert.Equal(t, 2, res.ComponentsBefore)
		// The closest focal entity of f2's fragment is f2 itself.
		assert.Equal(t, 2, res.ComponentsAfter)
		assert.Equal(t, []string{"f1", "f2"}, res.Subgraph.NodeIDs())
	})

	t.Run("budget exhausted leaves fragments", func(t *testing.T) {
		// x outranks the bridge m, and the budget is spent before m can be
		// added back.
		line := snapshotOf("f1 m", "m x", "x y", "x z")
		tr := conversation.NewTracker(0.95)
		tr.Update([]string{"x"}, t0, 0)

		res := build(t, view(line, tr.State(), "f1"), 2, 2)
		assert.Equal(t, []string{"f1", "x"}, res.Subgraph.NodeIDs())
		assert.Empty(t, res.Subgraph.Edges)
		assert.Equal(t, 2, res.ComponentsAfter)
		assert.Zero(t, res.Stitched)
	})
}

func TestBuild_RepairAddsShortestPath(t *testing.T) {
	// Build only ever hands repair a selection at or over budget, so the
	// stitching itself is exercised directly.
	snap := snapshotOf("f a", "a b", "b c", "c g", "g h")
	b := NewBuilder(zaptest.NewLogger(t))

	selected := graph.NewIDSet("f", "h")
	comps := components(snap, selected)
	require.Len(t, comps, 2)

	added := b.repair(snap, selected, comps, []string{"f"}, 100)
	assert.Equal(t, 4, added)
	assert.Equal(t, []string{"a", "b", "c", "f", "g", "h"}, selected.Sorted())

	tight := graph.NewIDSet("f", "h")
	added = b.repair(snap, tight, components(snap, tight), []string{"f"}, 4)
	assert.Equal(t, 2, added)
	assert.Len(t, tight, 4)
}

func TestBuild_RepairSkipsUnreachable(t *testing.T) {
	snap := snapshotOf("f a", "x y")
	b := NewBuilder(zaptest.NewLogger(t))

	selected := graph.NewIDSet("f", "x")
	added := b.repair(snap, selected, components(snap, selected), []string{"f"}, 100)
	assert.Zero(t, added)
	assert.Equal(t, []string{"f", "x"}, selected.Sorted())
}

func TestShortestPathToAny_TiesByID(t *testing.T) {
	snap := snapshotOf("s m", "m t2", "m t1", "s t3")
	path := shortestPathToAny(snap, "s", graph.NewIDSet("t1", "t2"))
	assert.Equal(t, []string{"s", "m", "t1"}, path)

	path = shortestPathToAny(snap, "s", graph.NewIDSet("t3", "t1"))
	assert.Equal(t, []string{"s", "t3"}, path)

	assert.Equal(t, []string{"s"}, shortestPathToAny(snap, "s", graph.NewIDSet("s")))
	assert.Nil(t, shortestPathToAny(snap, "missing", graph.NewIDSet("s")))
}

func TestComponentsOrdering(t *testing.T) {
	snap := snapshotOf("d c", "b a", "e")
	comps := components(snap, graph.NewIDSet("a", "b", "c", "d", "e"))
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, comps)
}

// randomSnapshot builds a deterministic pseudo-random graph
func randomSnapshot(seed int64, n, m int) *graph.Snapshot {
	rng := rand.New(rand.NewSource(seed))
	raw := &graph.RawGraph{}
	for i := 0; i < n; i++ {
		raw.Nodes = append(raw.Nodes, graph.RawNode{ID: fmt.Sprintf("n%02d", i)})
	}
	for i := 0; i < m; i++ {
		a, b := rng.Intn(n), rng.Intn(n)
		raw.Edges = append(raw.Edges, graph.RawEdge{Source: fmt.Sprintf("n%02d", a), Target: fmt.Sprintf("n%02d", b)})
	}
	return graph.BuildSnapshot(raw, centrality.Default(nil))
}

func TestBuild_Properties(t *testing.T) {
	for seed := int64(1); seed <= 25; seed++ {
		snap := randomSnapshot(seed, 30, 35)
		rng := rand.New(rand.NewSource(seed * 7))

		var focal []string
		for i := 0; i < rng.Intn(4); i++ {
			focal = append(focal, fmt.Sprintf("n%02d", rng.Intn(30)))
		}
		focal = append(focal, "absent")
		hops, nodes := rng.Intn(3), rng.Intn(12)

		v := view(snap, nil, focal...)
		res := build(t, v, hops, nodes)
		ids := res.Subgraph.NodeIDs()

		present := 0
		for _, f := range graph.NewIDSet(focal...).Sorted() {
			if snap.Has(f) {
				present++
				assert.Contains(t, ids, f, "seed %d: focal %s dropped", seed, f)
			}
		}
		assert.LessOrEqual(t, len(ids), nodes+present, "seed %d", seed)
		assert.Len(t, graph.NewIDSet(ids...), len(ids), "seed %d: duplicates", seed)
		if present > 0 {
			assert.LessOrEqual(t, res.ComponentsAfter, res.ComponentsBefore, "seed %d", seed)
		}

		again := build(t, view(snap, nil, focal...), hops, nodes)
		assert.Equal(t, ids, again.Subgraph.NodeIDs(), "seed %d: not deterministic", seed)
	}
}

func TestBuild_EmptyFocalEqualsTopCentral(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		snap := randomSnapshot(seed, 20, 25)
		for _, n := range []int{0, 1, 5, 20, 50} {
			res := build(t, view(snap, nil), 2, n)
			want := snap.TopCentral(n)
			sort.Strings(want)
			if want == nil {
				want = []string{}
			}
			assert.Equal(t, want, res.Subgraph.NodeIDs(), "seed %d n %d", seed, n)
		}
	}
}
