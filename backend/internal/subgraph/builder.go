// Package subgraph selects a bounded, importance ranked and, where the budget
// allows, connected slice of the knowledge graph around a set of focal
// entities.
package subgraph

import (
	"sort"

	"go.uber.org/zap"
	gograph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/graph/traverse"

	"kgchat/backend/internal/graph"
	"kgchat/backend/internal/scoring"
)

// Result is a built subgraph with a summary of how it was obtained
type Result struct {
	Subgraph *graph.Subgraph
	// UsedFallback is set when no focal entity resolved and the most
	// central nodes were used as candidates instead
	UsedFallback bool
	Candidates   int
	// ComponentsBefore and ComponentsAfter count connected components
	// around connectivity repair
	ComponentsBefore int
	ComponentsAfter  int
	Stitched         int
}

// Builder selects contextual subgraphs. It holds no per-request state and is
// safe for concurrent use.
type Builder struct {
	logger *zap.Logger
}

// NewBuilder creates a builder
func NewBuilder(logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{logger: logger}
}

// Build selects at most maxNodes nodes within maxHops of the focal entities
// bound to v, plus every focal entity in the graph, then tries to reconnect
// fragments without exceeding maxNodes. Negative limits count as zero.
func (b *Builder) Build(v *scoring.View, maxHops, maxNodes int) *Result {
	snap := v.Snapshot()
	if snap == nil || snap.NodeCount() == 0 {
		return &Result{Subgraph: &graph.Subgraph{}}
	}
	if maxHops < 0 {
		maxHops = 0
	}
	if maxNodes < 0 {
		maxNodes = 0
	}

	focal := v.Focal()
	present := make([]string, 0, len(focal))
	for _, id := range focal.Sorted() {
		if snap.Has(id) {
			present = append(present, id)
		}
	}

	res := &Result{}
	candidates := expand(snap, present, maxHops)
	if len(candidates) == 0 {
		res.UsedFallback = true
		for _, id := range snap.TopCentral(maxNodes) {
			candidates.Add(id)
		}
	}
	res.Candidates = len(candidates)

	selected := rank(v, candidates, maxNodes)
	for _, id := range present {
		selected.Add(id)
	}

	if len(present) > 0 {
		comps := components(snap, selected)
		res.ComponentsBefore = len(comps)
		if len(comps) > 1 {
			res.Stitched = b.repair(snap, selected, comps, present, maxNodes)
		}
		res.ComponentsAfter = len(components(snap, selected))
	}

	res.Subgraph = snap.Induced(selected)
	b.logger.Debug("Built contextual subgraph",
		zap.Int("focal", len(present)),
		zap.Int("candidates", res.Candidates),
		zap.Int("nodes", len(res.Subgraph.Nodes)),
		zap.Int("edges", len(res.Subgraph.Edges)),
		zap.Bool("fallback", res.UsedFallback),
	)
	return res
}

// expand unions the ego neighbourhoods of seeds
func expand(snap *graph.Snapshot, seeds []string, maxHops int) graph.IDSet {
	candidates := graph.NewIDSet()
	g := snap.Graph()
	for _, id := range seeds {
		gid, _ := snap.GraphID(id)
		bf := traverse.BreadthFirst{
			Visit: func(n gograph.Node) { candidates.Add(snap.IDAt(n.ID())) },
		}
		// Nodes at depth maxHops are visited when their parents are
		// expanded; the walk ends on reaching the first of them.
		bf.Walk(g, simple.Node(gid), func(_ gograph.Node, depth int) bool {
			return depth >= maxHops
		})
	}
	return candidates
}

// rank keeps the maxNodes highest scoring candidates, ties broken by id
func rank(v *scoring.View, candidates graph.IDSet, maxNodes int) graph.IDSet {
	type scored struct {
		id    string
		score float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, id := range candidates.Sorted() {
		ranked = append(ranked, scored{id: id, score: v.Score(id)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if len(ranked) > maxNodes {
		ranked = ranked[:maxNodes]
	}

	selected := graph.NewIDSet()
	for _, s := range ranked {
		selected.Add(s.id)
	}
	return selected
}

// components returns the connected components of the subgraph induced by ids.
// Members are sorted and components are ordered by their smallest member.
func components(snap *graph.Snapshot, ids graph.IDSet) [][]string {
	induced := simple.NewUndirectedGraph()
	in := make(map[int64]bool, len(ids))
	for id := range ids {
		if gid, ok := snap.GraphID(id); ok {
			in[gid] = true
			induced.AddNode(simple.Node(gid))
		}
	}
	for gid := range in {
		for _, nb := range snap.AdjacentIDs(gid) {
			if nb > gid && in[nb] {
				induced.SetEdge(simple.Edge{F: simple.Node(gid), T: simple.Node(nb)})
			}
		}
	}

	var out [][]string
	for _, comp := range topo.ConnectedComponents(induced) {
		members := make([]string, len(comp))
		for i, n := range comp {
			members[i] = snap.IDAt(n.ID())
		}
		sort.Strings(members)
		out = append(out, members)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// repair links every component other than the base one to its nearest focal
// entity through shortest paths in the full graph. It stops for good once the
// selection holds maxNodes nodes. It returns the number of nodes added.
func (b *Builder) repair(snap *graph.Snapshot, selected graph.IDSet, comps [][]string, focal []string, maxNodes int) int {
	isFocal := graph.NewIDSet(focal...)

	base, best := 0, -1
	for i, comp := range comps {
		hits := 0
		for _, id := range comp {
			if isFocal.Has(id) {
				hits++
			}
		}
		// comps is ordered by smallest member, so the first maximum wins ties
		if hits > best {
			base, best = i, hits
		}
	}

	added := 0
	for i, comp := range comps {
		if i == base {
			continue
		}
		path := shortestPathToAny(snap, comp[0], isFocal)
		if path == nil {
			continue
		}
		for _, id := range path {
			if selected.Has(id) {
				continue
			}
			if len(selected) >= maxNodes {
				b.logger.Debug("Connectivity repair stopped at node budget",
					zap.Int("max_nodes", maxNodes),
					zap.Int("added", added),
				)
				return added
			}
			selected.Add(id)
			added++
		}
	}
	return added
}

// shortestPathToAny runs a breadth-first search from src over neighbours in id
// order and returns the path to the closest target, ties broken by target id.
// It returns nil when no target is reachable.
func shortestPathToAny(snap *graph.Snapshot, src string, targets graph.IDSet) []string {
	start, ok := snap.GraphID(src)
	if !ok {
		return nil
	}

	parent := map[int64]int64{start: start}
	frontier := []int64{start}
	for len(frontier) > 0 {
		found := int64(-1)
		for _, n := range frontier {
			if targets.Has(snap.IDAt(n)) && (found < 0 || n < found) {
				found = n
			}
		}
		if found >= 0 {
			var path []string
			for n := found; ; n = parent[n] {
				path = append(path, snap.IDAt(n))
				if n == start {
					break
				}
			}
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path
		}

		var next []int64
		for _, n := range frontier {
			for _, nb := range snap.AdjacentIDs(n) {
				if _, seen := parent[nb]; seen {
					continue
				}
				parent[nb] = n
				next = append(next, nb)
			}
		}
		frontier = next
	}
	return nil
}
