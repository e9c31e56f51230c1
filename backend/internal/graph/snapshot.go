package graph

import (
	"math"
	"sort"
	"strings"
	"time"

	gograph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"

	"kgchat/backend/internal/centrality"
)

// Snapshot is an immutable view of one loaded graph together with its derived
// indices. A Snapshot is never modified after BuildSnapshot returns; reloads
// publish a new one.
//
// Structurally the snapshot is a gonum weighted undirected graph whose node
// ids are the positions of the string identifiers in sorted order, so ordering
// by gonum id and ordering by string id agree.
type Snapshot struct {
	ids    []string
	index  map[string]int64
	nodes  []Node
	g      *simple.WeightedUndirectedGraph
	adj    [][]int64
	edges  map[[2]int64]*Edge
	labels map[string][]string

	centrality map[string]float64
	algorithm  string
	fellBack   bool

	source   string
	loadedAt time.Time
}

type edgeKey = [2]int64

func pairKey(a, b int64) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// EmptySnapshot returns a snapshot with no nodes
func EmptySnapshot() *Snapshot {
	return BuildSnapshot(&RawGraph{}, nil)
}

// BuildSnapshot derives a snapshot from raw source data. Self-loops are
// dropped and parallel edges collapse onto the first one seen. Edges naming
// unknown nodes create those nodes without attributes. A nil ranker leaves
// every centrality at zero.
func BuildSnapshot(raw *RawGraph, ranker centrality.Ranker) *Snapshot {
	if raw == nil {
		raw = &RawGraph{}
	}

	attrs := make(map[string]map[string]any, len(raw.Nodes))
	for _, n := range raw.Nodes {
		if n.ID == "" {
			continue
		}
		if _, seen := attrs[n.ID]; seen {
			continue
		}
		attrs[n.ID] = n.Attrs
	}
	for _, e := range raw.Edges {
		for _, id := range []string{e.Source, e.Target} {
			if _, seen := attrs[id]; !seen && id != "" {
				attrs[id] = nil
			}
		}
	}

	ids := make([]string, 0, len(attrs))
	for id := range attrs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	s := &Snapshot{
		ids:      ids,
		index:    make(map[string]int64, len(ids)),
		nodes:    make([]Node, len(ids)),
		g:        simple.NewWeightedUndirectedGraph(0, math.Inf(1)),
		adj:      make([][]int64, len(ids)),
		edges:    make(map[edgeKey]*Edge),
		labels:   make(map[string][]string),
		loadedAt: time.Now(),
	}

	for i, id := range ids {
		s.index[id] = int64(i)
		s.g.AddNode(simple.Node(i))
		if attrs[id] == nil {
			attrs[id] = map[string]any{}
		}
		s.nodes[i] = resolveNode(id, attrs[id])
		lowered := strings.ToLower(s.nodes[i].Label)
		s.labels[lowered] = append(s.labels[lowered], id)
	}

	for _, e := range raw.Edges {
		u, okU := s.index[e.Source]
		v, okV := s.index[e.Target]
		if !okU || !okV || u == v {
			continue
		}
		key := pairKey(u, v)
		if _, dup := s.edges[key]; dup {
			continue
		}
		edgeAttrs := e.Attrs
		if edgeAttrs == nil {
			edgeAttrs = map[string]any{}
		}
		s.edges[key] = &Edge{Source: ids[key[0]], Target: ids[key[1]], Attrs: edgeAttrs}
		w := EdgeWeight(edgeAttrs)
		if w < 0 || math.IsNaN(w) {
			w = 0
		}
		s.g.SetWeightedEdge(s.g.NewWeightedEdge(simple.Node(u), simple.Node(v), w))
		s.adj[u] = append(s.adj[u], v)
		s.adj[v] = append(s.adj[v], u)
	}
	for i := range s.adj {
		sort.Slice(s.adj[i], func(a, b int) bool { return s.adj[i][a] < s.adj[i][b] })
	}

	s.centrality = make(map[string]float64, len(ids))
	for _, id := range ids {
		s.centrality[id] = 0
	}
	if ranker != nil {
		res := ranker.Rank(s.g)
		s.algorithm = res.Strategy
		s.fellBack = res.FellBack
		for gid, score := range res.Scores {
			if gid >= 0 && int(gid) < len(ids) {
				s.centrality[ids[gid]] = score
			}
		}
	}

	return s
}

// NodeCount returns the number of nodes
func (s *Snapshot) NodeCount() int { return len(s.ids) }

// EdgeCount returns the number of undirected edges
func (s *Snapshot) EdgeCount() int { return len(s.edges) }

// Source returns the location the snapshot was loaded from
func (s *Snapshot) Source() string { return s.source }

// LoadedAt returns when the snapshot was built
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// CentralityAlgorithm names the strategy that produced the centrality map and
// whether it was the fallback
func (s *Snapshot) CentralityAlgorithm() (string, bool) { return s.algorithm, s.fellBack }

// Has reports whether id is a node of the snapshot
func (s *Snapshot) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Node returns the metadata of id
func (s *Snapshot) Node(id string) (*Node, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return &s.nodes[i], true
}

// NodeIDs returns every node id in lexical order. The slice must not be
// modified.
func (s *Snapshot) NodeIDs() []string { return s.ids }

// Neighbors returns the ids adjacent to id in lexical order
func (s *Snapshot) Neighbors(id string) []string {
	i, ok := s.index[id]
	if !ok {
		return nil
	}
	out := make([]string, len(s.adj[i]))
	for k, j := range s.adj[i] {
		out[k] = s.ids[j]
	}
	return out
}

// Edge returns the edge between a and b in either orientation
func (s *Snapshot) Edge(a, b string) (*Edge, bool) {
	u, okU := s.index[a]
	v, okV := s.index[b]
	if !okU || !okV {
		return nil, false
	}
	e, ok := s.edges[pairKey(u, v)]
	return e, ok
}

// Centrality returns the structural score of id, 0 when id is unknown
func (s *Snapshot) Centrality(id string) float64 { return s.centrality[id] }

// TopCentral returns up to n node ids ordered by descending centrality, ties
// broken by id. It returns nil for an empty graph or n <= 0.
func (s *Snapshot) TopCentral(n int) []string {
	if n <= 0 || len(s.ids) == 0 {
		return nil
	}
	ranked := make([]string, len(s.ids))
	copy(ranked, s.ids)
	sort.SliceStable(ranked, func(i, j int) bool {
		return s.centrality[ranked[i]] > s.centrality[ranked[j]]
	})
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}

// Graph exposes the structural graph for traversal. Node ids map to string ids
// through GraphID and IDAt.
func (s *Snapshot) Graph() gograph.Undirected { return s.g }

// GraphID returns the structural node id of id
func (s *Snapshot) GraphID(id string) (int64, bool) {
	i, ok := s.index[id]
	return i, ok
}

// IDAt returns the string id of a structural node id
func (s *Snapshot) IDAt(gid int64) string { return s.ids[gid] }

// AdjacentIDs returns the sorted structural neighbours of gid. The slice must
// not be modified.
func (s *Snapshot) AdjacentIDs(gid int64) []int64 { return s.adj[gid] }

// Induced returns the subgraph induced by ids. Unknown ids are ignored.
func (s *Snapshot) Induced(ids IDSet) *Subgraph {
	members := make([]int64, 0, len(ids))
	for id := range ids {
		if i, ok := s.index[id]; ok {
			members = append(members, i)
		}
	}
	sort.Slice(members, func(a, b int) bool { return members[a] < members[b] })

	in := make(map[int64]bool, len(members))
	sub := &Subgraph{Nodes: make([]*Node, 0, len(members))}
	for _, i := range members {
		in[i] = true
		sub.Nodes = append(sub.Nodes, &s.nodes[i])
	}
	for _, i := range members {
		for _, j := range s.adj[i] {
			if j > i && in[j] {
				sub.Edges = append(sub.Edges, s.edges[pairKey(i, j)])
			}
		}
	}
	return sub
}

// Full returns the whole snapshot as a subgraph
func (s *Snapshot) Full() *Subgraph {
	return s.Induced(NewIDSet(s.ids...))
}
