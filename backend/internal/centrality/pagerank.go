package centrality

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/graph"
)

const (
	DefaultDamping   = 0.85
	DefaultTolerance = 1e-6
	DefaultMaxIter   = 100
)

// PageRank is a bounded power iteration over an undirected graph. Each edge is
// followed in both directions, proportionally to its weight when the graph is
// weighted. Mass held by nodes without usable out-weight is spread uniformly.
// Scores sum to one.
type PageRank struct {
	Damping   float64
	Tolerance float64
	MaxIter   int
}

// NewPageRank returns a PageRank strategy with the default parameters.
func NewPageRank() PageRank {
	return PageRank{Damping: DefaultDamping, Tolerance: DefaultTolerance, MaxIter: DefaultMaxIter}
}

// Name implements Strategy.
func (PageRank) Name() string { return "pagerank" }

// Compute implements Strategy.
func (p PageRank) Compute(g graph.Undirected) (map[int64]float64, error) {
	nodes := sortedNodes(g)
	n := len(nodes)
	if n == 0 {
		return map[int64]float64{}, nil
	}
	if p.Damping < 0 || p.Damping > 1 {
		return nil, fmt.Errorf("centrality: damping %v outside [0,1]", p.Damping)
	}

	pos := make(map[int64]int, n)
	for i, node := range nodes {
		pos[node.ID()] = i
	}

	weighted, _ := g.(graph.Weighted)
	type arc struct {
		to int
		w  float64
	}
	out := make([][]arc, n)
	total := make([]float64, n)
	for i, node := range nodes {
		for _, nb := range sortedNeighbors(g, node.ID()) {
			w := 1.0
			if weighted != nil {
				if ew, ok := weighted.Weight(node.ID(), nb.ID()); ok {
					w = ew
				}
			}
			if math.IsNaN(w) || math.IsInf(w, 0) {
				return nil, fmt.Errorf("centrality: invalid weight on edge %d-%d", node.ID(), nb.ID())
			}
			if w <= 0 {
				continue
			}
			out[i] = append(out[i], arc{to: pos[nb.ID()], w: w})
			total[i] += w
		}
	}

	uniform := 1 / float64(n)
	x := make([]float64, n)
	for i := range x {
		x[i] = uniform
	}
	last := make([]float64, n)

	for iter := 0; iter < p.MaxIter; iter++ {
		copy(last, x)
		for i := range x {
			x[i] = 0
		}

		dangling := 0.0
		for i := range last {
			if total[i] == 0 {
				dangling += last[i]
			}
		}
		dangling *= p.Damping

		for i, arcs := range out {
			for _, a := range arcs {
				x[a.to] += p.Damping * last[i] * a.w / total[i]
			}
		}
		floats.AddConst(dangling*uniform+(1-p.Damping)*uniform, x)

		if floats.Distance(x, last, 1) < float64(n)*p.Tolerance {
			scores := make(map[int64]float64, n)
			for i, node := range nodes {
				scores[node.ID()] = x[i]
			}
			return scores, nil
		}
	}

	return nil, fmt.Errorf("%w after %d iterations", ErrNotConverged, p.MaxIter)
}

// Degree is normalized degree centrality: degree / (n-1). A single isolated
// node scores 1.
type Degree struct{}

// Name implements Strategy.
func (Degree) Name() string { return "degree" }

// Compute implements Strategy.
func (Degree) Compute(g graph.Undirected) (map[int64]float64, error) {
	nodes := sortedNodes(g)
	scores := make(map[int64]float64, len(nodes))
	if len(nodes) == 1 {
		scores[nodes[0].ID()] = 1
		return scores, nil
	}
	norm := 1 / float64(len(nodes)-1)
	for _, node := range nodes {
		scores[node.ID()] = float64(g.From(node.ID()).Len()) * norm
	}
	return scores, nil
}
