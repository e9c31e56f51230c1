package graph

import "sort"

// ============================================================================
// Graph Types
// ============================================================================

// DefaultEntityType is used when a node carries no type attribute
const DefaultEntityType = "ENTITY"

// Node is an entity of the knowledge graph with its resolved metadata
type Node struct {
	ID          string         `json:"id"`
	Label       string         `json:"label"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Attrs       map[string]any `json:"attrs,omitempty"`
}

// Edge is an undirected relationship between two nodes. Source sorts before
// Target so every pair has exactly one representation.
type Edge struct {
	Source string         `json:"source"`
	Target string         `json:"target"`
	Attrs  map[string]any `json:"attrs,omitempty"`
}

// RawNode is a node as read from a graph source
type RawNode struct {
	ID    string
	Attrs map[string]any
}

// RawEdge is an edge as read from a graph source
type RawEdge struct {
	Source string
	Target string
	Attrs  map[string]any
}

// RawGraph is the unprocessed output of a Source
type RawGraph struct {
	Nodes []RawNode
	Edges []RawEdge
}

// Subgraph is an induced slice of a snapshot. Nodes are ordered by id and
// edges by (source, target).
type Subgraph struct {
	Nodes []*Node
	Edges []*Edge
}

// NodeIDs returns the ids of the subgraph's nodes in order
func (s *Subgraph) NodeIDs() []string {
	ids := make([]string, len(s.Nodes))
	for i, n := range s.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// IDSet is a set of node identifiers
type IDSet map[string]struct{}

// NewIDSet builds a set from the given ids
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id into the set
func (s IDSet) Add(id string) { s[id] = struct{}{} }

// Has reports whether id is in the set
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Union adds every member of other to s
func (s IDSet) Union(other IDSet) IDSet {
	for id := range other {
		s[id] = struct{}{}
	}
	return s
}

// Sorted returns the members in lexical order
func (s IDSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
