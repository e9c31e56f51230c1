// Package vis renders subgraphs as the node/link payload consumed by the
// force-directed graph view.
package vis

import (
	"sort"
	"strings"

	"kgchat/backend/internal/graph"
	"kgchat/backend/internal/scoring"
)

const (
	// MinSize is the display size of the least important node
	MinSize = 8.0
	// SizeScale is added to MinSize for the most important node
	SizeScale = 20.0
	// DefaultColor is used for entity types outside the palette
	DefaultColor = "#4a5568"
)

// Palette maps upper-cased entity types to colors
var Palette = map[string]string{
	"PERSON": "#1f77b4",
	"ORG":    "#ff7f0e",
	"EVENT":  "#2ca02c",
	"PLACE":  "#9467bd",
	"WORK":   "#8c564b",
	"DATE":   "#17becf",
}

// Node is a rendered graph node
type Node struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Frequency   float64 `json:"frequency"`
	IsFocal     bool    `json:"is_focal"`
	Size        float64 `json:"size"`
	Color       string  `json:"color"`
	Centrality  float64 `json:"centrality"`
}

// Link is a rendered edge
type Link struct {
	Source       string  `json:"source"`
	Target       string  `json:"target"`
	Relationship string  `json:"relationship"`
	Weight       float64 `json:"weight"`
	Keywords     string  `json:"keywords"`
}

// Payload is the rendered graph
type Payload struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// ColorFor returns the palette color of an entity type
func ColorFor(entityType string) string {
	if c, ok := Palette[strings.ToUpper(entityType)]; ok {
		return c
	}
	return DefaultColor
}

// Render converts sub into a payload. Importance, frequency and focal flags
// come from v. Nodes are ordered by id and links by (source, target).
func Render(sub *graph.Subgraph, v *scoring.View) Payload {
	out := Payload{Nodes: []Node{}, Links: []Link{}}
	if sub == nil {
		return out
	}

	seen := make(map[string]bool, len(sub.Nodes))
	nodes := make([]*graph.Node, 0, len(sub.Nodes))
	for _, n := range sub.Nodes {
		if n == nil || seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	importance := make([]float64, len(nodes))
	maxImportance := 0.0
	for i, n := range nodes {
		importance[i] = v.Score(n.ID)
		if importance[i] > maxImportance {
			maxImportance = importance[i]
		}
	}
	if maxImportance == 0 {
		maxImportance = 1
	}

	state := v.State()
	snap := v.Snapshot()
	for i, n := range nodes {
		rendered := Node{
			ID:          n.ID,
			Label:       n.Label,
			Type:        n.Type,
			Description: n.Description,
			IsFocal:     v.IsFocal(n.ID),
			Size:        MinSize + SizeScale*(importance[i]/maxImportance),
			Color:       ColorFor(n.Type),
		}
		if state != nil {
			rendered.Frequency = state.Frequency(n.ID)
		}
		if snap != nil {
			rendered.Centrality = snap.Centrality(n.ID)
		}
		out.Nodes = append(out.Nodes, rendered)
	}

	type pair struct{ a, b string }
	seenLinks := make(map[pair]bool, len(sub.Edges))
	for _, e := range sub.Edges {
		if e == nil {
			continue
		}
		src, dst := e.Source, e.Target
		if dst < src {
			src, dst = dst, src
		}
		if seenLinks[pair{src, dst}] || !seen[src] || !seen[dst] {
			continue
		}
		seenLinks[pair{src, dst}] = true
		out.Links = append(out.Links, Link{
			Source:       src,
			Target:       dst,
			Relationship: graph.Relationship(e.Attrs),
			Weight:       graph.EdgeWeight(e.Attrs),
			Keywords:     graph.AttrString(e.Attrs["keywords"]),
		})
	}
	sort.Slice(out.Links, func(i, j int) bool {
		if out.Links[i].Source != out.Links[j].Source {
			return out.Links[i].Source < out.Links[j].Source
		}
		return out.Links[i].Target < out.Links[j].Target
	})
	return out
}
