package conversation

import (
	"sort"

	jsoniter "github.com/json-iterator/go"
)

// TopMentions is how many entities Stats lists as most discussed
const TopMentions = 5

// Mention is an entity label with its whole mention count. It encodes as a
// two element array, ["label", count].
type Mention struct {
	Label string
	Count int
}

// MarshalJSON implements json.Marshaler
func (m Mention) MarshalJSON() ([]byte, error) {
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal([]any{m.Label, m.Count})
}

// Stats summarises the conversation and the graph it runs over
type Stats struct {
	TotalQueries    int       `json:"total_queries"`
	UniqueEntities  int       `json:"unique_entities"`
	MostDiscussed   []Mention `json:"most_discussed"`
	AvgResponseTime float64   `json:"avg_response_time"`
	GraphNodeCount  int       `json:"graph_node_count"`
	GraphEdgeCount  int       `json:"graph_edge_count"`
}

// Stats reports the state's statistics. label resolves an id to its display
// label; graph sizes are supplied by the caller.
func (s *State) Stats(label func(id string) string, nodes, edges int) Stats {
	mentions := make([]Mention, 0, len(s.frequency))
	for id, w := range s.frequency {
		name := id
		if label != nil {
			name = label(id)
		}
		mentions = append(mentions, Mention{Label: name, Count: int(w)})
	}
	sort.Slice(mentions, func(i, j int) bool {
		if mentions[i].Count != mentions[j].Count {
			return mentions[i].Count > mentions[j].Count
		}
		return mentions[i].Label < mentions[j].Label
	})
	if len(mentions) > TopMentions {
		mentions = mentions[:TopMentions]
	}

	return Stats{
		TotalQueries:    s.turns,
		UniqueEntities:  len(s.frequency),
		MostDiscussed:   mentions,
		AvgResponseTime: s.AverageLatency(),
		GraphNodeCount:  nodes,
		GraphEdgeCount:  edges,
	}
}
