package graph

import "strings"

// Match returns every node whose lower-cased label occurs in text. The scan is
// over distinct labels, not nodes, and empty labels never match.
func (s *Snapshot) Match(text string) IDSet {
	found := NewIDSet()
	if text == "" {
		return found
	}
	lowered := strings.ToLower(text)
	for label, ids := range s.labels {
		if label == "" || !strings.Contains(lowered, label) {
			continue
		}
		for _, id := range ids {
			found.Add(id)
		}
	}
	return found
}

// MatchTurn unions the matches of a query and its response into one focal set
func (s *Snapshot) MatchTurn(query, response string) IDSet {
	return s.Match(query).Union(s.Match(response))
}

// ResolveLabels looks labels up exactly, ignoring case and surrounding
// whitespace. Blank labels are skipped.
func (s *Snapshot) ResolveLabels(labels []string) IDSet {
	found := NewIDSet()
	for _, label := range labels {
		key := strings.ToLower(strings.TrimSpace(label))
		if key == "" {
			continue
		}
		for _, id := range s.labels[key] {
			found.Add(id)
		}
	}
	return found
}

// LabelBucket returns the ids sharing a lower-cased label
func (s *Snapshot) LabelBucket(label string) []string {
	return s.labels[strings.ToLower(label)]
}
