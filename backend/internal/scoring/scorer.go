// Package scoring combines conversational and structural signals into one
// importance value per node.
package scoring

import (
	"fmt"
	"time"

	"kgchat/backend/internal/conversation"
	"kgchat/backend/internal/graph"
)

// Weights are the non-negative coefficients of the four importance
// components. They need not sum to one.
type Weights struct {
	Frequency  float64
	Recency    float64
	Centrality float64
	Focal      float64
}

// DefaultWeights returns 0.3/0.2/0.3/0.2
func DefaultWeights() Weights {
	return Weights{Frequency: 0.3, Recency: 0.2, Centrality: 0.3, Focal: 0.2}
}

// Validate rejects negative weights
func (w Weights) Validate() error {
	for _, c := range []struct {
		name  string
		value float64
	}{
		{"frequency", w.Frequency},
		{"recency", w.Recency},
		{"centrality", w.Centrality},
		{"focal", w.Focal},
	} {
		if c.value < 0 {
			return fmt.Errorf("%s weight must be non-negative, got %v", c.name, c.value)
		}
	}
	return nil
}

// Components are the normalized inputs of one score, each in [0,1]
type Components struct {
	Frequency  float64
	Recency    float64
	Centrality float64
	Focal      float64
}

// Scorer computes importance values
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with the given weights
func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Weights returns the scorer's weights
func (s *Scorer) Weights() Weights { return s.weights }

// Bind fixes the inputs of scoring: one graph snapshot, one conversation
// state, one focal set and one evaluation instant. Scores from the same View
// are reproducible bit for bit.
func (s *Scorer) Bind(snap *graph.Snapshot, state *conversation.State, focal graph.IDSet, now time.Time) *View {
	if focal == nil {
		focal = graph.NewIDSet()
	}
	return &View{weights: s.weights, snap: snap, state: state, focal: focal, now: now}
}

// View scores nodes against fixed inputs
type View struct {
	weights Weights
	snap    *graph.Snapshot
	state   *conversation.State
	focal   graph.IDSet
	now     time.Time
}

// Components returns the normalized inputs for id
func (v *View) Components(id string) Components {
	c := Components{}
	if v.state != nil {
		c.Frequency = v.state.NormalizedFrequency(id)
		c.Recency = v.state.Recency(id, v.now)
	}
	if v.snap != nil {
		c.Centrality = v.snap.Centrality(id)
	}
	if v.focal.Has(id) {
		c.Focal = 1
	}
	return c
}

// Score returns the weighted importance of id
func (v *View) Score(id string) float64 {
	c := v.Components(id)
	return v.weights.Frequency*c.Frequency +
		v.weights.Recency*c.Recency +
		v.weights.Centrality*c.Centrality +
		v.weights.Focal*c.Focal
}

// IsFocal reports whether id is in the bound focal set
func (v *View) IsFocal(id string) bool { return v.focal.Has(id) }

// Focal returns the bound focal set
func (v *View) Focal() graph.IDSet { return v.focal }

// Snapshot returns the bound graph snapshot
func (v *View) Snapshot() *graph.Snapshot { return v.snap }

// State returns the bound conversation state
func (v *View) State() *conversation.State { return v.state }
