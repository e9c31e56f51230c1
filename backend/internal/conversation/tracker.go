// Package conversation tracks which entities a conversation has been about.
//
// Every turn decays the interest held in each tracked entity, then bumps the
// entities the turn mentioned. Readers work on an immutable State; a turn is
// published as a whole or not at all.
package conversation

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultDecayRate is the per-turn multiplier applied to mention weights
	DefaultDecayRate = 0.95
	// Epsilon is the weight below which an entity is forgotten
	Epsilon = 1e-4

	minDecayRate = 1e-6
)

// Turn is the record of the most recent conversational turn
type Turn struct {
	Query    string
	Response string
	Entities []string
	At       time.Time
	Latency  time.Duration
}

// State is one published generation of conversation state. It is never
// modified after publication.
type State struct {
	frequency map[string]float64
	lastSeen  map[string]time.Time
	maxFreq   float64
	lambda    float64

	turns     int
	latencies []float64
	last      *Turn
}

func newState(decayRate float64) *State {
	return &State{
		frequency: map[string]float64{},
		lastSeen:  map[string]time.Time{},
		lambda:    -math.Log(math.Max(decayRate, minDecayRate)),
	}
}

// Frequency returns the decayed mention weight of id
func (s *State) Frequency(id string) float64 { return s.frequency[id] }

// MaxFrequency returns the largest tracked weight, 0 when nothing is tracked
func (s *State) MaxFrequency() float64 { return s.maxFreq }

// NormalizedFrequency returns the weight of id divided by the largest tracked
// weight
func (s *State) NormalizedFrequency(id string) float64 {
	if s.maxFreq == 0 {
		return 0
	}
	return s.frequency[id] / s.maxFreq
}

// LastSeen returns when id was last mentioned
func (s *State) LastSeen(id string) (time.Time, bool) {
	t, ok := s.lastSeen[id]
	return t, ok
}

// Recency scores how recently id was mentioned as exp(-λ·hours), where λ is
// derived from the decay rate. Entities never mentioned score 0.
func (s *State) Recency(id string, now time.Time) float64 {
	seen, ok := s.lastSeen[id]
	if !ok {
		return 0
	}
	hours := math.Max(now.Sub(seen).Hours(), 0)
	return math.Exp(-s.lambda * hours)
}

// Tracked returns the number of entities with a live weight
func (s *State) Tracked() int { return len(s.frequency) }

// Turns returns the number of recorded turns
func (s *State) Turns() int { return s.turns }

// Latencies returns a copy of the per-turn latencies in seconds
func (s *State) Latencies() []float64 {
	out := make([]float64, len(s.latencies))
	copy(out, s.latencies)
	return out
}

// AverageLatency returns the mean turn latency in seconds, 0 before any turn
func (s *State) AverageLatency() float64 {
	if len(s.latencies) == 0 {
		return 0
	}
	sum := 0.0
	for _, l := range s.latencies {
		sum += l
	}
	return sum / float64(len(s.latencies))
}

// LastTurn returns the most recent turn record
func (s *State) LastTurn() (Turn, bool) {
	if s.last == nil {
		return Turn{}, false
	}
	return *s.last, true
}

// decayed returns a copy of s with every weight multiplied by rate and the
// entries under Epsilon dropped
func (s *State) decayed(rate float64) *State {
	next := &State{
		frequency: make(map[string]float64, len(s.frequency)),
		lastSeen:  make(map[string]time.Time, len(s.lastSeen)),
		lambda:    s.lambda,
		turns:     s.turns,
		latencies: s.latencies,
		last:      s.last,
	}
	for id, w := range s.frequency {
		w *= rate
		if w < Epsilon {
			continue
		}
		next.frequency[id] = w
	}
	for id, t := range s.lastSeen {
		next.lastSeen[id] = t
	}
	next.refreshMax()
	return next
}

func (s *State) refreshMax() {
	s.maxFreq = 0
	for _, w := range s.frequency {
		if w > s.maxFreq {
			s.maxFreq = w
		}
	}
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock replaces time.Now
func WithClock(clock func() time.Time) Option {
	return func(t *Tracker) { t.clock = clock }
}

// WithLogger sets the tracker's logger
func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// Tracker is the single writer of conversation state
type Tracker struct {
	mu        sync.Mutex
	state     atomic.Pointer[State]
	decayRate float64
	clock     func() time.Time
	logger    *zap.Logger
}

// NewTracker creates a tracker. Rates outside (0,1] fall back to
// DefaultDecayRate.
func NewTracker(decayRate float64, opts ...Option) *Tracker {
	if decayRate <= 0 || decayRate > 1 || math.IsNaN(decayRate) {
		decayRate = DefaultDecayRate
	}
	t := &Tracker{
		decayRate: decayRate,
		clock:     time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.state.Store(newState(decayRate))
	return t
}

// DecayRate returns the per-turn decay multiplier
func (t *Tracker) DecayRate() float64 { return t.decayRate }

// Now reads the tracker's clock
func (t *Tracker) Now() time.Time { return t.clock() }

// State returns the current state
func (t *Tracker) State() *State { return t.state.Load() }

// Decay applies one turn of forgetting without recording a turn
func (t *Tracker) Decay() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Store(t.state.Load().decayed(t.decayRate))
}

// Update records one turn: decay, then +1 for every entity stamped with at,
// then the latency. The result is published in one step.
func (t *Tracker) Update(entities []string, at time.Time, latency time.Duration) {
	t.apply(entities, at, latency, nil)
}

// RecordTurn is Update stamped with the tracker's clock that also keeps the
// turn as the last one
func (t *Tracker) RecordTurn(query, response string, entities []string, latency time.Duration) Turn {
	at := t.clock()
	sorted := dedupSorted(entities)
	turn := &Turn{Query: query, Response: response, Entities: sorted, At: at, Latency: latency}
	t.apply(sorted, at, latency, turn)
	return *turn
}

func (t *Tracker) apply(entities []string, at time.Time, latency time.Duration, turn *Turn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.state.Load().decayed(t.decayRate)
	for _, id := range dedupSorted(entities) {
		next.frequency[id] += 1.0
		next.lastSeen[id] = at
	}
	next.refreshMax()

	// Older states only see their own prefix, so sharing the backing array
	// is safe under the writer lock.
	next.latencies = append(next.latencies, latency.Seconds())
	next.turns++
	if turn != nil {
		next.last = turn
	}

	t.state.Store(next)
	t.logger.Debug("Conversation context updated",
		zap.Int("turn", next.turns),
		zap.Int("entities", len(entities)),
		zap.Int("tracked", len(next.frequency)),
	)
}

func dedupSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
