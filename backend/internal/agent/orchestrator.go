package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kgchat/backend/internal/adapter"
	"kgchat/backend/internal/conversation"
	"kgchat/backend/internal/graph"
	"kgchat/backend/internal/metrics"
	"kgchat/backend/internal/scoring"
	"kgchat/backend/internal/state"
	"kgchat/backend/internal/subgraph"
	"kgchat/backend/internal/vis"
	"kgchat/backend/pkg/config"
	apperrors "kgchat/backend/pkg/errors"
	"kgchat/backend/pkg/logger"
)

// SnapshotProvider exposes the current knowledge graph
type SnapshotProvider interface {
	Snapshot() *graph.Snapshot
}

// Orchestrator runs conversation turns: it asks the generator, finds the
// entities of the exchange, updates the conversation context and builds the
// contextual subgraph.
type Orchestrator struct {
	graph     SnapshotProvider
	generator adapter.Generator
	tracker   *conversation.Tracker
	scorer    *scoring.Scorer
	builder   *subgraph.Builder
	maxHops   int
	maxNodes  int
	logger    *zap.Logger
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(g SnapshotProvider, generator adapter.Generator, tracker *conversation.Tracker, settings config.GraphSettings) *Orchestrator {
	return &Orchestrator{
		graph:     g,
		generator: generator,
		tracker:   tracker,
		scorer: scoring.NewScorer(scoring.Weights{
			Frequency:  settings.EntityFrequencyWeight,
			Recency:    settings.RecencyWeight,
			Centrality: settings.CentralityWeight,
			Focal:      settings.FocalWeight,
		}),
		builder:  subgraph.NewBuilder(logger.Get()),
		maxHops:  settings.MaxHops,
		maxNodes: settings.MaxNodes,
		logger:   logger.Get(),
	}
}

// SetLogger replaces the orchestrator's logger
func (o *Orchestrator) SetLogger(l *zap.Logger) {
	o.logger = l
	o.builder = subgraph.NewBuilder(l)
}

// TurnRequest is one user query with its conversation
type TurnRequest struct {
	Query        string
	History      []state.Message
	Mode         string
	IncludeGraph bool
	// UserPrompt is an extra instruction for the generator only
	UserPrompt string
}

// TurnResult represents the result of a single conversation turn
type TurnResult struct {
	TurnID   string
	Response string
	// Entities are the display labels of the matched entities, sorted
	Entities  []string
	EntityIDs []string
	Graph     *vis.Payload
	Subgraph  *subgraph.Result
	Elapsed   time.Duration
	Mode      adapter.Mode
	Turn      conversation.Turn
}

// Ready reports whether turns can be served
func (o *Orchestrator) Ready() bool {
	return o.generator != nil && o.generator.Ready()
}

// RunTurn executes a single turn. A generator failure leaves the conversation
// context untouched.
func (o *Orchestrator) RunTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	mode, err := adapter.ParseMode(req.Mode)
	if err != nil {
		return nil, err
	}
	if !o.Ready() {
		return nil, apperrors.ErrGeneratorNotReady
	}

	history := state.TrimHistory(req.History, state.MaxHistoryMessages)
	prompt := req.Query
	if instruction := strings.TrimSpace(req.UserPrompt); instruction != "" {
		prompt = fmt.Sprintf("%s\n\nAdditional instructions: %s", req.Query, instruction)
	}

	o.logger.Debug("Starting conversation turn",
		zap.String("mode", string(mode)),
		zap.Int("history", len(history)),
	)

	text, elapsed, err := o.generator.Answer(ctx, prompt, history, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to generate response: %w", err)
	}
	metrics.GeneratorLatency.Observe(elapsed.Seconds())

	snap := o.graph.Snapshot()
	focal := snap.MatchTurn(req.Query, text)
	ids := focal.Sorted()
	turn := o.tracker.RecordTurn(req.Query, text, ids, elapsed)
	metrics.TurnsTotal.Inc()

	result := &TurnResult{
		TurnID:    uuid.NewString(),
		Response:  text,
		Entities:  labels(snap, ids),
		EntityIDs: ids,
		Elapsed:   elapsed,
		Mode:      mode,
		Turn:      turn,
	}

	if req.IncludeGraph {
		view := o.scorer.Bind(snap, o.tracker.State(), focal, o.tracker.Now())
		result.Subgraph = o.builder.Build(view, o.maxHops, o.maxNodes)
		payload := vis.Render(result.Subgraph.Subgraph, view)
		result.Graph = &payload
		metrics.SubgraphNodes.Observe(float64(len(payload.Nodes)))
	}

	o.logger.Info("Conversation turn completed",
		zap.String("turn_id", result.TurnID),
		zap.Int("entities", len(ids)),
		zap.Duration("elapsed", elapsed),
		zap.Bool("include_graph", req.IncludeGraph),
	)
	return result, nil
}

// FullGraph renders the whole graph with the last turn's entities as focal
func (o *Orchestrator) FullGraph() vis.Payload {
	snap := o.graph.Snapshot()
	st := o.tracker.State()
	focal := graph.NewIDSet()
	if last, ok := st.LastTurn(); ok {
		for _, id := range last.Entities {
			if snap.Has(id) {
				focal.Add(id)
			}
		}
	}
	view := o.scorer.Bind(snap, st, focal, o.tracker.Now())
	return vis.Render(snap.Full(), view)
}

// Subgraph builds and renders the contextual subgraph around the entities
// with the given labels. Non-positive limits use the configured ones. It
// returns false when no label resolves to a node.
func (o *Orchestrator) Subgraph(entityLabels []string, maxHops, maxNodes int) (vis.Payload, bool) {
	snap := o.graph.Snapshot()
	focal := snap.ResolveLabels(entityLabels)
	if len(focal) == 0 {
		return vis.Payload{}, false
	}
	if maxHops <= 0 {
		maxHops = o.maxHops
	}
	if maxNodes <= 0 {
		maxNodes = o.maxNodes
	}
	view := o.scorer.Bind(snap, o.tracker.State(), focal, o.tracker.Now())
	res := o.builder.Build(view, maxHops, maxNodes)
	metrics.SubgraphNodes.Observe(float64(len(res.Subgraph.Nodes)))
	return vis.Render(res.Subgraph, view), true
}

// Stats summarises the conversation over the current graph
func (o *Orchestrator) Stats() conversation.Stats {
	snap := o.graph.Snapshot()
	return o.tracker.State().Stats(func(id string) string {
		if n, ok := snap.Node(id); ok {
			return n.Label
		}
		return id
	}, snap.NodeCount(), snap.EdgeCount())
}

func labels(snap *graph.Snapshot, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		label := id
		if n, ok := snap.Node(id); ok {
			label = n.Label
		}
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}
