package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"kgchat/backend/internal/corpus"
	"kgchat/backend/internal/graph"
	"kgchat/backend/internal/state"
	apperrors "kgchat/backend/pkg/errors"
	"kgchat/backend/pkg/logger"
)

// Mode selects which knowledge is placed in front of the model
type Mode string

const (
	ModeNaive  Mode = "naive"
	ModeLocal  Mode = "local"
	ModeGlobal Mode = "global"
	ModeHybrid Mode = "hybrid"
	ModeMix    Mode = "mix"

	DefaultMode = ModeHybrid
)

const (
	maxRetries          = 3
	maxContextEntities  = 20
	maxContextRelations = 40
	defaultTopK         = 4
	defaultHistoryTurns = 5
	openAIHost          = "api.openai.com"
)

const systemPrompt = `You are a knowledgeable assistant answering questions about a document collection.
Answer from the context below when it is relevant and say so when it does not cover the question.
Mention entities by their names so they can be highlighted.`

// ParseMode validates a mode name. An empty name selects DefaultMode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return DefaultMode, nil
	case ModeNaive, ModeLocal, ModeGlobal, ModeHybrid, ModeMix:
		return m, nil
	}
	return "", apperrors.NewInvalidMode(s)
}

// Generator answers a query given the recent conversation
type Generator interface {
	Answer(ctx context.Context, query string, history []state.Message, mode Mode) (string, time.Duration, error)
	Ready() bool
}

// SnapshotProvider exposes the current knowledge graph
type SnapshotProvider interface {
	Snapshot() *graph.Snapshot
}

// Retriever returns corpus chunks relevant to a query
type Retriever interface {
	Retrieve(query string, k int) []corpus.Chunk
}

// chatClient is the part of the OpenAI client the adapter uses
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// LLMOptions configures an LLMAdapter
type LLMOptions struct {
	BaseURL      string
	APIKey       string
	Model        string
	Timeout      time.Duration
	HistoryTurns int
	TopK         int
	Graph        SnapshotProvider
	Retriever    Retriever
	// Backoff is the delay unit between attempts; attempt n waits n*Backoff
	Backoff time.Duration
	Logger  *zap.Logger
}

// LLMAdapter answers queries through an OpenAI compatible chat endpoint
type LLMAdapter struct {
	client       chatClient
	model        string
	mu           sync.RWMutex // Protects model field for concurrent access
	ready        bool
	historyTurns int
	topK         int
	backoff      time.Duration
	graph        SnapshotProvider
	retriever    Retriever
	logger       *zap.Logger
}

// NewLLMAdapter creates a new LLM adapter
func NewLLMAdapter(opts LLMOptions) *LLMAdapter {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	ready := baseURL != "" && (opts.APIKey != "" || !strings.Contains(baseURL, openAIHost))

	// Local OpenAI compatible servers accept any key
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = "dummy-key"
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if opts.Timeout > 0 {
		config.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	if opts.Logger == nil {
		opts.Logger = logger.Get()
	}
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = defaultHistoryTurns
	}
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}

	return &LLMAdapter{
		client:       openai.NewClientWithConfig(config),
		model:        opts.Model,
		ready:        ready,
		historyTurns: opts.HistoryTurns,
		topK:         opts.TopK,
		backoff:      opts.Backoff,
		graph:        opts.Graph,
		retriever:    opts.Retriever,
		logger:       opts.Logger,
	}
}

// SetModel updates the model used by this adapter
func (a *LLMAdapter) SetModel(model string) {
	if model != "" {
		a.mu.Lock()
		a.model = model
		a.mu.Unlock()
		a.logger.Debug("LLM adapter model updated", zap.String("model", model))
	}
}

// GetModel returns the current model
func (a *LLMAdapter) GetModel() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.model
}

// Ready reports whether an endpoint is configured
func (a *LLMAdapter) Ready() bool { return a.ready }

// Answer sends query with mode specific context and the last history turns.
// The returned duration covers every attempt.
func (a *LLMAdapter) Answer(ctx context.Context, query string, history []state.Message, mode Mode) (string, time.Duration, error) {
	if !a.ready {
		return "", 0, apperrors.ErrGeneratorNotReady
	}
	if mode == "" {
		mode = DefaultMode
	}

	start := time.Now()
	currentModel := a.GetModel()
	req := openai.ChatCompletionRequest{
		Model:       currentModel,
		Messages:    a.buildMessages(query, history, mode),
		Temperature: 0.2,
	}

	var (
		resp openai.ChatCompletionResponse
		err  error
	)
	attempts := 0
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * a.backoff
			a.logger.Warn("Retrying LLM request",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)
			if werr := sleep(ctx, backoff); werr != nil {
				return "", time.Since(start), apperrors.NewContextCancelled("generator backoff", werr)
			}
		}

		attempts++
		resp, err = a.client.CreateChatCompletion(ctx, req)
		if err == nil {
			break
		}

		a.logger.Error("LLM request failed",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.String("model", currentModel),
		)
		if ctx.Err() != nil {
			return "", time.Since(start), apperrors.NewContextCancelled("generator request", ctx.Err())
		}
		if !retryable(err) {
			break
		}
	}
	elapsed := time.Since(start)

	if err != nil {
		return "", elapsed, apperrors.NewGeneratorFailed(currentModel, attempts, retryable(err), err)
	}
	if len(resp.Choices) == 0 {
		return "", elapsed, apperrors.ErrGeneratorNoResponse
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	a.logger.Debug("LLM response generated",
		zap.String("model", currentModel),
		zap.String("mode", string(mode)),
		zap.Duration("elapsed", elapsed),
		zap.Int("attempts", attempts),
	)
	return text, elapsed, nil
}

func (a *LLMAdapter) buildMessages(query string, history []state.Message, mode Mode) []openai.ChatCompletionMessage {
	prompt := systemPrompt
	if knowledge := a.buildContext(query, mode); knowledge != "" {
		prompt += "\n\n" + knowledge
	}

	messages := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: prompt}}
	for _, m := range state.TrimHistory(history, a.historyTurns) {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case state.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case state.RoleSystem:
			role = openai.ChatMessageRoleSystem
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: query})
}

// buildContext assembles the knowledge sections for mode
func (a *LLMAdapter) buildContext(query string, mode Mode) string {
	var (
		snap     *graph.Snapshot
		entities []string
	)
	if a.graph != nil {
		snap = a.graph.Snapshot()
	}
	if snap != nil {
		entities = snap.Match(query).Sorted()
		if len(entities) > maxContextEntities {
			entities = entities[:maxContextEntities]
		}
	}

	var sections []string
	if mode == ModeNaive || mode == ModeMix {
		sections = appendSection(sections, "Document excerpts", a.chunkContext(query))
	}
	if mode == ModeLocal || mode == ModeHybrid || mode == ModeMix {
		sections = appendSection(sections, "Entities", entityContext(snap, entities))
	}
	if mode == ModeGlobal || mode == ModeHybrid || mode == ModeMix {
		sections = appendSection(sections, "Relationships", relationContext(snap, entities))
	}
	return strings.Join(sections, "\n\n")
}

func appendSection(sections []string, title string, lines []string) []string {
	if len(lines) == 0 {
		return sections
	}
	return append(sections, "## "+title+"\n"+strings.Join(lines, "\n"))
}

func (a *LLMAdapter) chunkContext(query string) []string {
	if a.retriever == nil {
		return nil
	}
	var lines []string
	for _, c := range a.retriever.Retrieve(query, a.topK) {
		lines = append(lines, fmt.Sprintf("[%s#%d] %s", c.DocID, c.Seq, c.Text))
	}
	return lines
}

func entityContext(snap *graph.Snapshot, ids []string) []string {
	var lines []string
	for _, id := range ids {
		n, ok := snap.Node(id)
		if !ok {
			continue
		}
		line := fmt.Sprintf("- %s (%s)", n.Label, n.Type)
		if n.Description != "" {
			line += ": " + n.Description
		}
		lines = append(lines, line)
	}
	return lines
}

func relationContext(snap *graph.Snapshot, ids []string) []string {
	var lines []string
	seen := make(map[[2]string]bool)
	for _, id := range ids {
		for _, nb := range snap.Neighbors(id) {
			e, ok := snap.Edge(id, nb)
			if !ok || seen[[2]string{e.Source, e.Target}] {
				continue
			}
			seen[[2]string{e.Source, e.Target}] = true

			src, _ := snap.Node(e.Source)
			dst, _ := snap.Node(e.Target)
			line := fmt.Sprintf("- %s -[%s]- %s", src.Label, graph.Relationship(e.Attrs), dst.Label)
			if desc := graph.AttrString(e.Attrs["description"]); desc != "" {
				line += ": " + desc
			}
			lines = append(lines, line)
			if len(lines) == maxContextRelations {
				return lines
			}
		}
	}
	return lines
}

// retryable reports whether a failed request may succeed when repeated
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
