package state

import (
	"fmt"
	"strings"

	"kgchat/backend/internal/vis"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// MaxHistoryMessages is how much conversation history a turn keeps
const MaxHistoryMessages = 10

// Message is one entry of the conversation history sent by the client
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QueryRequest is the body of POST /api/query
type QueryRequest struct {
	Query               string    `json:"query"`
	ConversationHistory []Message `json:"conversation_history"`
	Mode                string    `json:"mode"`
	IncludeGraph        *bool     `json:"include_graph"`
	UserPrompt          string    `json:"user_prompt,omitempty"`
}

// WantsGraph reports whether the response should carry a graph. Defaults to true.
func (r *QueryRequest) WantsGraph() bool {
	return r.IncludeGraph == nil || *r.IncludeGraph
}

// Validate checks if the QueryRequest is valid
func (r *QueryRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return ErrInvalidRequest{Field: "query", Reason: "cannot be empty"}
	}
	for i, m := range r.ConversationHistory {
		if err := m.Validate(); err != nil {
			return ErrInvalidMessage{Index: i, Err: err}
		}
	}
	return nil
}

// Validate checks if the Message is valid
func (m *Message) Validate() error {
	switch m.Role {
	case RoleUser, RoleAssistant, RoleSystem:
		return nil
	}
	return ErrInvalidRequest{Field: "role", Reason: fmt.Sprintf("unknown role %q", m.Role)}
}

// TrimHistory keeps the last n messages
func TrimHistory(history []Message, n int) []Message {
	if n <= 0 {
		return nil
	}
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// QueryResponse is the reply to a query, over HTTP or the websocket
type QueryResponse struct {
	Response       string       `json:"response"`
	Graph          *vis.Payload `json:"graph"`
	Entities       []string     `json:"entities"`
	ProcessingTime float64      `json:"processing_time"`
	ModeUsed       string       `json:"mode_used"`
	TurnID         string       `json:"turn_id"`
}

// WSMessage is a frame exchanged on /ws
type WSMessage struct {
	Type                string    `json:"type"`
	Query               string    `json:"query,omitempty"`
	Mode                string    `json:"mode,omitempty"`
	ConversationHistory []Message `json:"conversation_history,omitempty"`
	IncludeGraph        *bool     `json:"include_graph,omitempty"`
	Error               string    `json:"error,omitempty"`
	*QueryResponse
}

// UploadResponse is the reply to a document upload
type UploadResponse struct {
	Status   string `json:"status"`
	Filename string `json:"filename"`
}

// ReloadResponse is the reply to a graph reload
type ReloadResponse struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// HealthResponse is the reply to GET /api/health
type HealthResponse struct {
	Status         string `json:"status"`
	GeneratorReady bool   `json:"generator_ready"`
}

// Errors

type ErrInvalidRequest struct {
	Field  string
	Reason string
}

func (e ErrInvalidRequest) Error() string {
	return fmt.Sprintf("invalid request: %s - %s", e.Field, e.Reason)
}

type ErrInvalidMessage struct {
	Index int
	Err   error
}

func (e ErrInvalidMessage) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("invalid message at index %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("invalid message: %v", e.Err)
}

func (e ErrInvalidMessage) Unwrap() error { return e.Err }
