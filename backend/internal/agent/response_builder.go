package agent

import (
	"kgchat/backend/internal/state"
)

// BuildQueryResponse converts a turn result into the transport payload
func BuildQueryResponse(result *TurnResult) *state.QueryResponse {
	entities := result.Entities
	if entities == nil {
		entities = []string{}
	}
	return &state.QueryResponse{
		Response:       result.Response,
		Graph:          result.Graph,
		Entities:       entities,
		ProcessingTime: result.Elapsed.Seconds(),
		ModeUsed:       string(result.Mode),
		TurnID:         result.TurnID,
	}
}
