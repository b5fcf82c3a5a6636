package domain

// TurnRequest carries everything needed to process one conversation turn.
// Flow must already be resolved from the agent definition.
type TurnRequest struct {
	TurnID         string
	AgentID        string
	ConversationID string
	TenantID       string
	Message        string
	Metadata       map[string]interface{}
	Flow           FlowGraph
}

// TurnResult is the outcome of a successful turn
type TurnResult struct {
	TurnID       string             `json:"turn_id"`
	Response     string             `json:"response"`
	State        *ConversationState `json:"state"`
	MessageCount int                `json:"message_count"`

	// StatePersisted is false when the final state could not be saved. The turn
	// still succeeds, but the next load will not see this turn's history.
	StatePersisted bool `json:"state_persisted"`
}

// ExecuteRequest asks for a turn against a stored agent definition
type ExecuteRequest struct {
	TurnID         string                 `json:"turn_id,omitempty"`
	AgentID        string                 `json:"agent_id"`
	ConversationID string                 `json:"conversation_id"`
	TenantID       string                 `json:"tenant_id"`
	Message        string                 `json:"message"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}
