package domain

import "time"

// EventType identifies the kind of turn lifecycle event
type EventType string

const (
	EventTypeTurnRequested EventType = "turn.requested"
	EventTypeTurnCompleted EventType = "turn.completed"
	EventTypeTurnFailed    EventType = "turn.failed"
)

// Event topics
const (
	TopicTurnRequests = "turn.requests"
	TopicTurnEvents   = "turn.events"
)

// Event is published on the event bus for asynchronous turns and observers
type Event struct {
	ID             string                 `json:"id"`
	Type           EventType              `json:"type"`
	Timestamp      time.Time              `json:"timestamp"`
	TurnID         string                 `json:"turn_id,omitempty"`
	TenantID       string                 `json:"tenant_id"`
	ConversationID string                 `json:"conversation_id"`
	AgentID        string                 `json:"agent_id"`
	Data           map[string]interface{} `json:"data,omitempty"`
}
