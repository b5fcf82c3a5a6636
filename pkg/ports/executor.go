package ports

import (
	"context"

	"github.com/aescanero/dago-turns/pkg/domain"
)

// ExecutionInput is handed to the graph execution step
type ExecutionInput struct {
	AgentID        string
	ConversationID string
	TenantID       string
	Flow           domain.FlowGraph

	// Messages includes the user message of the current turn as its last entry
	Messages []domain.Message
	Metadata map[string]interface{}
}

// ExecutionOutput is produced by the graph execution step
type ExecutionOutput struct {
	Response string

	// Metadata entries are merged into the conversation state metadata
	Metadata map[string]interface{}
}

// Executor runs a workflow graph for one turn
type Executor interface {
	Execute(ctx context.Context, input ExecutionInput) (*ExecutionOutput, error)
}
