// Package echo implements an execution step that does not run the graph and
// answers with the user's message.
package echo

import (
	"context"
	"fmt"

	"github.com/aescanero/dago-turns/pkg/domain"
	"github.com/aescanero/dago-turns/pkg/ports"
	"go.uber.org/zap"
)

// Executor echoes the last user message back
type Executor struct {
	logger *zap.Logger
}

var _ ports.Executor = (*Executor)(nil)

// NewExecutor creates a new echo executor
func NewExecutor(logger *zap.Logger) *Executor {
	return &Executor{logger: logger}
}

// Execute returns an echo of the most recent user message
func (e *Executor) Execute(ctx context.Context, input ports.ExecutionInput) (*ports.ExecutionOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var message string
	for i := len(input.Messages) - 1; i >= 0; i-- {
		if input.Messages[i].Role == domain.RoleUser {
			message = input.Messages[i].Content
			break
		}
	}

	e.logger.Debug("echo execution",
		zap.String("agent_id", input.AgentID),
		zap.String("conversation_id", input.ConversationID),
		zap.Int("history", len(input.Messages)))

	return &ports.ExecutionOutput{
		Response: fmt.Sprintf("[Echo] Agent '%s' received: %s", input.AgentID, message),
	}, nil
}
