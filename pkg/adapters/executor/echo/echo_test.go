package echo

import (
	"context"
	"testing"

	"github.com/aescanero/dago-turns/pkg/domain"
	"github.com/aescanero/dago-turns/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExecute(t *testing.T) {
	exec := NewExecutor(zap.NewNop())

	t.Run("echoes the latest user message", func(t *testing.T) {
		out, err := exec.Execute(context.Background(), ports.ExecutionInput{
			AgentID: "agent-1",
			Messages: []domain.Message{
				{Role: domain.RoleUser, Content: "first"},
				{Role: domain.RoleAssistant, Content: "reply"},
				{Role: domain.RoleUser, Content: "second"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "[Echo] Agent 'agent-1' received: second", out.Response)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := exec.Execute(ctx, ports.ExecutionInput{AgentID: "agent-1"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
