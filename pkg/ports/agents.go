package ports

import (
	"context"

	"github.com/aescanero/dago-turns/pkg/domain"
)

// AgentRepository resolves agent definitions for a tenant
type AgentRepository interface {
	// GetAgent returns *domain.NotFoundError when the agent does not exist for the tenant
	GetAgent(ctx context.Context, agentID, tenantID string) (*domain.Agent, error)
}
