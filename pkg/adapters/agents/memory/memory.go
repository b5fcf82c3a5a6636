package memory

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/aescanero/dago-turns/pkg/domain"
	"github.com/aescanero/dago-turns/pkg/ports"
	"gopkg.in/yaml.v3"
)

type agentKey struct {
	tenantID string
	agentID  string
}

// AgentRepository implements ports.AgentRepository in memory
type AgentRepository struct {
	agents map[agentKey]domain.Agent
	mu     sync.RWMutex
}

var _ ports.AgentRepository = (*AgentRepository)(nil)

// NewAgentRepository creates an empty in-memory agent repository
func NewAgentRepository() *AgentRepository {
	return &AgentRepository{
		agents: make(map[agentKey]domain.Agent),
	}
}

// Put stores or replaces an agent definition
func (r *AgentRepository) Put(agent domain.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.agents[agentKey{tenantID: agent.TenantID, agentID: agent.ID}] = agent
}

// GetAgent returns the agent owned by the tenant
func (r *AgentRepository) GetAgent(ctx context.Context, agentID, tenantID string) (*domain.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, ok := r.agents[agentKey{tenantID: tenantID, agentID: agentID}]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "Agent", ID: agentID}
	}
	return &agent, nil
}

// Len returns the number of stored agents
func (r *AgentRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.agents)
}

type seedFile struct {
	Agents []domain.Agent `yaml:"agents"`
}

// LoadFile adds the agents listed in a YAML seed file
func (r *AgentRepository) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read agents file: %w", err)
	}
	return r.LoadYAML(data)
}

// LoadYAML adds the agents listed in a YAML document
func (r *AgentRepository) LoadYAML(data []byte) error {
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("failed to parse agents file: %w", err)
	}

	for i, agent := range seed.Agents {
		if agent.ID == "" || agent.TenantID == "" {
			return fmt.Errorf("agent at index %d requires id and tenantId", i)
		}
		if agent.Status == "" {
			agent.Status = domain.AgentStatusDraft
		}
		r.Put(agent)
	}

	return nil
}
