package domain

import "time"

// AgentStatus is the lifecycle status of an agent definition
type AgentStatus string

const (
	AgentStatusDraft     AgentStatus = "DRAFT"
	AgentStatusPublished AgentStatus = "PUBLISHED"
	AgentStatusDisabled  AgentStatus = "DISABLED"
)

// Agent is a tenant-owned agent definition with its workflow graph
type Agent struct {
	ID        string      `json:"id" yaml:"id"`
	Name      string      `json:"name" yaml:"name"`
	Version   string      `json:"version" yaml:"version"`
	Status    AgentStatus `json:"status" yaml:"status"`
	FlowGraph FlowGraph   `json:"flowJson" yaml:"flowJson"`
	TenantID  string      `json:"tenantId" yaml:"tenantId"`
	CreatedAt *time.Time  `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt *time.Time  `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// IsPublished reports whether the agent may serve conversation turns
func (a *Agent) IsPublished() bool {
	return a.Status == AgentStatusPublished
}
