package domain

import (
	"fmt"
	"strings"
)

// ValidationError is returned when a flow graph fails structural validation.
// It always carries the full list of accumulated errors.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid flow: [%s]", strings.Join(e.Errors, "; "))
}

// NotFoundError is returned when a referenced resource does not resolve for the tenant
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// AgentNotPublishedError is returned when a turn targets an agent that is not PUBLISHED
type AgentNotPublishedError struct {
	AgentID string
	Status  AgentStatus
}

func (e *AgentNotPublishedError) Error() string {
	return fmt.Sprintf("Agent is not published. Current status: %s", e.Status)
}

// ExecutionError wraps a failure of the graph execution step
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// StateBackendError wraps an infrastructure failure of the state backend
type StateBackendError struct {
	Op  string
	Err error
}

func (e *StateBackendError) Error() string {
	return fmt.Sprintf("state backend %s failed: %v", e.Op, e.Err)
}

func (e *StateBackendError) Unwrap() error {
	return e.Err
}
