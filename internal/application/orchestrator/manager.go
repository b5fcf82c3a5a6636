package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aescanero/dago-turns/pkg/domain"
	"github.com/aescanero/dago-turns/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrShuttingDown is returned for turns submitted after Shutdown
var ErrShuttingDown = errors.New("orchestrator is shutting down")

// Turn outcome labels used for metrics and events
const (
	outcomeCompleted        = "completed"
	outcomeValidationFailed = "validation_failed"
	outcomeExecutionFailed  = "execution_failed"
	outcomeNotFound         = "not_found"
	outcomeNotPublished     = "not_published"
	outcomeError            = "error"
)

// Manager processes conversation turns
type Manager struct {
	store     ports.ConversationStore
	agents    ports.AgentRepository
	executor  ports.Executor
	eventBus  ports.EventBus
	metrics   ports.MetricsCollector
	validator *Validator
	logger    *zap.Logger

	stateTTL time.Duration

	mu          sync.Mutex
	closing     bool
	inflight    sync.WaitGroup
	activeTurns atomic.Int64
}

// NewManager creates a new turn orchestrator. eventBus may be nil.
func NewManager(
	store ports.ConversationStore,
	agents ports.AgentRepository,
	executor ports.Executor,
	eventBus ports.EventBus,
	metrics ports.MetricsCollector,
	validator *Validator,
	logger *zap.Logger,
	stateTTL time.Duration,
) *Manager {
	if stateTTL <= 0 {
		stateTTL = ports.DefaultStateTTL
	}

	return &Manager{
		store:     store,
		agents:    agents,
		executor:  executor,
		eventBus:  eventBus,
		metrics:   metrics,
		validator: validator,
		logger:    logger,
		stateTTL:  stateTTL,
	}
}

// Validate checks a flow graph without a conversation context
func (m *Manager) Validate(flow domain.FlowGraph) *domain.ValidationResult {
	result := m.validator.Validate(flow)
	m.metrics.RecordValidation(result.Valid)
	return result
}

// Execute resolves the agent for the tenant, requires it to be published and
// processes a turn against its flow graph.
func (m *Manager) Execute(ctx context.Context, req domain.ExecuteRequest) (*domain.TurnResult, error) {
	turn := domain.TurnRequest{
		TurnID:         req.TurnID,
		AgentID:        req.AgentID,
		ConversationID: req.ConversationID,
		TenantID:       req.TenantID,
		Message:        req.Message,
		Metadata:       req.Metadata,
	}
	if turn.TurnID == "" {
		turn.TurnID = uuid.New().String()
	}

	start := time.Now()

	agent, err := m.agents.GetAgent(ctx, req.AgentID, req.TenantID)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return nil, m.fail(ctx, turn, start, outcomeNotFound, err)
		}
		return nil, m.fail(ctx, turn, start, outcomeError, fmt.Errorf("failed to resolve agent: %w", err))
	}

	if !agent.IsPublished() {
		return nil, m.fail(ctx, turn, start, outcomeNotPublished, &domain.AgentNotPublishedError{
			AgentID: agent.ID,
			Status:  agent.Status,
		})
	}

	turn.Flow = agent.FlowGraph
	return m.ProcessTurn(ctx, turn)
}

// ProcessTurn validates the flow, loads prior state, runs the execution step
// and persists the new state. Nothing is saved unless execution succeeds.
// The agent's status is not checked here.
func (m *Manager) ProcessTurn(ctx context.Context, req domain.TurnRequest) (*domain.TurnResult, error) {
	if req.TurnID == "" {
		req.TurnID = uuid.New().String()
	}

	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	start := time.Now()
	logger := m.turnLogger(req)
	logger.Info("executing workflow")

	validation := m.Validate(req.Flow)
	if !validation.Valid {
		return nil, m.fail(ctx, req, start, outcomeValidationFailed, &domain.ValidationError{Errors: validation.Errors})
	}

	state := m.loadState(ctx, req, logger)
	state.UserMessage = req.Message
	state.AppendMessage(domain.RoleUser, req.Message)

	out, err := m.executor.Execute(ctx, ports.ExecutionInput{
		AgentID:        req.AgentID,
		ConversationID: req.ConversationID,
		TenantID:       req.TenantID,
		Flow:           req.Flow,
		Messages:       append([]domain.Message(nil), state.Messages...),
		Metadata:       copyMap(state.Metadata),
	})
	if err == nil && out == nil {
		err = errors.New("executor returned no output")
	}
	if err != nil {
		return nil, m.fail(ctx, req, start, outcomeExecutionFailed, &domain.ExecutionError{Err: err})
	}

	for k, v := range out.Metadata {
		state.Metadata[k] = v
	}
	state.AppendMessage(domain.RoleAssistant, out.Response)
	state.Response = out.Response

	persisted := m.store.Save(ctx, req.ConversationID, req.TenantID, state, m.stateTTL)
	m.metrics.RecordStateSave(persisted)
	if !persisted {
		logger.Warn("conversation state not persisted; next turn will not see this history")
	}

	result := &domain.TurnResult{
		TurnID:         req.TurnID,
		Response:       out.Response,
		State:          state,
		MessageCount:   len(state.Messages),
		StatePersisted: persisted,
	}

	duration := time.Since(start)
	m.metrics.RecordTurn(outcomeCompleted, duration)
	m.publish(ctx, req, domain.EventTypeTurnCompleted, map[string]interface{}{
		"response":        result.Response,
		"message_count":   result.MessageCount,
		"state_persisted": result.StatePersisted,
	})

	logger.Info("workflow execution completed",
		zap.Int("message_count", result.MessageCount),
		zap.Duration("duration", duration))

	return result, nil
}

// Shutdown rejects new turns and waits for in-flight turns to finish
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down orchestrator manager")

	m.mu.Lock()
	m.closing = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("orchestrator manager shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout with %d turns in flight", m.activeTurns.Load())
	}
}

// loadState returns the prior state, or a new one when there is none or it
// cannot be read.
func (m *Manager) loadState(ctx context.Context, req domain.TurnRequest, logger *zap.Logger) *domain.ConversationState {
	loaded := m.store.Fetch(ctx, req.ConversationID, req.TenantID)
	m.metrics.RecordStateLoad(loaded.Status.String())

	state := domain.NewConversationState()
	switch loaded.Status {
	case ports.LoadFound:
		if loaded.State != nil && loaded.State.Messages != nil {
			state.Messages = loaded.State.Messages
		}
	case ports.LoadBackendError:
		logger.Warn("prior conversation state unavailable, starting new conversation",
			zap.Error(loaded.Err))
	}

	state.Metadata = copyMap(req.Metadata)
	return state
}

// fail logs, records and publishes a failed turn and returns err unchanged
func (m *Manager) fail(ctx context.Context, req domain.TurnRequest, start time.Time, outcome string, err error) error {
	m.turnLogger(req).Error("workflow execution failed",
		zap.String("outcome", outcome),
		zap.Error(err))

	m.metrics.RecordTurn(outcome, time.Since(start))

	data := map[string]interface{}{
		"outcome": outcome,
		"error":   err.Error(),
	}
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		data["errors"] = validationErr.Errors
	}
	m.publish(ctx, req, domain.EventTypeTurnFailed, data)

	return err
}

// publish sends a turn event; failures are logged and otherwise ignored
func (m *Manager) publish(ctx context.Context, req domain.TurnRequest, eventType domain.EventType, data map[string]interface{}) {
	if m.eventBus == nil {
		return
	}

	event := domain.Event{
		ID:             uuid.New().String(),
		Type:           eventType,
		Timestamp:      time.Now(),
		TurnID:         req.TurnID,
		TenantID:       req.TenantID,
		ConversationID: req.ConversationID,
		AgentID:        req.AgentID,
		Data:           data,
	}

	if err := m.eventBus.Publish(context.WithoutCancel(ctx), domain.TopicTurnEvents, event); err != nil {
		m.turnLogger(req).Error("failed to publish turn event",
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}

func (m *Manager) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closing {
		return ErrShuttingDown
	}
	m.inflight.Add(1)
	m.metrics.SetActiveTurns(int(m.activeTurns.Add(1)))
	return nil
}

func (m *Manager) end() {
	m.metrics.SetActiveTurns(int(m.activeTurns.Add(-1)))
	m.inflight.Done()
}

func (m *Manager) turnLogger(req domain.TurnRequest) *zap.Logger {
	return m.logger.With(
		zap.String("turn_id", req.TurnID),
		zap.String("agent_id", req.AgentID),
		zap.String("conversation_id", req.ConversationID),
		zap.String("tenant_id", req.TenantID))
}

func copyMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
