package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/dago-turns/pkg/domain"
	"github.com/aescanero/dago-turns/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrPoolStopped is returned when a request arrives after Shutdown
var ErrPoolStopped = errors.New("worker pool is stopped")

// TurnExecutor runs one agent turn
type TurnExecutor interface {
	Execute(ctx context.Context, req domain.ExecuteRequest) (*domain.TurnResult, error)
}

// Pool consumes turn requests from the event bus and runs them on a fixed
// number of workers
type Pool struct {
	size       int
	eventBus   ports.EventBus
	executor   TurnExecutor
	logger     *zap.Logger
	health     *HealthMonitor
	jobs       chan domain.ExecuteRequest
	jobTimeout time.Duration

	mu      sync.RWMutex
	workers []*worker
	started bool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

type worker struct {
	id      string
	pool    *Pool
	status  WorkerStatus
	mu      sync.RWMutex
	lastJob time.Time
}

// WorkerStatus represents worker status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// Options configures a Pool
type Options struct {
	Size                int
	QueueSize           int
	JobTimeout          time.Duration
	HealthCheckInterval time.Duration
}

// NewPool creates a new worker pool
func NewPool(
	opts Options,
	eventBus ports.EventBus,
	executor TurnExecutor,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
) *Pool {
	if opts.Size <= 0 {
		opts.Size = 1
	}
	if opts.QueueSize < 0 {
		opts.QueueSize = 0
	}
	if opts.HealthCheckInterval <= 0 {
		opts.HealthCheckInterval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		size:       opts.Size,
		eventBus:   eventBus,
		executor:   executor,
		logger:     logger,
		jobs:       make(chan domain.ExecuteRequest, opts.QueueSize),
		jobTimeout: opts.JobTimeout,
		ctx:        ctx,
		cancel:     cancel,
	}

	pool.health = NewHealthMonitor(pool, metrics, opts.HealthCheckInterval, logger)

	return pool
}

// Start subscribes to turn requests and starts the workers
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx.Err() != nil {
		return ErrPoolStopped
	}
	if p.started {
		return fmt.Errorf("worker pool already started")
	}

	p.logger.Info("starting worker pool", zap.Int("size", p.size))

	if err := p.eventBus.Subscribe(p.ctx, domain.TopicTurnRequests, p.enqueue); err != nil {
		return fmt.Errorf("failed to subscribe to turn requests: %w", err)
	}

	p.workers = make([]*worker, p.size)
	for i := 0; i < p.size; i++ {
		w := &worker{
			id:      fmt.Sprintf("worker-%d", i),
			pool:    p,
			status:  WorkerStatusIdle,
			lastJob: time.Now(),
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(p.ctx)
	}
	p.started = true

	p.health.Start()

	p.logger.Info("worker pool started", zap.Int("workers", p.size))
	return nil
}

// Submit publishes a turn request for asynchronous processing and returns
// its turn id
func (p *Pool) Submit(ctx context.Context, req domain.ExecuteRequest) (string, error) {
	if p.ctx.Err() != nil {
		return "", ErrPoolStopped
	}

	if req.TurnID == "" {
		req.TurnID = uuid.New().String()
	}

	event, err := NewTurnRequestedEvent(req)
	if err != nil {
		return "", err
	}

	if err := p.eventBus.Publish(ctx, domain.TopicTurnRequests, event); err != nil {
		return "", fmt.Errorf("failed to publish turn request: %w", err)
	}

	p.logger.Debug("turn request submitted",
		zap.String("turn_id", req.TurnID),
		zap.String("agent_id", req.AgentID),
		zap.String("conversation_id", req.ConversationID))

	return req.TurnID, nil
}

// Shutdown stops consuming requests and waits for running turns. Queued
// requests that no worker picked up are dropped.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down worker pool")

	p.health.Stop()
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if dropped := len(p.jobs); dropped > 0 {
			p.logger.Warn("dropped queued turn requests", zap.Int("count", dropped))
		}
		p.logger.Info("worker pool shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout")
	}
}

// GetStatus returns the status of all workers
func (p *Pool) GetStatus() map[string]WorkerStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	status := make(map[string]WorkerStatus, len(p.workers))
	for _, w := range p.workers {
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

// QueueDepth returns the number of requests waiting for a worker
func (p *Pool) QueueDepth() int {
	return len(p.jobs)
}

// Health returns the health monitor of the pool
func (p *Pool) Health() *HealthMonitor {
	return p.health
}

// enqueue is the event handler for turn requests. It blocks while the queue
// is full so the bus applies backpressure.
func (p *Pool) enqueue(ctx context.Context, event domain.Event) error {
	req, err := RequestFromEvent(event)
	if err != nil {
		p.logger.Error("invalid turn request",
			zap.String("event_id", event.ID),
			zap.Error(err))
		return nil
	}

	select {
	case p.jobs <- req:
		return nil
	case <-p.ctx.Done():
		return ErrPoolStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()

	w.pool.logger.Debug("worker started", zap.String("worker_id", w.id))

	for {
		select {
		case <-ctx.Done():
			w.setStatus(WorkerStatusStopped)
			w.pool.logger.Debug("worker stopped", zap.String("worker_id", w.id))
			return
		case req := <-w.pool.jobs:
			w.handle(req)
		}
	}
}

// handle runs one turn. Turns already started are allowed to finish during
// shutdown, bounded only by the job timeout.
func (w *worker) handle(req domain.ExecuteRequest) {
	w.mu.Lock()
	w.status = WorkerStatusBusy
	w.lastJob = time.Now()
	w.mu.Unlock()
	defer w.setStatus(WorkerStatusIdle)

	ctx := context.Background()
	if w.pool.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.pool.jobTimeout)
		defer cancel()
	}

	logger := w.pool.logger.With(
		zap.String("worker_id", w.id),
		zap.String("turn_id", req.TurnID),
		zap.String("agent_id", req.AgentID),
		zap.String("conversation_id", req.ConversationID))

	start := time.Now()
	result, err := w.pool.executor.Execute(ctx, req)
	if err != nil {
		logger.Warn("async turn failed", zap.Error(err))
		return
	}

	logger.Info("async turn completed",
		zap.Int("message_count", result.MessageCount),
		zap.Duration("duration", time.Since(start)))
}

func (w *worker) setStatus(status WorkerStatus) {
	w.mu.Lock()
	w.status = status
	w.mu.Unlock()
}

// NewTurnRequestedEvent wraps a turn request in a turn.requested event
func NewTurnRequestedEvent(req domain.ExecuteRequest) (domain.Event, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return domain.Event{}, fmt.Errorf("failed to marshal turn request: %w", err)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return domain.Event{}, fmt.Errorf("failed to marshal turn request: %w", err)
	}

	return domain.Event{
		ID:             uuid.New().String(),
		Type:           domain.EventTypeTurnRequested,
		Timestamp:      time.Now(),
		TurnID:         req.TurnID,
		TenantID:       req.TenantID,
		ConversationID: req.ConversationID,
		AgentID:        req.AgentID,
		Data:           data,
	}, nil
}

// RequestFromEvent extracts the turn request carried by a turn.requested event
func RequestFromEvent(event domain.Event) (domain.ExecuteRequest, error) {
	var req domain.ExecuteRequest

	if event.Type != domain.EventTypeTurnRequested {
		return req, fmt.Errorf("unexpected event type: %s", event.Type)
	}

	raw, err := json.Marshal(event.Data)
	if err != nil {
		return req, fmt.Errorf("failed to decode turn request: %w", err)
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("failed to decode turn request: %w", err)
	}

	if req.TurnID == "" {
		req.TurnID = event.TurnID
	}
	if req.AgentID == "" {
		req.AgentID = event.AgentID
	}
	if req.ConversationID == "" {
		req.ConversationID = event.ConversationID
	}
	if req.TenantID == "" {
		req.TenantID = event.TenantID
	}

	if req.AgentID == "" || req.ConversationID == "" || req.TenantID == "" {
		return req, errors.New("turn request requires agent_id, conversation_id and tenant_id")
	}

	return req, nil
}
