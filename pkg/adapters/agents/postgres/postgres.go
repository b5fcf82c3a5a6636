package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aescanero/dago-turns/pkg/domain"
	"github.com/aescanero/dago-turns/pkg/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const getAgentQuery = `
SELECT id, name, version, status::text, "flowJson", "tenantId", "createdAt", "updatedAt"
FROM "Agent"
WHERE id = $1 AND "tenantId" = $2`

// Querier is the subset of pgxpool.Pool used by the repository
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PoolConfig sizes the connection pool
type PoolConfig struct {
	URL               string
	MaxConns          int32
	MinConns          int32
	HealthCheckPeriod time.Duration
}

// NewPool creates a connection pool and verifies it with a ping
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.HealthCheckPeriod > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return pool, nil
}

// AgentRepository implements ports.AgentRepository on PostgreSQL
type AgentRepository struct {
	db     Querier
	logger *zap.Logger
}

var _ ports.AgentRepository = (*AgentRepository)(nil)

// NewAgentRepository creates a new PostgreSQL agent repository
func NewAgentRepository(db Querier, logger *zap.Logger) *AgentRepository {
	return &AgentRepository{db: db, logger: logger}
}

// GetAgent loads an agent definition scoped to its tenant
func (r *AgentRepository) GetAgent(ctx context.Context, agentID, tenantID string) (*domain.Agent, error) {
	var (
		agent  domain.Agent
		status string
		flow   []byte
	)

	err := r.db.QueryRow(ctx, getAgentQuery, agentID, tenantID).Scan(
		&agent.ID,
		&agent.Name,
		&agent.Version,
		&status,
		&flow,
		&agent.TenantID,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn("agent not found for tenant",
				zap.String("agent_id", agentID),
				zap.String("tenant_id", tenantID))
			return nil, &domain.NotFoundError{Resource: "Agent", ID: agentID}
		}
		r.logger.Error("error loading agent",
			zap.String("agent_id", agentID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to load agent: %w", err)
	}

	agent.Status = domain.AgentStatus(status)
	if len(flow) > 0 {
		if err := json.Unmarshal(flow, &agent.FlowGraph); err != nil {
			return nil, fmt.Errorf("failed to decode flow graph: %w", err)
		}
	}

	r.logger.Info("loaded agent",
		zap.String("agent_id", agentID),
		zap.String("version", agent.Version))

	return &agent, nil
}
