package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aescanero/dago-turns/internal/application/orchestrator"
	"github.com/aescanero/dago-turns/internal/application/workers"
	"github.com/aescanero/dago-turns/pkg/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ExecuteTurnRequest is the body of POST /api/v1/execute and /api/v1/turns
type ExecuteTurnRequest struct {
	AgentID        string                 `json:"agent_id" binding:"required"`
	ConversationID string                 `json:"conversation_id" binding:"required"`
	TenantID       string                 `json:"tenant_id" binding:"required"`
	Message        string                 `json:"message"`
	Metadata       map[string]interface{} `json:"metadata"`
}

func (r *ExecuteTurnRequest) toDomain() domain.ExecuteRequest {
	return domain.ExecuteRequest{
		AgentID:        r.AgentID,
		ConversationID: r.ConversationID,
		TenantID:       r.TenantID,
		Message:        r.Message,
		Metadata:       r.Metadata,
	}
}

// ExecuteTurnResponse is returned by a synchronous turn
type ExecuteTurnResponse struct {
	TurnID          string                    `json:"turn_id"`
	ConversationID  string                    `json:"conversation_id"`
	AgentID         string                    `json:"agent_id"`
	Response        string                    `json:"response"`
	State           *domain.ConversationState `json:"state"`
	MessageCount    int                       `json:"message_count"`
	StatePersisted  bool                      `json:"state_persisted"`
	ExecutionTimeMs float64                   `json:"execution_time_ms"`
	Timestamp       string                    `json:"timestamp"`
}

// SubmitTurnResponse is returned when a turn is queued
type SubmitTurnResponse struct {
	TurnID         string `json:"turn_id"`
	ConversationID string `json:"conversation_id"`
	Status         string `json:"status"`
	SubmittedAt    string `json:"submitted_at"`
}

// ValidateResponse is returned by POST /api/v1/validate
type ValidateResponse struct {
	Valid     bool     `json:"valid"`
	Message   string   `json:"message"`
	NodeCount *int     `json:"node_count,omitempty"`
	EdgeCount *int     `json:"edge_count,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "dago-turns",
		"version": s.version,
		"status":  "running",
		"endpoints": gin.H{
			"health":   "GET /health",
			"metrics":  "GET /metrics",
			"execute":  "POST /api/v1/execute",
			"validate": "POST /api/v1/validate",
			"turns":    "POST /api/v1/turns",
			"stream":   "GET /api/v1/conversations/:id/ws",
		},
	})
}

// handleHealth reports 503 when any dependency check fails
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{}
	for _, hc := range s.checks {
		if err := hc.Check(ctx); err != nil {
			s.logger.Warn("health check failed", zap.String("check", hc.Name), zap.Error(err))
			checks[hc.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[hc.Name] = "ok"
	}

	health := "healthy"
	if status != http.StatusOK {
		health = "unhealthy"
	}

	c.JSON(status, gin.H{
		"status":    health,
		"service":   "dago-turns",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"checks":    checks,
	})
}

func (s *Server) handleExecute(c *gin.Context) {
	var req ExecuteTurnRequest
	if !s.bind(c, &req) {
		return
	}

	start := time.Now()

	result, err := s.turns.Execute(c.Request.Context(), req.toDomain())
	if err != nil {
		s.writeTurnError(c, err)
		return
	}

	c.JSON(http.StatusOK, ExecuteTurnResponse{
		TurnID:          result.TurnID,
		ConversationID:  req.ConversationID,
		AgentID:         req.AgentID,
		Response:        result.Response,
		State:           result.State,
		MessageCount:    result.MessageCount,
		StatePersisted:  result.StatePersisted,
		ExecutionTimeMs: float64(time.Since(start).Microseconds()) / 1000,
		Timestamp:       time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleValidate(c *gin.Context) {
	var flow domain.FlowGraph
	if err := c.ShouldBindJSON(&flow); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: "flow definition must be a JSON object",
			},
		})
		return
	}

	result := s.turns.Validate(flow)
	if !result.Valid {
		c.JSON(http.StatusOK, ValidateResponse{
			Valid:   false,
			Message: "Flow definition has errors",
			Errors:  result.Errors,
		})
		return
	}

	c.JSON(http.StatusOK, ValidateResponse{
		Valid:     true,
		Message:   "Flow definition is valid",
		NodeCount: &result.NodeCount,
		EdgeCount: &result.EdgeCount,
	})
}

func (s *Server) handleSubmitTurn(c *gin.Context) {
	if s.submitter == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: ErrorDetail{
				Code:    "UNAVAILABLE",
				Message: "asynchronous turns are not enabled",
			},
		})
		return
	}

	var req ExecuteTurnRequest
	if !s.bind(c, &req) {
		return
	}

	turnID, err := s.submitter.Submit(c.Request.Context(), req.toDomain())
	if err != nil {
		s.writeTurnError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, SubmitTurnResponse{
		TurnID:         turnID,
		ConversationID: req.ConversationID,
		Status:         "accepted",
		SubmittedAt:    time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		s.logger.Debug("invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return false
	}
	return true
}

// writeTurnError maps turn errors to HTTP responses. Unclassified errors get
// an opaque message; details are already in the orchestrator log.
func (s *Server) writeTurnError(c *gin.Context, err error) {
	var (
		validationErr   *domain.ValidationError
		notFoundErr     *domain.NotFoundError
		notPublishedErr *domain.AgentNotPublishedError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_FLOW",
				Message: "Flow definition has errors",
				Details: validationErr.Errors,
			},
		})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: notFoundErr.Error(),
			},
		})
	case errors.As(err, &notPublishedErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "AGENT_NOT_PUBLISHED",
				Message: notPublishedErr.Error(),
			},
		})
	case errors.Is(err, orchestrator.ErrShuttingDown), errors.Is(err, workers.ErrPoolStopped):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: ErrorDetail{
				Code:    "UNAVAILABLE",
				Message: "service is shutting down",
			},
		})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "EXECUTION_FAILED",
				Message: "Execution failed",
			},
		})
	}
}
