package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aescanero/dago-turns/pkg/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// TurnService runs and validates conversation turns
type TurnService interface {
	Execute(ctx context.Context, req domain.ExecuteRequest) (*domain.TurnResult, error)
	Validate(flow domain.FlowGraph) *domain.ValidationResult
}

// TurnSubmitter queues turns for asynchronous processing
type TurnSubmitter interface {
	Submit(ctx context.Context, req domain.ExecuteRequest) (string, error)
}

// HealthCheck is a named dependency probe reported by GET /health
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server represents the HTTP API server
type Server struct {
	router    *gin.Engine
	server    *http.Server
	turns     TurnService
	submitter TurnSubmitter
	checks    []HealthCheck
	version   string
	logger    *zap.Logger
}

// Config holds HTTP server configuration
type Config struct {
	// Addr is the listen address, e.g. ":8080"
	Addr    string
	Version string
	APIKey  string

	Turns TurnService
	// Submitter is optional; without it POST /api/v1/turns answers 503
	Submitter TurnSubmitter
	Checks    []HealthCheck
	// Gatherer defaults to the global Prometheus registry
	Gatherer prometheus.Gatherer

	Logger *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))
	router.Use(corsMiddleware())

	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		router:    router,
		turns:     cfg.Turns,
		submitter: cfg.Submitter,
		checks:    cfg.Checks,
		version:   version,
		logger:    cfg.Logger,
	}

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s.setupRoutes(gatherer, cfg.APIKey)

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer, apiKey string) {
	s.router.GET("/", s.handleRoot)
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := s.router.Group("/api/v1")
	v1.Use(apiKeyMiddleware(apiKey))
	{
		v1.POST("/execute", s.handleExecute)
		v1.POST("/validate", s.handleValidate)
		v1.POST("/turns", s.handleSubmitTurn)
	}
}

// SetupWebSocket adds the conversation event stream route
func (s *Server) SetupWebSocket(handler interface {
	HandleConversationStream(*gin.Context)
}) {
	s.router.GET("/api/v1/conversations/:id/ws", handler.HandleConversationStream)
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}

// requestLogger is a middleware for request logging
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
