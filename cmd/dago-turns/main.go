package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aescanero/dago-turns/internal/application/orchestrator"
	"github.com/aescanero/dago-turns/internal/application/workers"
	"github.com/aescanero/dago-turns/internal/config"
	agentsmemory "github.com/aescanero/dago-turns/pkg/adapters/agents/memory"
	agentspostgres "github.com/aescanero/dago-turns/pkg/adapters/agents/postgres"
	"github.com/aescanero/dago-turns/pkg/adapters/events"
	eventsmemory "github.com/aescanero/dago-turns/pkg/adapters/events/memory"
	"github.com/aescanero/dago-turns/pkg/adapters/events/redis"
	"github.com/aescanero/dago-turns/pkg/adapters/executor"
	"github.com/aescanero/dago-turns/pkg/adapters/metrics/prometheus"
	redisstorage "github.com/aescanero/dago-turns/pkg/adapters/storage/redis"
	"github.com/aescanero/dago-turns/pkg/api/grpc"
	"github.com/aescanero/dago-turns/pkg/api/http"
	"github.com/aescanero/dago-turns/pkg/api/websocket"
	"github.com/aescanero/dago-turns/pkg/ports"

	promclient "github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.LogLevel, cfg.IsDevelopment())
	defer func() { _ = logger.Sync() }()

	logger.Info("starting dago-turns",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("environment", cfg.Environment))

	ctx := context.Background()

	redisOpts, err := redisOptions(cfg.Redis)
	if err != nil {
		logger.Fatal("invalid Redis configuration", zap.Error(err))
	}
	redisClient := goredis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	logger.Info("connected to Redis", zap.String("addr", redisOpts.Addr))

	agents, closeAgents := initAgents(ctx, cfg, logger)
	defer closeAgents()

	consumerName := cfg.Workers.ConsumerName
	if consumerName == "" {
		hostname, _ := os.Hostname()
		consumerName = fmt.Sprintf("%s-%d", hostname, os.Getpid())
	}
	streamsBus, err := redis.NewStreamsEventBus(redisClient, cfg.Workers.ConsumerGroup, consumerName, logger)
	if err != nil {
		logger.Fatal("failed to create event bus", zap.Error(err))
	}
	// Turn events are mirrored in-process so every WebSocket client of this
	// instance sees them; the stream's consumer group delivers each only once.
	localBus := eventsmemory.NewInMemoryEventBus()
	eventBus := events.NewTeeEventBus(streamsBus, localBus)

	exec, err := executor.NewExecutor(&executor.Config{
		Provider: cfg.Executor.Provider,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("failed to create executor", zap.Error(err))
	}

	metricsCollector := prometheus.NewCollector(promclient.DefaultRegisterer)

	manager := orchestrator.NewManager(
		redisstorage.NewConversationStore(redisClient, logger),
		agents,
		exec,
		eventBus,
		metricsCollector,
		orchestrator.NewValidator(),
		logger,
		cfg.State.TTL,
	)

	workerPool := workers.NewPool(
		workers.Options{
			Size:                cfg.Workers.PoolSize,
			QueueSize:           cfg.Workers.QueueSize,
			JobTimeout:          cfg.Timeouts.TurnTimeout,
			HealthCheckInterval: cfg.Workers.HealthCheckInterval,
		},
		eventBus,
		manager,
		metricsCollector,
		logger,
	)
	if err := workerPool.Start(); err != nil {
		logger.Fatal("failed to start worker pool", zap.Error(err))
	}

	httpServer := http.NewServer(&http.Config{
		Addr:      cfg.GetHTTPAddr(),
		Version:   Version,
		APIKey:    cfg.APIKey,
		Turns:     manager,
		Submitter: workerPool,
		Checks: []http.HealthCheck{
			{Name: "redis", Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}},
			{Name: "workers", Check: func(ctx context.Context) error {
				if !workerPool.Health().IsHealthy() {
					return errors.New("worker pool unhealthy")
				}
				return nil
			}},
		},
		Logger: logger,
	})
	httpServer.SetupWebSocket(websocket.NewHandler(localBus, logger))

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Addr:   cfg.GetGRPCAddr(),
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("failed to create gRPC server", zap.Error(err))
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	logger.Info("dago-turns started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("worker_pool_size", cfg.Workers.PoolSize))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	grpcServer.SetServing(false)

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := workerPool.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker pool shutdown error", zap.Error(err))
	}

	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Error("orchestrator shutdown error", zap.Error(err))
	}

	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}

	if err := redisClient.Close(); err != nil {
		logger.Error("Redis close error", zap.Error(err))
	}

	logger.Info("dago-turns shut down complete")
}

// initAgents selects the Postgres repository when a database URL is set and
// the in-memory registry otherwise
func initAgents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.AgentRepository, func()) {
	if cfg.UseDatabase() {
		pool, err := agentspostgres.NewPool(ctx, agentspostgres.PoolConfig{
			URL:               cfg.Database.URL,
			MaxConns:          cfg.Database.MaxConns,
			MinConns:          cfg.Database.MinConns,
			HealthCheckPeriod: cfg.Database.HealthCheckPeriod,
		})
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		logger.Info("connected to agent database")
		return agentspostgres.NewAgentRepository(pool, logger), pool.Close
	}

	repo := agentsmemory.NewAgentRepository()
	if cfg.Agents.File != "" {
		if err := repo.LoadFile(cfg.Agents.File); err != nil {
			logger.Fatal("failed to load agents file", zap.String("path", cfg.Agents.File), zap.Error(err))
		}
	}
	logger.Warn("DATABASE_URL not set, using in-memory agent registry", zap.Int("agents", repo.Len()))
	return repo, func() {}
}

// redisOptions builds the client options. Command retries are disabled so a
// failed state load or save is reported once.
func redisOptions(cfg config.RedisConfig) (*goredis.Options, error) {
	opts := &goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.URL != "" {
		parsed, err := goredis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		opts = parsed
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.MaxRetries = -1
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	return opts, nil
}

func initLogger(level string, development bool) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	if development {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
