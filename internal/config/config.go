package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the turn service
type Config struct {
	// Server configuration
	HTTPPort    int    `env:"DAGO_HTTP_PORT" envDefault:"8080"`
	GRPCPort    int    `env:"DAGO_GRPC_PORT" envDefault:"9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Environment string `env:"ENVIRONMENT" envDefault:"production"`
	APIKey      string `env:"DAGO_API_KEY"`

	Redis    RedisConfig
	Database DatabaseConfig
	State    StateConfig
	Executor ExecutorConfig
	Workers  WorkerConfig
	Agents   AgentsConfig
	Timeouts TimeoutConfig
}

// RedisConfig holds Redis connection configuration. URL, when set, takes
// precedence over Addr, Password and DB. Commands are never retried.
type RedisConfig struct {
	URL      string `env:"REDIS_URL"`
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// DatabaseConfig holds the agent database configuration. An empty URL
// selects the in-memory agent registry.
type DatabaseConfig struct {
	URL               string        `env:"DATABASE_URL"`
	MaxConns          int32         `env:"DATABASE_MAX_CONNS" envDefault:"15"`
	MinConns          int32         `env:"DATABASE_MIN_CONNS" envDefault:"5"`
	HealthCheckPeriod time.Duration `env:"DATABASE_HEALTH_CHECK_PERIOD" envDefault:"1m"`
}

// StateConfig holds conversation state settings
type StateConfig struct {
	TTL time.Duration `env:"STATE_TTL" envDefault:"86400s"`
}

// ExecutorConfig selects the execution step
type ExecutorConfig struct {
	Provider string `env:"EXECUTOR_PROVIDER" envDefault:"echo"`
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	PoolSize            int           `env:"WORKER_POOL_SIZE" envDefault:"5"`
	QueueSize           int           `env:"WORKER_QUEUE_SIZE" envDefault:"100"`
	ConsumerGroup       string        `env:"WORKER_CONSUMER_GROUP" envDefault:"dago-turns"`
	ConsumerName        string        `env:"WORKER_CONSUMER_NAME"`
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// AgentsConfig holds the in-memory agent registry configuration
type AgentsConfig struct {
	File string `env:"AGENTS_FILE"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	TurnTimeout     time.Duration `env:"TIMEOUT_TURN" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	if c.Redis.URL == "" && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.Database.MinConns < 0 || c.Database.MaxConns < 1 {
		return fmt.Errorf("invalid database pool size: min %d, max %d", c.Database.MinConns, c.Database.MaxConns)
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database min conns %d exceeds max conns %d", c.Database.MinConns, c.Database.MaxConns)
	}

	if c.State.TTL <= 0 {
		return fmt.Errorf("state TTL must be positive")
	}

	if c.Executor.Provider != "echo" {
		return fmt.Errorf("unsupported executor provider: %s", c.Executor.Provider)
	}

	if c.Workers.PoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1")
	}
	if c.Workers.QueueSize < 0 {
		return fmt.Errorf("worker queue size must not be negative")
	}
	if c.Workers.ConsumerGroup == "" {
		return fmt.Errorf("worker consumer group is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// UseDatabase reports whether agents are resolved from Postgres
func (c *Config) UseDatabase() bool {
	return c.Database.URL != ""
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
