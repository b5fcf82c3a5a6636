package executor

import (
	"fmt"

	"github.com/aescanero/dago-turns/pkg/adapters/executor/echo"
	"github.com/aescanero/dago-turns/pkg/ports"
	"go.uber.org/zap"
)

// Config holds executor configuration
type Config struct {
	Provider string
	Logger   *zap.Logger
}

// NewExecutor creates a new executor based on provider
func NewExecutor(cfg *Config) (ports.Executor, error) {
	switch cfg.Provider {
	case "echo", "":
		return echo.NewExecutor(cfg.Logger), nil
	default:
		return nil, fmt.Errorf("unsupported executor provider: %s", cfg.Provider)
	}
}
