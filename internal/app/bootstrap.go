// Package app bootstraps one supervisor process: logging, the flow
// store, the supervisor, the control API, and the blocking run loop.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/lucasiscovici/mcp-proxy-studio/pkg/logging"
)

// Application is the fully bootstrapped process, ready to Run.
type Application struct {
	config   *Config
	services *Services
}

// NewApplication performs the two-phase bootstrap: configure logging,
// then initialize the flow store/supervisor/control API.
func NewApplication(cfg *Config) (*Application, error) {
	appLogLevel := logging.LevelInfo
	if cfg.Debug {
		appLogLevel = logging.LevelDebug
	}

	var logOutput io.Writer = os.Stdout
	if cfg.Silent {
		logOutput = io.Discard
	}
	logging.InitForCLI(appLogLevel, logOutput)

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{config: cfg, services: services}, nil
}

// Run blocks serving the control API until shutdown is requested.
func (a *Application) Run(ctx context.Context) error {
	return runSupervisor(ctx, a.services, a.config.ListenAddr)
}
