package app

import (
	"fmt"
	"path/filepath"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/controlapi"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/flow"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/settings"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/supervisor"
)

// Services holds every long-lived component the application runs.
type Services struct {
	Supervisor *supervisor.Supervisor
	ControlAPI *controlapi.Server
	FlowStore  *flow.Store
}

// InitializeServices opens the flow store under cfg.DataDir and
// composes the supervisor and control API on top of it.
func InitializeServices(cfg *Config) (*Services, error) {
	storePath := filepath.Join(cfg.DataDir, "flows.json")
	runtimeDir := filepath.Join(cfg.DataDir, "runtime")

	store, err := flow.NewStore(storePath)
	if err != nil {
		return nil, fmt.Errorf("open flow store: %w", err)
	}

	sup := supervisor.New(supervisor.Config{
		Store:       store,
		Settings:    settings.NewProvider(),
		RuntimeDir:  runtimeDir,
		ProxyBinary: cfg.ProxyBinary,
		OpenAPIBin:  cfg.OpenAPIBinary,
	})

	return &Services{
		Supervisor: sup,
		ControlAPI: controlapi.New(sup),
		FlowStore:  store,
	}, nil
}
