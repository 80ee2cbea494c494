package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/vk/netround/internal/asset"
	"github.com/vk/netround/internal/ctxlog"
	"github.com/vk/netround/internal/metrics"
	"github.com/vk/netround/internal/registry"
	"github.com/vk/netround/internal/result"
	"github.com/vk/netround/internal/round"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx        context.Context
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	registry   *registry.Registry
	metrics    *metrics.Registry
	network    *asset.HCLProvider
	engine     *round.Engine
	assembler  *result.Assembler
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger, program registry
// and metrics registry. Without modules the core modules are registered.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) *App {
	logger := newLogger(cfg, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All program modules registered.", "count", len(modules), "programs", reg.Programs())

	m := metrics.NewRegistry()
	provider := asset.NewHCLProvider(cfg.ExperimentPath, cfg.Variables)
	engine := round.New(
		filepath.Join(cfg.ExperimentPath, round.OutputDir),
		provider,
		asset.NewDirInputs(cfg.ExperimentPath),
		reg,
		round.WithTimeout(cfg.Timeout),
		round.WithHorizon(cfg.VirtualHorizon),
		round.WithMetrics(m),
	)

	return &App{
		ctx:       ctx,
		outW:      outW,
		logger:    logger,
		config:    cfg,
		registry:  reg,
		metrics:   m,
		network:   provider,
		engine:    engine,
		assembler: result.NewAssembler(nil),
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Metrics returns the application's metrics registry.
func (a *App) Metrics() *metrics.Registry {
	return a.metrics
}

// Engine returns the round engine.
func (a *App) Engine() *round.Engine {
	return a.engine
}
