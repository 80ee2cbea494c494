package app

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/vk/netround/internal/ctxlog"
	"github.com/vk/netround/internal/registry"
	"github.com/vk/netround/internal/result"
)

// ExecProgramPrefix prefixes the names of programs built from role
// commands.
const ExecProgramPrefix = "exec."

// Run executes the configured number of rounds. Round failures are reported
// in the results; only cancellation of ctx returns an error.
func (a *App) Run(ctx context.Context) ([]*result.RoundResult, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	a.healthCheckServer()
	defer a.closeHealthCheckServer()

	a.bindPrograms(ctx)

	a.logger.Info("🚀 Starting experiment...", "path", a.config.ExperimentPath, "rounds", a.config.Rounds)
	results := make([]*result.RoundResult, 0, a.config.Rounds)
	failed := 0
	for n := 1; n <= a.config.Rounds; n++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := a.RunRound(ctx, n)
		if !res.OK() {
			failed++
		}
		results = append(results, res)
	}
	a.logger.Info("🏁 Experiment finished.", "rounds", len(results), "failed", failed)
	return results, nil
}

// RunRound executes round n and assembles its result.
func (a *App) RunRound(ctx context.Context, n int) *result.RoundResult {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	out := a.engine.Run(ctx, n)
	return a.assembler.Assemble(ctx, out)
}

// bindPrograms applies the program bindings and simulator commands declared
// in the network asset. A broken asset is left for the round to report.
func (a *App) bindPrograms(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	asset, err := a.network.Load(ctx)
	if err != nil {
		logger.Debug("Skipping program bindings, network asset not loadable.", "error", err)
		return
	}
	for role, program := range asset.Programs {
		a.registry.Bind(role, program)
		logger.Debug("Role bound to program.", "role", role, "program", program)
	}
	for role, command := range asset.Commands {
		name := ExecProgramPrefix + role
		if _, exists := a.registry.Lookup(name); !exists {
			a.registry.RegisterProgram(registry.Exec(name, a.commandPath(command[0]), command[1:]...))
		}
		a.registry.Bind(role, name)
		logger.Debug("Role bound to simulator command.", "role", role, "command", command)
	}
}

// commandPath resolves relative command paths against the experiment.
// Bare names are left for PATH lookup.
func (a *App) commandPath(path string) string {
	if filepath.IsAbs(path) || !strings.ContainsRune(path, filepath.Separator) {
		return path
	}
	return filepath.Join(a.config.ExperimentPath, path)
}
