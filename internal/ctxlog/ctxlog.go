// Package ctxlog carries the structured logger of an experiment through
// context.Context, so rounds and roles can scope it without threading it
// through every signature.
package ctxlog

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

// WithLogger returns a child context carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored in ctx. Every entry point installs
// one, so a missing logger panics.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	panic("ctxlog: logger missing from context")
}

// With returns a context whose logger carries the given attributes.
func With(ctx context.Context, args ...any) context.Context {
	return WithLogger(ctx, FromContext(ctx).With(args...))
}

// WithRound scopes the logger to one round execution.
func WithRound(ctx context.Context, round int, runID string) context.Context {
	return With(ctx, "round", round, "run_id", runID)
}

// WithRole scopes the logger to the task of one role.
func WithRole(ctx context.Context, role string) context.Context {
	return With(ctx, "role", role)
}
