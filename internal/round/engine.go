// Package round runs one round of a distributed protocol: every role program
// on its own goroutine, all synchronized to one virtual clock, with the
// outcome reduced to a single success or classified failure.
package round

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/vk/netround/internal/asset"
	"github.com/vk/netround/internal/ctxlog"
	"github.com/vk/netround/internal/metrics"
	"github.com/vk/netround/internal/network"
	"github.com/vk/netround/internal/noise"
	"github.com/vk/netround/internal/registry"
	"github.com/vk/netround/internal/rolestate"
	"github.com/vk/netround/internal/roundlog"
	"github.com/vk/netround/internal/simclock"
	"golang.org/x/sync/errgroup"
)

// State is the lifecycle state of a round.
type State int

const (
	StateInit State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is what a round produced. Outputs is set only when the round
// completed; Failure only when it failed.
type Outcome struct {
	Round       int
	RunID       string
	State       State
	Outputs     map[string]any
	Failure     *Error
	LogDir      string
	ArchiveDir  string
	VirtualTime time.Duration
	Events      int
}

// Engine runs rounds of one experiment. Each round gets a fresh clock,
// topology and worker pool; only the network log outlives a round.
type Engine struct {
	root     string
	topology asset.TopologyProvider
	inputs   asset.InputProvider
	loader   registry.Loader
	network  *roundlog.NetworkLog

	timeout time.Duration
	horizon time.Duration
	sources func(name string) noise.Source
	metrics *metrics.Registry
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout bounds the wall-clock time of the running phase. Zero means
// no bound.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithHorizon bounds the virtual time of a round.
func WithHorizon(d time.Duration) Option {
	return func(e *Engine) { e.horizon = d }
}

// WithSources replaces the random stream factory handed to the topology
// builder.
func WithSources(fn func(name string) noise.Source) Option {
	return func(e *Engine) { e.sources = fn }
}

// WithMetrics records round metrics into r.
func WithMetrics(r *metrics.Registry) Option {
	return func(e *Engine) { e.metrics = r }
}

// WithNow replaces the wall clock used to name archive directories.
func WithNow(fn func() time.Time) Option {
	return func(e *Engine) { e.now = fn }
}

// New creates an engine writing its output under root.
func New(root string, topology asset.TopologyProvider, inputs asset.InputProvider, loader registry.Loader, opts ...Option) *Engine {
	e := &Engine{
		root:     root,
		topology: topology,
		inputs:   inputs,
		loader:   loader,
		network:  roundlog.NewNetworkLog(filepath.Join(root, roundlog.NetworkFile)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NetworkLog returns the log shared by every round of the engine.
func (e *Engine) NetworkLog() *roundlog.NetworkLog { return e.network }

// task is one role ready to run.
type task struct {
	role    string
	program *registry.Program
	input   any
	rc      *registry.RoleContext
}

// Run executes round n. Every failure is reported through the Outcome.
func (e *Engine) Run(ctx context.Context, n int) *Outcome {
	runID := uuid.NewString()
	ctx = ctxlog.WithRound(ctx, n, runID)
	logger := ctxlog.FromContext(ctx)
	started := time.Now()
	out := &Outcome{Round: n, RunID: runID, State: StateInit}

	logger.Debug("Staging round output...", "root", e.root)
	st, err := stage(e.root, e.now())
	if err != nil {
		out.State = StateFailed
		out.Failure = NewError(KindConfiguration, err)
		logger.Error("Failed to stage round output.", "error", err)
		e.metrics.RecordRound(out.State.String(), string(out.Failure.Kind), time.Since(started), 0, 0)
		return out
	}
	out.LogDir, out.ArchiveDir = st.last, st.archive

	clock := simclock.New(simclock.WithHorizon(e.horizon))
	tasks, loggers, failure := e.prepare(ctx, clock, st, n)
	var store *rolestate.Store
	if failure == nil {
		out.State = StateRunning
		store, failure = e.execute(ctx, clock, tasks)
	}
	e.finish(ctx, out, st, clock, loggers, store, failure)
	e.metrics.RecordRound(out.State.String(), failureKind(out.Failure), time.Since(started), out.VirtualTime, out.Events)
	return out
}

func failureKind(f *Error) string {
	if f == nil {
		return ""
	}
	return string(f.Kind)
}

// prepare builds the topology, resolves every role's program and decodes its
// input. Nothing runs until all roles are ready.
func (e *Engine) prepare(ctx context.Context, clock *simclock.Clock, st *staging, n int) ([]*task, []*roundlog.Logger, *Error) {
	logger := ctxlog.FromContext(ctx)

	d, err := e.topology.Network(ctx)
	if err != nil {
		return nil, nil, NewError(KindConfiguration, fmt.Errorf("loading network asset: %w", err))
	}
	var opts []network.Option
	if e.sources != nil {
		opts = append(opts, network.WithSources(e.sources))
	}
	topo, err := network.Build(ctx, clock, d, opts...)
	if err != nil {
		return nil, nil, NewError(KindConfiguration, fmt.Errorf("building topology: %w", err))
	}
	e.metrics.RecordTopology(topo.QuantumLinks(), len(topo.Links()))

	table := topo.RoleTable()
	tasks := make([]*task, 0, len(table))
	loggers := make([]*roundlog.Logger, 0, len(table))
	for _, role := range topo.Roles() {
		prog, err := e.loader.Resolve(role)
		if err != nil {
			return nil, nil, NewError(KindLoad, err)
		}
		doc, err := e.inputs.Document(ctx, role)
		if err != nil {
			return nil, nil, NewError(KindLoad, err)
		}
		var input any = doc
		if prog.Decode != nil {
			if input, err = prog.Decode(doc); err != nil {
				return nil, nil, NewError(KindLoad, fmt.Errorf("role %q: %w", role, err))
			}
		}

		node, _ := topo.Node(role)
		lg := roundlog.New(role, st.last, table, e.network, clock)
		loggers = append(loggers, lg)
		tasks = append(tasks, &task{
			role:    role,
			program: prog,
			input:   input,
			rc:      &registry.RoleContext{Role: role, Round: n, Node: node, Logger: lg},
		})
		logger.Debug("Role prepared.", "role", role, "program", prog.Name)
	}
	return tasks, loggers, nil
}

// execute runs every task on a fresh pool and drives the clock. Each task is
// attached to the clock before it is submitted, and Drain is issued once all
// tasks are submitted.
func (e *Engine) execute(ctx context.Context, clock *simclock.Clock, tasks []*task) (*rolestate.Store, *Error) {
	logger := ctxlog.FromContext(ctx)
	store := rolestate.New()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g := new(errgroup.Group)
	g.SetLimit(len(tasks))

	logger.Info("🚀 Starting round execution...", "roles", len(tasks))
	for _, t := range tasks {
		t := t
		clock.Attach()
		store.SetStatus(t.role, rolestate.StatusRunning)
		g.Go(func() error {
			defer clock.Detach()
			return e.runRole(runCtx, store, t)
		})
	}

	done := make(chan error, 1)
	go func() {
		err := clock.Drain()
		_ = g.Wait()
		done <- err
	}()

	var expired <-chan time.Time
	if e.timeout > 0 {
		timer := time.NewTimer(e.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case err := <-done:
		if err != nil {
			return store, NewError(KindExecution, err)
		}
	case <-expired:
		clock.Stop()
		logger.Error("Round timed out, abandoning role tasks.", "timeout", e.timeout)
		return store, timeoutError(e.timeout)
	case <-ctx.Done():
		clock.Stop()
		logger.Warn("Round cancelled, abandoning role tasks.", "error", ctx.Err())
		return store, NewError(KindExecution, ctx.Err())
	}

	if f := store.FirstFailure(); f != nil {
		return store, Classify(f.Err)
	}
	return store, nil
}

// runRole runs one role program. Failures, including panics, are recorded
// in store and never cancel sibling roles.
func (e *Engine) runRole(ctx context.Context, store *rolestate.Store, t *task) (err error) {
	ctx = ctxlog.WithRole(ctx, t.role)
	logger := ctxlog.FromContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			err = &Error{
				Kind:    KindExecution,
				Message: fmt.Sprintf("role %s panicked: %v", t.role, r),
				Trace:   string(debug.Stack()),
			}
		}
		if err == nil {
			return
		}
		if store.Fail(t.role, err) {
			logger.Error("Role failed.", "error", err)
		} else {
			logger.Debug("Role failed after the round already failed.", "error", err)
		}
		e.metrics.RecordRole(rolestate.StatusFailed.String())
	}()

	logger.Debug("Role program started.", "program", t.program.Name)
	output, err := t.program.Run(ctx, t.input, t.rc)
	if err != nil {
		return Classify(fmt.Errorf("role %s: %w", t.role, err))
	}
	store.Complete(t.role, output)
	e.metrics.RecordRole(rolestate.StatusCompleted.String())
	logger.Debug("Role program finished.", "virtual_time", t.rc.Node.Now())
	return nil
}

// finish flushes every role log, snapshots the network log, writes the
// results file and mirrors LAST into the archive.
func (e *Engine) finish(ctx context.Context, out *Outcome, st *staging, clock *simclock.Clock, loggers []*roundlog.Logger, store *rolestate.Store, failure *Error) {
	logger := ctxlog.FromContext(ctx)
	fail := func(what string, err error) {
		logger.Error("Failed to write round output.", "output", what, "error", err)
		if failure == nil {
			failure = NewError(KindExecution, fmt.Errorf("%s: %w", what, err))
		}
	}

	for _, lg := range loggers {
		nodes, classical, quantum := lg.Counts()
		if err := lg.Finish(); err != nil {
			fail("logs of role "+lg.Role(), err)
			continue
		}
		e.metrics.RecordLogEntries(string(roundlog.CategoryNode), nodes)
		e.metrics.RecordLogEntries(string(roundlog.CategoryClassical), classical)
		e.metrics.RecordLogEntries(string(roundlog.CategoryQuantum), quantum)
	}
	if err := e.network.CopyTo(filepath.Join(st.last, roundlog.NetworkFile)); err != nil {
		fail("network log", err)
	}

	var outputs map[string]any
	if failure == nil && store != nil {
		outputs = store.Outputs()
	}
	if err := st.writeResults(outputs); err != nil {
		fail("results", err)
		outputs = nil
	}
	if err := st.mirror(); err != nil {
		fail("archive", err)
		outputs = nil
	}

	out.VirtualTime = clock.Now()
	out.Events = clock.Processed()
	if failure != nil {
		out.State = StateFailed
		out.Failure = failure
		logger.Error("Round failed.", "kind", failure.Kind, "message", failure.Message)
		return
	}
	out.State = StateCompleted
	out.Outputs = outputs
	logger.Info("🏁 Round completed.", "roles", len(outputs), "virtual_time", out.VirtualTime, "events", out.Events)
}
