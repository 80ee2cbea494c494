package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vk/netround/internal/app"
	"github.com/vk/netround/internal/result"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Exit codes.
const (
	CodeRoundFailed = 1
	CodeUsage       = 2
)

type runFlags struct {
	timeout         time.Duration
	rounds          int
	horizon         time.Duration
	logLevel        string
	logFormat       string
	healthcheckPort int
	vars            map[string]string
}

// NewRootCommand builds the netround command tree. Round summaries are
// written to outW and logs to errW.
func NewRootCommand(outW, errW io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "netround",
		Short:         "Run distributed protocol rounds over a simulated quantum network.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(outW)
	root.SetErr(errW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: CodeUsage, Message: err.Error()}
	})
	root.AddCommand(newRunCommand(outW, errW))
	return root
}

func newRunCommand(outW, errW io.Writer) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run EXPERIMENT_DIR",
		Short: "Run the rounds of an experiment.",
		Long: `Run the rounds of an experiment.

EXPERIMENT_DIR holds network/*.hcl describing roles, nodes and channels and
input/<role>.yaml with each role's parameters. Output is written to
EXPERIMENT_DIR/raw_output.`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return &ExitError{Code: CodeUsage, Message: fmt.Sprintf("expected exactly one EXPERIMENT_DIR, got %d arguments", len(args))}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.NewConfig(app.Config{
				ExperimentPath:  args[0],
				LogFormat:       strings.ToLower(f.logFormat),
				LogLevel:        strings.ToLower(f.logLevel),
				HealthcheckPort: f.healthcheckPort,
				Timeout:         f.timeout,
				Rounds:          f.rounds,
				VirtualHorizon:  f.horizon,
				Variables:       f.vars,
			})
			if err != nil {
				return &ExitError{Code: CodeUsage, Message: err.Error()}
			}
			return run(cmd.Context(), cfg, outW, errW)
		},
	}
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Wall-clock bound of each round, e.g. 30s. 0 is unbounded.")
	cmd.Flags().IntVar(&f.rounds, "rounds", 1, "Number of rounds to run.")
	cmd.Flags().DurationVar(&f.horizon, "horizon", 0, "Virtual time bound of each round. 0 uses the clock default.")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	cmd.Flags().StringVar(&f.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	cmd.Flags().StringToStringVar(&f.vars, "var", nil, "Set a network variable, e.g. --var fibre_loss=0.3. Repeatable.")
	cmd.Flags().IntVar(&f.healthcheckPort, "healthcheck-port", 0, "Port for the HTTP health check and metrics server. 0 is disabled.")
	return cmd
}

func run(ctx context.Context, cfg *app.Config, outW, errW io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a := app.NewApp(errW, cfg)
	results, err := a.Run(ctx)
	if werr := result.WriteSummary(outW, results); werr != nil && err == nil {
		err = werr
	}
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	if failed > 0 {
		return &ExitError{Code: CodeRoundFailed, Message: fmt.Sprintf("%d of %d rounds failed", failed, len(results))}
	}
	return nil
}
