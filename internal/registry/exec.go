package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/vk/netround/internal/ctxlog"
	"gopkg.in/yaml.v3"
)

// ProcessError reports an external program that exited non-zero.
type ProcessError struct {
	Program string
	Code    int
	Stderr  string
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("program %s exited with status %d", e.Program, e.Code)
}

// Exec builds a program that runs an external simulator process. The role
// input is written to its stdin as YAML, extended with the role name and
// round number; its stdout is decoded as YAML and becomes the role output.
// The process runs in wall-clock time and does not touch the virtual clock.
func Exec(name, path string, args ...string) *Program {
	return &Program{
		Name:   name,
		Decode: DecodeInput,
		Run: func(ctx context.Context, input any, rc *RoleContext) (any, error) {
			logger := ctxlog.FromContext(ctx)

			in := Input{}
			for k, v := range input.(Input) {
				in[k] = v
			}
			in["role"] = rc.Role
			in["round"] = rc.Round
			stdin, err := yaml.Marshal(in)
			if err != nil {
				return nil, fmt.Errorf("encoding input for %s: %w", name, err)
			}

			var stdout, stderr bytes.Buffer
			cmd := exec.CommandContext(ctx, path, args...)
			cmd.Stdin = bytes.NewReader(stdin)
			cmd.Stdout = &stdout
			cmd.Stderr = &stderr

			logger.Debug("Starting external program.", "program", name, "path", path, "args", args)
			if err := cmd.Run(); err != nil {
				var exitErr *exec.ExitError
				if errors.As(err, &exitErr) {
					return nil, &ProcessError{Program: name, Code: exitErr.ExitCode(), Stderr: stderr.String()}
				}
				return nil, fmt.Errorf("running %s: %w", name, err)
			}

			var out any
			if err := yaml.Unmarshal(stdout.Bytes(), &out); err != nil {
				return nil, fmt.Errorf("decoding output of %s: %w", name, err)
			}
			logger.Debug("External program finished.", "program", name)
			return out, nil
		},
	}
}
