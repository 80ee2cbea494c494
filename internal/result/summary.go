package result

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// summary is the printable form of a RoundResult.
type summary struct {
	Round   int            `yaml:"round"`
	RunID   string         `yaml:"run_id"`
	Status  string         `yaml:"status"`
	Outputs map[string]any `yaml:"outputs,omitempty"`
	Kind    string         `yaml:"kind,omitempty"`
	Message string         `yaml:"message,omitempty"`
	Trace   string         `yaml:"trace,omitempty"`
}

// WriteSummary writes results to w as a YAML list.
func WriteSummary(w io.Writer, results []*RoundResult) error {
	out := make([]summary, 0, len(results))
	for _, r := range results {
		s := summary{Round: r.Round, RunID: r.RunID}
		if r.OK() {
			s.Status = "completed"
			s.Outputs = r.Success.Outputs
		} else {
			s.Status = "failed"
			s.Kind = string(r.Error.Kind)
			s.Message = r.Error.Message
			s.Trace = r.Error.Trace
		}
		out = append(out, s)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return enc.Close()
}
