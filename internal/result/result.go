// Package result turns the outcome of a round into a RoundResult: either
// the converted document of a completed round or the classified failure of
// a failed one.
package result

import (
	"context"
	"fmt"

	"github.com/vk/netround/internal/ctxlog"
	"github.com/vk/netround/internal/round"
)

// RawResults are the per-role outputs of a completed round.
type RawResults struct {
	Round   int
	RunID   string
	Outputs map[string]any
}

// Document is a converted round result.
type Document map[string]any

// Converter turns raw round output into a result document. logDir is the
// directory holding the round's logs.
type Converter interface {
	Convert(ctx context.Context, round int, logDir string, raw *RawResults) (Document, error)
}

// Success is a completed round.
type Success struct {
	Outputs  map[string]any
	Document Document
}

// Failure is a failed round. It never carries outputs.
type Failure struct {
	Kind    round.Kind
	Message string
	Trace   string
}

// RoundResult holds exactly one of Success or Error.
type RoundResult struct {
	Round   int
	RunID   string
	Success *Success
	Error   *Failure
}

// OK reports whether the round completed.
func (r *RoundResult) OK() bool { return r.Success != nil }

// Assembler builds RoundResults.
type Assembler struct {
	converter Converter
}

// NewAssembler creates an assembler using c, or LogConverter when c is nil.
func NewAssembler(c Converter) *Assembler {
	if c == nil {
		c = LogConverter{}
	}
	return &Assembler{converter: c}
}

// Assemble builds the result of out.
func (a *Assembler) Assemble(ctx context.Context, out *round.Outcome) *RoundResult {
	logger := ctxlog.FromContext(ctx)
	res := &RoundResult{Round: out.Round, RunID: out.RunID}

	if out.State != round.StateCompleted {
		f := out.Failure
		if f == nil {
			f = &round.Error{Kind: round.KindExecution, Message: fmt.Sprintf("round ended in state %s", out.State)}
		}
		res.Error = &Failure{Kind: f.Kind, Message: f.Message, Trace: f.Trace}
		return res
	}

	raw := &RawResults{Round: out.Round, RunID: out.RunID, Outputs: out.Outputs}
	doc, err := a.converter.Convert(ctx, out.Round, out.LogDir, raw)
	if err != nil {
		logger.Error("Failed to convert round results.", "round", out.Round, "error", err)
		res.Error = &Failure{Kind: round.KindConversion, Message: err.Error(), Trace: fmt.Sprintf("%+v", err)}
		return res
	}
	res.Success = &Success{Outputs: out.Outputs, Document: doc}
	return res
}
