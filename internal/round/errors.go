package round

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/vk/netround/internal/registry"
)

// Kind classifies a round failure.
type Kind string

const (
	KindConfiguration Kind = "ConfigurationError"
	KindLoad          Kind = "LoadError"
	KindExecution     Kind = "ExecutionError"
	KindSubprocess    Kind = "SubprocessError"
	KindTimeout       Kind = "Timeout"
	KindConversion    Kind = "ConversionError"
)

// Error is a classified round failure.
type Error struct {
	Kind    Kind
	Message string
	// Trace carries diagnostic detail such as a recovered stack or a
	// subprocess's stderr.
	Trace string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err as a failure of the given kind.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

// Classify turns an error returned by a role program into a round Error.
func Classify(err error) *Error {
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	var pe *registry.ProcessError
	if errors.As(err, &pe) {
		return &Error{
			Kind:    KindSubprocess,
			Message: fmt.Sprintf("simulator returned with exit status %d.", pe.Code),
			Trace:   pe.Stderr,
			Err:     err,
		}
	}
	return &Error{Kind: KindExecution, Message: err.Error(), Trace: fmt.Sprintf("%+v", err), Err: err}
}

// ErrTimeout is wrapped by every Timeout failure.
var ErrTimeout = errors.New("round timed out")

func timeoutError(d time.Duration) *Error {
	return &Error{
		Kind:    KindTimeout,
		Message: "Call to simulator timed out after " + strconv.FormatFloat(d.Seconds(), 'f', -1, 64) + " seconds.",
		Err:     ErrTimeout,
	}
}
