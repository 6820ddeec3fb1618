package vision

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks invalid options; construction fails.
	ErrConfiguration = errors.New("configuration error")
	// ErrResource marks a model or engine that could not be loaded or released.
	ErrResource = errors.New("resource error")
	// ErrMode marks an operation that does not match the runner's mode.
	ErrMode = errors.New("running mode error")
	// ErrTimestamp marks a timestamp that is not strictly increasing.
	ErrTimestamp = errors.New("timestamp error")
	// ErrLifecycle marks an operation on a closed runner.
	ErrLifecycle = errors.New("lifecycle error")
	// ErrInvalidArgument marks a missing image or malformed region.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInference marks a failure reported by the engine.
	ErrInference = errors.New("inference error")
)

// Error is returned by every TaskRunner operation. Kind is one of the
// sentinel errors above; Err is the underlying cause, if any.
type Error struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// kindLabel is the metric label for an error kind.
func kindLabel(err error) string {
	switch {
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrResource):
		return "resource"
	case errors.Is(err, ErrMode):
		return "mode"
	case errors.Is(err, ErrTimestamp):
		return "timestamp"
	case errors.Is(err, ErrLifecycle):
		return "lifecycle"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrInference):
		return "inference"
	default:
		return "unknown"
	}
}
