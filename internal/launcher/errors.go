package launcher

import (
	"errors"
	"fmt"

	"github.com/randomizedcoder/scenario-launcher/internal/resolver"
)

// ErrorCode classifies a launch failure. Codes double as the metrics
// "outcome" label.
type ErrorCode string

const (
	CodeMissingArtifact ErrorCode = "missing_artifact"
	CodeMissingScenario ErrorCode = "missing_scenario"
	CodeSpawnFailure    ErrorCode = "spawn_failure"
	CodeImmediateExit   ErrorCode = "immediate_exit"
	CodeInvalidRequest  ErrorCode = "invalid_request"
)

// Sentinels for errors.Is. ErrMissingArtifact is the resolver's sentinel.
var (
	ErrMissingArtifact = resolver.ErrMissingArtifact
	ErrMissingScenario = errors.New("missing scenario")
	ErrSpawnFailure    = errors.New("spawn failure")
	ErrImmediateExit   = errors.New("immediate exit")
	ErrInvalidRequest  = errors.New("invalid request")
)

// LaunchError describes why a launch did not produce a running child.
type LaunchError struct {
	Code    ErrorCode
	Kind    resolver.Kind
	Message string
	Cause   error

	// Set for CodeImmediateExit
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *LaunchError) Error() string {
	msg := fmt.Sprintf("launch %s: %s: %s", e.Kind, e.Code, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *LaunchError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel for the error's code.
func (e *LaunchError) Is(target error) bool {
	return target == e.Code.sentinel()
}

func (c ErrorCode) sentinel() error {
	switch c {
	case CodeMissingArtifact:
		return ErrMissingArtifact
	case CodeMissingScenario:
		return ErrMissingScenario
	case CodeSpawnFailure:
		return ErrSpawnFailure
	case CodeImmediateExit:
		return ErrImmediateExit
	case CodeInvalidRequest:
		return ErrInvalidRequest
	default:
		return nil
	}
}

// CodeOf returns the code of a LaunchError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var le *LaunchError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}
