// Package process builds and starts the command lines of launched children.
package process

import (
	"errors"
	"os/exec"
	"time"
)

// Runner turns an Invocation into a ready-to-start command.
// This interface allows the launcher to be platform-agnostic.
type Runner interface {
	// BuildCommand returns a command for inv. The command should NOT be
	// started yet and must not be bound to a context: a launched child
	// outlives the call that started it.
	BuildCommand(inv *Invocation) (*exec.Cmd, error)

	// Name returns a human-readable name for this runner.
	Name() string
}

// Result captures the observed outcome of a launched child.
type Result struct {
	Target    string
	PID       int
	ExitCode  int
	StartTime time.Time
	EndTime   time.Time
	Error     error
}

// Lifetime returns how long the child was observed to run.
func (r Result) Lifetime() time.Duration {
	if r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// DetachedRunner builds commands that run detached from the parent's
// terminal or console.
type DetachedRunner struct{}

// NewDetachedRunner creates a DetachedRunner.
func NewDetachedRunner() *DetachedRunner {
	return &DetachedRunner{}
}

// Name returns "detached".
func (r *DetachedRunner) Name() string {
	return "detached"
}

// BuildCommand validates inv and creates a detached exec.Cmd for it.
func (r *DetachedRunner) BuildCommand(inv *Invocation) (*exec.Cmd, error) {
	if inv == nil {
		return nil, errors.New("nil invocation")
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}

	cmd := exec.Command(inv.Executable, inv.Args()...)
	setSysProcAttr(cmd)
	return cmd, nil
}

// ExitCode extracts the exit code from a Wait error.
// Returns 0 for nil and -1 when no code is available.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
