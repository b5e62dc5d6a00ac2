package launcher

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/randomizedcoder/scenario-launcher/internal/process"
	"github.com/randomizedcoder/scenario-launcher/internal/resolver"
)

// State is the observed state of a launched child.
type State int32

const (
	// StateStarting covers the grace interval after spawn.
	StateStarting State = iota

	// StateRunning means the child survived its grace interval.
	StateRunning

	// StateExited means a running child was later observed to exit.
	StateExited

	// StateFailed means the child exited within its grace interval.
	StateFailed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal returns true once the child is gone.
func (s State) IsTerminal() bool {
	return s == StateExited || s == StateFailed
}

// Child is the launcher's view of one launched process. It is observation
// only: the launcher never signals or terminates a child.
type Child struct {
	Kind      resolver.Kind
	PID       int
	Command   string
	StartTime time.Time

	state atomic.Int32

	mu     sync.Mutex
	result process.Result
	exited bool
}

func newChild(kind resolver.Kind, pid int, command string, start time.Time) *Child {
	return &Child{
		Kind:      kind,
		PID:       pid,
		Command:   command,
		StartTime: start,
	}
}

// State returns the current observed state.
func (c *Child) State() State {
	return State(c.state.Load())
}

func (c *Child) setState(s State) {
	c.state.Store(int32(s))
}

func (c *Child) setResult(r process.Result) {
	c.mu.Lock()
	c.result = r
	c.exited = true
	c.mu.Unlock()
}

// Result returns the exit result once the child has exited.
func (c *Child) Result() (process.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, c.exited
}
