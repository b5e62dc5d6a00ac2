//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// setSysProcAttr starts the child in a new session so it has no controlling
// terminal and the launcher's terminal signals do not reach it. Its output
// pipes still close when the launcher exits, so a later write can raise
// SIGPIPE in the child.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}
