//go:build unix

package service

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureCommand puts the driver in its own process group so signals
// reach anything it forks. Descriptors opened by Go are close-on-exec, so
// the child only inherits stdin, stdout and stderr.
func configureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func sendTerminate(proc *os.Process) error {
	return unix.Kill(-proc.Pid, unix.SIGTERM)
}

func killProcess(proc *os.Process) error {
	return unix.Kill(-proc.Pid, unix.SIGKILL)
}

// Every Unix supports SIGTERM.
func isUnsupportedSignal(error) bool {
	return false
}

func isProcessGone(err error) bool {
	return errors.Is(err, unix.ESRCH) || errors.Is(err, os.ErrProcessDone)
}
