//go:build windows

package service

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// Windows has no close_fds equivalent to request and no process groups to
// join; the command runs as is.
func configureCommand(*exec.Cmd) {}

func sendTerminate(proc *os.Process) error {
	return proc.Signal(syscall.SIGTERM)
}

func killProcess(proc *os.Process) error {
	return proc.Kill()
}

// os.Process.Signal only implements Kill on Windows and reports EWINDOWS
// for everything else.
func isUnsupportedSignal(err error) bool {
	return errors.Is(err, syscall.EWINDOWS)
}

func isProcessGone(err error) bool {
	return errors.Is(err, os.ErrProcessDone)
}
