package runner

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// Signal delivers sig to the process pid.
func (runner *Runner) Signal(pid int, sig syscall.Signal) error {
	return unix.Kill(pid, sig)
}
