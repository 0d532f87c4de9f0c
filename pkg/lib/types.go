package lib

import (
	"fmt"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Exit codes of the supervisor process and the synthetic exit codes of
// children that failed before exec.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUnknownUser = 3
	ExitCredentials = 4
)

// ProcessState is the coarse state of a job's process.
type ProcessState int

const (
	ProcessStateUnspecified ProcessState = iota
	ProcessStateRunning
	ProcessStateStopped
)

func (s ProcessState) String() string {
	switch s {
	case ProcessStateRunning:
		return "running"
	case ProcessStateStopped:
		return "stopped"
	default:
		return "unspecified"
	}
}

// Command captures command metadata used to start a process.
type Command struct {
	Command string
	Args    []string
}

// NewCommand splits an argv into program and arguments.
func NewCommand(argv []string) Command {
	if len(argv) == 0 {
		return Command{}
	}
	return Command{Command: argv[0], Args: append([]string(nil), argv[1:]...)}
}

// Argv returns the command as a single argument vector.
func (c Command) Argv() []string {
	return append([]string{c.Command}, c.Args...)
}

func (c Command) String() string {
	return strings.Join(c.Argv(), " ")
}

// ExitStatus describes how a process terminated: either by a signal or
// with an exit code.
type ExitStatus struct {
	Signaled bool
	Signal   syscall.Signal
	Code     int
}

// ExitStatusFromWait converts a wait status reported by wait4.
func ExitStatusFromWait(ws unix.WaitStatus) ExitStatus {
	switch {
	case ws.Signaled():
		return ExitStatus{Signaled: true, Signal: ws.Signal()}
	case ws.Exited():
		return ExitStatus{Code: ws.ExitStatus()}
	default:
		// Not reachable without WUNTRACED/WCONTINUED, keep the raw value.
		return ExitStatus{Code: int(ws)}
	}
}

// Success reports a normal exit with code 0.
func (st ExitStatus) Success() bool {
	return !st.Signaled && st.Code == 0
}

func (st ExitStatus) String() string {
	if st.Signaled {
		return "died on " + SignalName(st.Signal)
	}
	return fmt.Sprintf("rc %d", st.Code)
}

// SignalName renders a signal the short way: "term", "kill", "int".
// Unknown signals are rendered by number.
func SignalName(sig syscall.Signal) string {
	name := unix.SignalName(sig)
	if name == "" {
		return strconv.Itoa(int(sig))
	}
	return strings.ToLower(strings.TrimPrefix(name, "SIG"))
}

// ProcessStatus captures runtime state and timestamps.
type ProcessStatus struct {
	State     ProcessState
	Pid       int
	LastExit  *ExitStatus
	StartTime time.Time
	EndTime   *time.Time
}
