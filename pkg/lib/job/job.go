// Package job holds the supervised job descriptors and their runtime state.
// It is a passive container: the supervisor mutates pid and timer state
// from its loop context only.
package job

import (
	"errors"
	"fmt"
	"time"

	"github.com/apk/ubik/pkg/lib"
	"github.com/apk/ubik/pkg/lib/reactor"
)

var (
	// ErrEmptyCommand is returned for a job declared without command tokens.
	ErrEmptyCommand = errors.New("empty command")

	// ErrNegativeDuration is returned for a negative pause or period.
	ErrNegativeDuration = errors.New("negative duration")
)

// Spec is a validated job declaration.
type Spec struct {
	// Name overrides the display name; defaults to Command[0].
	Name    string
	Command []string
	Dir     string
	User    string
	// Pause is the minimum gap between an exit and the next start.
	Pause time.Duration
	// Period is the minimum gap between two starts.
	Period time.Duration
}

// Validate checks the declaration on its own.
func (s Spec) Validate() error {
	if len(s.Command) == 0 {
		return ErrEmptyCommand
	}
	if s.Pause < 0 {
		return fmt.Errorf("pause %v: %w", s.Pause, ErrNegativeDuration)
	}
	if s.Period < 0 {
		return fmt.Errorf("period %v: %w", s.Period, ErrNegativeDuration)
	}
	return nil
}

// Job is one supervised command with its restart policy and runtime state.
type Job struct {
	spec    Spec
	command lib.Command

	lastStart time.Time
	started   bool
	pid       int
	runID     string
	timer     reactor.Timer

	lastExit *lib.ExitStatus
	lastEnd  *time.Time
}

// New builds a job from a declaration.
func New(spec Spec) (*Job, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	spec.Command = append([]string(nil), spec.Command...)
	return &Job{spec: spec, command: lib.NewCommand(spec.Command)}, nil
}

func (j *Job) Spec() Spec           { return j.spec }
func (j *Job) Command() lib.Command { return j.command }

// Name is the display name.
func (j *Job) Name() string {
	if j.spec.Name != "" {
		return j.spec.Name
	}
	return j.command.Command
}

// NamedExplicitly reports whether the display name differs from argv[0].
func (j *Job) NamedExplicitly() bool {
	return j.spec.Name != "" && j.spec.Name != j.command.Command
}

// IsTask reports whether the job is rescheduled after every exit. A job
// that is not a task is critical: its exit shuts the whole group down.
func (j *Job) IsTask() bool {
	return j.spec.Pause > 0 || j.spec.Period > 0
}

func (j *Job) Pause() time.Duration  { return j.spec.Pause }
func (j *Job) Period() time.Duration { return j.spec.Period }

// LastStart returns the time of the most recent spawn; ok is false before
// the first one.
func (j *Job) LastStart() (t time.Time, ok bool) {
	return j.lastStart, j.started
}

func (j *Job) PID() int      { return j.pid }
func (j *Job) Running() bool { return j.pid != 0 }
func (j *Job) RunID() string { return j.runID }
func (j *Job) pending() bool { return j.timer != nil }

// Started records a successful spawn.
func (j *Job) Started(pid int, runID string, at time.Time) {
	if j.pid != 0 {
		panic(fmt.Sprintf("job %s: started while pid %d is still running", j.Name(), j.pid))
	}
	if j.timer != nil {
		panic(fmt.Sprintf("job %s: started with a restart pending", j.Name()))
	}
	j.pid = pid
	j.runID = runID
	j.lastStart = at
	j.started = true
}

// Attempted records a start that produced no process.
func (j *Job) Attempted(runID string, at time.Time) {
	j.runID = runID
	j.lastStart = at
	j.started = true
}

// Exited clears the pid and remembers how the process ended.
func (j *Job) Exited(st lib.ExitStatus, at time.Time) {
	j.pid = 0
	j.lastExit = &st
	j.lastEnd = &at
}

// SetTimer stores the pending restart. A job holds at most one.
func (j *Job) SetTimer(t reactor.Timer) {
	if j.timer != nil {
		panic(fmt.Sprintf("job %s: restart already pending", j.Name()))
	}
	j.timer = t
}

// ClearTimer forgets a timer that has fired.
func (j *Job) ClearTimer() {
	j.timer = nil
}

// CancelTimer disarms and forgets the pending restart, if any.
func (j *Job) CancelTimer() bool {
	if j.timer == nil {
		return false
	}
	ok := j.timer.Cancel()
	j.timer = nil
	return ok
}

// Status returns a snapshot of the job's process state.
func (j *Job) Status() lib.ProcessStatus {
	st := lib.ProcessStatus{State: lib.ProcessStateStopped, Pid: j.pid, StartTime: j.lastStart}
	if j.pid != 0 {
		st.State = lib.ProcessStateRunning
	} else if !j.started {
		st.State = lib.ProcessStateUnspecified
	}
	if j.lastExit != nil {
		e := *j.lastExit
		st.LastExit = &e
	}
	if j.lastEnd != nil && j.pid == 0 {
		t := *j.lastEnd
		st.EndTime = &t
	}
	return st
}
