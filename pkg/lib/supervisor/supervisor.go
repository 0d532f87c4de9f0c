// Package supervisor runs a flat list of jobs: it starts them, restarts
// tasks on their schedule and shuts the whole group down, escalating from a
// graceful signal to SIGKILL, when asked to stop or when a critical job
// exits.
//
// Every method that touches job or mode state runs on the reactor's loop.
// The only entry point safe from other goroutines is Notify.
package supervisor

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/apk/ubik/pkg/lib"
	"github.com/apk/ubik/pkg/lib/job"
	"github.com/apk/ubik/pkg/lib/reactor"
	"github.com/apk/ubik/pkg/lib/runner"
)

const (
	DefaultTerminateGrace = 15 * time.Second
	DefaultKillGrace      = time.Second

	// GracefulSignal is sent when a critical job exits on its own.
	GracefulSignal = syscall.SIGTERM
	// ForceSignal is sent when the graceful window runs out.
	ForceSignal = syscall.SIGKILL
)

// Mode is the supervisor-wide shutdown stage. It only ever increases.
type Mode int

const (
	Normal Mode = iota
	Terminating
	Killing
)

func (m Mode) String() string {
	switch m {
	case Normal:
		return "normal"
	case Terminating:
		return "terminating"
	case Killing:
		return "killing"
	default:
		return "unknown"
	}
}

func modeFor(sig syscall.Signal) Mode {
	if sig == ForceSignal {
		return Killing
	}
	return Terminating
}

// Reactor is the event loop the supervisor runs on.
type Reactor interface {
	Now() time.Time
	Post(fn func())
	ScheduleOnce(deadline time.Time, fn func()) reactor.Timer
	SetAsyncHandler(fn func())
	Wakeup()
	Stop()
	Run(ctx context.Context) error
}

//go:generate mockgen -destination=mock_spawner_test.go -package=supervisor github.com/apk/ubik/pkg/lib/supervisor Spawner

// Spawner starts and signals job processes.
type Spawner interface {
	Spawn(req runner.SpawnRequest, onExit runner.ExitFunc) (int, error)
	Signal(pid int, sig syscall.Signal) error
}

// Observer is told about state changes, from loop context.
type Observer interface {
	ModeChanged(m Mode)
	JobStarted(j *job.Job)
	JobExited(j *job.Job, st lib.ExitStatus)
}

type nopObserver struct{}

func (nopObserver) ModeChanged(Mode)                   {}
func (nopObserver) JobStarted(*job.Job)                {}
func (nopObserver) JobExited(*job.Job, lib.ExitStatus) {}

// Supervisor owns the job registry and the shutdown state.
type Supervisor struct {
	jobs     *job.Registry
	loop     Reactor
	spawner  Spawner
	logger   *slog.Logger
	observer Observer

	terminateGrace time.Duration
	killGrace      time.Duration

	mode     Mode
	deadline reactor.Timer

	// lastSig is written by Notify from any goroutine; acted is the
	// loop-side latch that lets only the first signal through.
	lastSig atomic.Int32
	acted   bool

	finished bool
	exitCode int
}

type Option func(*Supervisor)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// WithGrace sets how long jobs get to honor the graceful and the force
// signal before the next escalation.
func WithGrace(terminate, kill time.Duration) Option {
	return func(s *Supervisor) {
		s.terminateGrace = terminate
		s.killGrace = kill
	}
}

func WithObserver(o Observer) Option {
	return func(s *Supervisor) {
		s.observer = o
	}
}

// New creates a supervisor for jobs and registers its async handler on loop.
func New(jobs *job.Registry, loop Reactor, spawner Spawner, opts ...Option) *Supervisor {
	s := &Supervisor{
		jobs:           jobs,
		loop:           loop,
		spawner:        spawner,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		observer:       nopObserver{},
		terminateGrace: DefaultTerminateGrace,
		killGrace:      DefaultKillGrace,
	}
	for _, opt := range opts {
		opt(s)
	}
	loop.SetAsyncHandler(s.onAsync)
	return s
}

// Run starts every job and runs the loop until the supervisor terminates,
// returning the process exit code.
func (s *Supervisor) Run(ctx context.Context) (int, error) {
	s.loop.Post(s.Start)
	if err := s.loop.Run(ctx); err != nil {
		return lib.ExitFailure, err
	}
	return s.exitCode, nil
}

// Start spawns critical jobs right away and schedules the first start of
// every task. Loop context.
func (s *Supervisor) Start() {
	if s.jobs.Len() == 0 {
		s.logger.Info("no jobs, exiting")
		s.terminate(lib.ExitOK)
		return
	}
	for _, j := range s.jobs.Jobs() {
		if s.finished {
			return
		}
		if j.IsTask() {
			s.schedule(j)
		} else {
			s.spawn(j)
		}
	}
}

// Mode returns the current shutdown stage. Loop context.
func (s *Supervisor) Mode() Mode {
	return s.mode
}

// Finished reports whether the supervisor terminated, and with which code.
func (s *Supervisor) Finished() (bool, int) {
	return s.finished, s.exitCode
}

func (s *Supervisor) setMode(m Mode) {
	if m <= s.mode {
		return
	}
	s.mode = m
	s.observer.ModeChanged(m)
}

// terminate ends the loop; no callback runs afterwards, so no job is
// spawned even if its restart was pending.
func (s *Supervisor) terminate(code int) {
	if s.finished {
		return
	}
	s.finished = true
	s.exitCode = code
	if s.deadline != nil {
		s.deadline.Cancel()
		s.deadline = nil
	}
	for _, j := range s.jobs.Jobs() {
		j.CancelTimer()
		st := j.Status()
		attrs := append(jobAttrs(j), "state", st.State.String())
		if st.LastExit != nil {
			attrs = append(attrs, "last", st.LastExit.String())
		}
		s.logger.Debug("final state", attrs...)
	}
	s.loop.Stop()
}

func jobAttrs(j *job.Job) []any {
	attrs := []any{"job", j.Name()}
	if j.NamedExplicitly() {
		attrs = append(attrs, "cmd", j.Command().Command)
	}
	return attrs
}
