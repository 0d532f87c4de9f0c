package runner

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/apk/ubik/pkg/lib"
)

// ExitFunc receives the exit status of a spawned process, exactly once.
type ExitFunc func(st lib.ExitStatus)

// StrayFunc receives exits of children that were not spawned by Spawn.
type StrayFunc func(pid int, st lib.ExitStatus)

// Runner spawns job processes and reaps them. It keeps no locks: Spawn,
// Reap and Signal must be called from the same loop context.
type Runner struct {
	tracked map[int]ExitFunc
	onStray StrayFunc
	env     []string
	logger  *slog.Logger
}

type Option func(*Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithStrayHandler replaces the default stray handler, which only logs.
func WithStrayHandler(fn StrayFunc) Option {
	return func(r *Runner) {
		r.onStray = fn
	}
}

// WithEnv sets the base environment of every child. Defaults to the
// supervisor's own environment.
func WithEnv(env []string) Option {
	return func(r *Runner) {
		r.env = append([]string(nil), env...)
	}
}

// NewRunner creates a new Runner.
func NewRunner(opts ...Option) *Runner {
	runner := &Runner{
		tracked: make(map[int]ExitFunc),
		env:     os.Environ(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(runner)
	}
	if runner.onStray == nil {
		runner.onStray = func(pid int, st lib.ExitStatus) {
			runner.logger.Info("reaped stray process", "pid", pid, "status", st.String())
		}
	}
	return runner
}

// Tracked returns the number of spawned processes not yet reaped.
func (runner *Runner) Tracked() int {
	return len(runner.tracked)
}

// SetupError reports a child that could not be set up for its job and
// never ran the job's program. Code is the exit code the child is
// considered to have exited with.
type SetupError struct {
	Code int
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("child setup failed (exit %d): %v", e.Code, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}
