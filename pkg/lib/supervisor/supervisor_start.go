package supervisor

import (
	"errors"

	"github.com/apk/ubik/pkg/lib"
	"github.com/apk/ubik/pkg/lib/job"
	"github.com/apk/ubik/pkg/lib/runner"
)

// spawn starts the job's process. A process that cannot be created at all
// is fatal; a child that failed its setup counts as an exit.
func (s *Supervisor) spawn(j *job.Job) {
	if s.finished || s.mode != Normal {
		return
	}
	if j.Running() {
		s.logger.Warn("job already running, not starting again", append(jobAttrs(j), "pid", j.PID())...)
		return
	}

	now := s.loop.Now()
	runID := lib.NewID()
	spec := j.Spec()
	req := runner.SpawnRequest{
		Name:    j.Name(),
		RunID:   runID,
		Command: j.Command(),
		Dir:     spec.Dir,
		User:    spec.User,
	}

	pid, err := s.spawner.Spawn(req, func(st lib.ExitStatus) {
		s.handleExit(j, st)
	})
	if err != nil {
		var setupErr *runner.SetupError
		if errors.As(err, &setupErr) {
			j.Attempted(runID, now)
			s.logger.Error("job setup failed", append(jobAttrs(j), "err", err)...)
			st := lib.ExitStatus{Code: setupErr.Code}
			s.loop.Post(func() {
				s.handleExit(j, st)
			})
			return
		}
		s.logger.Error("cannot spawn job", append(jobAttrs(j), "err", err)...)
		s.terminate(lib.ExitFailure)
		return
	}

	j.Started(pid, runID, now)
	s.logger.Info("started", append(jobAttrs(j), "pid", pid, "run", runID)...)
	s.observer.JobStarted(j)
}
