package supervisor

import (
	"github.com/apk/ubik/pkg/lib"
	"github.com/apk/ubik/pkg/lib/job"
)

// handleExit runs once per spawned process, after it terminated.
func (s *Supervisor) handleExit(j *job.Job, st lib.ExitStatus) {
	if s.finished {
		return
	}
	j.Exited(st, s.loop.Now())

	attrs := append(jobAttrs(j), "status", st.String())
	if j.IsTask() && st.Success() {
		s.logger.Debug("exited", attrs...)
	} else {
		s.logger.Info("exited", attrs...)
	}
	s.observer.JobExited(j, st)

	if s.mode != Normal {
		s.trigger(0)
		return
	}
	if j.IsTask() {
		s.schedule(j)
		return
	}
	s.trigger(GracefulSignal)
}

// HandleStray logs a reaped child that belongs to no job.
func (s *Supervisor) HandleStray(pid int, st lib.ExitStatus) {
	s.logger.Info("reaped stray", "pid", pid, "status", st.String())
}
