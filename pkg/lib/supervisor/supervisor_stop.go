package supervisor

import (
	"syscall"

	"github.com/apk/ubik/pkg/lib"
)

// trigger drives the shutdown. With sig == 0 it only checks whether every
// job is down; with a signal it escalates and forwards sig to every running
// job, then arms the deadline that escalates further.
func (s *Supervisor) trigger(sig syscall.Signal) {
	if s.finished {
		return
	}
	if sig != 0 {
		s.logger.Info("shutdown", "signal", lib.SignalName(sig), "mode", s.mode.String())
	}

	if !s.jobs.AnyRunning() {
		s.logger.Info("all down, exiting")
		s.terminate(lib.ExitOK)
		return
	}
	if sig == 0 {
		return
	}

	if s.mode == Killing {
		for _, j := range s.jobs.Running() {
			s.logger.Error("job survived kill", append(jobAttrs(j), "pid", j.PID())...)
		}
		s.terminate(lib.ExitFailure)
		return
	}

	if s.mode == Normal {
		for _, j := range s.jobs.Jobs() {
			if j.CancelTimer() {
				s.logger.Debug("pending start cancelled", jobAttrs(j)...)
			}
		}
	}

	s.setMode(modeFor(sig))

	for _, j := range s.jobs.Running() {
		s.logger.Info("kill", append(jobAttrs(j), "pid", j.PID(), "signal", lib.SignalName(sig))...)
		if err := s.spawner.Signal(j.PID(), sig); err != nil {
			s.logger.Warn("signal failed", append(jobAttrs(j), "pid", j.PID(), "err", err)...)
		}
	}

	grace := s.terminateGrace
	if s.mode == Killing {
		grace = s.killGrace
	}
	if s.deadline != nil {
		s.deadline.Cancel()
	}
	s.deadline = s.loop.ScheduleOnce(s.loop.Now().Add(grace), func() {
		s.deadline = nil
		s.trigger(ForceSignal)
	})
}
