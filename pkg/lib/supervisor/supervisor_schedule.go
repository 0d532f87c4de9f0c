package supervisor

import (
	"time"

	"github.com/apk/ubik/pkg/lib/job"
)

// nextStart returns the earliest time a task may start again: at least
// pause after now, and at least period after its previous start. Before
// the first start the previous start counts as now.
func nextStart(now, lastStart time.Time, started bool, pause, period time.Duration) time.Time {
	byExit := now.Add(pause)
	base := now
	if started {
		base = lastStart
	}
	byStart := base.Add(period)
	if byStart.After(byExit) {
		return byStart
	}
	return byExit
}

// schedule arms the task's restart timer.
func (s *Supervisor) schedule(j *job.Job) {
	now := s.loop.Now()
	last, started := j.LastStart()
	at := nextStart(now, last, started, j.Pause(), j.Period())

	j.SetTimer(s.loop.ScheduleOnce(at, func() {
		j.ClearTimer()
		s.spawn(j)
	}))
	s.logger.Debug("start scheduled", append(jobAttrs(j), "in", at.Sub(now))...)
}
