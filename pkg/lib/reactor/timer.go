package reactor

import "time"

type loopTimer struct {
	loop  *Loop
	fn    func()
	armed bool
	t     *time.Timer
}

// ScheduleOnce arms a timer that runs fn on the loop at deadline. A
// deadline in the past fires on the next turn. Must be called from loop
// context.
func (l *Loop) ScheduleOnce(deadline time.Time, fn func()) Timer {
	lt := &loopTimer{loop: l, fn: fn, armed: true}
	d := deadline.Sub(l.clock.Now())
	if d < 0 {
		d = 0
	}
	lt.t = time.AfterFunc(d, func() {
		l.Post(lt.fire)
	})
	return lt
}

// fire runs on the loop. The armed check drops fires that were already
// queued when Cancel ran.
func (lt *loopTimer) fire() {
	if !lt.armed {
		return
	}
	lt.armed = false
	lt.fn()
}

func (lt *loopTimer) Cancel() bool {
	if !lt.armed {
		return false
	}
	lt.armed = false
	lt.t.Stop()
	return true
}
