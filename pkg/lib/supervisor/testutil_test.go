package supervisor

import (
	"context"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/apk/ubik/pkg/lib"
	"github.com/apk/ubik/pkg/lib/job"
	"github.com/apk/ubik/pkg/lib/reactor"
	"github.com/apk/ubik/pkg/lib/runner"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeLoop is a Reactor with a manual clock. Nothing runs until the test
// calls flush or advance.
type fakeLoop struct {
	now     time.Time
	seq     int
	timers  []*fakeTimer
	posted  []func()
	async   func()
	woken   atomic.Bool
	stopped bool
}

type fakeTimer struct {
	at    time.Time
	seq   int
	fn    func()
	armed bool
}

func (t *fakeTimer) Cancel() bool {
	if !t.armed {
		return false
	}
	t.armed = false
	return true
}

func newFakeLoop() *fakeLoop {
	return &fakeLoop{now: epoch}
}

func (l *fakeLoop) Now() time.Time            { return l.now }
func (l *fakeLoop) Post(fn func())            { l.posted = append(l.posted, fn) }
func (l *fakeLoop) SetAsyncHandler(fn func()) { l.async = fn }
func (l *fakeLoop) Wakeup()                   { l.woken.Store(true) }
func (l *fakeLoop) Stop()                     { l.stopped = true }

func (l *fakeLoop) ScheduleOnce(at time.Time, fn func()) reactor.Timer {
	l.seq++
	t := &fakeTimer{at: at, seq: l.seq, fn: fn, armed: true}
	l.timers = append(l.timers, t)
	return t
}

func (l *fakeLoop) Run(context.Context) error {
	l.flush()
	return nil
}

// flush runs posted callbacks, then the async handler, until idle.
func (l *fakeLoop) flush() {
	for !l.stopped {
		if len(l.posted) > 0 {
			fn := l.posted[0]
			l.posted = l.posted[1:]
			fn()
			continue
		}
		if l.woken.Swap(false) {
			if l.async != nil {
				l.async()
			}
			continue
		}
		return
	}
}

// advance moves the clock by d, firing due timers in deadline order.
func (l *fakeLoop) advance(d time.Duration) {
	end := l.now.Add(d)
	l.flush()
	for !l.stopped {
		t := l.nextDue(end)
		if t == nil {
			break
		}
		if t.at.After(l.now) {
			l.now = t.at
		}
		t.armed = false
		t.fn()
		l.flush()
	}
	if end.After(l.now) {
		l.now = end
	}
}

func (l *fakeLoop) nextDue(end time.Time) *fakeTimer {
	var next *fakeTimer
	for _, t := range l.timers {
		if !t.armed || t.at.After(end) {
			continue
		}
		if next == nil || t.at.Before(next.at) || (t.at.Equal(next.at) && t.seq < next.seq) {
			next = t
		}
	}
	return next
}

func (l *fakeLoop) armed() int {
	n := 0
	for _, t := range l.timers {
		if t.armed {
			n++
		}
	}
	return n
}

type fakeProc struct {
	name   string
	onExit runner.ExitFunc
}

// fakeSpawner records starts and signals per job name and lets the test
// decide when processes exit.
type fakeSpawner struct {
	loop    *fakeLoop
	lastPID int
	procs   map[int]*fakeProc
	starts  map[string][]time.Time
	signals map[string][]syscall.Signal
	reqs    []runner.SpawnRequest
	err     error
}

func newFakeSpawner(loop *fakeLoop) *fakeSpawner {
	return &fakeSpawner{
		loop:    loop,
		lastPID: 100,
		procs:   make(map[int]*fakeProc),
		starts:  make(map[string][]time.Time),
		signals: make(map[string][]syscall.Signal),
	}
}

func (f *fakeSpawner) Spawn(req runner.SpawnRequest, onExit runner.ExitFunc) (int, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return 0, f.err
	}
	f.lastPID++
	f.procs[f.lastPID] = &fakeProc{name: req.Name, onExit: onExit}
	f.starts[req.Name] = append(f.starts[req.Name], f.loop.now)
	return f.lastPID, nil
}

func (f *fakeSpawner) Signal(pid int, sig syscall.Signal) error {
	p, ok := f.procs[pid]
	if !ok {
		return syscall.ESRCH
	}
	f.signals[p.name] = append(f.signals[p.name], sig)
	return nil
}

// exit reports the process of job name as terminated, on the loop.
func (f *fakeSpawner) exit(t *testing.T, name string, st lib.ExitStatus) {
	t.Helper()
	pid := f.pidOf(name)
	assert.Assert(t, pid != 0, "job %s is not running", name)
	p := f.procs[pid]
	delete(f.procs, pid)
	f.loop.Post(func() { p.onExit(st) })
	f.loop.flush()
}

func (f *fakeSpawner) pidOf(name string) int {
	for pid, p := range f.procs {
		if p.name == name {
			return pid
		}
	}
	return 0
}

type recordingObserver struct {
	modes  []Mode
	events []string
}

func (o *recordingObserver) ModeChanged(m Mode) { o.modes = append(o.modes, m) }
func (o *recordingObserver) JobStarted(j *job.Job) {
	o.events = append(o.events, "start "+j.Name())
}
func (o *recordingObserver) JobExited(j *job.Job, st lib.ExitStatus) {
	o.events = append(o.events, "exit "+j.Name()+" "+st.String())
}

type harness struct {
	sup   *Supervisor
	loop  *fakeLoop
	spawn *fakeSpawner
	obs   *recordingObserver
}

func newHarness(t *testing.T, specs ...job.Spec) *harness {
	t.Helper()
	reg, err := job.NewRegistry(specs)
	assert.NilError(t, err)
	loop := newFakeLoop()
	sp := newFakeSpawner(loop)
	obs := &recordingObserver{}
	sup := New(reg, loop, sp, WithObserver(obs))
	return &harness{sup: sup, loop: loop, spawn: sp, obs: obs}
}

func (h *harness) start() {
	h.loop.Post(h.sup.Start)
	h.loop.flush()
}

func (h *harness) notify(sig syscall.Signal) {
	h.sup.Notify(sig)
	h.loop.flush()
}

func (h *harness) assertRunning(t *testing.T) {
	t.Helper()
	done, code := h.sup.Finished()
	assert.Assert(t, !done, "supervisor exited with %d", code)
}

func (h *harness) assertExited(t *testing.T, want int) {
	t.Helper()
	done, code := h.sup.Finished()
	assert.Assert(t, done, "supervisor still running")
	assert.Equal(t, code, want)
	assert.Assert(t, h.loop.stopped)
}

func critical(argv ...string) job.Spec {
	return job.Spec{Command: argv}
}

var (
	exitOK     = lib.ExitStatus{}
	exitFail   = lib.ExitStatus{Code: 1}
	diedOnTerm = lib.ExitStatus{Signaled: true, Signal: syscall.SIGTERM}
	diedOnKill = lib.ExitStatus{Signaled: true, Signal: syscall.SIGKILL}
)
