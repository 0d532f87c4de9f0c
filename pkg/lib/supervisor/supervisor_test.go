package supervisor

import (
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/apk/ubik/pkg/lib/job"
	"github.com/apk/ubik/pkg/lib/runner"
)

func TestNextStart(t *testing.T) {
	now := epoch.Add(time.Minute)
	tests := []struct {
		name      string
		lastStart time.Time
		started   bool
		pause     time.Duration
		period    time.Duration
		want      time.Time
	}{
		{name: "never started, period", period: 10 * time.Second, want: now.Add(10 * time.Second)},
		{name: "never started, pause", pause: 3 * time.Second, want: now.Add(3 * time.Second)},
		{name: "period dominates", lastStart: now.Add(-2 * time.Second), started: true,
			pause: time.Second, period: 10 * time.Second, want: now.Add(8 * time.Second)},
		{name: "pause dominates", lastStart: now.Add(-time.Minute), started: true,
			pause: 5 * time.Second, period: 10 * time.Second, want: now.Add(5 * time.Second)},
		{name: "period already elapsed", lastStart: now.Add(-time.Minute), started: true,
			period: 10 * time.Second, want: now},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextStart(now, tt.lastStart, tt.started, tt.pause, tt.period)
			assert.Equal(t, got, tt.want)
		})
	}
}

func TestNoJobsExitsImmediately(t *testing.T) {
	h := newHarness(t)
	h.start()
	h.assertExited(t, 0)
}

// One critical job, graceful signal forwarded, exit 0 once it is down.
func TestCriticalJobGracefulShutdown(t *testing.T) {
	h := newHarness(t, critical("sleep", "100"))
	h.start()

	assert.Equal(t, len(h.spawn.starts["sleep"]), 1)
	h.assertRunning(t)

	h.notify(syscall.SIGTERM)
	assert.Equal(t, h.sup.Mode(), Terminating)
	assert.DeepEqual(t, h.spawn.signals["sleep"], []syscall.Signal{syscall.SIGTERM})
	h.assertRunning(t)

	h.spawn.exit(t, "sleep", diedOnTerm)
	h.assertExited(t, 0)
	assert.Equal(t, h.loop.armed(), 0)
}

// A periodic task that exits right away starts every period until shutdown.
func TestPeriodicTaskRestarts(t *testing.T) {
	h := newHarness(t, job.Spec{Command: []string{"true"}, Period: 10 * time.Second})
	h.start()
	assert.Equal(t, len(h.spawn.starts["true"]), 0)

	for i := 0; i < 60; i++ {
		h.loop.advance(time.Second)
		if h.spawn.pidOf("true") != 0 {
			h.spawn.exit(t, "true", exitOK)
		}
	}

	starts := h.spawn.starts["true"]
	assert.Equal(t, len(starts), 6)
	for i := 1; i < len(starts); i++ {
		assert.Assert(t, starts[i].Sub(starts[i-1]) >= 10*time.Second, "start %d after %v", i, starts[i].Sub(starts[i-1]))
	}

	h.notify(syscall.SIGTERM)
	h.assertExited(t, 0)
	h.loop.advance(time.Minute)
	assert.Equal(t, len(h.spawn.starts["true"]), 6)
}

func TestTaskPauseAfterExit(t *testing.T) {
	h := newHarness(t, job.Spec{Command: []string{"backup"}, Pause: 3 * time.Second})
	h.start()

	h.loop.advance(3 * time.Second)
	assert.DeepEqual(t, h.spawn.starts["backup"], []time.Time{epoch.Add(3 * time.Second)})

	h.loop.advance(4 * time.Second)
	h.spawn.exit(t, "backup", exitFail)

	h.loop.advance(2 * time.Second)
	assert.Equal(t, len(h.spawn.starts["backup"]), 1)
	h.loop.advance(time.Second)
	assert.DeepEqual(t, h.spawn.starts["backup"], []time.Time{
		epoch.Add(3 * time.Second),
		epoch.Add(10 * time.Second),
	})
	h.assertRunning(t)
}

// A critical crash with a task timer pending exits without starting the task.
func TestCriticalCrashCancelsPendingTask(t *testing.T) {
	h := newHarness(t,
		critical("server"),
		job.Spec{Command: []string{"cron"}, Period: 5 * time.Second},
	)
	h.start()
	h.loop.advance(2 * time.Second)

	h.spawn.exit(t, "server", exitFail)
	h.assertExited(t, 0)
	assert.Equal(t, h.loop.armed(), 0)

	h.loop.advance(time.Minute)
	assert.Equal(t, len(h.spawn.starts["cron"]), 0)
}

// A job that ignores both signals makes the supervisor give up with 1.
func TestEscalationToKill(t *testing.T) {
	h := newHarness(t, critical("stubborn"))
	h.start()

	h.notify(syscall.SIGTERM)
	h.loop.advance(15*time.Second - time.Millisecond)
	assert.Equal(t, h.sup.Mode(), Terminating)
	assert.DeepEqual(t, h.spawn.signals["stubborn"], []syscall.Signal{syscall.SIGTERM})

	h.loop.advance(time.Millisecond)
	assert.Equal(t, h.sup.Mode(), Killing)
	assert.DeepEqual(t, h.spawn.signals["stubborn"], []syscall.Signal{syscall.SIGTERM, syscall.SIGKILL})
	h.assertRunning(t)

	h.loop.advance(time.Second)
	h.assertExited(t, 1)
}

func TestKillDeadlineMetWhenJobDies(t *testing.T) {
	h := newHarness(t, critical("slow"))
	h.start()
	h.notify(syscall.SIGTERM)
	h.loop.advance(15 * time.Second)
	assert.Equal(t, h.sup.Mode(), Killing)

	h.spawn.exit(t, "slow", diedOnKill)
	h.assertExited(t, 0)
}

func TestCustomGrace(t *testing.T) {
	reg, err := job.NewRegistry([]job.Spec{critical("app")})
	assert.NilError(t, err)
	loop := newFakeLoop()
	sp := newFakeSpawner(loop)
	sup := New(reg, loop, sp, WithGrace(2*time.Second, 500*time.Millisecond))
	loop.Post(sup.Start)
	loop.flush()

	sup.Notify(syscall.SIGTERM)
	loop.advance(2 * time.Second)
	assert.Equal(t, sup.Mode(), Killing)
	loop.advance(500 * time.Millisecond)
	done, code := sup.Finished()
	assert.Assert(t, done)
	assert.Equal(t, code, 1)
}

func TestOnlyFirstSignalActs(t *testing.T) {
	h := newHarness(t, critical("app"))
	h.start()

	h.notify(syscall.SIGINT)
	assert.Equal(t, h.sup.Mode(), Terminating)
	h.notify(syscall.SIGTERM)
	h.notify(syscall.SIGINT)

	assert.DeepEqual(t, h.spawn.signals["app"], []syscall.Signal{syscall.SIGINT})
	assert.Equal(t, h.loop.armed(), 1)
}

func TestNotifyFromManyGoroutines(t *testing.T) {
	h := newHarness(t, critical("a"), critical("b"))
	h.start()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.sup.Notify(syscall.SIGTERM)
		}()
	}
	wg.Wait()
	h.loop.flush()

	assert.DeepEqual(t, h.spawn.signals, map[string][]syscall.Signal{
		"a": {syscall.SIGTERM},
		"b": {syscall.SIGTERM},
	})
}

func TestWakeupWithoutSignalIsIgnored(t *testing.T) {
	h := newHarness(t, critical("app"))
	h.start()
	h.loop.Wakeup()
	h.loop.flush()
	assert.Equal(t, h.sup.Mode(), Normal)

	h.notify(syscall.SIGTERM)
	assert.Equal(t, h.sup.Mode(), Terminating)
}

func TestRecheckIsIdempotent(t *testing.T) {
	h := newHarness(t, critical("app"), job.Spec{Command: []string{"cron"}, Period: time.Minute})
	h.start()

	for i := 0; i < 3; i++ {
		h.sup.trigger(0)
	}
	assert.Equal(t, h.sup.Mode(), Normal)
	assert.Equal(t, len(h.spawn.signals), 0)
	assert.Equal(t, h.loop.armed(), 1)
	h.assertRunning(t)
}

func TestCriticalExitStopsOthers(t *testing.T) {
	h := newHarness(t, critical("web"), critical("worker"))
	h.start()

	h.spawn.exit(t, "web", exitFail)
	assert.Equal(t, h.sup.Mode(), Terminating)
	assert.DeepEqual(t, h.spawn.signals, map[string][]syscall.Signal{
		"worker": {syscall.SIGTERM},
	})

	h.spawn.exit(t, "worker", diedOnTerm)
	h.assertExited(t, 0)
}

func TestRunningTaskIsSignalled(t *testing.T) {
	h := newHarness(t, critical("app"), job.Spec{Command: []string{"cron"}, Period: time.Second})
	h.start()
	h.loop.advance(time.Second)
	assert.Assert(t, h.spawn.pidOf("cron") != 0)

	h.notify(syscall.SIGTERM)
	assert.DeepEqual(t, h.spawn.signals, map[string][]syscall.Signal{
		"app":  {syscall.SIGTERM},
		"cron": {syscall.SIGTERM},
	})

	// A task exiting during shutdown is not rescheduled.
	h.spawn.exit(t, "cron", exitOK)
	h.loop.advance(time.Second)
	assert.Equal(t, len(h.spawn.starts["cron"]), 1)

	h.spawn.exit(t, "app", diedOnTerm)
	h.assertExited(t, 0)
}

func TestSingleOutstandingDeadline(t *testing.T) {
	h := newHarness(t, critical("a"), critical("b"))
	h.start()

	h.notify(syscall.SIGTERM)
	assert.Equal(t, h.loop.armed(), 1)

	// An exit during shutdown only re-checks.
	h.spawn.exit(t, "a", diedOnTerm)
	assert.Equal(t, h.loop.armed(), 1)

	h.loop.advance(15 * time.Second)
	assert.Equal(t, h.sup.Mode(), Killing)
	assert.Equal(t, h.loop.armed(), 1)
}

func TestSpawnFailureIsFatal(t *testing.T) {
	h := newHarness(t, critical("app"))
	h.spawn.err = errors.New("fork: resource temporarily unavailable")
	h.start()
	h.assertExited(t, 1)
}

func TestSetupFailureOfCriticalJob(t *testing.T) {
	h := newHarness(t, critical("app"))
	h.spawn.err = &runner.SetupError{Code: 3, Err: errors.New("unknown user")}
	h.start()

	h.assertExited(t, 0)
	assert.DeepEqual(t, h.obs.events, []string{"exit app rc 3"})
}

func TestSetupFailureOfTaskReschedules(t *testing.T) {
	h := newHarness(t, job.Spec{Command: []string{"cron"}, Period: 5 * time.Second})
	h.spawn.err = &runner.SetupError{Code: 4, Err: syscall.EPERM}
	h.start()

	h.loop.advance(5 * time.Second)
	h.loop.flush()
	assert.DeepEqual(t, h.obs.events, []string{"exit cron rc 4"})
	assert.Equal(t, h.loop.armed(), 1)

	h.spawn.err = nil
	h.loop.advance(5 * time.Second)
	assert.Equal(t, len(h.spawn.starts["cron"]), 1)
	h.assertRunning(t)
}

func TestSpawnRequest(t *testing.T) {
	h := newHarness(t, job.Spec{
		Name:    "api",
		Command: []string{"/usr/bin/api", "--port", "80"},
		Dir:     "/srv",
		User:    "www",
	})
	h.start()

	assert.Equal(t, len(h.spawn.reqs), 1)
	req := h.spawn.reqs[0]
	assert.Assert(t, req.RunID != "")
	req.RunID = ""
	assert.DeepEqual(t, req, runner.SpawnRequest{
		Name:    "api",
		Command: h.sup.jobs.Jobs()[0].Command(),
		Dir:     "/srv",
		User:    "www",
	})
}

func TestObserver(t *testing.T) {
	h := newHarness(t, critical("app"))
	h.start()
	h.notify(syscall.SIGTERM)
	h.loop.advance(15 * time.Second)
	h.spawn.exit(t, "app", diedOnKill)

	assert.DeepEqual(t, h.obs.modes, []Mode{Terminating, Killing})
	assert.DeepEqual(t, h.obs.events, []string{"start app", "exit app died on kill"})
}

func TestHandleStray(t *testing.T) {
	h := newHarness(t, critical("app"))
	h.start()
	h.sup.HandleStray(4242, exitOK)
	h.loop.flush()
	h.assertRunning(t)
	assert.Equal(t, h.sup.Mode(), Normal)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, Normal.String(), "normal")
	assert.Equal(t, Terminating.String(), "terminating")
	assert.Equal(t, Killing.String(), "killing")
	assert.Equal(t, Mode(9).String(), "unknown")
}
