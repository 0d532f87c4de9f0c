package runner

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/apk/ubik/pkg/lib"
)

// Poster runs callbacks on the loop that owns the Runner.
type Poster interface {
	Post(fn func())
}

// Reap collects every terminated child without blocking. Tracked pids go
// to their ExitFunc, anything else to the stray handler.
func (runner *Runner) Reap() {
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil || pid <= 0 {
			// ECHILD, or nothing ready yet
			return
		}

		st := lib.ExitStatusFromWait(ws)
		if onExit, ok := runner.tracked[pid]; ok {
			delete(runner.tracked, pid)
			onExit(st)
			continue
		}
		runner.onStray(pid, st)
	}
}

// Watch relays SIGCHLD to loop as Reap calls until ctx is done. Call it
// before the first Spawn.
func (runner *Runner) Watch(ctx context.Context, loop Poster) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGCHLD)
	// Children that exited before Notify took effect.
	loop.Post(runner.Reap)

	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
				loop.Post(runner.Reap)
			}
		}
	}()
}
