package supervisor

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Notify records a termination signal and wakes the loop. It does nothing
// else, so it may be called from any goroutine at any moment.
func (s *Supervisor) Notify(sig syscall.Signal) {
	s.lastSig.Store(int32(sig))
	s.loop.Wakeup()
}

// onAsync runs on the loop after a Wakeup. Only the first recorded signal
// starts a shutdown; later ones are ignored.
func (s *Supervisor) onAsync() {
	if s.acted {
		return
	}
	sig := syscall.Signal(s.lastSig.Load())
	if sig == 0 {
		return
	}
	s.acted = true
	s.trigger(sig)
}

// WatchSignals forwards sigs (SIGTERM and SIGINT if none are given) to
// s.Notify until ctx is done.
func WatchSignals(ctx context.Context, s *Supervisor, sigs ...os.Signal) {
	if len(sigs) == 0 {
		sigs = []os.Signal{syscall.SIGTERM, syscall.SIGINT}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-ch:
				if ss, ok := sig.(syscall.Signal); ok {
					s.Notify(ss)
				}
			}
		}
	}()
}
