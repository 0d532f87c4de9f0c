//go:build linux

package runner

import (
	"golang.org/x/sys/unix"
)

// BecomeSubreaper makes orphaned descendants of our children reparent to
// us instead of init, so Reap sees them as strays.
func BecomeSubreaper() error {
	return unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0)
}
