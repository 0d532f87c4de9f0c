//go:build !linux

package runner

// BecomeSubreaper is a no-op where the OS has no subreaper facility.
func BecomeSubreaper() error {
	return nil
}
