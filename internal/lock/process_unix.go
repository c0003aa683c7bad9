//go:build unix

package lock

import "syscall"

// isProcessAlive reports whether pid names a live process. EPERM means the
// process exists but we lack permission to signal it, which still counts
// as alive.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || err == syscall.EPERM
}
