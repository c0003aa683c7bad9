//go:build linux

package lock

import (
	"os"
	"strings"
)

// BootID reads the kernel-provided stable-per-boot identifier. It changes
// on every reboot and is shared by every process on the machine, which is
// exactly the property lock reclaim needs: a lock record from a prior boot
// is never mistaken for one from this boot, even if the pid was recycled.
func BootID() (string, error) {
	data, err := os.ReadFile("/proc/sys/kernel/random/boot_id")
	if err != nil {
		return fallbackBootID()
	}
	return strings.TrimSpace(string(data)), nil
}
