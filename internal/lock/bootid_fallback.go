package lock

import (
	"fmt"
	"os"
	"time"
)

// hostnameFn and selfStartTimeFn are swappable for deterministic tests.
var hostnameFn = os.Hostname
var selfStartTimeFn = selfStartTime

// fallbackBootID composes hostname + floor(self process start time in
// seconds) into a boot epoch identifier. It is not as precise as a kernel
// boot id (a process restarted within the same second of boot could in
// principle collide) but it differs across reboots, which is the only
// requirement spec.md §4.4 makes.
func fallbackBootID() (string, error) {
	host, err := hostnameFn()
	if err != nil {
		host = "unknown-host"
	}
	start, err := selfStartTimeFn()
	if err != nil {
		return "", fmt.Errorf("lock: self start time: %w", err)
	}
	return fmt.Sprintf("%s-%d", host, start), nil
}

// selfStartTime returns a coarse process-start epoch for the current
// process, used only as a stand-in boot epoch when no kernel boot id is
// available. It is stable for the lifetime of this process.
func selfStartTime() (int64, error) {
	return processStartUnixSeconds(os.Getpid())
}

var bootEpoch = time.Now().Unix()

// processStartUnixSeconds ignores pid and returns the time this package
// was loaded, which is stable for the life of the process. No platform
// file overrides it.
var processStartUnixSeconds = func(pid int) (int64, error) {
	return bootEpoch, nil
}
