// Package lock implements the tick engine's exclusive lock: a single
// atomic file at a fixed path carrying {pid, started_at, boot_id}, crash-
// safe reclaim by liveness + boot-epoch comparison rather than a TTL.
package lock

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/daydemir/tickrunner/internal/atomicfile"
	"github.com/daydemir/tickrunner/internal/types"
)

// ErrLockHeld is returned by Acquire when a live holder from this boot
// already owns the lock.
var ErrLockHeld = errors.New("lock: held by a live process")

// processAliveFn is swappable for tests; defaults to a real liveness check.
var processAliveFn = isProcessAlive

// bootIDFn is swappable for tests; defaults to the real boot-id lookup.
var bootIDFn = BootID

// Acquire reads-or-misses the lock file at path. If it is present and
// names a live holder on the current boot, it returns ErrLockHeld.
// Otherwise it overwrites the file atomically with a record for the
// current process and returns it; a pre-existing but stale record is
// logged by the caller as a reclaim (Acquire itself is silent; callers own
// logging/display).
func Acquire(path string) (*types.LockRecord, bool, error) {
	existing, err := Read(path)
	if err != nil && !errors.Is(err, atomicfile.ErrMissing) {
		return nil, false, fmt.Errorf("lock: read existing: %w", err)
	}

	reclaimed := false
	if existing != nil {
		current, err := bootIDFn()
		if err != nil {
			return nil, false, fmt.Errorf("lock: boot id: %w", err)
		}
		if existing.BootID == current && processAliveFn(existing.PID) {
			return nil, false, ErrLockHeld
		}
		reclaimed = true
	}

	current, err := bootIDFn()
	if err != nil {
		return nil, false, fmt.Errorf("lock: boot id: %w", err)
	}
	rec := &types.LockRecord{
		PID:       os.Getpid(),
		StartedAt: time.Now().UTC(),
		BootID:    current,
	}
	if err := atomicfile.WriteJSON(path, rec); err != nil {
		return nil, false, fmt.Errorf("lock: write: %w", err)
	}
	return rec, reclaimed, nil
}

// Release removes the lock file at path iff it is still owned by rec
// (matching pid and boot_id), per spec.md §4.4. Releasing a lock that was
// already reclaimed by another process is a silent no-op.
func Release(path string, rec *types.LockRecord) error {
	existing, err := Read(path)
	if err != nil {
		if errors.Is(err, atomicfile.ErrMissing) {
			return nil
		}
		return fmt.Errorf("lock: read before release: %w", err)
	}
	if existing.PID != rec.PID || existing.BootID != rec.BootID {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("lock: remove: %w", err)
	}
	return atomicfile.SyncDir(path)
}

// Read returns the lock record at path, or atomicfile.ErrMissing if there
// is none.
func Read(path string) (*types.LockRecord, error) {
	var rec types.LockRecord
	if err := atomicfile.ReadJSON(path, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
