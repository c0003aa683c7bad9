// Degradation is a pure transform over config.Config: the cross-tick
// retry ladder spec.md §4.12 describes, applied by the caller once per
// tick before any phase runs. It never mutates the config it was given.
package engine

import "github.com/daydemir/tickrunner/internal/config"

// blockMessage is returned by Degrade when retryCount has reached the
// point where the only remaining step is a human decision.
const blockMessage = "retry_count has reached its limit; this milestone needs human attention before another tick can run"

// Degrade returns the config a tick should use for retryCount, a message
// (set only when blocked is true), and whether the caller should refuse
// to run the tick at all.
//
//   - retryCount == 0: cfg is returned unchanged (same pointer-free copy).
//   - retryCount == 1: a degraded copy — orchestrator and interactive
//     builder max_turns halved (floor 5), diff limits halved (floors 5 files / 100 lines),
//     and, when the operator has allowed patch mode, the default builder
//     mode is nudged to patch.
//   - retryCount >= 2: blocked is true; cfg is still returned (the caller
//     should not use it to run a tick, only to report current settings).
func Degrade(cfg *config.Config, retryCount int) (degraded *config.Config, blocked bool, message string) {
	cp := *cfg
	switch {
	case retryCount <= 0:
		return &cp, false, ""
	case retryCount == 1:
		cp.Orchestrator.MaxTurns = halveFloor(cp.Orchestrator.MaxTurns, 5)
		cp.Builder.Interactive.MaxTurns = halveFloor(cp.Builder.Interactive.MaxTurns, 5)
		cp.DiffLimits.DefaultMaxFilesTouched = halveFloor(cp.DiffLimits.DefaultMaxFilesTouched, 5)
		cp.DiffLimits.DefaultMaxLinesChanged = halveFloor(cp.DiffLimits.DefaultMaxLinesChanged, 100)
		if cp.Builder.AllowPatchMode {
			cp.Builder.DefaultMode = "patch"
		}
		return &cp, false, ""
	default:
		return &cp, true, blockMessage
	}
}

func halveFloor(v, floor int) int {
	if v <= 0 {
		return v
	}
	half := v / 2
	if half < floor {
		return floor
	}
	return half
}
