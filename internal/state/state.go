// Package state persists the workspace state (spec.md §3's "Workspace
// state") across ticks: milestone, budget counters, last run pointers.
package state

import (
	"errors"
	"fmt"

	"github.com/daydemir/tickrunner/internal/atomicfile"
	"github.com/daydemir/tickrunner/internal/types"
)

// Load reads STATE.json at path. A missing file is not an error: it
// returns a fresh zero-value WorkspaceState, since an empty workspace has
// simply never completed a tick.
func Load(path string) (*types.WorkspaceState, error) {
	var ws types.WorkspaceState
	err := atomicfile.ReadJSON(path, &ws)
	if err == nil {
		return &ws, nil
	}
	if errors.Is(err, atomicfile.ErrMissing) {
		return &types.WorkspaceState{}, nil
	}
	return nil, fmt.Errorf("state: load %s: %w", path, err)
}

// Save writes ws to path atomically.
func Save(path string, ws *types.WorkspaceState) error {
	if err := atomicfile.WriteJSON(path, ws); err != nil {
		return fmt.Errorf("state: save %s: %w", path, err)
	}
	return nil
}

// BudgetCaps are the configured ceilings a tick's budget counters are
// checked against.
type BudgetCaps struct {
	MaxTicks             int
	MaxOrchestratorCalls int
	MaxBuilderCalls      int
	MaxVerifyRuns        int
	MaxEstimatedCostUSD  float64
	WarnAtFraction       float64
}

// ExceedsCaps reports whether any budget counter has reached (not merely
// approached) its cap — the strict "<" spec.md §4.5 requires, i.e. a
// counter equal to its cap is already exhausted.
func ExceedsCaps(b types.Budgets, caps BudgetCaps) bool {
	if caps.MaxTicks > 0 && b.Ticks >= caps.MaxTicks {
		return true
	}
	if caps.MaxOrchestratorCalls > 0 && b.OrchestratorCalls >= caps.MaxOrchestratorCalls {
		return true
	}
	if caps.MaxBuilderCalls > 0 && b.BuilderCalls >= caps.MaxBuilderCalls {
		return true
	}
	if caps.MaxVerifyRuns > 0 && b.VerifyRuns >= caps.MaxVerifyRuns {
		return true
	}
	if caps.MaxEstimatedCostUSD > 0 && b.EstimatedCostUSD >= caps.MaxEstimatedCostUSD {
		return true
	}
	return false
}

// NearCaps lists the tick, orchestrator-call, builder-call and verify-run
// counters that have reached warnAtFraction (0.8 when unset) of their cap,
// for the preflight budget warning. Estimated cost is not checked here.
func NearCaps(b types.Budgets, caps BudgetCaps) []string {
	frac := caps.WarnAtFraction
	if frac <= 0 {
		frac = 0.8
	}
	var warnings []string
	check := func(name string, count int, cap int) {
		if cap <= 0 {
			return
		}
		if float64(count) >= frac*float64(cap) {
			warnings = append(warnings, fmt.Sprintf("%s at %d/%d", name, count, cap))
		}
	}
	check("ticks", b.Ticks, caps.MaxTicks)
	check("orchestrator_calls", b.OrchestratorCalls, caps.MaxOrchestratorCalls)
	check("builder_calls", b.BuilderCalls, caps.MaxBuilderCalls)
	check("verify_runs", b.VerifyRuns, caps.MaxVerifyRuns)
	return warnings
}
