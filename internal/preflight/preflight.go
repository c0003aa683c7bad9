// Package preflight runs the ordered gate checks a tick must pass before
// touching the repo: config, repo presence, clean worktree, tmp sweep,
// history cap, budget cap. Grounded on spec.md §4.5's priority-ordered
// check list; each failure yields one closed-set BLOCKED_* code, stopping
// at the first failing check (teacher pattern: internal/preflight-style
// gate functions returning on first failure, as internal/orchestrator's
// pre-run checks do in the pack).
package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/daydemir/tickrunner/internal/atomicfile"
	"github.com/daydemir/tickrunner/internal/config"
	"github.com/daydemir/tickrunner/internal/globset"
	"github.com/daydemir/tickrunner/internal/state"
	"github.com/daydemir/tickrunner/internal/types"
	"github.com/daydemir/tickrunner/internal/vcs"
	"github.com/daydemir/tickrunner/internal/workspace"
)

// Result is the outcome of a successful preflight pass.
type Result struct {
	BaseCommit string
	Warnings   []string
}

// Blocked signals a failed check; Code is always a member of the
// BLOCKED_* closed set.
type Blocked struct {
	Code   types.Code
	Reason string
}

func (b *Blocked) Error() string {
	return fmt.Sprintf("%s: %s", b.Code, b.Reason)
}

func blocked(code types.Code, format string, args ...any) *Blocked {
	return &Blocked{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// Run executes the six checks in spec.md §4.5's priority order against
// repoRoot, using cfg (already loaded and defaulted) and paths (the
// resolved workspace layout). ws is the persisted workspace state used
// for the budget check. A non-nil *Blocked return is always the sentinel
// error type; callers should use errors.As to recover the code.
func Run(ctx context.Context, cfg *config.Config, paths workspace.Paths, repo *vcs.Repo, ws *types.WorkspaceState) (*Result, error) {
	// 1. Config presence/parse/validation is enforced by the caller
	// having already called config.Load successfully before Run is
	// invoked; Run is only reachable with a valid cfg. A config load
	// failure is returned by the tick command as a plain error; no
	// BLOCKED_MISSING_CONFIG report is written for it.

	// 2. Inside a version-controlled repo; HEAD readable.
	if !repo.IsRepo(ctx) {
		return nil, blocked(types.CodeBlockedMissingConfig, "not inside a git working tree: %s", repo.Root)
	}
	head, err := repo.Head(ctx)
	if err != nil {
		return nil, blocked(types.CodeBlockedMissingConfig, "HEAD not readable: %v", err)
	}

	// 3. Worktree clean, excluding runner-owned globs.
	status, err := repo.PorcelainStatus(ctx)
	if err != nil {
		return nil, blocked(types.CodeBlockedMissingConfig, "git status failed: %v", err)
	}
	owned := globset.New(cfg.Runner.RunnerOwnedGlobs)
	if dirty := unownedDirtyPaths(status, owned); len(dirty) > 0 {
		return nil, blocked(types.CodeBlockedDirtyWorktree, "worktree has uncommitted changes outside runner-owned paths: %v", dirty)
	}

	var warnings []string

	// 4. Sweep <workspace>/*.tmp; warn, don't fail unless workspace
	// itself is missing.
	if _, err := os.Stat(paths.Root); err != nil {
		if os.IsNotExist(err) {
			warnings = append(warnings, fmt.Sprintf("workspace directory %s does not exist yet", paths.Root))
		}
	} else {
		swept, err := atomicfile.SweepTmp(paths.Root)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("tmp sweep failed: %v", err))
		} else if swept > 0 {
			warnings = append(warnings, fmt.Sprintf("swept %d orphaned tmp file(s)", swept))
		}
	}

	// 5. History directory size <= cap; warn at 80%.
	if cfg.History.Enabled {
		sizeMB, err := dirSizeMB(paths.HistoryDir())
		if err == nil {
			capMB := float64(cfg.History.MaxMB)
			if capMB > 0 {
				if sizeMB >= capMB {
					return nil, blocked(types.CodeBlockedHistoryCapCleanup, "history directory %s is %.1fMB, at or above the %dMB cap", paths.HistoryDir(), sizeMB, cfg.History.MaxMB)
				}
				if sizeMB >= cfg.Budgets.WarnAtFraction*capMB {
					warnings = append(warnings, fmt.Sprintf("history directory at %.1f/%dMB", sizeMB, cfg.History.MaxMB))
				}
			}
		}
	}

	// 6. Per-milestone budget counters strictly less than their caps.
	caps := state.BudgetCaps{
		MaxTicks:             cfg.Budgets.PerMilestone.MaxTicks,
		MaxOrchestratorCalls: cfg.Budgets.PerMilestone.MaxOrchestratorCalls,
		MaxBuilderCalls:      cfg.Budgets.PerMilestone.MaxBuilderCalls,
		MaxVerifyRuns:        cfg.Budgets.PerMilestone.MaxVerifyRuns,
		MaxEstimatedCostUSD:  cfg.Budgets.PerMilestone.MaxEstimatedCostUSD,
		WarnAtFraction:       cfg.Budgets.WarnAtFraction,
	}
	if state.ExceedsCaps(ws.Budgets, caps) {
		return nil, blocked(types.CodeBlockedBudgetExhausted, "per-milestone budget cap reached: %+v", ws.Budgets)
	}
	warnings = append(warnings, state.NearCaps(ws.Budgets, caps)...)

	return &Result{BaseCommit: head, Warnings: warnings}, nil
}

// unownedDirtyPaths returns the set of changed/untracked paths that do
// not fall under any runner-owned glob.
func unownedDirtyPaths(status vcs.StatusResult, owned globset.Set) []string {
	var dirty []string
	check := func(p string) {
		if !owned.Match(p) {
			dirty = append(dirty, p)
		}
	}
	for _, p := range status.Modified {
		check(p)
	}
	for _, p := range status.Added {
		check(p)
	}
	for _, p := range status.Deleted {
		check(p)
	}
	for _, to := range status.Renamed {
		check(to)
	}
	for _, p := range status.Untracked {
		check(p)
	}
	return dirty
}

func dirSizeMB(dir string) (float64, error) {
	var total int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return float64(total) / (1024 * 1024), nil
}
