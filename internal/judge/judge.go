// Package judge determines the truth of what the builder actually did by
// reading version-control reality: head drift, the touched set, scope
// predicates, blast radius, and task-kind side-effect guards. Grounded on
// spec.md §4.8; the builder's own report is never consulted here.
package judge

import (
	"context"
	"fmt"

	"github.com/daydemir/tickrunner/internal/config"
	"github.com/daydemir/tickrunner/internal/globset"
	"github.com/daydemir/tickrunner/internal/types"
	"github.com/daydemir/tickrunner/internal/vcs"
)

// Outcome is a STOP_* closed-set code produced by a judge check.
type Outcome struct {
	Code   types.Code
	Reason string
}

func (o *Outcome) Error() string { return fmt.Sprintf("%s: %s", o.Code, o.Reason) }

func stop(code types.Code, format string, args ...any) *Outcome {
	return &Outcome{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// Result carries everything judge computed, needed downstream by verify,
// rollback, and the report writer regardless of whether judge itself
// passed.
type Result struct {
	Touched     types.TouchedSet
	BlastRadius types.BlastRadius
	TouchedAll  []string
}

// Run executes spec.md §4.8's steps in order against repo, stopping at
// the first violated check.
func Run(ctx context.Context, repo *vcs.Repo, cfg *config.Config, task *types.Task, baseCommit string) (*Result, *Outcome, error) {
	// 1. HEAD drift check.
	head, err := repo.Head(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("judge: read HEAD: %w", err)
	}
	if head != baseCommit {
		isAncestor, err := repo.IsAncestor(ctx, baseCommit, head)
		if err != nil {
			return nil, nil, fmt.Errorf("judge: check ancestry: %w", err)
		}
		if !isAncestor {
			return nil, stop(types.CodeStopHeadMoved, "HEAD %s is not a descendant of base_commit %s", head, baseCommit), nil
		}
	}

	// 2. Compute touched set via name-status diff + porcelain.
	nameStatus, err := repo.NameStatusDiff(ctx, baseCommit)
	if err != nil {
		return nil, nil, fmt.Errorf("judge: diff --name-status: %w", err)
	}
	porcelain, err := repo.PorcelainStatus(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("judge: git status: %w", err)
	}
	touched := mergeTouchedSet(nameStatus, porcelain)
	all := touched.All()

	result := &Result{Touched: touched, TouchedAll: all}

	// 3. Scope check, first match wins.
	runnerOwned := globset.New(cfg.Runner.RunnerOwnedGlobs)
	if p, ok := firstMatch(all, runnerOwned); ok {
		return result, stop(types.CodeStopRunnerOwnedMutation, "touched a runner-owned path: %s", p), nil
	}

	forbidden := globset.New(task.Scope.ForbiddenGlobs)
	if p, ok := firstMatch(all, forbidden); !forbidden.Empty() && ok {
		return result, stop(types.CodeStopScopeViolationForbidden, "touched a forbidden path: %s", p), nil
	}

	allowed := globset.New(task.Scope.AllowedGlobs)
	if !allowed.Empty() {
		if p, ok := firstUnmatched(all, allowed); ok {
			return result, stop(types.CodeStopScopeViolationOutside, "touched a path outside allowed_globs: %s", p), nil
		}
	}

	if !task.Scope.AllowNewFiles {
		if p, ok := firstNewFile(touched); ok {
			return result, stop(types.CodeStopScopeViolationNewFile, "added/untracked/renamed-to a new file with allow_new_files=false: %s", p), nil
		}
	}

	if !task.Scope.AllowLockfileChanges {
		lockfiles := globset.New(cfg.Scope.Lockfiles)
		if !lockfiles.Empty() {
			if p, ok := firstMatch(all, lockfiles); ok {
				return result, stop(types.CodeStopLockfileChangeForbidden, "touched a lockfile with allow_lockfile_changes=false: %s", p), nil
			}
		}
	}

	// 4. Diff limits.
	diffStat, err := repo.DiffStat(ctx, baseCommit)
	if err != nil {
		return nil, nil, fmt.Errorf("judge: diff --stat: %w", err)
	}
	blast := types.BlastRadius{
		FilesTouched: diffStat.FilesChanged,
		LinesAdded:   diffStat.LinesAdded,
		LinesDeleted: diffStat.LinesDeleted,
		NewFiles:     len(touched.Added) + len(touched.Untracked),
	}
	result.BlastRadius = blast

	maxFiles := task.DiffLimits.MaxFilesTouched
	maxLines := task.DiffLimits.MaxLinesChanged
	if blast.FilesTouched > maxFiles || blast.LinesAdded+blast.LinesDeleted > maxLines {
		return result, stop(types.CodeStopDiffTooLarge, "diff exceeds limits: files=%d/%d lines=%d/%d", blast.FilesTouched, maxFiles, blast.LinesAdded+blast.LinesDeleted, maxLines), nil
	}

	// 5. Side-effect guards.
	hasDiff := len(all) > 0 || len(touched.Deleted) > 0
	if task.TaskKind == types.TaskKindVerifyOnly && hasDiff {
		return result, stop(types.CodeStopVerifyOnlySideEffects, "task_kind=verify_only produced a diff"), nil
	}
	if task.TaskKind == types.TaskKindQuestion && hasDiff {
		return result, stop(types.CodeStopQuestionSideEffects, "task_kind=question produced a diff"), nil
	}

	return result, nil, nil
}

func mergeTouchedSet(ns vcs.NameStatusResult, porcelain vcs.StatusResult) types.TouchedSet {
	renamed := make(map[string]string, len(ns.Renamed))
	for from, to := range ns.Renamed {
		renamed[from] = to
	}
	return types.TouchedSet{
		Modified:  ns.Modified,
		Added:     ns.Added,
		Deleted:   ns.Deleted,
		Renamed:   renamed,
		Untracked: porcelain.Untracked,
	}
}

func firstMatch(paths []string, set globset.Set) (string, bool) {
	for _, p := range paths {
		if set.Match(p) {
			return p, true
		}
	}
	return "", false
}

func firstUnmatched(paths []string, set globset.Set) (string, bool) {
	for _, p := range paths {
		if !set.Match(p) {
			return p, true
		}
	}
	return "", false
}

func firstNewFile(touched types.TouchedSet) (string, bool) {
	if len(touched.Added) > 0 {
		return touched.Added[0], true
	}
	if len(touched.Untracked) > 0 {
		return touched.Untracked[0], true
	}
	for _, to := range touched.Renamed {
		return to, true
	}
	return "", false
}
