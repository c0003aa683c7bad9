// Package engine drives one tick of the state machine spec.md §4.12
// defines: LOCK -> PREFLIGHT -> ORCHESTRATE -> BUILD -> JUDGE -> VERIFY ->
// REPORT -> END. It owns phase transitions, the single cancellation
// context threaded through every subprocess call, transport-stall
// detection, and the workspace-state budget/retry bookkeeping that
// degrade.go's cross-tick ladder reads back on the next invocation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/daydemir/tickrunner/internal/builder"
	"github.com/daydemir/tickrunner/internal/config"
	"github.com/daydemir/tickrunner/internal/judge"
	"github.com/daydemir/tickrunner/internal/lock"
	"github.com/daydemir/tickrunner/internal/planner"
	"github.com/daydemir/tickrunner/internal/preflight"
	"github.com/daydemir/tickrunner/internal/prompts"
	"github.com/daydemir/tickrunner/internal/report"
	"github.com/daydemir/tickrunner/internal/rollback"
	"github.com/daydemir/tickrunner/internal/schema"
	"github.com/daydemir/tickrunner/internal/state"
	"github.com/daydemir/tickrunner/internal/types"
	"github.com/daydemir/tickrunner/internal/vcs"
	"github.com/daydemir/tickrunner/internal/verify"
	"github.com/daydemir/tickrunner/internal/workspace"
)

// ErrRetryLimitExceeded is returned before any phase runs when workspace
// state's retry_count has reached degrade.go's block threshold. No
// report is written and no lock is taken: the milestone needs a human
// decision, not another tick.
var ErrRetryLimitExceeded = errors.New("engine: retry limit exceeded")

// ErrReportWriteFailed means the tick could not write REPORT.json at all
// (§4.1: fatal, escalated to STOP_INTERRUPTED with a best-effort
// BLOCKED.json in its place).
var ErrReportWriteFailed = errors.New("engine: fatal report write failure, escalated to STOP_INTERRUPTED")

// newRunIDFn is swappable for tests so a run's identity is deterministic.
// Production runs get a fresh UUIDv4 per spec.md §3's "run_id is a fresh
// 128-bit value".
var newRunIDFn = func() string {
	return uuid.New().String()
}

// Deps bundles everything one tick needs, resolved once by the caller
// (typically the CLI's tick command) and reused across invocations.
type Deps struct {
	Cfg     *config.Config
	Paths   workspace.Paths
	Schemas *schema.Compiler
	Repo    *vcs.Repo
}

// RunTick executes exactly one tick against deps, using plannerInput to
// build the planner prompt. It returns the report produced (for every
// terminal state except the retry-limit short-circuit) or a plain error
// for a condition the state machine itself cannot recover from.
func RunTick(ctx context.Context, deps Deps, plannerInput prompts.PlannerInput) (*types.Report, error) {
	ws, err := state.Load(deps.Paths.StatePath())
	if err != nil {
		return nil, fmt.Errorf("engine: load workspace state: %w", err)
	}

	effectiveCfg, blocked, message := Degrade(deps.Cfg, ws.RetryCount)
	if blocked {
		return nil, fmt.Errorf("%w: %s", ErrRetryLimitExceeded, message)
	}

	runID := newRunIDFn()
	startedAt := time.Now().UTC()

	lockPath := deps.Paths.LockPath(effectiveCfg.Runner.Lockfile)
	lockRec, reclaimed, err := lock.Acquire(lockPath)
	if err != nil {
		if errors.Is(err, lock.ErrLockHeld) {
			return lockHeldReport(deps, runID, startedAt, ws)
		}
		return nil, fmt.Errorf("engine: acquire lock: %w", err)
	}
	defer func() { _ = lock.Release(lockPath, lockRec) }()
	if reclaimed {
		fmt.Fprintf(os.Stderr, "warning: reclaimed stale lock %s\n", lockPath)
	}

	t := &tick{
		runID:     runID,
		startedAt: startedAt,
		cfg:       effectiveCfg,
		paths:     deps.Paths,
		schemas:   deps.Schemas,
		repo:      deps.Repo,
		ws:        ws,
	}
	return t.run(ctx, plannerInput)
}

// lockHeldReport reports BLOCKED_LOCK_HELD without ever touching
// STATE.json: another instance holds the lock and owns that file. Only
// REPORT.json/REPORT.md are written, from a read-only snapshot of ws.
func lockHeldReport(deps Deps, runID string, startedAt time.Time, ws *types.WorkspaceState) (*types.Report, error) {
	in := report.Input{
		RunID:       runID,
		StartedAt:   startedAt,
		EndedAt:     time.Now().UTC(),
		TaskSummary: "lock held by another instance",
		Code:        types.CodeBlockedLockHeld,
		Budgets:     ws.Budgets,
	}
	rpt, err := report.Assemble(in)
	if err != nil {
		return nil, err
	}
	if err := report.Write(deps.Paths, deps.Schemas, deps.Cfg, rpt, report.Artifacts{}); err != nil {
		report.WriteBlockedBestEffort(deps.Paths, runID, types.CodeStopInterrupted, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrReportWriteFailed, err)
	}
	return rpt, nil
}

// tick holds everything one in-progress, lock-held tick needs to thread
// from phase to phase.
type tick struct {
	runID      string
	startedAt  time.Time
	cfg        *config.Config
	paths      workspace.Paths
	schemas    *schema.Compiler
	repo       *vcs.Repo
	ws         *types.WorkspaceState
	baseCommit string
}

func (t *tick) run(ctx context.Context, plannerInput prompts.PlannerInput) (*types.Report, error) {
	// PREFLIGHT
	pre, err := preflight.Run(ctx, t.cfg, t.paths, t.repo, t.ws)
	if err != nil {
		var b *preflight.Blocked
		if errors.As(err, &b) {
			return t.finish(ctx, b.Code, "preflight: "+b.Reason, types.BlastRadius{}, types.ScopeResult{}, types.DiffResult{}, nil, report.Artifacts{})
		}
		return nil, fmt.Errorf("engine: preflight: %w", err)
	}
	t.baseCommit = pre.BaseCommit

	// ORCHESTRATE
	task, orchOutcome, err := planner.Dispatch(ctx, t.cfg, t.paths, t.schemas, t.runID, plannerInput)
	t.ws.Budgets.OrchestratorCalls++
	if err != nil {
		return t.transportStall(ctx, "orchestrate", err)
	}
	if orchOutcome != nil {
		return t.finish(ctx, orchOutcome.Code, "orchestrator rejected: "+orchOutcome.Reason, types.BlastRadius{}, types.ScopeResult{}, types.DiffResult{}, nil, report.Artifacts{})
	}

	// BUILD
	dispatcher, dispatchErr := selectDispatcher(task, t.cfg, t.paths, t.schemas, t.repo)
	var builderOutcome *builder.Outcome
	if dispatchErr != nil {
		builderOutcome = dispatchErr
	} else {
		_, builderOutcome = dispatcher.Run(ctx, task)
	}
	t.ws.Budgets.BuilderCalls++
	if builderOutcome != nil {
		return t.stopAfterBuild(ctx, builderOutcome.Code, "builder: "+builderOutcome.Reason)
	}

	// JUDGE
	jres, jOutcome, err := judge.Run(ctx, t.repo, t.cfg, task, t.baseCommit)
	if err != nil {
		return nil, fmt.Errorf("engine: judge: %w", err)
	}
	if jOutcome != nil {
		return t.stopWithTouched(ctx, jres, jOutcome.Code, "judge: "+jOutcome.Reason, nil)
	}

	// VERIFY (fast, then slow; stop at the first failing batch)
	var allRuns []types.VerifyRunResult

	fastResult, fastOutcome, err := verify.Run(ctx, t.cfg, t.repo.Root, task, verify.PhaseFast)
	if fastResult != nil {
		allRuns = append(allRuns, fastResult.Runs...)
		t.ws.Budgets.VerifyRuns += len(fastResult.Runs)
	}
	if err != nil {
		return nil, fmt.Errorf("engine: verify fast: %w", err)
	}
	if fastOutcome != nil {
		return t.stopWithTouched(ctx, jres, fastOutcome.Code, "verify: "+fastOutcome.Reason, allRuns)
	}

	slowResult, slowOutcome, err := verify.Run(ctx, t.cfg, t.repo.Root, task, verify.PhaseSlow)
	if slowResult != nil {
		allRuns = append(allRuns, slowResult.Runs...)
		t.ws.Budgets.VerifyRuns += len(slowResult.Runs)
	}
	if err != nil {
		return nil, fmt.Errorf("engine: verify slow: %w", err)
	}
	if slowOutcome != nil {
		return t.stopWithTouched(ctx, jres, slowOutcome.Code, "verify: "+slowOutcome.Reason, allRuns)
	}

	// SUCCESS — the builder's changes stay; no rollback.
	scope := types.ScopeResult{OK: true, TouchedPaths: jres.TouchedAll}
	diff := types.DiffResult{FilesChanged: jres.BlastRadius.FilesTouched, LinesChanged: jres.BlastRadius.LinesAdded + jres.BlastRadius.LinesDeleted}
	return t.finish(ctx, types.CodeSuccess, task.Intent, jres.BlastRadius, scope, diff, allRuns, report.Artifacts{})
}

// transportStall handles a bare (non-Outcome) error from the planner:
// spec.md §4.12 calls this a transport stall. The worktree cannot be
// dirty yet at ORCHESTRATE time (the builder hasn't run), but a stalled
// CLI invocation is checked and rolled back defensively before reporting.
func (t *tick) transportStall(ctx context.Context, stage string, cause error) (*types.Report, error) {
	status, statusErr := t.repo.PorcelainStatus(ctx)
	if statusErr == nil && !isClean(status) {
		_, _ = rollback.Run(ctx, t.repo, t.baseCommit, status.Untracked)
	}
	reason := truncate(fmt.Sprintf("%s: %v", stage, cause), 500)
	return t.finish(ctx, types.CodeBlockedTransportStalled, reason, types.BlastRadius{}, types.ScopeResult{}, types.DiffResult{}, nil, report.Artifacts{})
}

// stopAfterBuild rolls back using the worktree's live untracked paths,
// since the builder ran (and possibly wrote files) before judge ever
// computed a touched set.
func (t *tick) stopAfterBuild(ctx context.Context, code types.Code, reason string) (*types.Report, error) {
	status, statusErr := t.repo.PorcelainStatus(ctx)
	untracked := []string(nil)
	if statusErr == nil {
		untracked = status.Untracked
	}
	finalCode := t.rollbackOrEscalate(ctx, code, untracked)
	return t.finish(ctx, finalCode, "build: "+reason, types.BlastRadius{}, types.ScopeResult{}, types.DiffResult{}, nil, report.Artifacts{})
}

// stopWithTouched rolls back using judge's already-computed touched set,
// used for every STOP after judge has run (judge itself, or either
// verify batch).
func (t *tick) stopWithTouched(ctx context.Context, jres *judge.Result, code types.Code, reason string, runs []types.VerifyRunResult) (*types.Report, error) {
	var untracked []string
	var scope types.ScopeResult
	var diff types.DiffResult
	var blast types.BlastRadius
	if jres != nil {
		untracked = jres.Touched.Untracked
		scope = types.ScopeResult{OK: false, Violations: []string{reason}, TouchedPaths: jres.TouchedAll}
		diff = types.DiffResult{FilesChanged: jres.BlastRadius.FilesTouched, LinesChanged: jres.BlastRadius.LinesAdded + jres.BlastRadius.LinesDeleted}
		blast = jres.BlastRadius
	}
	finalCode := t.rollbackOrEscalate(ctx, code, untracked)
	return t.finish(ctx, finalCode, reason, blast, scope, diff, runs, report.Artifacts{})
}

// rollbackOrEscalate runs rollback.Run and, if rollback itself could not
// leave the worktree clean, escalates the reported code to
// STOP_INTERRUPTED per rollback's own contract.
func (t *tick) rollbackOrEscalate(ctx context.Context, code types.Code, untracked []string) types.Code {
	outcome, err := rollback.Run(ctx, t.repo, t.baseCommit, untracked)
	if err != nil {
		return code
	}
	if outcome != nil {
		return outcome.Code
	}
	return code
}

func selectDispatcher(task *types.Task, cfg *config.Config, paths workspace.Paths, schemas *schema.Compiler, repo *vcs.Repo) (builder.Dispatcher, *builder.Outcome) {
	switch task.Builder.Mode {
	case types.BuilderModeInteractiveAgent:
		return builder.InteractiveAgent{Cfg: cfg, Paths: paths, Schemas: schemas}, nil
	case types.BuilderModePatch:
		return builder.Patch{Repo: repo}, nil
	case types.BuilderModeExternalDriver:
		return builder.ExternalDriver{Cfg: cfg, Paths: paths, Schemas: schemas}, nil
	default:
		return nil, &builder.Outcome{Code: types.CodeStopBuilderOutputInvalid, Reason: fmt.Sprintf("unknown builder mode: %s", task.Builder.Mode)}
	}
}

// finish assembles and writes the report, updates and saves workspace
// state (budgets, retry_count, last-run pointers), and returns the
// written report. It is the single place every phase's exit funnels
// through, so state.Save only ever happens once per tick.
func (t *tick) finish(ctx context.Context, code types.Code, taskSummary string, blast types.BlastRadius, scope types.ScopeResult, diff types.DiffResult, runs []types.VerifyRunResult, artifacts report.Artifacts) (*types.Report, error) {
	ended := time.Now().UTC()
	headCommit := t.baseCommit
	if head, err := t.repo.Head(ctx); err == nil {
		headCommit = head
	}

	verdict, ok := code.Verdict()
	if !ok {
		return nil, fmt.Errorf("engine: code %q has no known verdict", code)
	}

	t.ws.Budgets.Ticks++
	t.ws.LastRunID = t.runID
	t.ws.LastVerdict = verdict
	if verdict == types.VerdictSuccess {
		t.ws.RetryCount = 0
	} else {
		t.ws.RetryCount++
	}

	in := report.Input{
		RunID:       t.runID,
		StartedAt:   t.startedAt,
		EndedAt:     ended,
		BaseCommit:  t.baseCommit,
		HeadCommit:  headCommit,
		TaskSummary: taskSummary,
		Code:        code,
		BlastRadius: blast,
		Scope:       scope,
		Diff:        diff,
		Verification: types.VerificationResult{
			ExecMode: t.cfg.Verification.ExecutionMode,
			Runs:     runs,
		},
		Budgets: t.ws.Budgets,
	}
	rpt, err := report.Assemble(in)
	if err != nil {
		return nil, fmt.Errorf("engine: assemble report: %w", err)
	}
	if err := report.Write(t.paths, t.schemas, t.cfg, rpt, artifacts); err != nil {
		// spec.md §4.1: failure to write REPORT.json is fatal and escalated
		// to STOP_INTERRUPTED; a BLOCKED.json is written best-effort as the
		// last signal an operator gets since no report can be produced.
		report.WriteBlockedBestEffort(t.paths, t.runID, types.CodeStopInterrupted, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrReportWriteFailed, err)
	}
	if err := state.Save(t.paths.StatePath(), t.ws); err != nil {
		return nil, fmt.Errorf("engine: save workspace state: %w", err)
	}
	return rpt, nil
}

func isClean(status vcs.StatusResult) bool {
	return len(status.Modified) == 0 &&
		len(status.Added) == 0 &&
		len(status.Deleted) == 0 &&
		len(status.Renamed) == 0 &&
		len(status.Untracked) == 0
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
