// Package report assembles and writes the canonical tick report: a
// schema-validated JSON document and its deterministic Markdown
// projection, snapshotted into the run's history directory. Grounded on
// spec.md §4.11.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/daydemir/tickrunner/internal/atomicfile"
	"github.com/daydemir/tickrunner/internal/config"
	"github.com/daydemir/tickrunner/internal/schema"
	"github.com/daydemir/tickrunner/internal/types"
	"github.com/daydemir/tickrunner/internal/workspace"
)

// Input carries every field Assemble needs to build a Report; it mirrors
// types.Report field-for-field rather than threading tick state directly,
// so the engine's state machine stays the only place that knows how a
// tick actually unfolded.
type Input struct {
	RunID        string
	StartedAt    time.Time
	EndedAt      time.Time
	BaseCommit   string
	HeadCommit   string
	TaskSummary  string
	Code         types.Code
	BlastRadius  types.BlastRadius
	Scope        types.ScopeResult
	Diff         types.DiffResult
	Verification types.VerificationResult
	Budgets      types.Budgets
	Pointers     map[string]string
}

// Assemble builds a canonical Report from in. Verdict is derived from
// Code so the two can never disagree, per P4/P9's invariant that code
// uniquely determines verdict.
func Assemble(in Input) (*types.Report, error) {
	verdict, ok := in.Code.Verdict()
	if !ok {
		return nil, fmt.Errorf("report: code %q has no known verdict", in.Code)
	}
	return &types.Report{
		RunID:        in.RunID,
		StartedAt:    in.StartedAt,
		EndedAt:      in.EndedAt,
		DurationMs:   in.EndedAt.Sub(in.StartedAt).Milliseconds(),
		BaseCommit:   in.BaseCommit,
		HeadCommit:   in.HeadCommit,
		TaskSummary:  in.TaskSummary,
		Verdict:      verdict,
		Code:         in.Code,
		BlastRadius:  in.BlastRadius,
		Scope:        in.Scope,
		Diff:         in.Diff,
		Verification: in.Verification,
		Budgets:      in.Budgets,
		Pointers:     in.Pointers,
	}, nil
}

// Artifacts are the optional side-channel files a tick may have produced;
// history snapshotting includes them only when configured to.
type Artifacts struct {
	DiffPatch string // unified diff text, empty if none
	VerifyLog string // concatenated verification stdout/stderr, empty if none
}

// Write validates report against the report schema, writes REPORT.json and
// REPORT.md atomically, and — when history is enabled — snapshots the run
// into history/<run_id>/. Schema validation failure here is fatal: spec.md
// §4.1 names it the one case where the runner cannot produce any report at
// all and must crash loudly instead of degrading.
func Write(paths workspace.Paths, schemas *schema.Compiler, cfg *config.Config, rpt *types.Report, artifacts Artifacts) error {
	if err := os.MkdirAll(paths.Root, 0o755); err != nil {
		return fmt.Errorf("report: create workspace dir: %w", err)
	}

	reportSchemaPath := paths.SchemaPath("report.schema.json")
	ok, errs, err := schemas.Validate(reportSchemaPath, rpt)
	if err != nil {
		return fmt.Errorf("report: load report schema: %w", err)
	}
	if !ok {
		return fmt.Errorf("report: assembled report fails schema validation: %s", formatSchemaErrors(errs))
	}

	if err := atomicfile.WriteJSON(paths.ReportJSONPath(), rpt); err != nil {
		return fmt.Errorf("report: write REPORT.json: %w", err)
	}
	md := Render(rpt)
	if err := atomicfile.Write(paths.ReportMDPath(), []byte(md)); err != nil {
		return fmt.Errorf("report: write REPORT.md: %w", err)
	}
	if err := syncBlockedMarker(paths, rpt); err != nil {
		return fmt.Errorf("report: sync BLOCKED.json: %w", err)
	}

	if !cfg.History.Enabled {
		return nil
	}
	return snapshotHistory(paths, rpt, md, artifacts, cfg)
}

// BlockedMarker is the operator-facing content of BLOCKED.json: spec.md
// §4.1/§6/§7 require this file to be present iff the last outcome was
// BLOCKED, so an operator can tell at a glance (without parsing
// REPORT.json) that the last tick did not run and why.
type BlockedMarker struct {
	RunID     string     `json:"run_id"`
	Code      types.Code `json:"code"`
	Reason    string     `json:"reason"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   time.Time  `json:"ended_at"`
}

// syncBlockedMarker writes BLOCKED.json when rpt's verdict is blocked, and
// removes a stale one otherwise — the file's presence always reflects the
// most recently written report, never an older tick's outcome.
func syncBlockedMarker(paths workspace.Paths, rpt *types.Report) error {
	if rpt.Verdict != types.VerdictBlocked {
		if err := os.Remove(paths.BlockedPath()); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	marker := BlockedMarker{
		RunID:     rpt.RunID,
		Code:      rpt.Code,
		Reason:    rpt.TaskSummary,
		StartedAt: rpt.StartedAt,
		EndedAt:   rpt.EndedAt,
	}
	return atomicfile.WriteJSON(paths.BlockedPath(), marker)
}

// WriteBlockedBestEffort writes a minimal BLOCKED.json directly, ignoring
// any error. It is the last-resort artifact spec.md §4.1 calls for when
// Write itself fails to produce REPORT.json: the caller has already lost
// its one guaranteed report and can only try, not guarantee, this signal.
func WriteBlockedBestEffort(paths workspace.Paths, runID string, code types.Code, reason string) {
	marker := BlockedMarker{
		RunID:     runID,
		Code:      code,
		Reason:    reason,
		StartedAt: time.Now().UTC(),
		EndedAt:   time.Now().UTC(),
	}
	_ = os.MkdirAll(paths.Root, 0o755)
	_ = atomicfile.WriteJSON(paths.BlockedPath(), marker)
}

func snapshotHistory(paths workspace.Paths, rpt *types.Report, md string, artifacts Artifacts, cfg *config.Config) error {
	runDir := paths.HistoryRunDir(rpt.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("report: create history run dir: %w", err)
	}

	reportJSON, err := os.ReadFile(paths.ReportJSONPath())
	if err != nil {
		return fmt.Errorf("report: read REPORT.json for snapshot: %w", err)
	}
	if err := atomicfile.Write(filepath.Join(runDir, "report.json"), reportJSON); err != nil {
		return fmt.Errorf("report: snapshot report.json: %w", err)
	}
	if err := atomicfile.Write(filepath.Join(runDir, "report.md"), []byte(md)); err != nil {
		return fmt.Errorf("report: snapshot report.md: %w", err)
	}

	entry := types.HistoryEntry{
		RunID:      rpt.RunID,
		ReportJSON: filepath.Join(runDir, "report.json"),
		ReportMD:   filepath.Join(runDir, "report.md"),
	}

	if cfg.History.IncludeDiffPatch && artifacts.DiffPatch != "" {
		path := filepath.Join(runDir, "diff.patch")
		if err := atomicfile.Write(path, []byte(artifacts.DiffPatch)); err != nil {
			return fmt.Errorf("report: snapshot diff.patch: %w", err)
		}
		entry.DiffPatch = path
	}
	if cfg.History.IncludeVerifyLog && artifacts.VerifyLog != "" {
		path := filepath.Join(runDir, "verify.log")
		if err := atomicfile.Write(path, []byte(artifacts.VerifyLog)); err != nil {
			return fmt.Errorf("report: snapshot verify.log: %w", err)
		}
		entry.VerifyLog = path
	}

	entry.MetaPath = filepath.Join(runDir, "meta.json")
	meta := struct {
		RunID     string        `json:"run_id"`
		StartedAt time.Time     `json:"started_at"`
		EndedAt   time.Time     `json:"ended_at"`
		Verdict   types.Verdict `json:"verdict"`
		Code      types.Code    `json:"code"`
	}{rpt.RunID, rpt.StartedAt, rpt.EndedAt, rpt.Verdict, rpt.Code}
	if err := atomicfile.WriteJSON(entry.MetaPath, meta); err != nil {
		return fmt.Errorf("report: write meta.json: %w", err)
	}

	return nil
}

func formatSchemaErrors(errs []schema.ValidationError) string {
	out := ""
	for i, e := range errs {
		if i > 0 {
			out += "; "
		}
		out += fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return out
}
