package types

import "time"

// ScopeResult is the report's scope-check projection.
type ScopeResult struct {
	OK           bool     `json:"ok"`
	Violations   []string `json:"violations"`
	TouchedPaths []string `json:"touched_paths"`
}

// DiffResult is the report's diff projection.
type DiffResult struct {
	FilesChanged int    `json:"files_changed"`
	LinesChanged int    `json:"lines_changed"`
	PatchPath    string `json:"patch_path,omitempty"`
}

// VerifyRunResult records one verification template's outcome.
type VerifyRunResult struct {
	TemplateID string `json:"template_id"`
	Phase      string `json:"phase"` // "fast" | "slow"
	Status     string `json:"status"` // "PASS" | "FAIL" | "TIMEOUT"
	ExitCode   int    `json:"exit_code"`
	DurationMs int64  `json:"duration_ms"`
}

// VerificationResult is the report's verification projection.
type VerificationResult struct {
	ExecMode string            `json:"exec_mode"`
	Runs     []VerifyRunResult `json:"runs"`
	LogPath  string            `json:"log_path,omitempty"`
}

// Budgets is the report's (and workspace state's) per-milestone counters.
type Budgets struct {
	MilestoneID       string   `json:"milestone_id,omitempty"`
	Ticks             int      `json:"ticks"`
	OrchestratorCalls int      `json:"orchestrator_calls"`
	BuilderCalls      int      `json:"builder_calls"`
	VerifyRuns        int      `json:"verify_runs"`
	EstimatedCostUSD  float64  `json:"estimated_cost_usd"`
	Warnings          []string `json:"warnings,omitempty"`
}

// Report is the canonical, schema-validated output of a tick.
type Report struct {
	RunID        string              `json:"run_id"`
	StartedAt    time.Time           `json:"started_at"`
	EndedAt      time.Time           `json:"ended_at"`
	DurationMs   int64               `json:"duration_ms"`
	BaseCommit   string              `json:"base_commit"`
	HeadCommit   string              `json:"head_commit"`
	TaskSummary  string              `json:"task_summary"`
	Verdict      Verdict             `json:"verdict"`
	Code         Code                `json:"code"`
	BlastRadius  BlastRadius         `json:"blast_radius"`
	Scope        ScopeResult         `json:"scope"`
	Diff         DiffResult          `json:"diff"`
	Verification VerificationResult `json:"verification"`
	Budgets      Budgets             `json:"budgets"`
	Pointers     map[string]string  `json:"pointers,omitempty"`
}

// Consistent reports whether Code and Verdict agree, per P4/P9.
func (r *Report) Consistent() bool {
	v, ok := r.Code.Verdict()
	return ok && v == r.Verdict
}

// WorkspaceState persists across ticks.
type WorkspaceState struct {
	MilestoneID   string  `json:"milestone_id,omitempty"`
	Budgets       Budgets `json:"budgets"`
	BudgetWarning bool    `json:"budget_warning"`
	LastRunID     string  `json:"last_run_id,omitempty"`
	LastVerdict   Verdict `json:"last_verdict,omitempty"`
	RetryCount    int     `json:"retry_count"`
}

// ResetMilestone sets a new milestone and zeroes the budget counters, per
// spec.md §3's "resetting milestone_id zeroes the budget counters".
func (w *WorkspaceState) ResetMilestone(milestoneID string) {
	w.MilestoneID = milestoneID
	w.Budgets = Budgets{MilestoneID: milestoneID}
	w.BudgetWarning = false
	w.RetryCount = 0
}

// HistoryEntry describes one run's snapshot directory.
type HistoryEntry struct {
	RunID         string `json:"run_id"`
	MetaPath      string `json:"meta_path"`
	ReportJSON    string `json:"report_json_path"`
	ReportMD      string `json:"report_md_path"`
	DiffPatch     string `json:"diff_patch_path,omitempty"`
	VerifyLog     string `json:"verify_log_path,omitempty"`
	DebugArtifacts string `json:"debug_artifacts_dir,omitempty"`
}
