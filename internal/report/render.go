package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/daydemir/tickrunner/internal/types"
)

// Render projects report into Markdown with a fixed section order: no
// field's presence or absence in the text depends on anything but the
// report itself, so the same report always renders byte-identical
// Markdown.
func Render(r *types.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Tick report: %s\n\n", r.RunID)
	fmt.Fprintf(&b, "- **Verdict:** %s\n", r.Verdict)
	fmt.Fprintf(&b, "- **Code:** %s\n", r.Code)
	fmt.Fprintf(&b, "- **Started:** %s\n", r.StartedAt.Format(timeLayout))
	fmt.Fprintf(&b, "- **Ended:** %s\n", r.EndedAt.Format(timeLayout))
	fmt.Fprintf(&b, "- **Duration:** %dms\n", r.DurationMs)
	fmt.Fprintf(&b, "- **Base commit:** %s\n", r.BaseCommit)
	fmt.Fprintf(&b, "- **Head commit:** %s\n\n", r.HeadCommit)

	b.WriteString("## Task\n\n")
	if r.TaskSummary != "" {
		fmt.Fprintf(&b, "%s\n\n", r.TaskSummary)
	} else {
		b.WriteString("_no task summary available_\n\n")
	}

	b.WriteString("## Blast radius\n\n")
	fmt.Fprintf(&b, "- Files touched: %d\n", r.BlastRadius.FilesTouched)
	fmt.Fprintf(&b, "- Lines added: %d\n", r.BlastRadius.LinesAdded)
	fmt.Fprintf(&b, "- Lines deleted: %d\n", r.BlastRadius.LinesDeleted)
	fmt.Fprintf(&b, "- New files: %d\n\n", r.BlastRadius.NewFiles)

	b.WriteString("## Scope\n\n")
	fmt.Fprintf(&b, "- OK: %t\n", r.Scope.OK)
	renderList(&b, "Violations", r.Scope.Violations)
	renderList(&b, "Touched paths", r.Scope.TouchedPaths)
	b.WriteString("\n")

	b.WriteString("## Diff\n\n")
	fmt.Fprintf(&b, "- Files changed: %d\n", r.Diff.FilesChanged)
	fmt.Fprintf(&b, "- Lines changed: %d\n", r.Diff.LinesChanged)
	if r.Diff.PatchPath != "" {
		fmt.Fprintf(&b, "- Patch: %s\n", r.Diff.PatchPath)
	}
	b.WriteString("\n")

	b.WriteString("## Verification\n\n")
	fmt.Fprintf(&b, "- Execution mode: %s\n", r.Verification.ExecMode)
	if len(r.Verification.Runs) == 0 {
		b.WriteString("- _no verification runs_\n")
	} else {
		b.WriteString("\n| Template | Phase | Status | Exit | Duration (ms) |\n")
		b.WriteString("| --- | --- | --- | --- | --- |\n")
		for _, run := range r.Verification.Runs {
			fmt.Fprintf(&b, "| %s | %s | %s | %d | %d |\n", run.TemplateID, run.Phase, run.Status, run.ExitCode, run.DurationMs)
		}
	}
	if r.Verification.LogPath != "" {
		fmt.Fprintf(&b, "\n- Log: %s\n", r.Verification.LogPath)
	}
	b.WriteString("\n")

	b.WriteString("## Budgets\n\n")
	fmt.Fprintf(&b, "- Milestone: %s\n", r.Budgets.MilestoneID)
	fmt.Fprintf(&b, "- Ticks: %d\n", r.Budgets.Ticks)
	fmt.Fprintf(&b, "- Orchestrator calls: %d\n", r.Budgets.OrchestratorCalls)
	fmt.Fprintf(&b, "- Builder calls: %d\n", r.Budgets.BuilderCalls)
	fmt.Fprintf(&b, "- Verify runs: %d\n", r.Budgets.VerifyRuns)
	fmt.Fprintf(&b, "- Estimated cost (USD): %.4f\n", r.Budgets.EstimatedCostUSD)
	renderList(&b, "Warnings", r.Budgets.Warnings)
	b.WriteString("\n")

	if len(r.Pointers) > 0 {
		b.WriteString("## Pointers\n\n")
		for _, k := range sortedKeys(r.Pointers) {
			fmt.Fprintf(&b, "- %s: %s\n", k, r.Pointers[k])
		}
	}

	return b.String()
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func renderList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		fmt.Fprintf(b, "- %s: _none_\n", label)
		return
	}
	fmt.Fprintf(b, "- %s:\n", label)
	for _, item := range items {
		fmt.Fprintf(b, "  - %s\n", item)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
