package prompts

import "strings"

// PlannerInput carries the size-bounded material interpolated into
// prompts/planner.txt: milestone, budget summary, available verification
// template IDs, a worktree status snippet, and prior project documents.
type PlannerInput struct {
	Milestone      string
	BudgetSummary  string
	VerifyTemplate []string
	WorktreeStatus string
	Facts          string
	Plan           string
	Roadmap        string
	LastReport     string
}

// BuildPlannerPrompt renders the planner template (embedded, or
// promptsDir's override when non-empty) with in's sections interpolated
// in place of the "{{sections}}" placeholder.
func BuildPlannerPrompt(promptsDir string, in PlannerInput) (string, error) {
	var tmpl string
	var err error
	if promptsDir != "" {
		tmpl, err = GetForWorkspace(promptsDir, "planner")
	} else {
		tmpl, err = Get("planner")
	}
	if err != nil {
		return "", err
	}

	sections := Render(
		Section{Name: "Milestone", Cap: MilestoneCap, Body: in.Milestone},
		Section{Name: "Budget", Cap: BudgetSummaryCap, Body: in.BudgetSummary},
		Section{Name: "Verification templates", Cap: VerifyIDsCap, Body: strings.Join(in.VerifyTemplate, "\n")},
		Section{Name: "Worktree status", Cap: WorktreeCap, Body: in.WorktreeStatus},
		Section{Name: "Facts", Cap: ProjectDocCap, Body: in.Facts},
		Section{Name: "Plan", Cap: ProjectDocCap, Body: in.Plan},
		Section{Name: "Roadmap", Cap: ProjectDocCap, Body: in.Roadmap},
		Section{Name: "Last report", Cap: ProjectDocCap, Body: in.LastReport},
	)

	return strings.Replace(tmpl, "{{sections}}", sections, 1), nil
}

// BuildRetrySuffix renders the "invalid output" addendum appended to the
// original prompt for the one permitted planner retry.
func BuildRetrySuffix(promptsDir, reason string) (string, error) {
	var tmpl string
	var err error
	if promptsDir != "" {
		tmpl, err = GetForWorkspace(promptsDir, "planner_retry")
	} else {
		tmpl, err = Get("planner_retry")
	}
	if err != nil {
		return "", err
	}
	return strings.Replace(tmpl, "{{reason}}", reason, 1), nil
}
