package prompts

import (
	"strings"
	"testing"
)

func TestBuildPlannerPromptInterpolatesSections(t *testing.T) {
	prompt, err := BuildPlannerPrompt("", PlannerInput{
		Milestone:      "land the judge phase",
		BudgetSummary:  "builder_calls: 2/10",
		VerifyTemplate: []string{"unit_tests", "lint"},
		WorktreeStatus: "clean",
		Facts:          "facts.md contents",
		Plan:           "plan.md contents",
		Roadmap:        "roadmap.md contents",
		LastReport:     "previous tick passed",
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"land the judge phase",
		"builder_calls: 2/10",
		"unit_tests",
		"clean",
		"facts.md contents",
		"previous tick passed",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected prompt to contain %q, got: %s", want, prompt)
		}
	}
	if strings.Contains(prompt, "{{sections}}") {
		t.Fatal("placeholder was not substituted")
	}
}

func TestBuildRetrySuffixInterpolatesReason(t *testing.T) {
	suffix, err := BuildRetrySuffix("", "missing required field task_id")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(suffix, "missing required field task_id") {
		t.Fatalf("got: %s", suffix)
	}
}
