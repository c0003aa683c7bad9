// Package planner builds the planner prompt, dispatches it to the
// configured planner CLI, and validates the resulting task. Grounded on
// spec.md §4.6 and the teacher's Claude-invoke-then-parse shape
// (internal/llm/claude.go's Execute + internal/planner's JSON-extraction
// habit), now driven through the generalized internal/llm runner.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/daydemir/tickrunner/internal/atomicfile"
	"github.com/daydemir/tickrunner/internal/config"
	"github.com/daydemir/tickrunner/internal/llm"
	"github.com/daydemir/tickrunner/internal/prompts"
	"github.com/daydemir/tickrunner/internal/schema"
	"github.com/daydemir/tickrunner/internal/types"
	"github.com/daydemir/tickrunner/internal/workspace"
)

// Outcome is returned when the planner could not produce a usable task
// after its one permitted retry.
type Outcome struct {
	Code   types.Code
	Reason string
}

// Dispatch builds the prompt, invokes the planner CLI, extracts and
// validates its JSON task. On parse/validation failure it retries once
// with an appended "invalid output" section; a second failure returns a
// non-nil Outcome (always CodeBlockedOrchestratorOutputBad).
//
// A non-nil error (with nil Outcome) signals a subprocess-level failure
// (e.g. the planner binary could not be started); callers decide whether
// that is a transport stall.
func Dispatch(ctx context.Context, cfg *config.Config, paths workspace.Paths, schemas *schema.Compiler, runID string, in prompts.PlannerInput) (*types.Task, *Outcome, error) {
	prompt, err := prompts.BuildPlannerPrompt(paths.PromptsDir(), in)
	if err != nil {
		return nil, nil, fmt.Errorf("planner: build prompt: %w", err)
	}

	task, invalidReason, err := attempt(ctx, cfg, paths, schemas, runID, prompt, 1)
	if err != nil {
		return nil, nil, err
	}
	if task != nil {
		return task, nil, nil
	}

	retrySuffix, err := prompts.BuildRetrySuffix(paths.PromptsDir(), invalidReason)
	if err != nil {
		return nil, nil, fmt.Errorf("planner: build retry suffix: %w", err)
	}
	task, invalidReason, err = attempt(ctx, cfg, paths, schemas, runID, prompt+"\n\n"+retrySuffix, 2)
	if err != nil {
		return nil, nil, err
	}
	if task != nil {
		return task, nil, nil
	}

	return nil, &Outcome{Code: types.CodeBlockedOrchestratorOutputBad, Reason: invalidReason}, nil
}

// attempt runs one planner invocation and tries to produce a valid Task.
// It returns (task, "", nil) on success, (nil, reason, nil) on a
// parse/validation failure (the caller may retry), or (nil, "", err) on a
// subprocess-level error.
func attempt(ctx context.Context, cfg *config.Config, paths workspace.Paths, schemas *schema.Compiler, runID, prompt string, attemptNum int) (*types.Task, string, error) {
	timeout := time.Duration(cfg.Orchestrator.TimeoutSeconds) * time.Second

	res, err := llm.Run(ctx, llm.RunOptions{
		Argv:    cfg.PlannerCLI.Command,
		WorkDir: paths.Root,
		Stdin:   prompt,
		Timeout: timeout,
	})
	debugDir := filepath.Join(paths.HistoryRunDir(runID), "planner")
	writeDebugArtifact(debugDir, fmt.Sprintf("attempt-%d-prompt.txt", attemptNum), prompt)
	if err != nil {
		return nil, "", fmt.Errorf("planner: invoke planner cli: %w", err)
	}
	if res.TimedOut {
		return nil, "", fmt.Errorf("planner: planner cli timed out after %s", timeout)
	}
	writeDebugArtifact(debugDir, fmt.Sprintf("attempt-%d-stdout.txt", attemptNum), res.Stdout)
	writeDebugArtifact(debugDir, fmt.Sprintf("attempt-%d-stderr.txt", attemptNum), res.Stderr)

	resultText, err := llm.ExtractResult(res.Stdout)
	if err != nil {
		reason := err.Error()
		writeDebugArtifact(debugDir, fmt.Sprintf("attempt-%d-error.txt", attemptNum), reason)
		return nil, reason, nil
	}

	extracted, err := llm.ExtractJSON(resultText)
	if err != nil {
		reason := err.Error()
		writeDebugArtifact(debugDir, fmt.Sprintf("attempt-%d-error.txt", attemptNum), reason)
		return nil, reason, nil
	}
	writeDebugArtifact(debugDir, fmt.Sprintf("attempt-%d-extracted.json", attemptNum), extracted)

	var task types.Task
	if err := json.Unmarshal([]byte(extracted), &task); err != nil {
		reason := fmt.Sprintf("invalid JSON: %v", err)
		writeDebugArtifact(debugDir, fmt.Sprintf("attempt-%d-error.txt", attemptNum), reason)
		return nil, reason, nil
	}

	if schemas != nil {
		taskSchemaPath := paths.SchemaPath("task.schema.json")
		ok, errs, verr := schemas.Validate(taskSchemaPath, task)
		if verr != nil {
			reason := verr.Error()
			writeDebugArtifact(debugDir, fmt.Sprintf("attempt-%d-schema-errors.txt", attemptNum), reason)
			return nil, reason, nil
		}
		if !ok {
			reason := formatSchemaErrors(errs)
			writeDebugArtifact(debugDir, fmt.Sprintf("attempt-%d-schema-errors.txt", attemptNum), reason)
			return nil, reason, nil
		}
	}

	if err := task.Validate(); err != nil {
		reason := err.Error()
		writeDebugArtifact(debugDir, fmt.Sprintf("attempt-%d-error.txt", attemptNum), reason)
		return nil, reason, nil
	}

	return &task, "", nil
}

func formatSchemaErrors(errs []schema.ValidationError) string {
	msg := ""
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return msg
}

func writeDebugArtifact(dir, name, content string) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	_ = atomicfile.Write(filepath.Join(dir, name), []byte(content))
}
