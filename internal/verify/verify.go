// Package verify runs a task's verification templates: taint-checks every
// parameter before anything is executed, substitutes into args only, and
// classifies each run PASS/FAIL/TIMEOUT. Grounded on spec.md §4.9.
package verify

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/daydemir/tickrunner/internal/config"
	"github.com/daydemir/tickrunner/internal/llm"
	"github.com/daydemir/tickrunner/internal/types"
)

// Phase selects which timeout and STOP_* code a batch uses.
type Phase string

const (
	PhaseFast Phase = "fast"
	PhaseSlow Phase = "slow"
)

// Outcome is a STOP_* closed-set code produced by a verification check.
type Outcome struct {
	Code   types.Code
	Reason string
}

func (o *Outcome) Error() string { return fmt.Sprintf("%s: %s", o.Code, o.Reason) }

func stop(code types.Code, format string, args ...any) *Outcome {
	return &Outcome{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// Result is everything one batch (fast or slow) produced, whether or not
// it passed; the report writer embeds Runs verbatim.
type Result struct {
	Runs []types.VerifyRunResult
}

// Run executes task's template IDs for phase in order, stopping at the
// first non-PASS run. repoRoot is used to resolve path-shaped params.
func Run(ctx context.Context, cfg *config.Config, repoRoot string, task *types.Task, phase Phase) (*Result, *Outcome, error) {
	ids := task.Verification.Fast
	timeout := time.Duration(cfg.Verification.TimeoutFastSeconds) * time.Second
	failCode := types.CodeStopVerifyFailedFast
	if phase == PhaseSlow {
		ids = task.Verification.Slow
		timeout = time.Duration(cfg.Verification.TimeoutSlowSeconds) * time.Second
		failCode = types.CodeStopVerifyFailedSlow
	}

	result := &Result{Runs: make([]types.VerifyRunResult, 0, len(ids))}

	metacharRe, err := regexp.Compile(cfg.Verification.RejectMetacharsRegex)
	if err != nil {
		return result, nil, fmt.Errorf("verify: compile reject_metachars_regex: %w", err)
	}

	for _, id := range ids {
		tmpl, ok := findTemplate(cfg.Verification.Templates, id)
		if !ok {
			return result, stop(types.CodeStopVerifyTainted, "unknown verification template id: %s", id), nil
		}

		params := task.Verification.Params[id]
		if outcome := taintCheck(cfg, repoRoot, id, params, metacharRe); outcome != nil {
			return result, outcome, nil
		}

		argv := append([]string{tmpl.Cmd}, substituteArgs(tmpl.Args, params)...)

		start := time.Now()
		res, err := llm.Run(ctx, llm.RunOptions{Argv: argv, WorkDir: repoRoot, Timeout: timeout})
		if err != nil {
			return result, nil, fmt.Errorf("verify: run template %s: %w", id, err)
		}

		run := types.VerifyRunResult{
			TemplateID: id,
			Phase:      string(phase),
			ExitCode:   res.ExitCode,
			DurationMs: time.Since(start).Milliseconds(),
		}

		switch {
		case res.TimedOut:
			run.Status = "TIMEOUT"
			result.Runs = append(result.Runs, run)
			return result, stop(types.CodeStopVerifyFlakyOrTimeout, "template %s timed out after %s", id, timeout), nil
		case res.ExitCode == 0:
			run.Status = "PASS"
			result.Runs = append(result.Runs, run)
		default:
			run.Status = "FAIL"
			result.Runs = append(result.Runs, run)
			return result, stop(failCode, "template %s exited %d", id, res.ExitCode), nil
		}
	}

	return result, nil, nil
}

func findTemplate(templates []config.VerificationTemplate, id string) (config.VerificationTemplate, bool) {
	for _, t := range templates {
		if t.ID == id {
			return t, true
		}
	}
	return config.VerificationTemplate{}, false
}

// taintCheck validates every param value for one template before any
// command runs. A path-shaped value (anything containing a path
// separator) must additionally resolve under repoRoot.
func taintCheck(cfg *config.Config, repoRoot, templateID string, params map[string]string, metacharRe *regexp.Regexp) *Outcome {
	v := cfg.Verification
	for name, value := range params {
		if v.MaxParamLen > 0 && len(value) > v.MaxParamLen {
			return stop(types.CodeStopVerifyTainted, "template %s param %s exceeds max_param_len (%d)", templateID, name, v.MaxParamLen)
		}
		if v.RejectWhitespaceInParams && strings.ContainsAny(value, " \t\n\r") {
			return stop(types.CodeStopVerifyTainted, "template %s param %s contains whitespace", templateID, name)
		}
		if v.RejectDotdot && strings.Contains(value, "..") {
			return stop(types.CodeStopVerifyTainted, "template %s param %s contains '..'", templateID, name)
		}
		if metacharRe != nil && metacharRe.FindStringIndex(value) != nil {
			return stop(types.CodeStopVerifyTainted, "template %s param %s matches forbidden shell metacharacters", templateID, name)
		}
		if looksLikePath(value) {
			resolved := value
			if !filepath.IsAbs(resolved) {
				resolved = filepath.Join(repoRoot, value)
			}
			rel, err := filepath.Rel(repoRoot, resolved)
			if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
				return stop(types.CodeStopVerifyTainted, "template %s param %s resolves outside repo root", templateID, name)
			}
		}
	}
	return nil
}

func looksLikePath(value string) bool {
	return strings.ContainsRune(value, '/') || strings.ContainsRune(value, filepath.Separator)
}

// substituteArgs replaces {{param}} placeholders by exact string
// replacement in args only; cmd is never substituted.
func substituteArgs(args []string, params map[string]string) []string {
	if len(params) == 0 {
		return append([]string{}, args...)
	}
	out := make([]string, len(args))
	for i, a := range args {
		for name, value := range params {
			a = strings.ReplaceAll(a, "{{"+name+"}}", value)
		}
		out[i] = a
	}
	return out
}
