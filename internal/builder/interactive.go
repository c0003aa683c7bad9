package builder

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/daydemir/tickrunner/internal/config"
	"github.com/daydemir/tickrunner/internal/llm"
	"github.com/daydemir/tickrunner/internal/schema"
	"github.com/daydemir/tickrunner/internal/types"
	"github.com/daydemir/tickrunner/internal/workspace"
)

// InteractiveAgent dispatches task.builder.instructions to the builder
// CLI as an interactive subprocess, grounded on the teacher's
// Claude.ExecuteInteractive shape generalized through internal/llm.Run.
type InteractiveAgent struct {
	Cfg     *config.Config
	Paths   workspace.Paths
	Schemas *schema.Compiler
}

// Run invokes the builder process with a clamped max_turns and a
// configured timeout, then parses its output against the builder-result
// schema. In strict mode invalid JSON is a failure (STOP_BUILDER_OUTPUT_INVALID);
// in lenient mode it is treated as success with builder_output_valid=false.
func (a InteractiveAgent) Run(ctx context.Context, task *types.Task) (*types.BuilderResult, *Outcome) {
	maxTurns := task.Builder.MaxTurns
	if cap := a.Cfg.Builder.Interactive.MaxTurns; cap > 0 && (maxTurns <= 0 || maxTurns > cap) {
		maxTurns = cap
	}

	timeout := time.Duration(a.Cfg.Orchestrator.TimeoutSeconds) * time.Second

	// Interactive builder mode has no config key of its own for the CLI
	// binary (spec.md §6 only names a command for builder.external); it
	// reuses planner_cli.command, the same way the teacher drives both
	// its orchestrator and builder roles through one Claude binary with
	// different flags and prompts.
	argv := append(append([]string{}, a.Cfg.PlannerCLI.Command...), "--max-turns", strconv.Itoa(maxTurns))

	res, err := llm.Run(ctx, llm.RunOptions{
		Argv:    argv,
		WorkDir: a.Paths.Root,
		Stdin:   task.Builder.Instructions,
		Timeout: timeout,
	})
	if err != nil {
		return nil, stop(types.CodeStopBuilderTimeout, "builder cli invocation failed: %v", err)
	}
	if res.TimedOut {
		return nil, stop(types.CodeStopBuilderTimeout, "builder cli timed out after %s", timeout)
	}

	resultText, extractErr := llm.ExtractResult(res.Stdout)
	if extractErr == nil {
		if extracted, jsonErr := llm.ExtractJSON(resultText); jsonErr == nil {
			var br types.BuilderResult
			if unmarshalErr := json.Unmarshal([]byte(extracted), &br); unmarshalErr == nil {
				if ok := a.validates(&br); ok {
					br.BuilderOutputValid = true
					return &br, nil
				}
			}
		}
	}

	// Output did not parse/validate.
	if a.Cfg.Builder.Interactive.StrictBuilderJSON {
		return nil, stop(types.CodeStopBuilderOutputInvalid, "builder output did not match the builder-result schema")
	}
	return &types.BuilderResult{BuilderOutputValid: false}, nil
}

func (a InteractiveAgent) validates(br *types.BuilderResult) bool {
	if a.Schemas == nil {
		return true
	}
	schemaPath := a.Paths.SchemaPath("builder_result.schema.json")
	ok, _, err := a.Schemas.Validate(schemaPath, br)
	return err == nil && ok
}
