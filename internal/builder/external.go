package builder

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/daydemir/tickrunner/internal/atomicfile"
	"github.com/daydemir/tickrunner/internal/config"
	"github.com/daydemir/tickrunner/internal/llm"
	"github.com/daydemir/tickrunner/internal/schema"
	"github.com/daydemir/tickrunner/internal/types"
	"github.com/daydemir/tickrunner/internal/workspace"
)

// ExternalDriver writes the task to a known workspace path, spawns a
// configured driver argv, and reads its result from a known output path.
// Grounded on spec.md §4.7's "external driver" flavor.
type ExternalDriver struct {
	Cfg     *config.Config
	Paths   workspace.Paths
	Schemas *schema.Compiler
}

func (d ExternalDriver) Run(ctx context.Context, task *types.Task) (*types.BuilderResult, *Outcome) {
	if err := atomicfile.WriteJSON(d.Paths.TaskPath(), task); err != nil {
		return nil, stop(types.CodeStopBuilderOutputInvalid, "write task for external driver: %v", err)
	}

	ext := d.Cfg.Builder.External
	argv := append(append([]string{}, ext.Command...), ext.Args...)
	timeout := time.Duration(ext.TimeoutSeconds) * time.Second

	res, err := llm.Run(ctx, llm.RunOptions{
		Argv:    argv,
		WorkDir: d.Paths.Root,
		Timeout: timeout,
	})
	if err != nil {
		return nil, stop(types.CodeStopBuilderTimeout, "external driver invocation failed: %v", err)
	}
	if res.TimedOut {
		return nil, stop(types.CodeStopBuilderTimeout, "external driver timed out after %s", timeout)
	}

	outputPath := ext.OutputFile
	if outputPath == "" {
		outputPath = filepath.Join(d.Paths.Root, "builder_result.json")
	} else if !filepath.IsAbs(outputPath) {
		outputPath = filepath.Join(d.Paths.Root, outputPath)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, stop(types.CodeStopBuilderOutputInvalid, "external driver output file %s not readable: %v", outputPath, err)
	}

	var br types.BuilderResult
	if err := json.Unmarshal(data, &br); err != nil {
		return nil, stop(types.CodeStopBuilderOutputInvalid, "external driver output is not valid JSON: %v", err)
	}

	if d.Schemas != nil {
		schemaPath := d.Paths.SchemaPath("builder_result.schema.json")
		ok, _, verr := d.Schemas.Validate(schemaPath, br)
		if verr != nil || !ok {
			return nil, stop(types.CodeStopBuilderOutputInvalid, "external driver output failed schema validation")
		}
	}

	br.BuilderOutputValid = true
	return &br, nil
}
