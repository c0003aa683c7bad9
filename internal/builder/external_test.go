package builder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/daydemir/tickrunner/internal/config"
	"github.com/daydemir/tickrunner/internal/types"
	"github.com/daydemir/tickrunner/internal/workspace"
)

func TestExternalDriverReadsOutputFile(t *testing.T) {
	dir := t.TempDir()
	paths := workspace.New(dir)
	if err := os.MkdirAll(paths.Root, 0o755); err != nil {
		t.Fatal(err)
	}
	outputPath := filepath.Join(paths.Root, "builder_result.json")
	script := `echo '{"summary":"drove externally","files_intended":[],"commands_ran":[],"notes":[]}' > ` + outputPath

	cfg := config.Default()
	cfg.Builder.External.Command = []string{"sh", "-c", script}

	driver := ExternalDriver{Cfg: cfg, Paths: paths}
	br, outcome := driver.Run(context.Background(), &types.Task{TaskID: "t-1"})
	if outcome != nil {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if br.Summary != "drove externally" {
		t.Fatalf("summary = %q", br.Summary)
	}
	if !br.BuilderOutputValid {
		t.Fatal("expected builder_output_valid=true")
	}
}

func TestExternalDriverMissingOutputFileIsInvalid(t *testing.T) {
	dir := t.TempDir()
	paths := workspace.New(dir)
	if err := os.MkdirAll(paths.Root, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Builder.External.Command = []string{"sh", "-c", "true"}

	driver := ExternalDriver{Cfg: cfg, Paths: paths}
	_, outcome := driver.Run(context.Background(), &types.Task{TaskID: "t-1"})
	if outcome == nil || outcome.Code != types.CodeStopBuilderOutputInvalid {
		t.Fatalf("expected STOP_BUILDER_OUTPUT_INVALID, got %+v", outcome)
	}
}

func TestExternalDriverTimesOut(t *testing.T) {
	dir := t.TempDir()
	paths := workspace.New(dir)
	if err := os.MkdirAll(paths.Root, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Builder.External.Command = []string{"sh", "-c", "sleep 5"}
	cfg.Builder.External.TimeoutSeconds = 0

	driver := ExternalDriver{Cfg: cfg, Paths: paths}
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	_, outcome := driver.Run(ctx, &types.Task{TaskID: "t-1"})
	if outcome == nil || outcome.Code != types.CodeStopBuilderTimeout {
		t.Fatalf("expected STOP_BUILDER_TIMEOUT, got %+v", outcome)
	}
}
