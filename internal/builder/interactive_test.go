package builder

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/daydemir/tickrunner/internal/config"
	"github.com/daydemir/tickrunner/internal/types"
	"github.com/daydemir/tickrunner/internal/workspace"
)

func jsonQuoteInteractive(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestInteractiveAgentStrictSucceedsOnValidJSON(t *testing.T) {
	dir := t.TempDir()
	paths := workspace.New(dir)
	if err := os.MkdirAll(paths.Root, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Builder.Interactive.StrictBuilderJSON = true
	result := `{"summary":"did the thing","files_intended":["foo.go"],"commands_ran":["go build"],"notes":[]}`
	cfg.PlannerCLI.Command = []string{"sh", "-c", `cat <<'EOF'
{"type":"result","result":` + jsonQuoteInteractive(result) + `}
EOF
`}

	agent := InteractiveAgent{Cfg: cfg, Paths: paths}
	br, outcome := agent.Run(context.Background(), &types.Task{Builder: types.Builder{Instructions: "do it", MaxTurns: 3}})
	if outcome != nil {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if !br.BuilderOutputValid {
		t.Fatal("expected builder_output_valid=true")
	}
	if br.Summary != "did the thing" {
		t.Fatalf("summary = %q", br.Summary)
	}
}

func TestInteractiveAgentStrictFailsOnInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	paths := workspace.New(dir)
	cfg := config.Default()
	cfg.Builder.Interactive.StrictBuilderJSON = true
	cfg.PlannerCLI.Command = []string{"sh", "-c", "echo not json"}

	agent := InteractiveAgent{Cfg: cfg, Paths: paths}
	_, outcome := agent.Run(context.Background(), &types.Task{Builder: types.Builder{Instructions: "do it"}})
	if outcome == nil || outcome.Code != types.CodeStopBuilderOutputInvalid {
		t.Fatalf("expected STOP_BUILDER_OUTPUT_INVALID, got %+v", outcome)
	}
}

func TestInteractiveAgentLenientSucceedsOnInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	paths := workspace.New(dir)
	cfg := config.Default()
	cfg.Builder.Interactive.StrictBuilderJSON = false
	cfg.PlannerCLI.Command = []string{"sh", "-c", "echo not json"}

	agent := InteractiveAgent{Cfg: cfg, Paths: paths}
	br, outcome := agent.Run(context.Background(), &types.Task{Builder: types.Builder{Instructions: "do it"}})
	if outcome != nil {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if br.BuilderOutputValid {
		t.Fatal("expected builder_output_valid=false in lenient mode")
	}
}

func TestInteractiveAgentTimesOut(t *testing.T) {
	dir := t.TempDir()
	paths := workspace.New(dir)
	cfg := config.Default()
	cfg.Orchestrator.TimeoutSeconds = 0
	cfg.PlannerCLI.Command = []string{"sh", "-c", "sleep 5"}

	agent := InteractiveAgent{Cfg: cfg, Paths: paths}
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	_, outcome := agent.Run(ctx, &types.Task{Builder: types.Builder{Instructions: "do it"}})
	if outcome == nil || outcome.Code != types.CodeStopBuilderTimeout {
		t.Fatalf("expected STOP_BUILDER_TIMEOUT, got %+v", outcome)
	}
}
