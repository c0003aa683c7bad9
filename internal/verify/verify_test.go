package verify

import (
	"context"
	"testing"

	"github.com/daydemir/tickrunner/internal/config"
	"github.com/daydemir/tickrunner/internal/types"
)

func testConfig(templates ...config.VerificationTemplate) *config.Config {
	cfg := config.Default()
	cfg.Verification.Templates = templates
	cfg.Verification.MaxParamLen = 64
	cfg.Verification.RejectWhitespaceInParams = true
	cfg.Verification.RejectDotdot = true
	cfg.Verification.RejectMetacharsRegex = `[;&|$` + "`" + `<>(){}\\]`
	cfg.Verification.TimeoutFastSeconds = 5
	cfg.Verification.TimeoutSlowSeconds = 5
	return cfg
}

func taskWithVerification(fast, slow []string, params map[string]map[string]string) *types.Task {
	return &types.Task{
		TaskID: "t-1",
		Verification: types.Verification{
			Fast:   fast,
			Slow:   slow,
			Params: params,
		},
	}
}

func TestRunPassesAllFastTemplates(t *testing.T) {
	cfg := testConfig(config.VerificationTemplate{ID: "gofmt", Cmd: "true"})
	task := taskWithVerification([]string{"gofmt"}, nil, nil)

	res, outcome, err := Run(context.Background(), cfg, t.TempDir(), task, PhaseFast)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != nil {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if len(res.Runs) != 1 || res.Runs[0].Status != "PASS" {
		t.Fatalf("runs = %+v", res.Runs)
	}
}

func TestRunStopsOnFirstFastFailure(t *testing.T) {
	cfg := testConfig(
		config.VerificationTemplate{ID: "fails", Cmd: "false"},
		config.VerificationTemplate{ID: "never-runs", Cmd: "true"},
	)
	task := taskWithVerification([]string{"fails", "never-runs"}, nil, nil)

	res, outcome, err := Run(context.Background(), cfg, t.TempDir(), task, PhaseFast)
	if err != nil {
		t.Fatal(err)
	}
	if outcome == nil || outcome.Code != types.CodeStopVerifyFailedFast {
		t.Fatalf("expected STOP_VERIFY_FAILED_FAST, got %+v", outcome)
	}
	if len(res.Runs) != 1 {
		t.Fatalf("expected the second template not to run, got %+v", res.Runs)
	}
}

func TestRunReportsSlowFailure(t *testing.T) {
	cfg := testConfig(config.VerificationTemplate{ID: "slow-check", Cmd: "false"})
	task := taskWithVerification(nil, []string{"slow-check"}, nil)

	_, outcome, err := Run(context.Background(), cfg, t.TempDir(), task, PhaseSlow)
	if err != nil {
		t.Fatal(err)
	}
	if outcome == nil || outcome.Code != types.CodeStopVerifyFailedSlow {
		t.Fatalf("expected STOP_VERIFY_FAILED_SLOW, got %+v", outcome)
	}
}

func TestRunRejectsUnknownTemplateID(t *testing.T) {
	cfg := testConfig()
	task := taskWithVerification([]string{"does-not-exist"}, nil, nil)

	_, outcome, err := Run(context.Background(), cfg, t.TempDir(), task, PhaseFast)
	if err != nil {
		t.Fatal(err)
	}
	if outcome == nil || outcome.Code != types.CodeStopVerifyTainted {
		t.Fatalf("expected STOP_VERIFY_TAINTED, got %+v", outcome)
	}
}

func TestRunSubstitutesParamsIntoArgsOnly(t *testing.T) {
	cfg := testConfig(config.VerificationTemplate{
		ID:   "echo-check",
		Cmd:  "sh",
		Args: []string{"-c", `test "$1" = "hello"`, "--", "{{word}}"},
	})
	task := taskWithVerification([]string{"echo-check"}, nil, map[string]map[string]string{
		"echo-check": {"word": "hello"},
	})

	_, outcome, err := Run(context.Background(), cfg, t.TempDir(), task, PhaseFast)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != nil {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestTaintCheckRejectsOverlongParam(t *testing.T) {
	cfg := testConfig(config.VerificationTemplate{ID: "t", Cmd: "true"})
	cfg.Verification.MaxParamLen = 3
	task := taskWithVerification([]string{"t"}, nil, map[string]map[string]string{
		"t": {"name": "waytoolong"},
	})

	_, outcome, err := Run(context.Background(), cfg, t.TempDir(), task, PhaseFast)
	if err != nil {
		t.Fatal(err)
	}
	if outcome == nil || outcome.Code != types.CodeStopVerifyTainted {
		t.Fatalf("expected STOP_VERIFY_TAINTED, got %+v", outcome)
	}
}

func TestTaintCheckRejectsDotdotPath(t *testing.T) {
	cfg := testConfig(config.VerificationTemplate{ID: "t", Cmd: "true"})
	task := taskWithVerification([]string{"t"}, nil, map[string]map[string]string{
		"t": {"path": "../../etc/passwd"},
	})

	_, outcome, err := Run(context.Background(), cfg, t.TempDir(), task, PhaseFast)
	if err != nil {
		t.Fatal(err)
	}
	if outcome == nil || outcome.Code != types.CodeStopVerifyTainted {
		t.Fatalf("expected STOP_VERIFY_TAINTED, got %+v", outcome)
	}
}

func TestTaintCheckRejectsPathOutsideRepoRoot(t *testing.T) {
	cfg := testConfig(config.VerificationTemplate{ID: "t", Cmd: "true"})
	cfg.Verification.RejectDotdot = false
	task := taskWithVerification([]string{"t"}, nil, map[string]map[string]string{
		"t": {"path": "/etc/passwd"},
	})

	_, outcome, err := Run(context.Background(), cfg, t.TempDir(), task, PhaseFast)
	if err != nil {
		t.Fatal(err)
	}
	if outcome == nil || outcome.Code != types.CodeStopVerifyTainted {
		t.Fatalf("expected STOP_VERIFY_TAINTED, got %+v", outcome)
	}
}

func TestTaintCheckRejectsShellMetachars(t *testing.T) {
	cfg := testConfig(config.VerificationTemplate{ID: "t", Cmd: "true"})
	task := taskWithVerification([]string{"t"}, nil, map[string]map[string]string{
		"t": {"expr": "foo;rm -rf /"},
	})

	_, outcome, err := Run(context.Background(), cfg, t.TempDir(), task, PhaseFast)
	if err != nil {
		t.Fatal(err)
	}
	if outcome == nil || outcome.Code != types.CodeStopVerifyTainted {
		t.Fatalf("expected STOP_VERIFY_TAINTED, got %+v", outcome)
	}
}

func TestRunDetectsTimeout(t *testing.T) {
	cfg := testConfig(config.VerificationTemplate{ID: "slowpoke", Cmd: "sleep", Args: []string{"5"}})
	cfg.Verification.TimeoutFastSeconds = 1
	task := taskWithVerification([]string{"slowpoke"}, nil, nil)

	res, outcome, err := Run(context.Background(), cfg, t.TempDir(), task, PhaseFast)
	if err != nil {
		t.Fatal(err)
	}
	if outcome == nil || outcome.Code != types.CodeStopVerifyFlakyOrTimeout {
		t.Fatalf("expected STOP_VERIFY_FLAKY_OR_TIMEOUT, got %+v", outcome)
	}
	if len(res.Runs) != 1 || res.Runs[0].Status != "TIMEOUT" {
		t.Fatalf("runs = %+v", res.Runs)
	}
}
