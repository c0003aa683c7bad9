package judge

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/daydemir/tickrunner/internal/config"
	"github.com/daydemir/tickrunner/internal/types"
	"github.com/daydemir/tickrunner/internal/vcs"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v: %s", args, err, out)
	}
}

func initJudgeRepo(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init", "-q")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "test")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hi\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "init")
	out, err := exec.Command("git", "-C", dir, "rev-parse", "HEAD").Output()
	if err != nil {
		t.Fatal(err)
	}
	return dir, string(trimNewline(out))
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

func baseTask() *types.Task {
	return &types.Task{
		TaskID:   "t-1",
		TaskKind: types.TaskKindExecute,
		Scope: types.Scope{
			AllowedGlobs:  []string{"**"},
			AllowNewFiles: true,
		},
		DiffLimits: types.DiffLimits{MaxFilesTouched: 20, MaxLinesChanged: 1000},
	}
}

func TestRunPassesOnCleanExecuteTask(t *testing.T) {
	dir, base := initJudgeRepo(t)
	if err := os.WriteFile(filepath.Join(dir, "new.go"), []byte("package x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "add file")

	res, outcome, err := Run(context.Background(), vcs.New(dir), config.Default(), baseTask(), base)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != nil {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if res.BlastRadius.FilesTouched != 1 {
		t.Fatalf("files_touched = %d", res.BlastRadius.FilesTouched)
	}
}

func TestRunDetectsHeadMoved(t *testing.T) {
	dir, base := initJudgeRepo(t)
	// Reset to a commit that is not a descendant of base: create an
	// orphan branch so base is not an ancestor of the new HEAD.
	runGit(t, dir, "checkout", "--orphan", "other")
	if err := os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "unrelated")

	_, outcome, err := Run(context.Background(), vcs.New(dir), config.Default(), baseTask(), base)
	if err != nil {
		t.Fatal(err)
	}
	if outcome == nil || outcome.Code != types.CodeStopHeadMoved {
		t.Fatalf("expected STOP_HEAD_MOVED, got %+v", outcome)
	}
}

func TestRunDetectsForbiddenScopeViolation(t *testing.T) {
	dir, base := initJudgeRepo(t)
	if err := os.WriteFile(filepath.Join(dir, "secret.env"), []byte("SECRET=1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "add secret")

	task := baseTask()
	task.Scope.ForbiddenGlobs = []string{"*.env"}
	_, outcome, err := Run(context.Background(), vcs.New(dir), config.Default(), task, base)
	if err != nil {
		t.Fatal(err)
	}
	if outcome == nil || outcome.Code != types.CodeStopScopeViolationForbidden {
		t.Fatalf("expected STOP_SCOPE_VIOLATION_FORBIDDEN, got %+v", outcome)
	}
}

func TestRunDetectsOutsideAllowedGlobs(t *testing.T) {
	dir, base := initJudgeRepo(t)
	if err := os.WriteFile(filepath.Join(dir, "outside.go"), []byte("package x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "add file")

	task := baseTask()
	task.Scope.AllowedGlobs = []string{"only/**"}
	_, outcome, err := Run(context.Background(), vcs.New(dir), config.Default(), task, base)
	if err != nil {
		t.Fatal(err)
	}
	if outcome == nil || outcome.Code != types.CodeStopScopeViolationOutside {
		t.Fatalf("expected STOP_SCOPE_VIOLATION_OUTSIDE_ALLOWED, got %+v", outcome)
	}
}

func TestRunDetectsNewFileWhenDisallowed(t *testing.T) {
	dir, base := initJudgeRepo(t)
	if err := os.WriteFile(filepath.Join(dir, "new.go"), []byte("package x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "add file")

	task := baseTask()
	task.Scope.AllowNewFiles = false
	_, outcome, err := Run(context.Background(), vcs.New(dir), config.Default(), task, base)
	if err != nil {
		t.Fatal(err)
	}
	if outcome == nil || outcome.Code != types.CodeStopScopeViolationNewFile {
		t.Fatalf("expected STOP_SCOPE_VIOLATION_NEW_FILE, got %+v", outcome)
	}
}

func TestRunDetectsDiffTooLarge(t *testing.T) {
	dir, base := initJudgeRepo(t)
	if err := os.WriteFile(filepath.Join(dir, "new.go"), []byte("package x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "add file")

	task := baseTask()
	task.DiffLimits.MaxFilesTouched = 0
	_, outcome, err := Run(context.Background(), vcs.New(dir), config.Default(), task, base)
	if err != nil {
		t.Fatal(err)
	}
	if outcome == nil || outcome.Code != types.CodeStopDiffTooLarge {
		t.Fatalf("expected STOP_DIFF_TOO_LARGE, got %+v", outcome)
	}
}

func TestRunDetectsVerifyOnlySideEffects(t *testing.T) {
	dir, base := initJudgeRepo(t)
	if err := os.WriteFile(filepath.Join(dir, "new.go"), []byte("package x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-q", "-m", "add file")

	task := baseTask()
	task.TaskKind = types.TaskKindVerifyOnly
	_, outcome, err := Run(context.Background(), vcs.New(dir), config.Default(), task, base)
	if err != nil {
		t.Fatal(err)
	}
	if outcome == nil || outcome.Code != types.CodeStopVerifyOnlySideEffects {
		t.Fatalf("expected STOP_VERIFY_ONLY_SIDE_EFFECTS, got %+v", outcome)
	}
}
