package preflight

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/daydemir/tickrunner/internal/config"
	"github.com/daydemir/tickrunner/internal/types"
	"github.com/daydemir/tickrunner/internal/vcs"
	"github.com/daydemir/tickrunner/internal/workspace"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hi\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", ".")
	run("commit", "-q", "-m", "init")
	return dir
}

func TestRunSucceedsOnCleanRepo(t *testing.T) {
	dir := initRepo(t)
	cfg := config.Default()
	paths := workspace.New(filepath.Join(dir, cfg.WorkspaceDir))
	repo := vcs.New(dir)

	res, err := Run(context.Background(), cfg, paths, repo, &types.WorkspaceState{})
	if err != nil {
		t.Fatal(err)
	}
	if res.BaseCommit == "" {
		t.Fatal("expected a base commit")
	}
}

func TestRunBlocksOnDirtyWorktree(t *testing.T) {
	dir := initRepo(t)
	if err := os.WriteFile(filepath.Join(dir, "unexpected.txt"), []byte("surprise\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	paths := workspace.New(filepath.Join(dir, cfg.WorkspaceDir))
	repo := vcs.New(dir)

	_, err := Run(context.Background(), cfg, paths, repo, &types.WorkspaceState{})
	var b *Blocked
	if !errors.As(err, &b) {
		t.Fatalf("expected *Blocked, got %v", err)
	}
	if b.Code != types.CodeBlockedDirtyWorktree {
		t.Fatalf("code = %s", b.Code)
	}
}

func TestRunIgnoresRunnerOwnedDirtyPaths(t *testing.T) {
	dir := initRepo(t)
	cfg := config.Default()
	ownedDir := filepath.Join(dir, cfg.WorkspaceDir)
	if err := os.MkdirAll(ownedDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ownedDir, "STATE.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	paths := workspace.New(ownedDir)
	repo := vcs.New(dir)

	res, err := Run(context.Background(), cfg, paths, repo, &types.WorkspaceState{})
	if err != nil {
		t.Fatalf("runner-owned path should not block: %v", err)
	}
	if res.BaseCommit == "" {
		t.Fatal("expected a base commit")
	}
}

func TestRunBlocksWhenNotARepo(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	paths := workspace.New(filepath.Join(dir, cfg.WorkspaceDir))
	repo := vcs.New(dir)

	_, err := Run(context.Background(), cfg, paths, repo, &types.WorkspaceState{})
	var b *Blocked
	if !errors.As(err, &b) {
		t.Fatalf("expected *Blocked, got %v", err)
	}
	if b.Code != types.CodeBlockedMissingConfig {
		t.Fatalf("code = %s", b.Code)
	}
}

func TestRunBlocksOnExhaustedBudget(t *testing.T) {
	dir := initRepo(t)
	cfg := config.Default()
	cfg.Budgets.PerMilestone.MaxTicks = 5
	paths := workspace.New(filepath.Join(dir, cfg.WorkspaceDir))
	repo := vcs.New(dir)

	ws := &types.WorkspaceState{Budgets: types.Budgets{Ticks: 5}}
	_, err := Run(context.Background(), cfg, paths, repo, ws)
	var b *Blocked
	if !errors.As(err, &b) {
		t.Fatalf("expected *Blocked, got %v", err)
	}
	if b.Code != types.CodeBlockedBudgetExhausted {
		t.Fatalf("code = %s", b.Code)
	}
}

func TestRunWarnsNearBudgetCap(t *testing.T) {
	dir := initRepo(t)
	cfg := config.Default()
	cfg.Budgets.PerMilestone.MaxTicks = 10
	cfg.Budgets.WarnAtFraction = 0.8
	paths := workspace.New(filepath.Join(dir, cfg.WorkspaceDir))
	repo := vcs.New(dir)

	ws := &types.WorkspaceState{Budgets: types.Budgets{Ticks: 8}}
	res, err := Run(context.Background(), cfg, paths, repo, ws)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected a near-cap warning")
	}
}
