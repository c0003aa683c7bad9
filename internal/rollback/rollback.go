// Package rollback restores the worktree to base_commit after any STOP
// that occurred once the builder has already run. Grounded on spec.md
// §4.10.
package rollback

import (
	"context"
	"fmt"

	"github.com/daydemir/tickrunner/internal/types"
	"github.com/daydemir/tickrunner/internal/vcs"
)

// Outcome is the one escalation rollback can produce: the clean-worktree
// assertion failing after reset.
type Outcome struct {
	Code   types.Code
	Reason string
}

func (o *Outcome) Error() string { return fmt.Sprintf("%s: %s", o.Code, o.Reason) }

// Run hard-resets tracked files to baseCommit, removes exactly the
// untracked paths judge recorded, and asserts the worktree is clean
// afterward. It is idempotent: calling it again on an already-clean
// worktree is a no-op past the reset.
func Run(ctx context.Context, repo *vcs.Repo, baseCommit string, untracked []string) (*Outcome, error) {
	if err := repo.HardReset(ctx, baseCommit); err != nil {
		return nil, fmt.Errorf("rollback: hard reset to %s: %w", baseCommit, err)
	}
	if err := repo.RemoveUntracked(untracked); err != nil {
		return nil, fmt.Errorf("rollback: remove untracked paths: %w", err)
	}

	status, err := repo.PorcelainStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("rollback: verify clean worktree: %w", err)
	}
	if !isClean(status) {
		return &Outcome{
			Code:   types.CodeStopInterrupted,
			Reason: "worktree not clean after rollback",
		}, nil
	}
	return nil, nil
}

func isClean(status vcs.StatusResult) bool {
	return len(status.Modified) == 0 &&
		len(status.Added) == 0 &&
		len(status.Deleted) == 0 &&
		len(status.Renamed) == 0 &&
		len(status.Untracked) == 0
}
