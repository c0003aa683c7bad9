// Package builder dispatches a validated task to one of three builder
// flavors (interactive agent, unified-diff patch, external driver),
// grounded on spec.md §4.7. None of the three is ever trusted to report
// success on its own: the judge phase (internal/judge) is what reads
// version-control reality to determine truth.
package builder

import (
	"context"
	"fmt"

	"github.com/daydemir/tickrunner/internal/types"
)

// Outcome signals a STOP_* closed-set code produced by a builder flavor
// itself (timeout, invalid patch, symlink, apply failure). A nil Outcome
// with a non-nil *types.BuilderResult means the builder ran to
// completion — not that it succeeded; judge still decides that.
type Outcome struct {
	Code   types.Code
	Reason string
}

func (o *Outcome) Error() string {
	return fmt.Sprintf("%s: %s", o.Code, o.Reason)
}

func stop(code types.Code, format string, args ...any) *Outcome {
	return &Outcome{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// Dispatcher runs one task with a specific builder flavor.
type Dispatcher interface {
	Run(ctx context.Context, task *types.Task) (*types.BuilderResult, *Outcome)
}
