// Package cliloop composes engine.RunTick into the thinnest possible
// outer loop: call the engine N times, stop at the first non-success
// verdict or when the milestone's tick budget is exhausted. It adds no
// retry, recovery, or plan-discovery behavior of its own — those are the
// engine's job, not the loop's. Grounded on the teacher's
// executor.Loop/LoopWithAnalysis iteration-and-stop-condition shape.
package cliloop

import (
	"context"
	"fmt"

	"github.com/daydemir/tickrunner/internal/display"
	"github.com/daydemir/tickrunner/internal/engine"
	"github.com/daydemir/tickrunner/internal/prompts"
	"github.com/daydemir/tickrunner/internal/report"
	"github.com/daydemir/tickrunner/internal/state"
	"github.com/daydemir/tickrunner/internal/types"
)

// Result summarizes a completed Run invocation.
type Result struct {
	TicksRun    int
	LastVerdict types.Verdict
	LastReport  *types.Report
}

// InputFn builds the planner input for each tick. Loop calls it once per
// tick (not once per Run) so a caller can refresh facts/plan/roadmap/last
// report between ticks.
type InputFn func() (prompts.PlannerInput, error)

// Run calls engine.RunTick up to maxTicks times, stopping early when a
// tick's verdict is not success, when the milestone's configured tick
// budget is exhausted, or when RunTick itself returns a non-nil error
// (including engine.ErrRetryLimitExceeded).
func Run(ctx context.Context, deps engine.Deps, buildInput InputFn, maxTicks int, disp *display.Display) (Result, error) {
	disp.LoopHeader()

	res := Result{}
	for i := 1; i <= maxTicks; i++ {
		ws, err := state.Load(deps.Paths.StatePath())
		if err != nil {
			return res, fmt.Errorf("cliloop: load workspace state: %w", err)
		}
		if budgetExhausted(deps, ws) {
			disp.AllComplete()
			return res, nil
		}

		in, err := buildInput()
		if err != nil {
			return res, fmt.Errorf("cliloop: build planner input: %w", err)
		}

		disp.TickBanner(i, maxTicks, ws.Budgets.MilestoneID, string(ws.LastVerdict))
		rpt, err := engine.RunTick(ctx, deps, in)
		if err != nil {
			disp.LoopFailed("engine error", err, res.TicksRun)
			return res, err
		}

		res.TicksRun++
		res.LastVerdict = rpt.Verdict
		res.LastReport = rpt
		fmt.Println(report.Render(rpt))

		if rpt.Verdict != types.VerdictSuccess {
			disp.LoopFailed(string(rpt.Verdict), nil, res.TicksRun)
			return res, nil
		}
	}

	disp.MaxTicksReached(maxTicks)
	return res, nil
}

func budgetExhausted(deps engine.Deps, ws *types.WorkspaceState) bool {
	max := deps.Cfg.Budgets.PerMilestone.MaxTicks
	return max > 0 && ws.Budgets.Ticks >= max
}
