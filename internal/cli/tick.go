package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/daydemir/tickrunner/internal/cliloop"
	"github.com/daydemir/tickrunner/internal/config"
	"github.com/daydemir/tickrunner/internal/display"
	"github.com/daydemir/tickrunner/internal/engine"
	"github.com/daydemir/tickrunner/internal/prompts"
	"github.com/daydemir/tickrunner/internal/report"
	"github.com/daydemir/tickrunner/internal/schema"
	"github.com/daydemir/tickrunner/internal/state"
	"github.com/daydemir/tickrunner/internal/types"
	"github.com/daydemir/tickrunner/internal/vcs"
	"github.com/daydemir/tickrunner/internal/workspace"
)

var (
	tickLoopN     int
	tickMilestone string
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run exactly one tick (planner -> builder -> judge -> verify -> report)",
	Long: `tick drives the planner/builder/judge/verification state machine
through a single atomic pass and writes REPORT.json/REPORT.md under the
workspace directory.

  tickrunner tick              # one tick
  tickrunner tick --loop 5     # up to 5 ticks, stopping at the first
                                # non-success verdict or exhausted budget`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := resolveDeps()
		if err != nil {
			return err
		}

		disp := display.New()
		ctx := context.Background()

		buildInput := func() (prompts.PlannerInput, error) {
			return plannerInputFromState(deps, tickMilestone)
		}

		if tickLoopN > 0 {
			_, err := cliloop.Run(ctx, deps, buildInput, tickLoopN, disp)
			return err
		}

		in, err := buildInput()
		if err != nil {
			return err
		}
		rpt, err := engine.RunTick(ctx, deps, in)
		if err != nil {
			return err
		}
		fmt.Println(report.Render(rpt))
		return nil
	},
}

func init() {
	tickCmd.Flags().IntVar(&tickLoopN, "loop", 0, "run up to N ticks, stopping early on a non-success verdict (default: single tick)")
	tickCmd.Flags().StringVar(&tickMilestone, "milestone", "", "milestone id to pass to the planner (default: last milestone in workspace state)")
	rootCmd.AddCommand(tickCmd)
}

// resolveDeps loads config, compiles schemas, and resolves the repo/
// workspace paths a tick needs. cwd is treated as the repo root, matching
// the subprocess contract (§6: cwd = repo root) every external command in
// the tick is invoked under.
func resolveDeps() (engine.Deps, error) {
	repoRoot, err := os.Getwd()
	if err != nil {
		return engine.Deps{}, fmt.Errorf("cli: resolve repo root: %w", err)
	}

	schemas := schema.NewCompiler()

	path := cfgFile
	if path == "" {
		path = filepath.Join(repoRoot, "tickrunner.config.json")
	}
	cfg, err := config.LoadWithSchema(path, schemas)
	if err != nil {
		return engine.Deps{}, err
	}

	wsDir := cfg.WorkspaceDir
	if !filepath.IsAbs(wsDir) {
		wsDir = filepath.Join(repoRoot, wsDir)
	}
	paths := workspace.New(wsDir)
	if err := schema.Bootstrap(paths.SchemasDir()); err != nil {
		return engine.Deps{}, fmt.Errorf("cli: bootstrap schemas: %w", err)
	}

	return engine.Deps{
		Cfg:     cfg,
		Paths:   paths,
		Schemas: schemas,
		Repo:    vcs.New(repoRoot),
	}, nil
}

// plannerInputFromState builds the one piece of prompt material the CLI
// itself is responsible for: the milestone id and budget summary read
// back from the last tick's workspace state, plus the configured
// verification template ids. Worktree status and project documents are
// left blank, and nothing else fills them in, so those prompt sections
// render empty.
func plannerInputFromState(deps engine.Deps, milestone string) (prompts.PlannerInput, error) {
	ws, err := state.Load(deps.Paths.StatePath())
	if err != nil {
		return prompts.PlannerInput{}, fmt.Errorf("cli: load workspace state: %w", err)
	}

	m := milestone
	if m == "" {
		m = ws.Budgets.MilestoneID
	}

	ids := make([]string, 0, len(deps.Cfg.Verification.Templates))
	for _, t := range deps.Cfg.Verification.Templates {
		ids = append(ids, t.ID)
	}

	return prompts.PlannerInput{
		Milestone:      m,
		BudgetSummary:  budgetSummary(ws.Budgets, deps.Cfg),
		VerifyTemplate: ids,
	}, nil
}

func budgetSummary(b types.Budgets, cfg *config.Config) string {
	caps := cfg.Budgets.PerMilestone
	return fmt.Sprintf("ticks=%d/%d orchestrator_calls=%d/%d builder_calls=%d/%d verify_runs=%d/%d",
		b.Ticks, caps.MaxTicks,
		b.OrchestratorCalls, caps.MaxOrchestratorCalls,
		b.BuilderCalls, caps.MaxBuilderCalls,
		b.VerifyRuns, caps.MaxVerifyRuns)
}
