package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is set by goreleaser via ldflags
	Version = "dev"
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "tickrunner",
	Short: "Deterministic local tick runner for an LLM coding agent",
	Long: `tickrunner drives an LLM coding agent through a finite, auditable
work loop. One invocation of the tick command performs exactly one tick:
it consults a planner for a single proposed task, dispatches the task to
a builder that edits the working copy, then judges the actual change set
against version-control reality before emitting a canonical report.

  tickrunner tick              # run exactly one tick
  tickrunner tick --loop 5     # up to 5 ticks, stopping at the first
                                # non-success verdict or an exhausted
                                # milestone budget`,
	Version: Version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is tickrunner.config.json)")
	rootCmd.SetVersionTemplate(fmt.Sprintf("tickrunner version %s\n", Version))
}

func exitError(msg string) {
	fmt.Fprintln(os.Stderr, "Error:", msg)
	os.Exit(1)
}
