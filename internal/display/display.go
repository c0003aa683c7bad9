// Package display provides the tick runner CLI's loop-mode output: the
// loop header, per-tick banners, and the terminal success/failure
// messages cliloop.Run prints around each engine.RunTick call.
package display

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// Display handles loop-mode CLI output.
type Display struct {
	theme     *Theme
	termWidth int
	noColor   bool
}

// New creates a new Display instance.
func New() *Display {
	return NewWithOptions(false)
}

// NewWithOptions creates a Display with configuration.
func NewWithOptions(noColor bool) *Display {
	d := &Display{
		termWidth: getTerminalWidth(),
		noColor:   noColor,
	}
	if noColor {
		d.theme = NoColorTheme()
	} else {
		d.theme = DefaultTheme()
	}
	return d
}

// getTerminalWidth returns the terminal width, defaulting to 80.
func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < 40 {
		return 80
	}
	if width > 120 {
		return 120 // Cap at 120 for readability
	}
	return width
}

// SectionBreak prints a horizontal separator for tick boundaries.
func (d *Display) SectionBreak() {
	fmt.Println(d.theme.Separator(strings.Repeat(SectionBreak, d.termWidth)))
}

// TickBanner prints the tick-number banner with progress.
func (d *Display) TickBanner(current, max int, milestone string, verdict string) {
	d.SectionBreak()
	fmt.Printf("Tick %d/%d: %s (last verdict: %s)\n", current, max, d.theme.Info(milestone), verdict)
	d.SectionBreak()
}

// LoopHeader prints the loop mode header.
func (d *Display) LoopHeader() {
	fmt.Println(d.theme.Bold("=== Tick Runner Loop ==="))
	fmt.Println()
}

// AllComplete prints the completion message for a tick loop with no budget left.
func (d *Display) AllComplete() {
	fmt.Printf("\n%s Milestone budget exhausted.\n", d.theme.Success(SymbolSuccess))
}

// LoopFailed prints the loop failure message.
func (d *Display) LoopFailed(verdict string, err error, ticks int) {
	fmt.Printf("\n%s Tick loop stopped: %s\n", d.theme.Error(SymbolError), verdict)
	if err != nil {
		fmt.Printf("   Error: %v\n", err)
	}
	fmt.Printf("\n%d ticks ran before stopping.\n", ticks)
	fmt.Println("Run 'tickrunner tick' for a single tick with full output.")
}

// MaxTicksReached prints the max-ticks-reached message.
func (d *Display) MaxTicksReached(max int) {
	fmt.Printf("\nReached max ticks for this invocation (%d). Run again to continue.\n", max)
}

// Theme returns the current theme for external use.
func (d *Display) Theme() *Theme {
	return d.theme
}
