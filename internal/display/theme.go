package display

import "github.com/fatih/color"

// SectionBreak is the horizontal rule character used between tick banners.
const SectionBreak = "━"

// Status symbols.
const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
)

// Theme holds the color functions loop-mode output uses.
type Theme struct {
	Success func(a ...interface{}) string
	Error   func(a ...interface{}) string
	Info    func(a ...interface{}) string

	Bold      func(a ...interface{}) string
	Separator func(a ...interface{}) string
}

// DefaultTheme creates the default color theme.
func DefaultTheme() *Theme {
	return &Theme{
		Success: color.New(color.FgGreen).SprintFunc(),
		Error:   color.New(color.FgRed).SprintFunc(),
		Info:    color.New(color.FgCyan).SprintFunc(),

		Bold:      color.New(color.Bold).SprintFunc(),
		Separator: color.New(color.FgCyan).SprintFunc(),
	}
}

// NoColorTheme creates a theme without colors; NewWithOptions uses it when
// noColor is true.
func NoColorTheme() *Theme {
	identity := func(a ...interface{}) string {
		if len(a) == 0 {
			return ""
		}
		return a[0].(string)
	}
	return &Theme{
		Success:   identity,
		Error:     identity,
		Info:      identity,
		Bold:      identity,
		Separator: identity,
	}
}
