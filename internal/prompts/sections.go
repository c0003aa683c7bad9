package prompts

import "strings"

// Fixed per-section character caps (spec design note: "Each prompt
// section has a fixed character cap; if exceeded, truncate with a
// visible marker"). Chosen generously enough to carry useful context
// without letting one stale report balloon the prompt.
const (
	MilestoneCap     = 2000
	BudgetSummaryCap = 1000
	VerifyIDsCap     = 1000
	WorktreeCap      = 4000
	ProjectDocCap    = 6000
)

const truncationMarker = "\n…[truncated]…\n"

// Bound truncates s to cap characters, appending a visible marker when
// truncation actually occurred. Never panics on multi-byte input: it
// operates on runes, not bytes.
func Bound(s string, cap int) string {
	r := []rune(s)
	if len(r) <= cap {
		return s
	}
	keep := cap - len([]rune(truncationMarker))
	if keep < 0 {
		keep = 0
	}
	return string(r[:keep]) + truncationMarker
}

// Section is one named, size-bounded block of the planner prompt.
type Section struct {
	Name string
	Cap  int
	Body string
}

// Render concatenates sections as "### Name\n<bounded body>\n\n", in the
// order given, producing the interpolated sections of prompts/planner.txt.
func Render(sections ...Section) string {
	var b strings.Builder
	for _, s := range sections {
		b.WriteString("### ")
		b.WriteString(s.Name)
		b.WriteString("\n")
		b.WriteString(Bound(s.Body, s.Cap))
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
