package vcs

import (
	"strconv"
	"strings"
)

// StatusResult is the parsed form of `git status --porcelain`.
type StatusResult struct {
	Modified  []string
	Added     []string
	Deleted   []string
	Renamed   map[string]string // from -> to
	Untracked []string
}

// ParsePorcelainStatus parses `git status --porcelain` output. Lines are
// `XY <path>` or, for renames, `XY <from> -> <to>`. Untracked lines begin
// `?? `.
func ParsePorcelainStatus(out string) StatusResult {
	res := StatusResult{Renamed: make(map[string]string)}
	for _, line := range splitLines(out) {
		if line == "" {
			continue
		}
		if len(line) < 3 {
			continue
		}
		code := line[:2]
		rest := strings.TrimSpace(line[2:])

		if code == "??" {
			res.Untracked = append(res.Untracked, rest)
			continue
		}

		if strings.Contains(rest, " -> ") {
			parts := strings.SplitN(rest, " -> ", 2)
			if len(parts) == 2 {
				res.Renamed[parts[0]] = parts[1]
			}
			continue
		}

		switch {
		case code[0] == 'D' || code[1] == 'D':
			res.Deleted = append(res.Deleted, rest)
		case code[0] == 'A' || code[1] == 'A':
			res.Added = append(res.Added, rest)
		default:
			res.Modified = append(res.Modified, rest)
		}
	}
	return res
}

// IsClean reports whether the status carries no changes at all.
func (s StatusResult) IsClean() bool {
	return len(s.Modified) == 0 && len(s.Added) == 0 && len(s.Deleted) == 0 &&
		len(s.Renamed) == 0 && len(s.Untracked) == 0
}

// NameStatusResult is the parsed form of `git diff --name-status`.
type NameStatusResult struct {
	Modified []string
	Added    []string
	Deleted  []string
	Renamed  map[string]string // from -> to
}

// ParseNameStatus parses `git diff --name-status base...HEAD` output.
// Lines are tab-delimited: "M\t<path>", "A\t<path>", "D\t<path>", or
// "R<score>\t<from>\t<to>".
func ParseNameStatus(out string) NameStatusResult {
	res := NameStatusResult{Renamed: make(map[string]string)}
	for _, line := range splitLines(out) {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		status := fields[0]
		switch {
		case strings.HasPrefix(status, "R"):
			if len(fields) >= 3 {
				res.Renamed[fields[1]] = fields[2]
			}
		case status == "M":
			res.Modified = append(res.Modified, fields[1])
		case status == "A":
			res.Added = append(res.Added, fields[1])
		case status == "D":
			res.Deleted = append(res.Deleted, fields[1])
		}
	}
	return res
}

// DiffStatResult is the parsed form of `git diff --stat`.
type DiffStatResult struct {
	FilesChanged int
	LinesAdded   int
	LinesDeleted int
}

// ParseDiffStat parses the final summary line of `git diff --stat`, e.g.
// " 3 files changed, 42 insertions(+), 7 deletions(-)".
func ParseDiffStat(out string) DiffStatResult {
	var res DiffStatResult
	lines := splitLines(out)
	if len(lines) == 0 {
		return res
	}
	summary := strings.TrimSpace(lines[len(lines)-1])
	if summary == "" && len(lines) >= 2 {
		summary = strings.TrimSpace(lines[len(lines)-2])
	}
	for _, part := range strings.Split(summary, ",") {
		part = strings.TrimSpace(part)
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		switch {
		case strings.Contains(part, "file"):
			res.FilesChanged = n
		case strings.Contains(part, "insertion"):
			res.LinesAdded = n
		case strings.Contains(part, "deletion"):
			res.LinesDeleted = n
		}
	}
	return res
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}
