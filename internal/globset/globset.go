// Package globset matches repo-relative, forward-slash paths against
// gitignore-style glob patterns. It wraps bmatcuk/doublestar/v4 and fixes
// the normalization spec.md §9 leaves as an open question: a pattern
// ending in "/" also matches everything under that directory.
package globset

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Set is a compiled collection of glob patterns.
type Set struct {
	patterns []string
}

// New builds a Set from raw patterns, expanding any pattern ending in "/"
// into both the bare directory name and a "**" suffix so it matches the
// directory itself and everything under it.
func New(patterns []string) Set {
	var expanded []string
	for _, p := range patterns {
		p = normalize(p)
		if strings.HasSuffix(p, "/") {
			dir := strings.TrimSuffix(p, "/")
			expanded = append(expanded, dir, dir+"/**")
			continue
		}
		expanded = append(expanded, p)
	}
	return Set{patterns: expanded}
}

// normalize turns a path into repo-relative, forward-slash form.
func normalize(p string) string {
	p = filepathToSlash(p)
	p = strings.TrimPrefix(p, "./")
	return p
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// Match reports whether filePath (repo-relative) matches any pattern in
// the set. Matching is case-sensitive, as spec.md §4.8 requires.
func (s Set) Match(filePath string) bool {
	filePath = normalize(filePath)
	for _, pattern := range s.patterns {
		ok, err := doublestar.Match(pattern, filePath)
		if err != nil {
			continue
		}
		if ok {
			return true
		}
		// doublestar.Match treats "*" as not crossing "/"; also check
		// path.Match-style containment for patterns with no "/" at all,
		// matching against the base name (gitignore-style bare patterns).
		if !strings.Contains(pattern, "/") {
			if ok, _ := path.Match(pattern, path.Base(filePath)); ok {
				return true
			}
		}
	}
	return false
}

// Empty reports whether the set has no patterns.
func (s Set) Empty() bool {
	return len(s.patterns) == 0
}

// MatchAny reports whether any of filePaths matches the set.
func (s Set) MatchAny(filePaths []string) bool {
	for _, p := range filePaths {
		if s.Match(p) {
			return true
		}
	}
	return false
}

// Unmatched returns the subset of filePaths that match none of the
// patterns in s, preserving input order.
func (s Set) Unmatched(filePaths []string) []string {
	var out []string
	for _, p := range filePaths {
		if !s.Match(p) {
			out = append(out, p)
		}
	}
	return out
}
