package builder

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/daydemir/tickrunner/internal/globset"
	"github.com/daydemir/tickrunner/internal/types"
	"github.com/daydemir/tickrunner/internal/vcs"
)

// Patch applies task.builder.patch as a unified diff after validating
// every intended path, grounded on spec.md §4.7's ordered path-rejection
// rules.
type Patch struct {
	Repo *vcs.Repo
}

// Run validates the patch's intended paths against the task's scope and
// the filesystem, then applies it via the version-control adapter.
func (p Patch) Run(ctx context.Context, task *types.Task) (*types.BuilderResult, *Outcome) {
	diff := task.Builder.Patch
	paths := extractPatchPaths(diff)

	allowed := globset.New(task.Scope.AllowedGlobs)
	forbidden := globset.New(task.Scope.ForbiddenGlobs)

	for _, rel := range paths {
		if rel == "/dev/null" {
			continue
		}
		if filepath.IsAbs(rel) {
			return nil, stop(types.CodeStopPatchInvalidPath, "absolute path in patch: %s", rel)
		}
		if strings.Contains(rel, "..") {
			return nil, stop(types.CodeStopPatchInvalidPath, "path traversal in patch: %s", rel)
		}
		if strings.ContainsRune(rel, 0) {
			return nil, stop(types.CodeStopPatchInvalidPath, "NUL byte in patch path: %s", rel)
		}
		abs := filepath.Join(p.Repo.Root, rel)
		relToRoot, err := filepath.Rel(p.Repo.Root, abs)
		if err != nil || strings.HasPrefix(relToRoot, "..") {
			return nil, stop(types.CodeStopPatchInvalidPath, "path resolves outside repo root: %s", rel)
		}

		if !allowed.Empty() && !allowed.Match(rel) {
			return nil, stop(types.CodeStopPatchScopeViolation, "path outside allowed_globs: %s", rel)
		}
		if !forbidden.Empty() && forbidden.Match(rel) {
			return nil, stop(types.CodeStopPatchScopeViolation, "path inside forbidden_globs: %s", rel)
		}

		if isSymlinkOrHasSymlinkParent(p.Repo.Root, rel) {
			return nil, stop(types.CodeStopPatchSymlink, "path or parent is a symbolic link: %s", rel)
		}
	}

	if err := p.Repo.ApplyPatch(ctx, diff); err != nil {
		return nil, stop(types.CodeStopPatchApplyFailed, "git apply failed: %v", err)
	}

	return &types.BuilderResult{
		Summary:            "applied patch",
		FilesIntended:      paths,
		BuilderOutputValid: true,
	}, nil
}

// isSymlinkOrHasSymlinkParent reports whether rel (relative to root), or
// any of its parent directories up to root, is a symbolic link. Missing
// path segments (not yet created by the patch) are not an error.
func isSymlinkOrHasSymlinkParent(root, rel string) bool {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	cur := root
	for _, part := range parts {
		cur = filepath.Join(cur, part)
		info, err := os.Lstat(cur)
		if err != nil {
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return true
		}
	}
	return false
}

// extractPatchPaths pulls the intended repo-relative paths out of a
// unified diff's "+++"/"---" headers, stripping the conventional a/ b/
// prefixes and deduplicating. Pure parsing, no I/O — testable standalone.
func extractPatchPaths(diff string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, line := range strings.Split(diff, "\n") {
		var raw string
		switch {
		case strings.HasPrefix(line, "+++ "):
			raw = strings.TrimPrefix(line, "+++ ")
		case strings.HasPrefix(line, "--- "):
			raw = strings.TrimPrefix(line, "--- ")
		default:
			continue
		}
		raw = strings.TrimSpace(raw)
		if idx := strings.IndexByte(raw, '\t'); idx >= 0 {
			raw = raw[:idx]
		}
		if raw == "/dev/null" {
			continue
		}
		raw = stripDiffPrefix(raw)
		if raw == "" || seen[raw] {
			continue
		}
		seen[raw] = true
		out = append(out, raw)
	}
	return out
}

// stripDiffPrefix removes a leading "a/" or "b/" git-diff path prefix, if
// present.
func stripDiffPrefix(p string) string {
	if len(p) > 2 && (strings.HasPrefix(p, "a/") || strings.HasPrefix(p, "b/")) {
		return p[2:]
	}
	return p
}
