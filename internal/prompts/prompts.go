// Package prompts loads planner/builder prompt templates, embedded by
// default and overridable per-workspace, with @-reference inlining
// (`@path/to/file.md` on its own line is replaced by that file's
// contents, recursively, with circular-reference detection). Mechanism
// kept from the teacher's internal/prompts/prompts.go; the Ralph-specific
// agents/references/workflows category helpers are dropped in favor of
// the planner/builder template set this spec names.
package prompts

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

//go:embed templates/*
var embeddedPrompts embed.FS

var atRefPattern = regexp.MustCompile(`(?m)^@([^\s]+\.md)\s*$`)

// processAtReferences resolves @-references in prompt content, inlining
// the referenced file's contents. visited guards against circular
// references across the whole expansion, not just one level.
func processAtReferences(content string, basePath string, visited map[string]bool) string {
	if visited == nil {
		visited = make(map[string]bool)
	}

	return atRefPattern.ReplaceAllStringFunc(content, func(match string) string {
		refPath := strings.TrimPrefix(strings.TrimSpace(match), "@")

		if visited[refPath] {
			return fmt.Sprintf("<!-- CIRCULAR REFERENCE: %s -->", refPath)
		}
		visited[refPath] = true

		var refContent string
		var found bool

		if basePath != "" {
			if data, err := os.ReadFile(filepath.Join(basePath, refPath)); err == nil {
				refContent = string(data)
				found = true
			}
		}
		if !found {
			if data, err := embeddedPrompts.ReadFile("templates/" + refPath); err == nil {
				refContent = string(data)
				found = true
			}
		}
		if !found {
			return fmt.Sprintf("<!-- REFERENCE NOT FOUND: %s -->", refPath)
		}

		return processAtReferences(refContent, basePath, visited)
	})
}

// Get returns the embedded prompt template named name (".txt" appended
// unless name already ends in ".md"), with @-references resolved.
func Get(name string) (string, error) {
	name = withExt(name)
	content, err := embeddedPrompts.ReadFile("templates/" + name)
	if err != nil {
		return "", fmt.Errorf("prompts: %s not found: %w", name, err)
	}
	return processAtReferences(string(content), "", nil), nil
}

// GetForWorkspace returns name's content, preferring promptsDir (a
// workspace's prompts/ override directory) over the embedded default.
func GetForWorkspace(promptsDir, name string) (string, error) {
	name = withExt(name)

	if data, err := os.ReadFile(filepath.Join(promptsDir, name)); err == nil {
		return processAtReferences(string(data), promptsDir, nil), nil
	}

	data, err := embeddedPrompts.ReadFile("templates/" + name)
	if err != nil {
		return "", fmt.Errorf("prompts: %s not found in workspace or embedded: %w", name, err)
	}
	return processAtReferences(string(data), "", nil), nil
}

// Exists reports whether name has an embedded template.
func Exists(name string) bool {
	_, err := embeddedPrompts.ReadFile("templates/" + withExt(name))
	return err == nil
}

func withExt(name string) string {
	if !strings.HasSuffix(name, ".md") {
		return name + ".txt"
	}
	return name
}
