package schema

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed schemas/*.schema.json
var embeddedSchemas embed.FS

// Bootstrap copies every embedded schema into schemasDir unless a file of
// the same name already exists there, the same override-friendly pattern
// internal/prompts uses for templates: a workspace can always resolve its
// schema files without network access, but an operator can replace one by
// dropping a file of the same name in schemas/ first.
func Bootstrap(schemasDir string) error {
	entries, err := embeddedSchemas.ReadDir("schemas")
	if err != nil {
		return fmt.Errorf("schema: read embedded schemas: %w", err)
	}
	if err := os.MkdirAll(schemasDir, 0o755); err != nil {
		return fmt.Errorf("schema: create %s: %w", schemasDir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		dest := filepath.Join(schemasDir, entry.Name())
		if _, err := os.Stat(dest); err == nil {
			continue
		}
		data, err := embeddedSchemas.ReadFile(filepath.Join("schemas", entry.Name()))
		if err != nil {
			return fmt.Errorf("schema: read embedded %s: %w", entry.Name(), err)
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return fmt.Errorf("schema: write %s: %w", dest, err)
		}
	}
	return nil
}

// EmbeddedSchemaPath returns the cache key under which LoadEmbedded stores
// the embedded copy of name. Compiler.Validate resolves that key only after
// LoadEmbedded has compiled it; otherwise it is read as a relative file path.
func EmbeddedSchemaPath(name string) string {
	return "schemas/" + name
}

// LoadEmbedded compiles the embedded schema named name without touching
// the filesystem, reading straight out of the binary.
func (c *Compiler) LoadEmbedded(name string) (ok bool, err error) {
	path := EmbeddedSchemaPath(name)
	c.mu.Lock()
	_, cached := c.validators[path]
	c.mu.Unlock()
	if cached {
		return true, nil
	}
	data, err := embeddedSchemas.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("schema: read embedded %s: %w", name, err)
	}
	if _, err := c.compileFromBytes(path, data); err != nil {
		return false, err
	}
	return true, nil
}

// ValidateEmbedded validates value against the embedded schema named name,
// for callers (the config loader) that run before any workspace directory
// exists to hold an on-disk copy.
func (c *Compiler) ValidateEmbedded(name string, value any) (ok bool, errs []ValidationError, err error) {
	if _, err := c.LoadEmbedded(name); err != nil {
		return false, nil, err
	}
	return c.Validate(EmbeddedSchemaPath(name), value)
}
