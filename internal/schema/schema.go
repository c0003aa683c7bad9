// Package schema wraps santhosh-tekuri/jsonschema/v5 to load draft 2020-12
// schemas from disk, cache compiled validators, and project the library's
// validation-error tree into a flat, stable slice of ValidationError.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidationError is a normalized projection of one leaf in the library's
// *jsonschema.ValidationError cause tree.
type ValidationError struct {
	Path    string         `json:"path"`
	Keyword string         `json:"keyword"`
	Message string         `json:"message"`
	Params  map[string]any `json:"params,omitempty"`
}

// Compiler loads and caches compiled validators keyed by schema file path.
type Compiler struct {
	mu         sync.Mutex
	validators map[string]*jsonschema.Schema
}

// NewCompiler returns an empty Compiler ready to load schemas.
func NewCompiler() *Compiler {
	return &Compiler{validators: make(map[string]*jsonschema.Schema)}
}

// Load compiles and caches the schema at path, identified by path itself.
// A subsequent Load of the same path returns the cached validator without
// recompiling.
func (c *Compiler) Load(path string) (*jsonschema.Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.validators[path]; ok {
		return v, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: open %s: %w", path, err)
	}
	return c.compileFromBytesLocked(path, data)
}

// compileFromBytes compiles and caches data as the schema identified by
// key, acquiring the lock itself; used by LoadEmbedded to compile a
// schema read straight out of the binary rather than the filesystem.
func (c *Compiler) compileFromBytes(key string, data []byte) (*jsonschema.Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compileFromBytesLocked(key, data)
}

func (c *Compiler) compileFromBytesLocked(key string, data []byte) (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("schema: decode %s: %w", key, err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(key, doc); err != nil {
		return nil, fmt.Errorf("schema: add resource %s: %w", key, err)
	}
	sch, err := compiler.Compile(key)
	if err != nil {
		return nil, fmt.Errorf("schema: compile %s: %w", key, err)
	}
	c.validators[key] = sch
	return sch, nil
}

// Validate loads (or reuses) the validator for schemaPath and checks value
// against it. On success ok is true and errs is nil. On failure ok is
// false and errs lists every leaf validation failure, flattened.
func (c *Compiler) Validate(schemaPath string, value any) (ok bool, errs []ValidationError, err error) {
	sch, err := c.Load(schemaPath)
	if err != nil {
		return false, nil, err
	}

	// jsonschema validates against native Go maps/slices, not structs
	// directly — round-trip through JSON the same way the task/report/
	// builder-result values were produced, so field tags are honored.
	raw, err := json.Marshal(value)
	if err != nil {
		return false, nil, fmt.Errorf("schema: marshal value: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false, nil, fmt.Errorf("schema: unmarshal value: %w", err)
	}

	verr := sch.Validate(doc)
	if verr == nil {
		return true, nil, nil
	}
	valErr, ok2 := verr.(*jsonschema.ValidationError)
	if !ok2 {
		return false, []ValidationError{{Message: verr.Error()}}, nil
	}
	return false, flatten(valErr), nil
}

// flatten walks the library's cause tree (each node may have nested
// Causes) into a flat slice in depth-first order, leaves only.
func flatten(e *jsonschema.ValidationError) []ValidationError {
	if len(e.Causes) == 0 {
		return []ValidationError{toValidationError(e)}
	}
	var out []ValidationError
	for _, cause := range e.Causes {
		out = append(out, flatten(cause)...)
	}
	return out
}

func toValidationError(e *jsonschema.ValidationError) ValidationError {
	return ValidationError{
		Path:    e.InstanceLocation,
		Keyword: keywordFromLocation(e.KeywordLocation),
		Message: e.Message,
	}
}

// keywordFromLocation extracts the trailing keyword segment from a
// KeywordLocation like "/properties/task_kind/enum".
func keywordFromLocation(loc string) string {
	for i := len(loc) - 1; i >= 0; i-- {
		if loc[i] == '/' {
			return loc[i+1:]
		}
	}
	return loc
}
