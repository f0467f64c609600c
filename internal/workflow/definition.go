package workflow

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"storyflow/internal/apperr"
)

// Extensions tried, in order, when resolving a definition by name.
var definitionExts = []string{".yaml", ".yml", ".json"}

// Step is one entry in a workflow definition.
type Step struct {
	Name       string         `yaml:"name" json:"name"`
	Action     string         `yaml:"action" json:"action"`
	Parameters map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// Definition is a parsed workflow. Step order is significant.
type Definition struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Steps       []Step `yaml:"steps" json:"steps"`
}

// Validate checks that the definition is runnable.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: workflow name is required", apperr.ErrValidation)
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("%w: workflow %s has no steps", apperr.ErrValidation, d.Name)
	}
	for i, s := range d.Steps {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("%w: step %d is missing a name", apperr.ErrValidation, i+1)
		}
		if strings.TrimSpace(s.Action) == "" {
			return fmt.Errorf("%w: step %d (%s) is missing an action", apperr.ErrValidation, i+1, s.Name)
		}
	}
	return nil
}

// StepNames returns the step names in order.
func (d Definition) StepNames() []string {
	names := make([]string, len(d.Steps))
	for i, s := range d.Steps {
		names[i] = s.Name
	}
	return names
}

// LoadError reports a definition that could not be loaded. It matches
// [apperr.ErrNotFound] when the file is absent and otherwise wraps the
// decode or validation error.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("workflow: %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is reports a missing file as [apperr.ErrNotFound].
func (e *LoadError) Is(target error) bool {
	return target == apperr.ErrNotFound && errors.Is(e.Err, fs.ErrNotExist)
}

func decodeDefinition(data []byte) (Definition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Definition{}, fmt.Errorf("%w: definition is empty", apperr.ErrValidation)
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("%w: decode definition: %v", apperr.ErrValidation, err)
	}
	def.Name = strings.TrimSpace(def.Name)
	return def, nil
}

// ParseDefinition decodes and validates a YAML or JSON definition.
func ParseDefinition(data []byte) (Definition, error) {
	def, err := decodeDefinition(data)
	if err != nil {
		return Definition{}, err
	}
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// LoadDefinition reads a definition file. A definition without a name takes
// the file's base name without extension. Failures return a *[LoadError].
func LoadDefinition(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, &LoadError{Path: path, Err: err}
	}
	def, err := decodeDefinition(data)
	if err != nil {
		return Definition{}, &LoadError{Path: path, Err: err}
	}
	if def.Name == "" {
		def.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := def.Validate(); err != nil {
		return Definition{}, &LoadError{Path: path, Err: err}
	}
	return def, nil
}

// DefinitionPath finds <dir>/<name> with a .yaml, .yml or .json extension.
func DefinitionPath(dir, name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: invalid workflow name %q", apperr.ErrValidation, name)
	}
	for _, ext := range definitionExts {
		p := filepath.Join(dir, name+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", &LoadError{
		Path: filepath.Join(dir, name+definitionExts[0]),
		Err:  fmt.Errorf("workflow %s: %w", name, fs.ErrNotExist),
	}
}

// DefinitionFile pairs a parsed definition with its source path.
type DefinitionFile struct {
	Definition Definition
	Path       string
}

// ListDefinitions loads every definition in dir, sorted by path. A missing
// directory has no definitions.
func ListDefinitions(dir string) ([]DefinitionFile, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("workflow: read %s: %w", dir, err)
	}

	var defs []DefinitionFile
	for _, entry := range entries {
		if entry.IsDir() || !isDefinitionFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		def, err := LoadDefinition(path)
		if err != nil {
			return nil, err
		}
		defs = append(defs, DefinitionFile{Definition: def, Path: path})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Path < defs[j].Path })
	return defs, nil
}

func isDefinitionFile(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range definitionExts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
