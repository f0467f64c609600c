package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"storyflow/internal/apperr"
	"storyflow/internal/checkpoint"
)

// ErrUnknownAction is returned when a step names an action that is not
// registered. It matches [apperr.ErrValidation].
var ErrUnknownAction = fmt.Errorf("%w: unknown action", apperr.ErrValidation)

// Outcome is what a successful action hands back to the executor.
type Outcome struct {
	// Variables are merged into the run's variables.
	Variables map[string]any

	// Message is a short human-readable summary.
	Message string
}

// StepContext is the input to an [Action].
type StepContext struct {
	// Workflow is the name of the running workflow.
	Workflow string

	// RunID identifies the run.
	RunID string

	// Step is the step being executed, with ${var} references in its
	// parameters already substituted.
	Step Step

	// Index is the 0-based step index.
	Index int

	// Variables is a copy of the run's variables. Changes are discarded;
	// return them in [Outcome.Variables] instead.
	Variables map[string]any

	// Depth is the child-workflow nesting depth, 0 for a top-level run.
	Depth int

	Logger *slog.Logger

	recorder childRecorder
	lineage  []string
}

// childRecorder persists child workflow references on the parent run.
type childRecorder interface {
	recordChild(ctx context.Context, ref checkpoint.ChildRef) error
}

// RecordChild records (or updates, matched by path) a child workflow on the
// running parent and persists the parent's checkpoint.
func (sc StepContext) RecordChild(ctx context.Context, ref checkpoint.ChildRef) error {
	if sc.recorder == nil {
		return nil
	}
	return sc.recorder.recordChild(ctx, ref)
}

// Param returns a step parameter.
func (sc StepContext) Param(name string) (any, bool) {
	v, ok := sc.Step.Parameters[name]
	return v, ok
}

// StringParam returns a step parameter formatted as a string, or "".
func (sc StepContext) StringParam(name string) string {
	v, ok := sc.Step.Parameters[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Action performs one kind of step. A returned error fails the step; the
// run stays at that step so a retry re-attempts it.
type Action interface {
	Run(ctx context.Context, sc StepContext) (Outcome, error)
}

// ActionFunc adapts a function to [Action].
type ActionFunc func(ctx context.Context, sc StepContext) (Outcome, error)

// Run implements [Action].
func (f ActionFunc) Run(ctx context.Context, sc StepContext) (Outcome, error) {
	return f(ctx, sc)
}

// Registry maps action names to actions. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
}

// NewRegistry creates an empty action registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]Action)}
}

// Register adds an action. Names must be unique and non-empty.
func (r *Registry) Register(name string, a Action) error {
	if name == "" || a == nil {
		return fmt.Errorf("%w: action name and implementation are required", apperr.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actions[name]; exists {
		return fmt.Errorf("%w: action %q already registered", apperr.ErrValidation, name)
	}
	r.actions[name] = a
	return nil
}

// Lookup returns the action registered under name, or an error wrapping
// [ErrUnknownAction].
func (r *Registry) Lookup(name string) (Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.actions[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownAction, name)
	}
	return a, nil
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
