package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"storyflow/internal/apperr"
	"storyflow/internal/checkpoint"
)

// MaxChildDepth bounds how deeply workflows may start child workflows.
const MaxChildDepth = 5

// StoryVariable is the run variable holding the story a lifecycle run
// works on.
const StoryVariable = "story"

// Runner resolves workflow definitions from a directory and builds
// executors that share one checkpoint store and action registry.
//
// Runner also implements the lifecycle's workflow runner and provides the
// built-in "workflow" action that runs a child workflow.
type Runner struct {
	dir      string
	store    checkpoint.Store
	registry *Registry
	logger   *slog.Logger
	opts     []Option
}

// NewRunner creates a Runner for the definitions in dir. The options are
// applied to every executor it builds.
func NewRunner(dir string, store checkpoint.Store, registry *Registry, logger *slog.Logger, opts ...Option) *Runner {
	return &Runner{
		dir:      dir,
		store:    store,
		registry: registry,
		logger:   logger,
		opts:     opts,
	}
}

// Dir returns the definitions directory.
func (r *Runner) Dir() string {
	return r.dir
}

// Store returns the checkpoint store.
func (r *Runner) Store() checkpoint.Store {
	return r.store
}

// Resolve returns the definition file for ref. A ref with a path separator
// or a definition extension is a file path, tried as given and then relative
// to the definitions directory. Anything else is a workflow name.
func (r *Runner) Resolve(ref string) (string, error) {
	if !strings.ContainsAny(ref, `/\`) && !isDefinitionFile(ref) {
		return DefinitionPath(r.dir, ref)
	}
	if _, err := os.Stat(ref); err == nil || filepath.IsAbs(ref) {
		return ref, nil
	}
	return filepath.Join(r.dir, ref), nil
}

// Load resolves and loads a definition.
func (r *Runner) Load(ref string) (Definition, string, error) {
	path, err := r.Resolve(ref)
	if err != nil {
		return Definition{}, "", err
	}
	def, err := LoadDefinition(path)
	if err != nil {
		return Definition{}, "", err
	}
	return def, path, nil
}

// Executor loads the definition for ref and returns an executor for it.
func (r *Runner) Executor(ref string, opts ...Option) (*Executor, error) {
	def, _, err := r.Load(ref)
	if err != nil {
		return nil, err
	}
	return r.newExecutor(def, opts...), nil
}

func (r *Runner) newExecutor(def Definition, opts ...Option) *Executor {
	all := make([]Option, 0, len(r.opts)+len(opts)+1)
	all = append(all, WithLogger(r.logger))
	all = append(all, r.opts...)
	all = append(all, opts...)
	return NewExecutor(def, r.store, r.registry, all...)
}

// RunWorkflow runs a workflow for a story to completion.
//
// A completed run from an earlier invocation is discarded and the workflow
// starts again. An unfinished run for the same story is resumed. An
// unfinished run for a different story is an error; reset it first.
func (r *Runner) RunWorkflow(ctx context.Context, ref, storyID string) error {
	exec, err := r.Executor(ref, WithVariables(map[string]any{StoryVariable: storyID}))
	if err != nil {
		return err
	}
	name := exec.Definition().Name

	run, err := exec.Initialize(ctx)
	if err != nil {
		return err
	}

	owner, _ := run.Variables[StoryVariable].(string)
	switch {
	case run.Completed, PhaseOf(run) == PhaseNotStarted && owner != storyID:
		if err := exec.Reset(ctx); err != nil {
			return err
		}
		if _, err := exec.Initialize(ctx); err != nil {
			return err
		}
	case owner != storyID:
		return fmt.Errorf("%w: workflow %s has an unfinished run for story %q, reset it first",
			apperr.ErrValidation, name, owner)
	}

	res, err := exec.RunToCompletion(ctx)
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("workflow %s: %s", name, res.Message)
	}
	return nil
}

// ChildAction returns the action that runs a child workflow.
//
// Parameters:
//   - path or name: the child definition (see [Runner.Resolve])
//   - variables: extra variables for the child run
//   - output: when set, the child's final variables are stored in the
//     parent under this name
//
// The child starts with a copy of the parent's variables. A child whose
// previous run completed is started again; an unfinished child resumes.
func (r *Runner) ChildAction() Action {
	return ActionFunc(func(ctx context.Context, sc StepContext) (Outcome, error) {
		ref := sc.StringParam("path")
		if ref == "" {
			ref = sc.StringParam("name")
		}
		if ref == "" {
			return Outcome{}, fmt.Errorf("%w: workflow step needs a path or name parameter", apperr.ErrValidation)
		}

		if sc.Depth+1 > MaxChildDepth {
			return Outcome{}, fmt.Errorf("%w: child workflow %s exceeds maximum depth %d",
				apperr.ErrValidation, ref, MaxChildDepth)
		}

		def, path, err := r.Load(ref)
		if err != nil {
			return Outcome{}, err
		}
		if slices.Contains(sc.lineage, def.Name) {
			return Outcome{}, fmt.Errorf("%w: workflow %s is already running in this chain (%s)",
				apperr.ErrValidation, def.Name, strings.Join(sc.lineage, " -> "))
		}

		vars := checkpoint.CloneVariables(sc.Variables)
		if vars == nil {
			vars = make(map[string]any)
		}
		if extra, ok := sc.Step.Parameters["variables"].(map[string]any); ok {
			for k, v := range extra {
				vars[k] = v
			}
		}

		child := r.newExecutor(def,
			WithParent(sc.Workflow),
			withLineage(sc.lineage),
			WithVariables(vars))

		run, err := child.Initialize(ctx)
		if err != nil {
			return Outcome{}, err
		}
		if run.Completed {
			if err := child.Reset(ctx); err != nil {
				return Outcome{}, err
			}
			if run, err = child.Initialize(ctx); err != nil {
				return Outcome{}, err
			}
		}

		childRef := checkpoint.ChildRef{WorkflowPath: path, Status: checkpoint.StatusInProgress, StartedAt: run.StartedAt}
		if err := sc.RecordChild(ctx, childRef); err != nil {
			return Outcome{}, err
		}

		res, runErr := child.RunToCompletion(ctx)

		childRef.Status = checkpoint.StatusCompleted
		if runErr != nil || !res.Success {
			childRef.Status = checkpoint.StatusFailed
		}
		if err := sc.RecordChild(context.WithoutCancel(ctx), childRef); err != nil {
			return Outcome{}, err
		}

		if runErr != nil {
			return Outcome{}, fmt.Errorf("child workflow %s: %w", def.Name, runErr)
		}
		if !res.Success {
			return Outcome{}, fmt.Errorf("child workflow %s: %s", def.Name, res.Message)
		}

		out := Outcome{Message: fmt.Sprintf("child workflow %s completed", def.Name)}
		if name := sc.StringParam("output"); name != "" {
			out.Variables = map[string]any{name: res.State.Variables}
		}
		return out, nil
	})
}
