// Package lifecycle orchestrates story lifecycle execution from the current
// state to DONE.
//
// The lifecycle package provides [Executor] which runs a story through its
// remaining lifecycle workflows (plan->start->finish by default) based on its
// current state. Each step moves the story to the step's next state after
// its workflow completes.
//
// Key concepts:
//   - Lifecycle steps are determined by [router.Router.GetLifecycle] from the current state
//   - Each step runs a workflow then transitions the story via [StateWriter]
//   - Progress can be tracked via [ProgressCallback]
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"storyflow/internal/ledger"
	"storyflow/internal/router"
)

// WorkflowRunner is the interface for executing individual workflows.
//
// RunWorkflow runs a workflow, by name or definition path, for a story to
// completion. A non-nil error means the workflow did not complete.
// The [workflow.Runner] type implements this interface.
type WorkflowRunner interface {
	RunWorkflow(ctx context.Context, workflow, storyID string) error
}

// StateReader is the interface for looking up a story's lifecycle state.
//
// StoryState returns an error if the story cannot be found or the ledger
// cannot be read.
type StateReader interface {
	StoryState(id string) (ledger.State, error)
}

// StateWriter is the interface for moving a story to its next state.
//
// Transition rejects illegal moves and persists the ledger on success.
type StateWriter interface {
	Transition(id string, to ledger.State) error
}

// ProgressCallback is invoked before each workflow step begins execution.
//
// The callback receives stepIndex (1-based), totalSteps count, and the workflow name.
type ProgressCallback func(stepIndex, totalSteps int, workflow string)

// Executor orchestrates the complete story lifecycle from the current state
// to DONE.
//
// Executor uses dependency injection for testability: [WorkflowRunner] runs
// workflows, [StateReader] looks up the current state, and [StateWriter]
// applies transitions. Use [NewExecutor] to create an instance and
// [Executor.Execute] to run the lifecycle.
//
// By default, the executor uses the hardcoded router from [router.NewRouter].
// Call [Executor.SetRouter] to use a manifest-driven router instead.
type Executor struct {
	runner           WorkflowRunner
	stateReader      StateReader
	stateWriter      StateWriter
	progressCallback ProgressCallback
	router           *router.Router
	logger           *slog.Logger
}

// NewExecutor creates a new Executor with the required dependencies.
func NewExecutor(runner WorkflowRunner, reader StateReader, writer StateWriter) *Executor {
	return &Executor{
		runner:      runner,
		stateReader: reader,
		stateWriter: writer,
		router:      router.NewRouter(),
		logger:      slog.Default(),
	}
}

// SetRouter configures the [router.Router] used for state-to-workflow
// mapping. Passing nil restores the default routing.
func (e *Executor) SetRouter(r *router.Router) {
	if r == nil {
		r = router.NewRouter()
	}
	e.router = r
}

// SetProgressCallback configures an optional progress callback.
func (e *Executor) SetProgressCallback(cb ProgressCallback) {
	e.progressCallback = cb
}

// SetLogger sets the executor's logger.
func (e *Executor) SetLogger(logger *slog.Logger) {
	e.logger = logger
}

// Execute runs the story lifecycle from its current state to DONE.
//
// Execute looks up the story's state, determines the remaining steps via the
// router, and runs each workflow in sequence. After each workflow the story
// is transitioned to the step's next state, unless the workflow already
// moved it there.
//
// Execute is fail-fast: it stops on the first error. For stories already
// DONE it returns [router.ErrStoryComplete].
func (e *Executor) Execute(ctx context.Context, storyID string) error {
	steps, err := e.GetSteps(storyID)
	if err != nil {
		return err
	}

	total := len(steps)
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.progressCallback != nil {
			e.progressCallback(i+1, total, step.Workflow)
		}

		ref := step.Workflow
		if step.Definition != "" {
			ref = step.Definition
		}
		if err := e.runner.RunWorkflow(ctx, ref, storyID); err != nil {
			return fmt.Errorf("workflow %s failed: %w", step.Workflow, err)
		}

		current, err := e.stateReader.StoryState(storyID)
		if err != nil {
			return err
		}
		if current == step.NextState {
			continue
		}
		if err := e.stateWriter.Transition(storyID, step.NextState); err != nil {
			return err
		}

		e.logger.Info("lifecycle step completed",
			slog.String("story", storyID),
			slog.String("workflow", step.Workflow),
			slog.String("state", string(step.NextState)))
	}

	return nil
}

// GetSteps returns the remaining lifecycle steps for a story without
// executing them. It provides dry-run preview for the advance command.
//
// For stories already DONE it returns [router.ErrStoryComplete].
func (e *Executor) GetSteps(storyID string) ([]router.LifecycleStep, error) {
	current, err := e.stateReader.StoryState(storyID)
	if err != nil {
		return nil, err
	}
	return e.router.GetLifecycle(current)
}
