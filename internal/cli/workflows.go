package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"storyflow/internal/apperr"
	"storyflow/internal/checkpoint"
	"storyflow/internal/workflow"
)

func newWorkflowsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "workflows",
		Short: "List workflow definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := workflow.ListDefinitions(app.Runner.Dir())
			if err != nil {
				return app.fail(err)
			}
			if !app.JSON {
				app.Printer.Workflows(defs)
				return nil
			}

			type entry struct {
				Name        string         `json:"name"`
				Description string         `json:"description,omitempty"`
				Path        string         `json:"path"`
				Steps       []string       `json:"steps"`
				Phase       workflow.Phase `json:"phase"`
			}
			entries := make([]entry, 0, len(defs))
			for _, d := range defs {
				run, err := readRun(cmd.Context(), app.Runner.Store(), d.Definition.Name)
				if err != nil {
					return app.fail(err)
				}
				entries = append(entries, entry{
					Name:        d.Definition.Name,
					Description: d.Definition.Description,
					Path:        d.Path,
					Steps:       d.Definition.StepNames(),
					Phase:       workflow.PhaseOf(run),
				})
			}
			return app.Printer.JSON(entries)
		},
	}
}

// readRun returns the stored run for a workflow, or nil when there is none.
func readRun(ctx context.Context, store checkpoint.Store, name string) (*checkpoint.Run, error) {
	run, err := store.Read(ctx, name)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return nil, nil
	}
	return run, err
}

// executorOptions are the executor options every command uses.
func (a *App) executorOptions(extra ...workflow.Option) []workflow.Option {
	opts := extra
	if !a.JSON {
		opts = append(opts, workflow.WithProgressCallback(func(index, total int, step workflow.Step) {
			a.Printer.Progress(index, total, step.Name)
		}))
	}
	return opts
}

// report prints a step result and converts a failed step to an exit error.
func (a *App) report(res workflow.StepResult) error {
	if a.JSON {
		if err := a.Printer.JSON(res); err != nil {
			return err
		}
	} else {
		a.Printer.StepResult(res)
	}
	if !res.Success {
		return NewExitError(ExitFailure)
	}
	return nil
}

func newRunCommand(app *App) *cobra.Command {
	var (
		story   string
		vars    map[string]string
		restart bool
	)

	cmd := &cobra.Command{
		Use:   "run <workflow>",
		Short: "Start a workflow and run it to completion",
		Long: `Start a fresh run of a workflow and execute every step.

The workflow is a name in the workflows directory or a path to a definition
file. A previous completed run is replaced. An unfinished run must be
resumed or reset first, unless --restart is given.

Variables given with --var and --story are available to steps as ${name}.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			seed := make(map[string]any, len(vars)+1)
			for k, v := range vars {
				seed[k] = v
			}
			if story != "" {
				seed[workflow.StoryVariable] = story
			}

			exec, err := app.Runner.Executor(args[0], app.executorOptions(workflow.WithVariables(seed))...)
			if err != nil {
				return app.fail(err)
			}

			run, err := exec.Initialize(ctx)
			if err != nil {
				return app.fail(err)
			}
			phase := workflow.PhaseOf(run)
			if (phase == workflow.PhaseRunning || phase == workflow.PhaseFailed) && !restart {
				return app.fail(fmt.Errorf("%w: workflow %s has an unfinished run at step %d of %d; use resume, reset or --restart",
					apperr.ErrValidation, run.Workflow, run.CurrentStep+1, run.TotalSteps))
			}
			// Start from a clean checkpoint so the seeded variables apply.
			if err := exec.Reset(ctx); err != nil {
				return app.fail(err)
			}
			if _, err := exec.Initialize(ctx); err != nil {
				return app.fail(err)
			}

			res, err := exec.RunToCompletion(ctx)
			if err != nil {
				return app.fail(err)
			}
			return app.report(res)
		},
	}

	cmd.Flags().StringVar(&story, "story", "", "story the run works on (sets ${story})")
	cmd.Flags().StringToStringVar(&vars, "var", nil, "initial variable as key=value (repeatable)")
	cmd.Flags().BoolVar(&restart, "restart", false, "discard an unfinished run and start over")
	return cmd
}

func newStepCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "step <workflow>",
		Short: "Execute the next step of a workflow",
		Long: `Execute exactly one step of a workflow and save the checkpoint.

A run is started at step 1 if there is none. Calling step on a completed
run does nothing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exec, err := app.Runner.Executor(args[0], app.executorOptions()...)
			if err != nil {
				return app.fail(err)
			}
			res, err := exec.Resume(cmd.Context())
			if err != nil {
				return app.fail(err)
			}
			return app.report(res)
		},
	}
}

func newResumeCommand(app *App) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "resume [workflow]",
		Short: "Continue a paused or failed workflow",
		Long: `Continue a workflow from its checkpoint and run it to completion.

A failed step is retried. With --all every unfinished top-level run in the
checkpoint store is resumed in name order; child runs are resumed by their
parents.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !all {
				return app.resume(ctx, args[0])
			}

			names, err := app.Runner.Store().List(ctx)
			if err != nil {
				return app.fail(err)
			}
			var failed []string
			for _, name := range names {
				run, err := readRun(ctx, app.Runner.Store(), name)
				if err != nil {
					return app.fail(err)
				}
				if run == nil || run.Completed || run.ParentWorkflow != "" {
					continue
				}
				if err := app.resume(ctx, name); err != nil {
					failed = append(failed, name)
				}
			}
			if len(failed) > 0 {
				return app.fail(fmt.Errorf("%d workflow(s) did not complete: %v", len(failed), failed))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "resume every unfinished workflow")
	return cmd
}

func (a *App) resume(ctx context.Context, ref string) error {
	exec, err := a.Runner.Executor(ref, a.executorOptions()...)
	if err != nil {
		return a.fail(err)
	}
	res, err := exec.Resume(ctx)
	if err == nil && res.Success && !res.State.Completed {
		res, err = exec.RunToCompletion(ctx)
	}
	if err != nil {
		return a.fail(err)
	}
	return a.report(res)
}

func newResetCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <workflow>",
		Short: "Delete a workflow's checkpoint",
		Long: `Delete a workflow's checkpoint so the next run starts at step 1.

Resetting a workflow without a checkpoint is not an error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := app.workflowName(args[0])
			if err != nil {
				return app.fail(err)
			}
			if err := app.Runner.Store().Delete(cmd.Context(), name); err != nil {
				return app.fail(err)
			}
			app.Logger.Info("workflow run reset", slog.String("workflow", name))
			if app.JSON {
				return app.Printer.JSON(map[string]string{"workflow": name, "status": "reset"})
			}
			app.Printer.Success(fmt.Sprintf("reset %s", name))
			return nil
		},
	}
}

func newShowCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <workflow>",
		Short: "Show a workflow's checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := app.workflowName(args[0])
			if err != nil {
				return app.fail(err)
			}
			run, err := app.Runner.Store().Read(cmd.Context(), name)
			if err != nil {
				return app.fail(fmt.Errorf("workflow %s has no run: %w", name, err))
			}
			if app.JSON {
				return app.Printer.JSON(run)
			}
			app.Printer.Run(run)
			return nil
		},
	}
}

// workflowName maps a workflow reference to its checkpoint name. A reference
// whose definition is gone is used as the name, so orphaned checkpoints can
// still be inspected and reset.
func (a *App) workflowName(ref string) (string, error) {
	def, _, err := a.Runner.Load(ref)
	switch {
	case err == nil:
		return def.Name, nil
	case errors.Is(err, apperr.ErrNotFound):
		return ref, nil
	}
	return "", err
}
