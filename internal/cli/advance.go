package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"storyflow/internal/ledger"
	"storyflow/internal/lifecycle"
	"storyflow/internal/router"
)

func newAdvanceCommand(app *App) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "advance <story-id> [story-id...]",
		Short: "Run lifecycle workflows until stories are DONE",
		Long: `Run the lifecycle workflows for each story from its current state to DONE.

Default lifecycle:
  BACKLOG     -> plan-story   -> TODO
  TODO        -> start-story  -> IN PROGRESS
  IN PROGRESS -> finish-story -> DONE

A lifecycle manifest (workflows.manifest) replaces the defaults. Stories are
processed in order and processing stops at the first failure. Stories that
are already DONE are skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Stories.Load(); err != nil {
				return app.fail(err)
			}

			exec := lifecycle.NewExecutor(app.Lifecycle, app.Stories, app.Stories)
			exec.SetRouter(app.Router)
			exec.SetLogger(app.Logger)
			if !app.JSON {
				exec.SetProgressCallback(func(index, total int, workflow string) {
					app.Printer.Progress(index, total, workflow)
				})
			}

			if dryRun {
				return app.planAdvance(exec, args)
			}

			for _, arg := range args {
				id := ledger.CanonicalID(arg)
				err := exec.Execute(cmd.Context(), id)
				if errors.Is(err, router.ErrStoryComplete) {
					app.Printer.Info(fmt.Sprintf("%s is already done", id))
					continue
				}
				if err != nil {
					return app.fail(fmt.Errorf("story %s: %w", id, err))
				}
				app.Printer.Success(fmt.Sprintf("%s is done", id))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the workflows that would run without running them")
	return cmd
}

func (a *App) planAdvance(exec *lifecycle.Executor, args []string) error {
	plan := make(map[string][]router.LifecycleStep, len(args))
	for _, arg := range args {
		id := ledger.CanonicalID(arg)
		steps, err := exec.GetSteps(id)
		if err != nil && !errors.Is(err, router.ErrStoryComplete) {
			return a.fail(err)
		}
		if a.JSON {
			plan[id] = steps
			continue
		}
		if len(steps) == 0 {
			a.Printer.Info(fmt.Sprintf("%s is already done", id))
			continue
		}
		a.Printer.LifecycleSteps(id, steps)
	}
	if a.JSON {
		return a.Printer.JSON(plan)
	}
	return nil
}
