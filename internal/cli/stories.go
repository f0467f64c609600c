package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"storyflow/internal/apperr"
	"storyflow/internal/ledger"
)

func newStatusCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show stories grouped by state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Stories.Load(); err != nil {
				return app.fail(err)
			}
			for _, e := range app.Stories.ParseErrors() {
				app.Logger.Warn("skipped ledger line", slog.String("error", e))
			}
			board := app.Stories.GetStatus()
			if app.JSON {
				return app.Printer.JSON(board)
			}
			app.Printer.Board(board)
			return nil
		},
	}
}

func newValidateCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check WIP limits and story consistency",
		Long: `Check the ledger for problems:
  - more than one story in TODO or IN PROGRESS
  - checked-off stories outside DONE, or DONE stories not checked off
  - malformed lines

Problems are reported, never fixed. The command exits with code 2 when
any are found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Stories.Load(); err != nil {
				return app.fail(err)
			}
			report := app.Stories.Validate()
			if app.JSON {
				if err := app.Printer.JSON(report); err != nil {
					return err
				}
			} else {
				app.Printer.ValidationReport(report)
			}
			if !report.Valid {
				return NewExitError(ExitInvalid)
			}
			return nil
		},
	}
}

func newTransitionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "transition <story-id> <state>",
		Short: "Move a story to a new state",
		Long: `Move a story to a new state and rewrite the ledger.

Legal moves:
  BACKLOG -> TODO
  TODO -> IN_PROGRESS, TODO -> BACKLOG
  IN_PROGRESS -> DONE, IN_PROGRESS -> TODO

States are case-insensitive; "in progress", "in-progress" and
"IN_PROGRESS" are the same.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := ledger.ParseState(args[1])
			if err != nil {
				return app.fail(fmt.Errorf("%w: %v", apperr.ErrValidation, err))
			}
			if err := app.Stories.Load(); err != nil {
				return app.fail(err)
			}
			id := ledger.CanonicalID(args[0])
			if err := app.Stories.Transition(id, to); err != nil {
				return app.fail(err)
			}
			if app.JSON {
				return app.Printer.JSON(map[string]string{"story": id, "state": string(to)})
			}
			app.Printer.Success(fmt.Sprintf("%s -> %s", id, to.Heading()))
			return nil
		},
	}
}
