// Package cli provides the storyflow command-line interface.
//
// Commands are built by [NewRootCommand] around an [App] dependency
// container. [Execute] loads configuration, wires the production [App] and
// exits with the command's exit code.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"storyflow/internal/config"
)

// ExecuteResult is the outcome of a CLI invocation.
type ExecuteResult struct {
	ExitCode int
	Err      error
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "storyflow",
		Short: "Track stories through their lifecycle and run resumable workflows",
		Long: `storyflow keeps a Markdown story ledger and runs checkpointed workflows.

Stories move BACKLOG -> TODO -> IN PROGRESS -> DONE (and back one step from
TODO or IN PROGRESS). Workflows run one step at a time; progress is saved
after every step, so an interrupted or failed run resumes where it stopped.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&app.JSON, "json", false, "print JSON instead of text")

	root.AddCommand(
		newStatusCommand(app),
		newValidateCommand(app),
		newTransitionCommand(app),
		newWorkflowsCommand(app),
		newRunCommand(app),
		newStepCommand(app),
		newResumeCommand(app),
		newResetCommand(app),
		newShowCommand(app),
		newAdvanceCommand(app),
	)
	return root
}

// RunWithConfig wires an [App] from cfg and runs the command line in os.Args.
func RunWithConfig(cfg *config.Config) ExecuteResult {
	app, err := NewApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExecuteResult{ExitCode: exitCodeFor(err), Err: err}
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, NewRootCommand(app))
}

func run(ctx context.Context, cmd *cobra.Command) ExecuteResult {
	if err := cmd.ExecuteContext(ctx); err != nil {
		if code, ok := IsExitError(err); ok {
			return ExecuteResult{ExitCode: code, Err: err}
		}
		// Usage errors from cobra are not printed by the commands.
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return ExecuteResult{ExitCode: ExitFailure, Err: err}
	}
	return ExecuteResult{}
}

// Execute loads configuration, runs the CLI and exits the process.
func Execute() {
	cfg, err := config.NewLoader().Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitFailure)
	}
	os.Exit(RunWithConfig(cfg).ExitCode)
}
