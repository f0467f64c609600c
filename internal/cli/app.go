package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"storyflow/internal/actions"
	"storyflow/internal/checkpoint"
	"storyflow/internal/config"
	"storyflow/internal/ledger"
	"storyflow/internal/lifecycle"
	"storyflow/internal/logging"
	"storyflow/internal/manifest"
	"storyflow/internal/output"
	"storyflow/internal/router"
	"storyflow/internal/status"
	"storyflow/internal/workflow"
)

// Stories is the story state machine the commands drive.
// The [status.Machine] type implements this interface.
type Stories interface {
	Load() error
	GetStatus() status.Board
	ParseErrors() []string
	Validate() status.ValidationReport
	StoryState(id string) (ledger.State, error)
	Transition(id string, to ledger.State) error
}

// App holds the dependencies shared by every command. It is built once per
// invocation by [NewApp] and passed down explicitly; tests assemble one by
// hand with fakes.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Printer *output.Printer

	// Stories is the story state machine for the configured ledger.
	Stories Stories

	// Runner resolves definitions and builds workflow executors.
	Runner *workflow.Runner

	// Lifecycle runs lifecycle workflows for the advance command. It
	// defaults to Runner.
	Lifecycle lifecycle.WorkflowRunner

	// Router maps story states to lifecycle workflows. Nil means the
	// default routing.
	Router *router.Router

	// JSON switches command output to JSON. Set by the --json flag.
	JSON bool

	closers []io.Closer
}

// NewApp wires the production dependencies from cfg.
func NewApp(cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("invalid log config: %w", err)
	}

	printer := output.NewPrinter()
	printer.SetColor(cfg.Output.Color)

	machine := status.NewMachine(status.ResolvePath("", cfg.Ledger.Path), status.WithLogger(logger))

	store, closer, err := checkpoint.Open(cfg.Checkpoint)
	if err != nil {
		return nil, err
	}

	registry := workflow.NewRegistry()
	runner := workflow.NewRunner(cfg.Workflows.Dir, store, registry, logger,
		workflow.WithVariables(cfg.Workflows.Variables))
	if err := actions.Register(registry, actions.Deps{Stories: machine, Runner: runner}); err != nil {
		closer.Close()
		return nil, err
	}

	wfRouter, err := loadRouter(cfg.Workflows.Manifest)
	if err != nil {
		closer.Close()
		return nil, err
	}

	return &App{
		Config:    cfg,
		Logger:    logger,
		Printer:   printer,
		Stories:   machine,
		Runner:    runner,
		Lifecycle: runner,
		Router:    wfRouter,
		closers:   []io.Closer{closer},
	}, nil
}

// loadRouter builds a router from the lifecycle manifest, or the default
// router when there is no manifest file.
func loadRouter(path string) (*router.Router, error) {
	if path == "" {
		return router.NewRouter(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return router.NewRouter(), nil
	}
	m, err := manifest.ReadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("lifecycle manifest %s: %w", path, err)
	}
	return router.NewRouterFromManifest(m), nil
}

// Close releases resources held by the app, such as the checkpoint database.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
