package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"storyflow/internal/actions"
	"storyflow/internal/checkpoint"
	"storyflow/internal/config"
	"storyflow/internal/logging"
	"storyflow/internal/output"
	"storyflow/internal/status"
	"storyflow/internal/workflow"
)

// MockWorkflowRunner is a lifecycle workflow runner for testing.
type MockWorkflowRunner struct {
	// ExecutedWorkflows records all workflow executions in order.
	ExecutedWorkflows []string
	// FailOnWorkflow specifies which workflow should fail.
	FailOnWorkflow string
}

func (m *MockWorkflowRunner) RunWorkflow(ctx context.Context, workflowName, storyID string) error {
	m.ExecutedWorkflows = append(m.ExecutedWorkflows, workflowName)
	if m.FailOnWorkflow == workflowName {
		return errWorkflowFailed
	}
	return nil
}

type testError string

func (e testError) Error() string { return string(e) }

const errWorkflowFailed = testError("workflow failed")

// testEnv is a fully wired App over temporary files.
type testEnv struct {
	App        *App
	Out        *bytes.Buffer
	Dir        string
	LedgerPath string
	Store      checkpoint.Store
	Lifecycle  *MockWorkflowRunner
}

// newTestEnv wires an App around a ledger file and a workflows directory in
// a temp dir. Lifecycle workflows go to a mock runner.
func newTestEnv(t *testing.T, ledgerContent string) *testEnv {
	t.Helper()

	dir := t.TempDir()
	ledgerPath := filepath.Join(dir, "STORIES.md")
	require.NoError(t, os.WriteFile(ledgerPath, []byte(ledgerContent), 0644))
	wfDir := filepath.Join(dir, "workflows")
	require.NoError(t, os.MkdirAll(wfDir, 0755))

	cfg := config.DefaultConfig()
	cfg.Ledger.Path = ledgerPath
	cfg.Workflows.Dir = wfDir
	cfg.Checkpoint.Dir = filepath.Join(dir, "state")

	logger := logging.Discard()
	machine := status.NewMachine(ledgerPath, status.WithLogger(logger))
	store := checkpoint.NewFileStore(cfg.Checkpoint.Dir)
	registry := workflow.NewRegistry()
	runner := workflow.NewRunner(wfDir, store, registry, logger)
	require.NoError(t, actions.Register(registry, actions.Deps{Stories: machine, Runner: runner}))

	out := &bytes.Buffer{}
	printer := output.NewPrinterWithWriter(out)
	printer.SetColor(false)

	mock := &MockWorkflowRunner{}
	return &testEnv{
		App: &App{
			Config:    cfg,
			Logger:    logger,
			Printer:   printer,
			Stories:   machine,
			Runner:    runner,
			Lifecycle: mock,
		},
		Out:        out,
		Dir:        dir,
		LedgerPath: ledgerPath,
		Store:      store,
		Lifecycle:  mock,
	}
}

// writeWorkflow writes a definition into the workflows directory.
func (e *testEnv) writeWorkflow(t *testing.T, name, content string) {
	t.Helper()
	path := filepath.Join(e.App.Runner.Dir(), name+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// ledger returns the current ledger file content.
func (e *testEnv) ledger(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(e.LedgerPath)
	require.NoError(t, err)
	return string(data)
}

// execute runs the root command with args. Output from earlier calls is
// discarded.
func (e *testEnv) execute(args ...string) ExecuteResult {
	e.Out.Reset()
	rootCmd := NewRootCommand(e.App)
	rootCmd.SetOut(e.Out)
	rootCmd.SetErr(e.Out)
	rootCmd.SetArgs(args)
	return run(context.Background(), rootCmd)
}
