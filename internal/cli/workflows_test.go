package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyflow/internal/checkpoint"
	"storyflow/internal/ledger"
	"storyflow/internal/workflow"
)

const greetWorkflow = `name: greet
description: Say hello
steps:
  - name: remember
    action: set
    parameters:
      greeting: hello ${who}
  - name: announce
    action: log
    parameters:
      message: ${greeting}
`

const brokenWorkflow = `name: broken
steps:
  - name: first
    action: set
    parameters:
      seen: true
  - name: second
    action: fail
    parameters:
      message: not yet
  - name: third
    action: log
    parameters:
      message: done
`

const fixedWorkflow = `name: broken
steps:
  - name: first
    action: set
    parameters:
      seen: true
  - name: second
    action: log
    parameters:
      message: fixed
  - name: third
    action: log
    parameters:
      message: done
`

func (e *testEnv) checkpointOf(t *testing.T, name string) *checkpoint.Run {
	t.Helper()
	run, err := e.Store.Read(context.Background(), name)
	require.NoError(t, err)
	return run
}

func TestWorkflowsCommand(t *testing.T) {
	env := newTestEnv(t, sampleLedger)

	res := env.execute("workflows")
	require.NoError(t, res.Err)
	assert.Equal(t, "no workflow definitions found\n", env.Out.String())

	env.writeWorkflow(t, "greet", greetWorkflow)
	res = env.execute("workflows")
	require.NoError(t, res.Err)
	assert.Contains(t, env.Out.String(), "greet (2 steps)\n  Say hello\n")
}

func TestWorkflowsCommand_JSON(t *testing.T) {
	env := newTestEnv(t, sampleLedger)
	env.writeWorkflow(t, "greet", greetWorkflow)
	require.NoError(t, env.execute("run", "greet").Err)

	res := env.execute("workflows", "--json")
	require.NoError(t, res.Err)

	var got []struct {
		Name  string         `json:"name"`
		Steps []string       `json:"steps"`
		Phase workflow.Phase `json:"phase"`
	}
	require.NoError(t, json.Unmarshal(env.Out.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "greet", got[0].Name)
	assert.Equal(t, []string{"remember", "announce"}, got[0].Steps)
	assert.Equal(t, workflow.PhaseCompleted, got[0].Phase)
}

func TestRunCommand(t *testing.T) {
	env := newTestEnv(t, sampleLedger)
	env.writeWorkflow(t, "greet", greetWorkflow)

	res := env.execute("run", "greet", "--var", "who=world", "--story", "STORY-1")

	require.NoError(t, res.Err)
	out := env.Out.String()
	assert.Contains(t, out, "[1/2] remember\n")
	assert.Contains(t, out, "[2/2] announce\n")
	assert.Contains(t, out, "✓ hello world\n")
	assert.Contains(t, out, "progress 2/2 completed\n")

	run := env.checkpointOf(t, "greet")
	assert.True(t, run.Completed)
	assert.Equal(t, "hello world", run.Variables["greeting"])
	assert.Equal(t, "STORY-1", run.Variables[workflow.StoryVariable])
}

func TestRunCommand_JSON(t *testing.T) {
	env := newTestEnv(t, sampleLedger)
	env.writeWorkflow(t, "greet", greetWorkflow)

	res := env.execute("run", "greet", "--json")
	require.NoError(t, res.Err)

	var got workflow.StepResult
	require.NoError(t, json.Unmarshal(env.Out.Bytes(), &got))
	assert.True(t, got.Success)
	require.NotNil(t, got.State)
	assert.Equal(t, 2, got.State.CurrentStep)
	assert.NotContains(t, env.Out.String(), "[1/2]")
}

func TestRunCommand_CompletedRunStartsOver(t *testing.T) {
	env := newTestEnv(t, sampleLedger)
	env.writeWorkflow(t, "greet", greetWorkflow)

	require.NoError(t, env.execute("run", "greet").Err)
	first := env.checkpointOf(t, "greet").RunID

	require.NoError(t, env.execute("run", "greet").Err)
	second := env.checkpointOf(t, "greet")

	assert.NotEqual(t, first, second.RunID)
	assert.True(t, second.Completed)
}

func TestRunCommand_FailedStep(t *testing.T) {
	env := newTestEnv(t, sampleLedger)
	env.writeWorkflow(t, "broken", brokenWorkflow)

	res := env.execute("run", "broken")

	assert.Equal(t, ExitFailure, res.ExitCode)
	assert.Contains(t, env.Out.String(), "✗ step second failed: not yet\n")

	run := env.checkpointOf(t, "broken")
	assert.Equal(t, 1, run.CurrentStep)
	assert.Equal(t, checkpoint.StatusFailed, run.Status)
}

func TestRunCommand_UnfinishedRun(t *testing.T) {
	env := newTestEnv(t, sampleLedger)
	env.writeWorkflow(t, "broken", brokenWorkflow)
	require.Equal(t, ExitFailure, env.execute("run", "broken").ExitCode)
	env.writeWorkflow(t, "broken", fixedWorkflow)

	res := env.execute("run", "broken")
	assert.Equal(t, ExitInvalid, res.ExitCode)
	assert.Contains(t, env.Out.String(), "unfinished run at step 2 of 3")

	res = env.execute("run", "broken", "--restart")
	require.NoError(t, res.Err)
	assert.True(t, env.checkpointOf(t, "broken").Completed)
}

func TestRunCommand_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{"unknown workflow", []string{"run", "missing"}, ExitNotFound},
		{"invalid name", []string{"run", ".."}, ExitInvalid},
		{"no workflow", []string{"run"}, ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, sampleLedger)

			res := env.execute(tt.args...)

			require.Error(t, res.Err)
			assert.Equal(t, tt.wantCode, res.ExitCode)
		})
	}
}

func TestStepCommand(t *testing.T) {
	env := newTestEnv(t, sampleLedger)
	env.writeWorkflow(t, "greet", greetWorkflow)

	res := env.execute("step", "greet")
	require.NoError(t, res.Err)
	assert.Contains(t, env.Out.String(), "✓ set 1 variable(s)\n")
	assert.Contains(t, env.Out.String(), "progress 1/2 running\n")
	assert.Equal(t, 1, env.checkpointOf(t, "greet").CurrentStep)

	require.NoError(t, env.execute("step", "greet").Err)
	assert.True(t, env.checkpointOf(t, "greet").Completed)

	res = env.execute("step", "greet")
	require.NoError(t, res.Err)
	assert.Contains(t, env.Out.String(), "workflow greet already completed")
}

func TestResumeCommand(t *testing.T) {
	env := newTestEnv(t, sampleLedger)
	env.writeWorkflow(t, "broken", brokenWorkflow)
	require.Equal(t, ExitFailure, env.execute("run", "broken").ExitCode)

	// Still failing: the failed step is retried and fails again.
	res := env.execute("resume", "broken")
	assert.Equal(t, ExitFailure, res.ExitCode)
	assert.Equal(t, 1, env.checkpointOf(t, "broken").CurrentStep)

	env.writeWorkflow(t, "broken", fixedWorkflow)
	res = env.execute("resume", "broken")

	require.NoError(t, res.Err)
	out := env.Out.String()
	assert.Contains(t, out, "[2/3] second\n")
	assert.NotContains(t, out, "[1/3] first")
	run := env.checkpointOf(t, "broken")
	assert.True(t, run.Completed)
	assert.Equal(t, true, run.Variables["seen"])
}

func TestResumeCommand_All(t *testing.T) {
	env := newTestEnv(t, sampleLedger)
	env.writeWorkflow(t, "broken", brokenWorkflow)
	env.writeWorkflow(t, "greet", greetWorkflow)
	require.Equal(t, ExitFailure, env.execute("run", "broken").ExitCode)
	require.NoError(t, env.execute("run", "greet").Err)

	res := env.execute("resume", "--all")
	assert.Equal(t, ExitFailure, res.ExitCode)
	assert.Contains(t, env.Out.String(), "1 workflow(s) did not complete: [broken]")
	assert.NotContains(t, env.Out.String(), "remember", "completed runs are skipped")

	env.writeWorkflow(t, "broken", fixedWorkflow)
	res = env.execute("resume", "--all")
	require.NoError(t, res.Err)
	assert.True(t, env.checkpointOf(t, "broken").Completed)
}

func TestResumeCommand_Args(t *testing.T) {
	env := newTestEnv(t, sampleLedger)

	assert.Equal(t, ExitFailure, env.execute("resume").ExitCode)
	assert.Equal(t, ExitFailure, env.execute("resume", "--all", "greet").ExitCode)
	assert.Equal(t, ExitNotFound, env.execute("resume", "greet").ExitCode)
}

func TestResetCommand(t *testing.T) {
	env := newTestEnv(t, sampleLedger)
	env.writeWorkflow(t, "greet", greetWorkflow)
	require.NoError(t, env.execute("step", "greet").Err)

	res := env.execute("reset", "greet")
	require.NoError(t, res.Err)
	assert.Equal(t, "✓ reset greet\n", env.Out.String())

	_, err := env.Store.Read(context.Background(), "greet")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)

	// Resetting again is not an error.
	require.NoError(t, env.execute("reset", "greet").Err)

	require.NoError(t, env.execute("step", "greet").Err)
	assert.Equal(t, 1, env.checkpointOf(t, "greet").CurrentStep)
}

func TestResetCommand_OrphanedCheckpoint(t *testing.T) {
	env := newTestEnv(t, sampleLedger)
	require.NoError(t, env.Store.Write(context.Background(), "gone", &checkpoint.Run{
		Workflow: "gone", TotalSteps: 1, Status: checkpoint.StatusInProgress,
		Steps: []checkpoint.StepRecord{{ID: "only", Status: checkpoint.StepPending}},
	}))

	res := env.execute("reset", "gone")

	require.NoError(t, res.Err)
	_, err := env.Store.Read(context.Background(), "gone")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
}

func TestShowCommand(t *testing.T) {
	env := newTestEnv(t, sampleLedger)
	env.writeWorkflow(t, "broken", brokenWorkflow)
	require.Equal(t, ExitFailure, env.execute("run", "broken", "--story", "STORY-1").ExitCode)

	res := env.execute("show", "broken")

	require.NoError(t, res.Err)
	out := env.Out.String()
	assert.Contains(t, out, "broken failed\n")
	assert.Contains(t, out, "progress  1/3\n")
	assert.Contains(t, out, "   1. ✓ first\n")
	assert.Contains(t, out, "   2. ✗ second\n      not yet\n")
	assert.Contains(t, out, "   3. ○ third\n")
	assert.Contains(t, out, "  seen = true\n")
	assert.Contains(t, out, "  story = STORY-1\n")
}

func TestShowCommand_JSON(t *testing.T) {
	env := newTestEnv(t, sampleLedger)
	env.writeWorkflow(t, "greet", greetWorkflow)
	require.NoError(t, env.execute("run", "greet").Err)

	res := env.execute("show", "greet", "--json")
	require.NoError(t, res.Err)

	var run checkpoint.Run
	require.NoError(t, json.Unmarshal(env.Out.Bytes(), &run))
	assert.Equal(t, "greet", run.Workflow)
	assert.True(t, run.Completed)
	assert.Equal(t, 2, run.TotalSteps)
}

func TestShowCommand_NoRun(t *testing.T) {
	env := newTestEnv(t, sampleLedger)
	env.writeWorkflow(t, "greet", greetWorkflow)

	res := env.execute("show", "greet")

	assert.Equal(t, ExitNotFound, res.ExitCode)
	assert.Contains(t, env.Out.String(), "workflow greet has no run")
}

func TestRunCommand_TransitionStep(t *testing.T) {
	env := newTestEnv(t, sampleLedger)
	env.writeWorkflow(t, "plan", `name: plan
steps:
  - name: schedule
    action: transition
    parameters:
      to: TODO
`)

	res := env.execute("run", "plan", "--story", "story-1")

	require.NoError(t, res.Err)
	assert.Equal(t, ledger.StateTodo, storyState(t, env, "STORY-1"))
}
