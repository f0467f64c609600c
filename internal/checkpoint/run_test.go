package checkpoint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyflow/internal/apperr"
)

func TestRun_Validate(t *testing.T) {
	tests := []struct {
		name    string
		run     Run
		wantErr bool
	}{
		{name: "fresh", run: Run{Workflow: "wf", TotalSteps: 3}},
		{name: "completed", run: Run{Workflow: "wf", CurrentStep: 3, TotalSteps: 3, Completed: true}},
		{name: "empty workflow completes immediately", run: Run{Workflow: "wf", Completed: true}},
		{name: "missing name", run: Run{TotalSteps: 1}, wantErr: true},
		{name: "index past end", run: Run{Workflow: "wf", CurrentStep: 4, TotalSteps: 3}, wantErr: true},
		{name: "negative index", run: Run{Workflow: "wf", CurrentStep: -1, TotalSteps: 3}, wantErr: true},
		{name: "completed early", run: Run{Workflow: "wf", CurrentStep: 2, TotalSteps: 3, Completed: true}, wantErr: true},
		{name: "at end but not completed", run: Run{Workflow: "wf", CurrentStep: 3, TotalSteps: 3}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, apperr.ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRun_Clone(t *testing.T) {
	orig := sampleRun("wf")
	orig.Variables["nested"] = map[string]any{"k": []any{"v"}}

	c := orig.Clone()
	c.Steps[0].Status = StepFailed
	*c.Steps[0].StartedAt = t0.AddDate(1, 0, 0)
	c.ChildWorkflows[0].Status = StatusFailed
	c.Variables["story"] = "changed"
	c.Variables["nested"].(map[string]any)["k"].([]any)[0] = "changed"

	assert.Equal(t, StepCompleted, orig.Steps[0].Status)
	assert.True(t, orig.Steps[0].StartedAt.Equal(t0))
	assert.Equal(t, StatusCompleted, orig.ChildWorkflows[0].Status)
	assert.Equal(t, "STORY-1", orig.Variables["story"])
	assert.Equal(t, "v", orig.Variables["nested"].(map[string]any)["k"].([]any)[0])

	var nilRun *Run
	assert.Nil(t, nilRun.Clone())
}

func TestKey(t *testing.T) {
	t.Run("slugs pass through", func(t *testing.T) {
		for _, name := range []string{"pm-planning", "deploy_v2", "a.b", "x1"} {
			assert.Equal(t, name, Key(name))
		}
	})

	t.Run("other names are slugged and hashed", func(t *testing.T) {
		k := Key("PM Planning")
		assert.True(t, strings.HasPrefix(k, "pm-planning--"), k)
		assert.Len(t, k, len("pm-planning--")+12)
	})

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, Key("Deploy App!"), Key("Deploy App!"))
	})

	t.Run("path separators are removed", func(t *testing.T) {
		k := Key("../etc/passwd")
		assert.NotContains(t, k, "/")
		assert.False(t, strings.HasPrefix(k, "."))
	})

	t.Run("empty and symbol-only names", func(t *testing.T) {
		assert.True(t, strings.HasPrefix(Key(""), "workflow--"))
		assert.True(t, strings.HasPrefix(Key("!!!"), "workflow--"))
		assert.NotEqual(t, Key(""), Key("!!!"))
	})

	t.Run("no collisions", func(t *testing.T) {
		names := []string{
			"deploy", "Deploy", "DEPLOY", "deploy-app", "deploy app", "Deploy App",
			"deploy--app", "deploy/app", "deploy.app", "deploy_app", "deploy-app--x",
		}
		seen := make(map[string]string)
		for _, n := range names {
			k := Key(n)
			prev, dup := seen[k]
			require.False(t, dup, "%q and %q share key %q", prev, n, k)
			seen[k] = n
		}
	})
}
