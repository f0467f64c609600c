// Package checkpoint persists workflow runs so they can be resumed after the
// process stops.
//
// A [Run] is the complete, durable state of one workflow execution: the
// executor rebuilds everything it needs from it. Runs are stored one per
// workflow name behind the [Store] interface. [FileStore] keeps one JSON
// document per workflow; [SQLiteStore] keeps the same documents in a single
// SQLite table.
//
// Key types:
//   - [Run] - The persisted workflow run
//   - [Store] - Read, write, delete and list runs by workflow name
//   - [FileStore] / [SQLiteStore] - Store backends
package checkpoint

import (
	"encoding/json"
	"fmt"
	"time"

	"storyflow/internal/apperr"
)

// Status is the lifecycle status of a run.
type Status string

// Run status values.
const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// StepStatus is the status of one step within a run.
type StepStatus string

// Step status values.
const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// StepRecord is the persisted outcome of one step.
type StepRecord struct {
	ID          string     `json:"id"`
	Status      StepStatus `json:"status"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// ChildRef records a child workflow started by a step.
type ChildRef struct {
	WorkflowPath string    `json:"workflowPath"`
	Status       Status    `json:"status"`
	StartedAt    time.Time `json:"startedAt"`
}

// Run is the persisted state of one workflow run.
//
// CurrentStep is the index of the next step to execute and stays within
// [0, TotalSteps]. Completed is true exactly when CurrentStep equals
// TotalSteps.
type Run struct {
	Workflow    string       `json:"workflow"`
	RunID       string       `json:"runId"`
	CurrentStep int          `json:"currentStep"`
	TotalSteps  int          `json:"totalSteps"`
	Status      Status       `json:"status"`
	Completed   bool         `json:"completed"`
	StartedAt   time.Time    `json:"startedAt"`
	LastUpdated time.Time    `json:"lastUpdated"`
	Steps       []StepRecord `json:"steps"`

	// Variables accumulate across steps. Values survive a JSON round trip
	// with JSON types, so numbers read back as float64.
	Variables map[string]any `json:"context"`

	// ParentWorkflow names the run that started this one. It is a
	// diagnostic back-reference only.
	ParentWorkflow string     `json:"parentWorkflow,omitempty"`
	ChildWorkflows []ChildRef `json:"childWorkflows,omitempty"`
}

// Validate checks the structural invariants of a run.
func (r *Run) Validate() error {
	if r.Workflow == "" {
		return fmt.Errorf("%w: checkpoint has no workflow name", apperr.ErrValidation)
	}
	if r.TotalSteps < 0 || r.CurrentStep < 0 || r.CurrentStep > r.TotalSteps {
		return fmt.Errorf("%w: checkpoint step %d outside [0, %d]", apperr.ErrValidation, r.CurrentStep, r.TotalSteps)
	}
	if r.Completed != (r.CurrentStep == r.TotalSteps) {
		return fmt.Errorf("%w: checkpoint completed=%t at step %d of %d",
			apperr.ErrValidation, r.Completed, r.CurrentStep, r.TotalSteps)
	}
	return nil
}

// Clone returns a deep copy of the run. Nested variable maps and slices are
// not shared.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	c := *r
	if r.Steps != nil {
		c.Steps = make([]StepRecord, len(r.Steps))
		for i, s := range r.Steps {
			c.Steps[i] = s
			c.Steps[i].StartedAt = cloneTime(s.StartedAt)
			c.Steps[i].CompletedAt = cloneTime(s.CompletedAt)
		}
	}
	if r.ChildWorkflows != nil {
		c.ChildWorkflows = append([]ChildRef(nil), r.ChildWorkflows...)
	}
	c.Variables = CloneVariables(r.Variables)
	return &c
}

// CloneVariables deep-copies a variable map.
func CloneVariables(vars map[string]any) map[string]any {
	if vars == nil {
		return nil
	}
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneVariables(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	}
	return v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func decodeRun(data []byte) (*Run, error) {
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, err
	}
	if err := run.Validate(); err != nil {
		return nil, err
	}
	return &run, nil
}

func encodeRun(run *Run) ([]byte, error) {
	return json.MarshalIndent(run, "", "  ")
}
