// Package actions provides the built-in step actions available to every
// workflow definition.
//
// Built-in actions:
//   - set: copies its parameters into the run variables
//   - log: writes its message parameter to the run logger
//   - fail: always fails with its message parameter
//   - command: runs an external program
//   - transition: moves a story through the lifecycle
//   - workflow: runs a child workflow to completion
package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"storyflow/internal/apperr"
	"storyflow/internal/checkpoint"
	"storyflow/internal/ledger"
	"storyflow/internal/workflow"
)

// Action names.
const (
	Set        = "set"
	Log        = "log"
	Fail       = "fail"
	Command    = "command"
	Transition = "transition"
	Workflow   = "workflow"
)

// StoryTransitioner moves a story to a new state.
// The [status.Machine] type implements this interface.
type StoryTransitioner interface {
	Transition(id string, to ledger.State) error
}

// Deps are the collaborators some built-in actions need. A nil field leaves
// the corresponding action unregistered.
type Deps struct {
	Stories StoryTransitioner
	Runner  *workflow.Runner
}

// Register adds the built-in actions to reg.
func Register(reg *workflow.Registry, deps Deps) error {
	builtins := map[string]workflow.Action{
		Set:     workflow.ActionFunc(setAction),
		Log:     workflow.ActionFunc(logAction),
		Fail:    workflow.ActionFunc(failAction),
		Command: NewCommandAction(),
	}
	if deps.Stories != nil {
		builtins[Transition] = NewTransitionAction(deps.Stories)
	}
	if deps.Runner != nil {
		builtins[Workflow] = deps.Runner.ChildAction()
	}

	var errs []error
	for _, name := range []string{Set, Log, Fail, Command, Transition, Workflow} {
		a, ok := builtins[name]
		if !ok {
			continue
		}
		if err := reg.Register(name, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func setAction(_ context.Context, sc workflow.StepContext) (workflow.Outcome, error) {
	vars := checkpoint.CloneVariables(sc.Step.Parameters)
	return workflow.Outcome{
		Variables: vars,
		Message:   fmt.Sprintf("set %d variable(s)", len(vars)),
	}, nil
}

func logAction(ctx context.Context, sc workflow.StepContext) (workflow.Outcome, error) {
	msg := sc.StringParam("message")
	level := slog.LevelInfo
	if name := sc.StringParam("level"); name != "" {
		if err := level.UnmarshalText([]byte(name)); err != nil {
			return workflow.Outcome{}, fmt.Errorf("%w: log level %q", apperr.ErrValidation, name)
		}
	}
	logger := sc.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Log(ctx, level, msg)
	return workflow.Outcome{Message: msg}, nil
}

func failAction(_ context.Context, sc workflow.StepContext) (workflow.Outcome, error) {
	msg := sc.StringParam("message")
	if msg == "" {
		msg = fmt.Sprintf("step %s failed", sc.Step.Name)
	}
	return workflow.Outcome{}, errors.New(msg)
}

// TransitionAction moves a story to the state in its "to" parameter. The
// story is the "story" parameter, falling back to the run's story variable.
type TransitionAction struct {
	stories StoryTransitioner
}

// NewTransitionAction creates a transition action backed by stories.
func NewTransitionAction(stories StoryTransitioner) *TransitionAction {
	return &TransitionAction{stories: stories}
}

// Run implements [workflow.Action].
func (a *TransitionAction) Run(_ context.Context, sc workflow.StepContext) (workflow.Outcome, error) {
	id := sc.StringParam("story")
	if id == "" {
		id, _ = sc.Variables[workflow.StoryVariable].(string)
	}
	if id == "" {
		return workflow.Outcome{}, fmt.Errorf("%w: transition needs a story parameter", apperr.ErrValidation)
	}

	to, err := ledger.ParseState(sc.StringParam("to"))
	if err != nil {
		return workflow.Outcome{}, fmt.Errorf("%w: transition: %v", apperr.ErrValidation, err)
	}

	id = strings.ToUpper(strings.TrimSpace(id))
	if err := a.stories.Transition(id, to); err != nil {
		return workflow.Outcome{}, err
	}
	return workflow.Outcome{Message: fmt.Sprintf("%s -> %s", id, to)}, nil
}
