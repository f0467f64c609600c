package actions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"storyflow/internal/apperr"
	"storyflow/internal/workflow"
)

const (
	// maxErrOutput bounds how much stderr is quoted in a failure message.
	maxErrOutput = 512

	// waitDelay bounds the wait for output pipes after the program is killed.
	waitDelay = 2 * time.Second
)

// CommandAction runs an external program.
//
// Parameters:
//   - command: the program (required)
//   - args: a list of arguments
//   - dir: the working directory
//   - env: a map of extra environment variables
//   - output: when set, trimmed stdout is stored in this variable
//   - timeout: a duration such as "30s"; the program is killed when it expires
//
// A non-zero exit status fails the step.
type CommandAction struct {
	// lookPath is swapped in tests.
	lookPath func(string) (string, error)
}

// NewCommandAction creates a command action.
func NewCommandAction() *CommandAction {
	return &CommandAction{lookPath: exec.LookPath}
}

// Run implements [workflow.Action].
func (a *CommandAction) Run(ctx context.Context, sc workflow.StepContext) (workflow.Outcome, error) {
	name := sc.StringParam("command")
	if name == "" {
		return workflow.Outcome{}, fmt.Errorf("%w: command step needs a command parameter", apperr.ErrValidation)
	}
	args, err := stringList(sc.Step.Parameters["args"])
	if err != nil {
		return workflow.Outcome{}, err
	}

	if raw := sc.StringParam("timeout"); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil || timeout <= 0 {
			return workflow.Outcome{}, fmt.Errorf("%w: invalid timeout %q", apperr.ErrValidation, raw)
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	path, err := a.lookPath(name)
	if err != nil {
		return workflow.Outcome{}, fmt.Errorf("command %s: %w", name, err)
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = sc.StringParam("dir")
	cmd.WaitDelay = waitDelay
	if env, ok := sc.Step.Parameters["env"].(map[string]any); ok {
		cmd.Env = cmd.Environ()
		for k, v := range env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%v", k, v))
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if sc.Logger != nil {
		sc.Logger.Debug("running command",
			slog.String("command", name),
			slog.Any("args", args))
	}

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			return workflow.Outcome{}, fmt.Errorf("command %s timed out", name)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return workflow.Outcome{}, fmt.Errorf("command %s exited with code %d%s",
				name, exitErr.ExitCode(), quoteStderr(stderr.String()))
		}
		return workflow.Outcome{}, fmt.Errorf("command %s: %w", name, err)
	}

	out := workflow.Outcome{Message: fmt.Sprintf("command %s succeeded", name)}
	if v := sc.StringParam("output"); v != "" {
		out.Variables = map[string]any{v: strings.TrimSpace(stdout.String())}
	}
	return out, nil
}

func stringList(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return strings.Fields(val), nil
	case []string:
		return val, nil
	case []any:
		out := make([]string, len(val))
		for i, item := range val {
			out[i] = fmt.Sprint(item)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: args must be a list, got %T", apperr.ErrValidation, v)
}

func quoteStderr(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) > maxErrOutput {
		cut := maxErrOutput
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return ": " + s
}
