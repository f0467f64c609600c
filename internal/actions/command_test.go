package actions

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyflow/internal/apperr"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestCommandAction_CapturesOutput(t *testing.T) {
	requireShell(t)

	out, err := NewCommandAction().Run(context.Background(), stepContext(map[string]any{
		"command": "sh",
		"args":    []any{"-c", "echo \"$GREETING from $(basename $PWD)\""},
		"dir":     t.TempDir(),
		"env":     map[string]any{"GREETING": "hello"},
		"output":  "said",
	}))

	require.NoError(t, err)
	require.Contains(t, out.Variables, "said")
	assert.Regexp(t, `^hello from \S+$`, out.Variables["said"])
	assert.Equal(t, "command sh succeeded", out.Message)
}

func TestCommandAction_NoOutputVariable(t *testing.T) {
	requireShell(t)

	out, err := NewCommandAction().Run(context.Background(), stepContext(map[string]any{
		"command": "sh",
		"args":    "-c true",
	}))

	require.NoError(t, err)
	assert.Nil(t, out.Variables)
}

func TestCommandAction_Failures(t *testing.T) {
	requireShell(t)

	tests := []struct {
		name    string
		params  map[string]any
		wantMsg string
		wantErr error
	}{
		{
			name:    "non-zero exit",
			params:  map[string]any{"command": "sh", "args": []any{"-c", "echo broken >&2; exit 3"}},
			wantMsg: "command sh exited with code 3: broken",
		},
		{
			name:    "timeout",
			params:  map[string]any{"command": "sh", "args": []any{"-c", "exec sleep 5"}, "timeout": "50ms"},
			wantMsg: "command sh timed out",
		},
		{
			name:    "missing command",
			params:  map[string]any{},
			wantErr: apperr.ErrValidation,
		},
		{
			name:    "bad timeout",
			params:  map[string]any{"command": "sh", "timeout": "soon"},
			wantErr: apperr.ErrValidation,
		},
		{
			name:    "bad args",
			params:  map[string]any{"command": "sh", "args": map[string]any{"a": 1}},
			wantErr: apperr.ErrValidation,
		},
		{
			name:    "unknown program",
			params:  map[string]any{"command": "storyflow-no-such-program"},
			wantMsg: "command storyflow-no-such-program:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCommandAction().Run(context.Background(), stepContext(tt.params))

			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestCommandAction_UsesLookPath(t *testing.T) {
	a := NewCommandAction()
	a.lookPath = func(name string) (string, error) {
		return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
	}

	_, err := a.Run(context.Background(), stepContext(map[string]any{"command": filepath.Join("bin", "tool")}))

	assert.True(t, errors.Is(err, exec.ErrNotFound))
}

func TestStringList(t *testing.T) {
	tests := []struct {
		in   any
		want []string
	}{
		{in: nil, want: nil},
		{in: "a b  c", want: []string{"a", "b", "c"}},
		{in: []string{"x"}, want: []string{"x"}},
		{in: []any{"x", 1, true}, want: []string{"x", "1", "true"}},
	}

	for _, tt := range tests {
		got, err := stringList(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestQuoteStderr(t *testing.T) {
	long := strings.Repeat("x", maxErrOutput-1) + "é tail"

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "  \n", ""},
		{"short", " boom \n", ": boom"},
		{"cut before a multi-byte rune", long, ": " + strings.Repeat("x", maxErrOutput-1) + "..."},
		{"cut at a rune boundary", strings.Repeat("é", maxErrOutput), ": " + strings.Repeat("é", maxErrOutput/2) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := quoteStderr(tt.in)

			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}
