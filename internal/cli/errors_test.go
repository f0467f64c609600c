package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"storyflow/internal/apperr"
)

func TestExitError(t *testing.T) {
	err := NewExitError(ExitInvalid)

	assert.Equal(t, "exit status 2", err.Error())
	assert.Nil(t, errors.Unwrap(err))

	wrapped := &ExitError{Code: ExitNotFound, Err: apperr.ErrNotFound}
	assert.ErrorIs(t, wrapped, apperr.ErrNotFound)
}

func TestIsExitError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOK   bool
	}{
		{"nil", nil, 0, false},
		{"plain error", errors.New("boom"), 0, false},
		{"exit error", NewExitError(ExitPersistence), ExitPersistence, true},
		{"wrapped exit error", fmt.Errorf("ctx: %w", NewExitError(ExitNotFound)), ExitNotFound, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := IsExitError(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"not found", fmt.Errorf("story X: %w", apperr.ErrNotFound), ExitNotFound},
		{"validation", fmt.Errorf("bad: %w", apperr.ErrValidation), ExitInvalid},
		{"illegal transition", apperr.ErrIllegalTransition, ExitInvalid},
		{"persistence", fmt.Errorf("write: %w", apperr.ErrPersistence), ExitPersistence},
		{"other", errors.New("boom"), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCodeFor(tt.err))
		})
	}
}

func TestApp_Fail(t *testing.T) {
	env := newTestEnv(t, sampleLedger)

	err := env.App.fail(fmt.Errorf("story X: %w", apperr.ErrNotFound))

	code, ok := IsExitError(err)
	assert.True(t, ok)
	assert.Equal(t, ExitNotFound, code)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "✗ story X: not found\n", env.Out.String())

	env.Out.Reset()
	err = env.App.fail(NewExitError(ExitInvalid))
	code, _ = IsExitError(err)
	assert.Equal(t, ExitInvalid, code)
	assert.Empty(t, env.Out.String(), "exit errors are not printed twice")
}
