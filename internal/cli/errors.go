package cli

import (
	"errors"
	"fmt"

	"storyflow/internal/apperr"
)

// Exit codes returned by storyflow commands.
const (
	// ExitFailure is a failed step, workflow or generic error.
	ExitFailure = 1

	// ExitInvalid is a validation error: bad input, an illegal transition
	// or an invalid ledger.
	ExitInvalid = 2

	// ExitNotFound is a missing story, workflow, ledger or checkpoint.
	ExitNotFound = 3

	// ExitPersistence is a failed ledger or checkpoint write.
	ExitPersistence = 4
)

// ExitError represents a command execution failure with a specific exit code.
//
// This error type allows Cobra RunE functions to signal non-zero exit codes
// without calling os.Exit() directly, enabling testable CLI behavior.
// When a command fails, it returns NewExitError(code), which propagates up
// to [RunWithConfig] where [IsExitError] extracts the code for [ExecuteResult].
//
// Testability benefit: Tests can assert on exit codes without process termination.
// The [Execute] function handles the actual os.Exit() call based on the code.
type ExitError struct {
	// Code is the exit code to return to the shell.
	Code int

	// Err is the failure that caused the exit, if any.
	Err error
}

// Error implements the error interface, returning a string in the format
// "exit status N" where N is the exit code. This format matches the standard
// os/exec ExitError format for consistency with subprocess exit messages.
func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError creates an [ExitError] with the given exit code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

// IsExitError checks if an error is an [ExitError] and extracts its exit code.
//
// Returns (code, true) if err is or wraps an *ExitError. Returns (0, false)
// for nil or other errors.
func IsExitError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

// exitCodeFor maps an error to an exit code by its sentinel.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, apperr.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, apperr.ErrPersistence):
		return ExitPersistence
	case errors.Is(err, apperr.ErrValidation):
		return ExitInvalid
	}
	return ExitFailure
}

// fail prints err and returns the matching [ExitError].
func (a *App) fail(err error) error {
	if code, ok := IsExitError(err); ok {
		return NewExitError(code)
	}
	a.Printer.Error(err.Error())
	return &ExitError{Code: exitCodeFor(err), Err: err}
}
