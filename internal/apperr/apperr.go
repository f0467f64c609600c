// Package apperr defines the error kinds shared by every storyflow package.
//
// Packages wrap these sentinels in their own typed errors so callers can
// classify a failure with [errors.Is] without importing the package that
// produced it:
//   - [ErrNotFound] - ledger file, checkpoint, story or workflow absent
//   - [ErrValidation] - malformed input or a request that breaks a rule
//   - [ErrIllegalTransition] - a state change outside the legal graph
//   - [ErrPersistence] - a write to the ledger or a checkpoint failed
package apperr

import "errors"

// Sentinel error kinds.
var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation failed")
	ErrPersistence = errors.New("persistence failed")

	// ErrIllegalTransition also matches ErrValidation.
	ErrIllegalTransition error = &illegalTransition{msg: "illegal transition"}
)

type illegalTransition struct{ msg string }

func (e *illegalTransition) Error() string { return e.msg }

// Is reports ErrValidation as an ancestor kind.
func (*illegalTransition) Is(target error) bool {
	return target == ErrValidation
}
