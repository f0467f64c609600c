package status

import (
	"errors"
	"fmt"
	"io/fs"

	"storyflow/internal/apperr"
	"storyflow/internal/ledger"
)

// LoadError reports a ledger file that could not be read.
//
// It matches [apperr.ErrNotFound] when the file does not exist.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to read ledger %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is reports a missing file as [apperr.ErrNotFound].
func (e *LoadError) Is(target error) bool {
	return target == apperr.ErrNotFound && errors.Is(e.Err, fs.ErrNotExist)
}

// StateMachineError reports a rejected transition.
//
// Err is [apperr.ErrNotFound] for an unknown story and
// [apperr.ErrIllegalTransition] for an edge outside the legal graph.
type StateMachineError struct {
	ID   string
	From ledger.State
	To   ledger.State
	Err  error
}

func (e *StateMachineError) Error() string {
	if errors.Is(e.Err, apperr.ErrNotFound) {
		return fmt.Sprintf("story %s: %v", e.ID, e.Err)
	}
	return fmt.Sprintf("story %s: cannot move from %s to %s: %v", e.ID, e.From, e.To, e.Err)
}

func (e *StateMachineError) Unwrap() error { return e.Err }

// PersistenceError reports a failed ledger write. It matches
// [apperr.ErrPersistence] and the underlying I/O error.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to write ledger %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{apperr.ErrPersistence, e.Err}
}
