package checkpoint

import (
	"context"
	"fmt"

	"storyflow/internal/apperr"
)

// ErrNotFound is returned by [Store.Read] when no run is stored for a
// workflow. It matches [apperr.ErrNotFound].
var ErrNotFound = fmt.Errorf("checkpoint %w", apperr.ErrNotFound)

// Store persists one run per workflow name.
//
// Write replaces the stored run atomically: a concurrent reader sees either
// the previous run or the new one. Stores do not coordinate writers across
// processes; the last write wins.
type Store interface {
	// Read returns the run stored for the workflow, or [ErrNotFound].
	Read(ctx context.Context, workflow string) (*Run, error)

	// Write stores run under the workflow name, replacing any previous run.
	Write(ctx context.Context, workflow string, run *Run) error

	// Delete removes the run for the workflow. Deleting a missing run is
	// not an error.
	Delete(ctx context.Context, workflow string) error

	// List returns the workflow names that have a stored run, sorted.
	List(ctx context.Context) ([]string, error)
}

// PersistenceError reports a failed checkpoint read or write. It matches
// [apperr.ErrPersistence] and the underlying error.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("checkpoint %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{apperr.ErrPersistence, e.Err}
}
