package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"storyflow/internal/checkpoint"
	"storyflow/internal/logging"
)

var testNow = time.Date(2025, 10, 25, 12, 0, 0, 0, time.UTC)

// clock returns a clock that advances one second per call.
func clock() func() time.Time {
	var mu sync.Mutex
	now := testNow
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func newFileStore(t *testing.T) *checkpoint.FileStore {
	t.Helper()
	return checkpoint.NewFileStore(filepath.Join(t.TempDir(), "state"))
}

// recorder is an action that records every invocation.
type recorder struct {
	mu    sync.Mutex
	calls []StepContext
	fn    func(sc StepContext) (Outcome, error)
}

func (r *recorder) Run(_ context.Context, sc StepContext) (Outcome, error) {
	r.mu.Lock()
	r.calls = append(r.calls, sc)
	r.mu.Unlock()
	if r.fn != nil {
		return r.fn(sc)
	}
	return Outcome{}, nil
}

func (r *recorder) stepNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.calls))
	for i, c := range r.calls {
		names[i] = c.Step.Name
	}
	return names
}

func abcDefinition() Definition {
	return Definition{
		Name: "abc",
		Steps: []Step{
			{Name: "A", Action: "rec"},
			{Name: "B", Action: "rec"},
			{Name: "C", Action: "rec"},
		},
	}
}

func newTestExecutor(t *testing.T, def Definition, store checkpoint.Store, rec Action, opts ...Option) *Executor {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register("rec", rec))
	all := append([]Option{WithLogger(logging.Discard()), WithClock(clock())}, opts...)
	return NewExecutor(def, store, reg, all...)
}

// flakyStore fails writes after the first okWrites calls.
type flakyStore struct {
	checkpoint.Store
	mu       sync.Mutex
	okWrites int
	writes   int
}

var errDiskFull = errors.New("disk full")

func (s *flakyStore) Write(ctx context.Context, workflow string, run *checkpoint.Run) error {
	s.mu.Lock()
	s.writes++
	fail := s.writes > s.okWrites
	s.mu.Unlock()
	if fail {
		return &checkpoint.PersistenceError{Op: "write", Key: workflow, Err: errDiskFull}
	}
	return s.Store.Write(ctx, workflow, run)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
