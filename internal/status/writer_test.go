package status

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyflow/internal/apperr"
	"storyflow/internal/ledger"
)

func TestWriter_Write(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "STORIES.md")
	require.NoError(t, os.WriteFile(path, []byte("old content"), 0644))

	stories := []ledger.Story{
		{ID: "STORY-1", Title: "One", State: ledger.StateTodo},
		{ID: "STORY-2", Title: "Two", State: ledger.StateDone, Completed: true},
	}

	require.NoError(t, NewWriter(path).Write(stories))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ledger.Render(stories), string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func TestWriter_Write_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "STORIES.md")

	require.NoError(t, NewWriter(path).Write(nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "## BACKLOG")
}

func TestWriter_Write_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "STORIES.md")

	err := NewWriter(path).Write(nil)

	require.Error(t, err)
	var persistErr *PersistenceError
	assert.ErrorAs(t, err, &persistErr)
	assert.ErrorIs(t, err, apperr.ErrPersistence)
	assert.Contains(t, err.Error(), "failed to write ledger")
}
