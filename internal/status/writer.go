package status

import (
	"os"
	"path/filepath"

	"storyflow/internal/ledger"
)

// Writer writes the story ledger.
type Writer struct {
	path string
}

// NewWriter creates a Writer for the ledger at path.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Write renders stories and replaces the ledger file.
//
// The new content is written to a temporary file in the same directory and
// renamed over the ledger, so readers see either the old or the new file,
// never a partial one. Failures return a *[PersistenceError].
func (w *Writer) Write(stories []ledger.Story) error {
	data := []byte(ledger.Render(stories))

	tmp, err := os.CreateTemp(filepath.Dir(w.path), "."+filepath.Base(w.path)+".*.tmp")
	if err != nil {
		return &PersistenceError{Path: w.path, Err: err}
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &PersistenceError{Path: w.path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &PersistenceError{Path: w.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &PersistenceError{Path: w.path, Err: err}
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return &PersistenceError{Path: w.path, Err: err}
	}

	if err := os.Rename(tmpPath, w.path); err != nil {
		// Clean up temp file on rename failure
		os.Remove(tmpPath)
		return &PersistenceError{Path: w.path, Err: err}
	}

	return nil
}
