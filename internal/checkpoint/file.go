package checkpoint

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const fileExt = ".json"

// FileStore keeps each run in <dir>/<key>.json.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir. The directory is created on
// first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the directory runs are stored in.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file a workflow's run is stored in.
func (s *FileStore) Path(workflow string) string {
	return filepath.Join(s.dir, Key(workflow)+fileExt)
}

// Read implements [Store].
func (s *FileStore) Read(ctx context.Context, workflow string) (*Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := Key(workflow)
	data, err := os.ReadFile(s.Path(workflow))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &PersistenceError{Op: "read", Key: key, Err: err}
	}

	run, err := decodeRun(data)
	if err != nil {
		return nil, &PersistenceError{Op: "decode", Key: key, Err: err}
	}
	return run, nil
}

// Write implements [Store]. The run is written to a temporary file, synced,
// and renamed over the previous checkpoint.
func (s *FileStore) Write(ctx context.Context, workflow string, run *Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := Key(workflow)
	data, err := encodeRun(run)
	if err != nil {
		return &PersistenceError{Op: "encode", Key: key, Err: err}
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return &PersistenceError{Op: "write", Key: key, Err: err}
	}

	tmp, err := os.CreateTemp(s.dir, "."+key+".*.tmp")
	if err != nil {
		return &PersistenceError{Op: "write", Key: key, Err: err}
	}
	tmpPath := tmp.Name()
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpPath)
		return &PersistenceError{Op: "write", Key: key, Err: err}
	}

	if _, err := tmp.Write(data); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &PersistenceError{Op: "write", Key: key, Err: err}
	}
	if err := os.Rename(tmpPath, s.Path(workflow)); err != nil {
		os.Remove(tmpPath)
		return &PersistenceError{Op: "write", Key: key, Err: err}
	}
	return nil
}

// Delete implements [Store].
func (s *FileStore) Delete(ctx context.Context, workflow string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := os.Remove(s.Path(workflow))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &PersistenceError{Op: "delete", Key: Key(workflow), Err: err}
	}
	return nil
}

// List implements [Store]. The workflow name is read from each file, so
// hashed keys report their original name. Unreadable files are skipped.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "list", Key: s.dir, Err: err}
	}

	var names []string
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		run, err := decodeRun(data)
		if err != nil {
			continue
		}
		names = append(names, run.Workflow)
	}
	sort.Strings(names)
	return names, nil
}
