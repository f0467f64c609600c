package checkpoint

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"storyflow/internal/apperr"
	"storyflow/internal/config"
)

// Backend names accepted by [Open].
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open returns the store selected by cfg.Backend and a closer that releases
// it. An empty backend selects [BackendFile].
func Open(cfg config.CheckpointConfig) (Store, io.Closer, error) {
	switch cfg.Backend {
	case "", BackendFile:
		return NewFileStore(cfg.Dir), nopCloser{}, nil
	case BackendSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
			}
		}
		s, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown checkpoint backend %q", apperr.ErrValidation, cfg.Backend)
	}
}
