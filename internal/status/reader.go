// Package status owns the story ledger on disk and the state machine that
// moves stories through their lifecycle.
//
// The ledger grammar lives in package ledger; this package adds file access,
// path discovery and the transition rules. A [Machine] is the single writer
// for one ledger file: every mutation re-reads the file, applies the change
// to a copy and writes the whole ledger back before the in-memory view is
// replaced.
//
// Key types:
//   - [Machine] - Load, inspect, validate and transition stories
//   - [Reader] / [Writer] - Raw ledger file access
//   - [Board] - Stories grouped by state
package status

import (
	"os"
	"path/filepath"

	"storyflow/internal/ledger"
)

// LedgerPathEnv overrides every other ledger location when set.
const LedgerPathEnv = "STORYFLOW_LEDGER_PATH"

// DefaultLedgerPath is the ledger location relative to the project root when
// nothing else is found.
const DefaultLedgerPath = "STORIES.md"

// LedgerPaths lists the paths to search (in priority order) when
// auto-discovering the ledger.
var LedgerPaths = []string{
	filepath.Join("docs", "STORIES.md"),
	DefaultLedgerPath,
}

// ResolvePath discovers the ledger file location.
//
// Resolution order:
//  1. STORYFLOW_LEDGER_PATH environment variable (used as-is if set)
//  2. Explicit ledgerPath parameter (if non-empty)
//  3. Auto-discovery: docs/STORIES.md, then STORIES.md under basePath
//  4. Falls back to STORIES.md under basePath (will error on read if absent)
//
// The basePath is the project root directory. Pass empty string for cwd.
func ResolvePath(basePath, ledgerPath string) string {
	if envPath := os.Getenv(LedgerPathEnv); envPath != "" {
		return envPath
	}

	if ledgerPath != "" {
		return ledgerPath
	}

	for _, p := range LedgerPaths {
		fullPath := filepath.Join(basePath, p)
		if _, err := os.Stat(fullPath); err == nil {
			return fullPath
		}
	}

	return filepath.Join(basePath, DefaultLedgerPath)
}

// Reader reads the story ledger.
//
// Use [NewReader] for auto-discovery or [NewReaderWithPath] for an explicit path.
type Reader struct {
	path string
}

// NewReader creates a [Reader] that auto-discovers the ledger under basePath.
func NewReader(basePath string) *Reader {
	return &Reader{path: ResolvePath(basePath, "")}
}

// NewReaderWithPath creates a [Reader] for the given ledger path.
// The STORYFLOW_LEDGER_PATH environment variable still takes priority if set.
func NewReaderWithPath(basePath, ledgerPath string) *Reader {
	return &Reader{path: ResolvePath(basePath, ledgerPath)}
}

// Path returns the resolved ledger path.
func (r *Reader) Path() string {
	return r.path
}

// Read reads and parses the ledger.
//
// Malformed lines do not fail the read; they are reported in
// [ledger.Result.Errors]. A missing or unreadable file returns a *[LoadError].
func (r *Reader) Read() (ledger.Result, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return ledger.Result{}, &LoadError{Path: r.path, Err: err}
	}
	return ledger.Parse(string(data)), nil
}
