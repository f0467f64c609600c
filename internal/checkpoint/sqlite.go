package checkpoint

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore keeps runs in a single SQLite table, one row per workflow.
// The body column holds the same JSON document a [FileStore] writes.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite creates or opens a SQLite checkpoint database at path.
//
// The database runs in WAL mode with a single connection, so one process
// writes while others read. The schema is applied idempotently.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to checkpoint database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply checkpoint schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Read implements [Store].
func (s *SQLiteStore) Read(ctx context.Context, workflow string) (*Run, error) {
	key := Key(workflow)

	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM checkpoints WHERE key = ?`, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &PersistenceError{Op: "read", Key: key, Err: err}
	}

	run, err := decodeRun([]byte(body))
	if err != nil {
		return nil, &PersistenceError{Op: "decode", Key: key, Err: err}
	}
	return run, nil
}

// Write implements [Store]. The upsert runs in a transaction.
func (s *SQLiteStore) Write(ctx context.Context, workflow string, run *Run) error {
	key := Key(workflow)
	body, err := encodeRun(run)
	if err != nil {
		return &PersistenceError{Op: "encode", Key: key, Err: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &PersistenceError{Op: "write", Key: key, Err: err}
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO checkpoints (key, workflow, body, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			workflow = excluded.workflow,
			body = excluded.body,
			updated_at = excluded.updated_at`,
		key, workflow, string(body), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return &PersistenceError{Op: "write", Key: key, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &PersistenceError{Op: "write", Key: key, Err: err}
	}
	return nil
}

// Delete implements [Store].
func (s *SQLiteStore) Delete(ctx context.Context, workflow string) error {
	key := Key(workflow)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE key = ?`, key); err != nil {
		return &PersistenceError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// List implements [Store].
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT workflow FROM checkpoints ORDER BY workflow`)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Key: "checkpoints", Err: err}
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &PersistenceError{Op: "list", Key: "checkpoints", Err: err}
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "list", Key: "checkpoints", Err: err}
	}
	return names, nil
}
