package registry

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes shape.
const schemaVersion = 1

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

var (
	// ErrNotFound reports a setting that has never been written.
	ErrNotFound = errors.New("setting not found")
	// ErrSchemaMismatch indicates the database was written by another schema version.
	ErrSchemaMismatch = errors.New("schema version mismatch")
)

// Store is a settings database.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to the settings database at path, creating it when absent.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("registry path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create registry directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset settings)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// ReadString returns the text value stored under name, or def when the
// setting is missing.
func (s *Store) ReadString(ctx context.Context, name, def string) (string, error) {
	var value sql.NullString
	err := s.queryRow(ctx, "SELECT text_value FROM settings WHERE name = ?", []any{name}, &value)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	if !value.Valid {
		return def, nil
	}
	return value.String, nil
}

// ReadNumber returns the numeric value stored under name, or def when the
// setting is missing.
func (s *Store) ReadNumber(ctx context.Context, name string, def int64) (int64, error) {
	var value sql.NullInt64
	err := s.queryRow(ctx, "SELECT number_value FROM settings WHERE name = ?", []any{name}, &value)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	if !value.Valid {
		return def, nil
	}
	return value.Int64, nil
}

// WriteString stores a text value under name.
func (s *Store) WriteString(ctx context.Context, name, value string) error {
	return s.execWithoutResultRetry(ctx,
		`INSERT INTO settings (name, text_value, number_value, updated_at) VALUES (?, ?, NULL, ?)
		ON CONFLICT(name) DO UPDATE SET text_value = excluded.text_value, number_value = NULL, updated_at = excluded.updated_at`,
		name, value, now())
}

// WriteNumber stores a numeric value under name.
func (s *Store) WriteNumber(ctx context.Context, name string, value int64) error {
	return s.execWithoutResultRetry(ctx,
		`INSERT INTO settings (name, text_value, number_value, updated_at) VALUES (?, NULL, ?, ?)
		ON CONFLICT(name) DO UPDATE SET number_value = excluded.number_value, text_value = NULL, updated_at = excluded.updated_at`,
		name, value, now())
}

// Names lists every stored setting name in alphabetical order.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	ctx = ensureContext(ctx)
	var names []string
	err := retryOnBusy(ctx, func() error {
		names = names[:0]
		rows, err := s.db.QueryContext(ctx, "SELECT name FROM settings ORDER BY name")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return err
			}
			names = append(names, name)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return names, nil
}

func (s *Store) queryRow(ctx context.Context, query string, args []any, dest any) error {
	ctx = ensureContext(ctx)
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, query, args...).Scan(dest)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *Store) execWithoutResultRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := range busyRetryAttempts {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyRetryMaxBackoff)
	}
	return lastErr
}
