// Package sqlite implements the persistence port on SQLite.
//
// The database file is opened in WAL mode with _txlock=immediate so every
// write transaction acquires its lock up front; concurrent writers queue on
// busy_timeout instead of deadlocking. Timestamps are stored as RFC 3339
// text in UTC, JSON-shaped columns (variables, tags, pipeline,
// override_config, input_variables) are marshalled at this boundary and
// nowhere else.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	apperrors "github.com/HyxiaoGe/prompthub/errors"
	"github.com/HyxiaoGe/prompthub/store"
)

const busyTimeoutMillis = 5000

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx, so
// every entity method runs unchanged inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the SQLite-backed persistence port.
type Store struct {
	db *sql.DB // nil on the transaction-scoped copy
	q  querier
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path, applies the schema
// and runs pending migrations.
func Open(path string) (*Store, error) {
	connStr := fmt.Sprintf(
		"file:%s?_txlock=immediate&_pragma=busy_timeout(%d)&_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=synchronous(normal)",
		path, busyTimeoutMillis,
	)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, q: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RunInTransaction executes fn within one database transaction. _txlock in
// the DSN makes this a BEGIN IMMEDIATE, so the write lock is held from the
// first statement. fn's error rolls back wholesale; a panic rolls back and
// re-raises.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx store.Tx) error) error {
	if s.db == nil {
		// Already transaction-scoped; join the enclosing transaction.
		return fn(s)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(&Store{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

// newID returns id unchanged when set, a fresh UUID otherwise.
func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

// isConstraintError reports whether err is a UNIQUE or FOREIGN KEY
// constraint violation. Integrity violations surface uniformly as conflicts.
func isConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "FOREIGN KEY constraint failed") ||
		strings.Contains(msg, "constraint failed")
}

// conflictOr maps constraint violations to a Conflict error, wrapping
// anything else as-is.
func conflictOr(err error, msg string) error {
	if isConstraintError(err) {
		return apperrors.Conflict(msg).WithCause(err)
	}
	return err
}

// Timestamps are persisted as RFC 3339 text in UTC.

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func fmtNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

// nullStr maps "" to NULL for optional text columns.
func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func strOrEmpty(s sql.NullString) string {
	if !s.Valid {
		return ""
	}
	return s.String
}

// marshalJSON serializes v for a JSON-shaped column, substituting fallback
// for nil values so columns never hold SQL NULL.
func marshalJSON(v any, fallback string) (string, error) {
	if v == nil {
		return fallback, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal json column: %w", err)
	}
	if string(data) == "null" {
		return fallback, nil
	}
	return string(data), nil
}

// unmarshalJSON deserializes a JSON-shaped column into out, tolerating
// empty text.
func unmarshalJSON(data string, out any) error {
	if data == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return fmt.Errorf("unmarshal json column: %w", err)
	}
	return nil
}
