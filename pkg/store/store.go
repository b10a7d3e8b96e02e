// Package store keeps template markup in a SQL database and serves it to the
// tobject engine through the Loader interface.
//
// Paths are slash-separated and relative to the store root, so
// "layouts/base.html" and "/layouts/base.html" name the same row.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/CTAG07/tobject/pkg/tobject"
)

// SetupSchema creates the template table. It is idempotent and safe to call
// on an already-initialized database.
func SetupSchema(db *sql.DB) error {
	const schemaTemplates = `
CREATE TABLE IF NOT EXISTS tobject_templates (
    path TEXT PRIMARY KEY,
    markup TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaTemplates); err != nil {
		return fmt.Errorf("could not create schema: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// Entry is one stored template.
type Entry struct {
	Path      string    `json:"path"`
	Markup    string    `json:"markup"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store holds the database connection and the prepared statements used to
// read and write templates. It is safe for concurrent use.
type Store struct {
	db         *sql.DB
	stmtGet    *sql.Stmt
	stmtPut    *sql.Stmt
	stmtDelete *sql.Stmt
	stmtList   *sql.Stmt
	logger     *slog.Logger
}

const upsertTemplate = `INSERT INTO tobject_templates (path, markup, updated_at) VALUES (?, ?, ?)
ON CONFLICT(path) DO UPDATE SET markup = excluded.markup, updated_at = excluded.updated_at;`

// New returns a Store over db, which must already have the schema from
// SetupSchema.
func New(db *sql.DB) (*Store, error) {
	stmtGet, err := db.Prepare(`SELECT markup, updated_at FROM tobject_templates WHERE path = ?;`)
	if err != nil {
		return nil, err
	}

	stmtPut, err := db.Prepare(upsertTemplate)
	if err != nil {
		return nil, err
	}

	stmtDelete, err := db.Prepare(`DELETE FROM tobject_templates WHERE path = ?;`)
	if err != nil {
		return nil, err
	}

	stmtList, err := db.Prepare(`SELECT path FROM tobject_templates ORDER BY path;`)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:         db,
		stmtGet:    stmtGet,
		stmtPut:    stmtPut,
		stmtDelete: stmtDelete,
		stmtList:   stmtList,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases the prepared statements. The database itself is left open.
func (s *Store) Close() {
	_ = s.stmtGet.Close()
	_ = s.stmtPut.Close()
	_ = s.stmtDelete.Close()
	_ = s.stmtList.Close()
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Put inserts or replaces the template stored at p.
func (s *Store) Put(ctx context.Context, p, markup string) error {
	_, err := s.stmtPut.ExecContext(ctx, Clean(p), markup, time.Now().Unix())
	return err
}

// Get returns the template stored at p. A missing row is reported as
// tobject.ErrNotFound.
func (s *Store) Get(ctx context.Context, p string) (Entry, error) {
	e := Entry{Path: Clean(p)}
	var updated int64
	err := s.stmtGet.QueryRowContext(ctx, e.Path).Scan(&e.Markup, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s: %w", tobject.ErrNotFound, e.Path, err)
	}
	if err != nil {
		return Entry{}, err
	}
	e.UpdatedAt = time.Unix(updated, 0)
	return e, nil
}

// Delete removes the template stored at p. Deleting a missing path is not an
// error.
func (s *Store) Delete(ctx context.Context, p string) error {
	_, err := s.stmtDelete.ExecContext(ctx, Clean(p))
	return err
}

// List returns every stored path in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.stmtList.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var paths []string
	for rows.Next() {
		var p string
		if err = rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return paths, nil
}

// Resolve implements tobject.Loader.
func (s *Store) Resolve(base, name string) string {
	return tobject.JoinSlash(base, name)
}

// Load implements tobject.Loader.
func (s *Store) Load(p string) (tobject.Source, error) {
	e, err := s.Get(context.Background(), p)
	if err != nil {
		return tobject.Source{}, err
	}
	return tobject.Source{Path: e.Path, Dir: path.Dir(e.Path), Markup: e.Markup}, nil
}
