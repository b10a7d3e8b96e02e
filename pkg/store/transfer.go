package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"
)

// Export is the serializable form of a whole store, used for JSON backups.
type Export struct {
	Templates []Entry `json:"templates"`
}

// Clean normalizes p to the store's path form: slash-separated, relative to
// the root, no "." or ".." elements.
func Clean(p string) string {
	p = path.Clean("/" + filepath.ToSlash(p))
	if p == "/" {
		return "."
	}
	return p[1:]
}

// ImportDir walks dir and stores every regular file whose base name matches
// pattern (a path.Match pattern; empty matches everything) under its path
// relative to dir. All files are written in a single transaction. It returns
// the number of stored templates.
func (s *Store) ImportDir(ctx context.Context, dir, pattern string) (int, error) {
	if pattern != "" {
		if _, err := path.Match(pattern, ""); err != nil {
			return 0, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("could not begin transaction for import: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	stmtPut := tx.StmtContext(ctx, s.stmtPut)
	now := time.Now().Unix()
	count := 0

	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if pattern != "" {
			if ok, _ := path.Match(pattern, d.Name()); !ok {
				return nil
			}
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		if _, err = stmtPut.ExecContext(ctx, Clean(rel), string(data), now); err != nil {
			return fmt.Errorf("failed to store %s: %w", rel, err)
		}
		count++
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "Templates imported from directory",
		slog.String("dir", dir),
		slog.String("pattern", pattern),
		slog.Int("templates_imported", count),
	)
	return count, nil
}

// Export writes every stored template to w as indented JSON.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	rows, err := s.db.QueryContext(ctx, "SELECT path, markup, updated_at FROM tobject_templates ORDER BY path")
	if err != nil {
		return fmt.Errorf("could not query templates for export: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	exported := Export{Templates: []Entry{}}
	for rows.Next() {
		var e Entry
		var updated int64
		if err = rows.Scan(&e.Path, &e.Markup, &updated); err != nil {
			return err
		}
		e.UpdatedAt = time.Unix(updated, 0).UTC()
		exported.Templates = append(exported.Templates, e)
	}
	if err = rows.Err(); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Templates exported",
		slog.Int("templates_exported", len(exported.Templates)),
	)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exported)
}

// Import reads a JSON export from r and upserts its templates in a single
// transaction. Entries without a timestamp are stamped with the current time.
func (s *Store) Import(ctx context.Context, r io.Reader) error {
	var imported Export
	if err := json.NewDecoder(r).Decode(&imported); err != nil {
		return fmt.Errorf("failed to decode json templates: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction for import: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	stmtPut := tx.StmtContext(ctx, s.stmtPut)
	now := time.Now().Unix()
	for _, e := range imported.Templates {
		updated := now
		if !e.UpdatedAt.IsZero() {
			updated = e.UpdatedAt.Unix()
		}
		if _, err = stmtPut.ExecContext(ctx, Clean(e.Path), e.Markup, updated); err != nil {
			return fmt.Errorf("failed to import template '%s': %w", e.Path, err)
		}
	}

	s.logger.InfoContext(ctx, "Templates imported successfully",
		slog.Int("templates_imported", len(imported.Templates)),
	)

	return tx.Commit()
}
