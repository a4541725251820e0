// Package store keeps a SQLite snapshot of workspace symbols so they can be
// looked up by name without rescanning the tree.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"shaderls/internal/search/symbols"
)

// DefaultLimit caps FindSymbol results when no limit is given.
const DefaultLimit = 50

// Store is an open snapshot database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the snapshot at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one connection keeps :memory: databases and WAL writers consistent
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ReplaceFile stores syms as the complete symbol set of path.
func (s *Store) ReplaceFile(path string, syms []symbols.Symbol) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM symbols WHERE path = ?", path); err != nil {
		return fmt.Errorf("clearing symbols for %s: %w", path, err)
	}

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO symbols
		(name, kind, path, uri, line, col, end_line, end_col)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, sym := range syms {
		r := sym.Location.Range
		if _, err := stmt.Exec(sym.Name, sym.Kind.String(), path, sym.Location.URI,
			r.Start.Line, r.Start.Character, r.End.Line, r.End.Character); err != nil {
			return fmt.Errorf("inserting symbol %s: %w", sym.Name, err)
		}
	}

	if _, err := tx.Exec(`INSERT OR REPLACE INTO files (path, symbols, indexed_at) VALUES (?, ?, ?)`,
		path, len(syms), time.Now().Unix()); err != nil {
		return fmt.Errorf("recording file %s: %w", path, err)
	}

	return tx.Commit()
}

// RemoveFile drops path and its symbols.
func (s *Store) RemoveFile(path string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM symbols WHERE path = ?", path); err != nil {
		return fmt.Errorf("clearing symbols for %s: %w", path, err)
	}
	if _, err := tx.Exec("DELETE FROM files WHERE path = ?", path); err != nil {
		return fmt.Errorf("removing file %s: %w", path, err)
	}
	return tx.Commit()
}

// Files returns the indexed paths.
func (s *Store) Files() ([]string, error) {
	rows, err := s.db.Query("SELECT path FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("querying files: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// FindSymbol returns symbols whose name contains name, exact matches first,
// then prefix matches, then the rest by name. A zero kind matches any kind.
func (s *Store) FindSymbol(name string, kind symbols.Kind, limit int) ([]symbols.Symbol, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `SELECT name, kind, uri, line, col, end_line, end_col
		FROM symbols
		WHERE name LIKE ? ESCAPE '\'`
	args := []any{"%" + escapeLike(name) + "%"}
	if kind != 0 {
		query += " AND kind = ?"
		args = append(args, kind.String())
	}
	query += `
		ORDER BY
			CASE WHEN name = ? THEN 0
				 WHEN name LIKE ? ESCAPE '\' THEN 1
				 ELSE 2 END,
			name, path, line
		LIMIT ?`
	args = append(args, name, escapeLike(name)+"%", limit)

	return s.query(query, args...)
}

// ListDefsInFile returns the symbols of path in line order.
func (s *Store) ListDefsInFile(path string) ([]symbols.Symbol, error) {
	return s.query(`SELECT name, kind, uri, line, col, end_line, end_col
		FROM symbols
		WHERE path = ?
		ORDER BY line, col`, path)
}

// Stats returns the number of symbols and files in the snapshot.
func (s *Store) Stats() (symbolCount int, fileCount int, err error) {
	if err := s.db.QueryRow("SELECT COUNT(*) FROM symbols").Scan(&symbolCount); err != nil {
		return 0, 0, fmt.Errorf("counting symbols: %w", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&fileCount); err != nil {
		return 0, 0, fmt.Errorf("counting files: %w", err)
	}
	return symbolCount, fileCount, nil
}

func (s *Store) query(query string, args ...any) ([]symbols.Symbol, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying symbols: %w", err)
	}
	defer rows.Close()

	result := []symbols.Symbol{}
	for rows.Next() {
		var (
			sym  symbols.Symbol
			kind string
			r    = &sym.Location.Range
		)
		if err := rows.Scan(&sym.Name, &kind, &sym.Location.URI,
			&r.Start.Line, &r.Start.Character, &r.End.Line, &r.End.Character); err != nil {
			return nil, fmt.Errorf("scanning symbol: %w", err)
		}
		k, ok := symbols.ParseKind(kind)
		if !ok {
			return nil, fmt.Errorf("unknown symbol kind %q", kind)
		}
		sym.Kind = k
		result = append(result, sym)
	}
	return result, rows.Err()
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
