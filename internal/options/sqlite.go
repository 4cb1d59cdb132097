package options

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite keeps options in a single table keyed by name.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path. Use ":memory:" in tests.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open options db: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	s, err := NewSQLite(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLite creates the options table if needed and returns a store.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	s := &SQLite{db: db}
	if err := s.init(); err != nil {
		return nil, fmt.Errorf("init options table: %w", err)
	}
	return s, nil
}

func (s *SQLite) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS options (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`)
	return err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, name string) (map[string]any, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM options WHERE name = ?`, name)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get option %s: %w", name, err)
	}
	value := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, false, fmt.Errorf("decode option %s: %w", name, err)
	}
	return value, true, nil
}

func (s *SQLite) Put(ctx context.Context, name string, value map[string]any) error {
	if value == nil {
		value = map[string]any{}
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode option %s: %w", name, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO options (name, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, string(raw), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put option %s: %w", name, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM options WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete option %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete option %s: %w", name, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) Names(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM options WHERE substr(name, 1, ?) = ? ORDER BY name`,
		len(prefix), prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list options: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
