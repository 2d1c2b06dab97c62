// Package cache remembers the last printer used so commands can reconnect
// without scanning.
package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

//go:embed schema.sql
var schema string

const DefaultTTL = 24 * time.Hour

type Printer struct {
	Address  string
	Name     string
	LastUsed time.Time
}

type Store struct {
	Db  *sql.DB
	now func() time.Time
}

// DefaultPath is the cache file under the user's cache directory.
func DefaultPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("Couldn't find cache directory:\n%w", err)
	}
	return filepath.Join(dir, "p31print", "printer.db"), nil
}

// Open creates the database at path if needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("Couldn't create cache directory:\n%w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("Couldn't open database:\n%w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("Couldn't initialise database:\n%w", err)
	}
	return &Store{Db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.Db.Close()
}

// Save records address as the last printer used, replacing any earlier one.
func (s *Store) Save(ctx context.Context, address, name string) error {
	_, err := s.Db.ExecContext(ctx, `
		INSERT INTO last_printer (id, address, name, last_used)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			address = excluded.address,
			name = excluded.name,
			last_used = excluded.last_used`,
		address, name, s.now().Unix())
	if err != nil {
		return fmt.Errorf("Failed to save printer:\n%w", err)
	}
	return nil
}

// Load returns the last printer if it was used within ttl, or nil.
func (s *Store) Load(ctx context.Context, ttl time.Duration) (*Printer, error) {
	row := s.Db.QueryRowContext(ctx, `
		SELECT address, name, last_used
		FROM last_printer
		WHERE id = 1`)

	var p Printer
	var lastUsed int64
	if err := row.Scan(&p.Address, &p.Name, &lastUsed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("Failed to read printer:\n%w", err)
	}
	p.LastUsed = time.Unix(lastUsed, 0)

	if ttl > 0 && s.now().Sub(p.LastUsed) > ttl {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.Db.ExecContext(ctx, `DELETE FROM last_printer`); err != nil {
		return fmt.Errorf("Failed to clear printer:\n%w", err)
	}
	return nil
}
