// Package library keeps named scripts in a SQLite database so they can be
// replayed by name.
package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hid-macro/hid-macro/internal/script"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no script has the requested name.
var ErrNotFound = errors.New("script not found")

// Entry describes a stored script.
type Entry struct {
	ID        string
	Name      string
	Events    int
	Millis    int64
	UpdatedAt time.Time
}

// Store is a script library backed by SQLite.
//
// It expects an *sql.DB that uses the "sqlite" driver registered by
// modernc.org/sqlite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the library database at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create library directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open library: %w", err)
	}
	db.SetMaxOpenConns(1)

	store, err := NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore initializes the schema in db and returns a Store.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("init library schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS scripts (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			body BLOB NOT NULL,
			events INTEGER NOT NULL,
			millis INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
	)
	return err
}

// Save stores scr under name, replacing any script with the same name. It
// returns the script's ID, which is kept across replacements.
func (s *Store) Save(ctx context.Context, name string, scr *script.Script) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("script name cannot be empty")
	}
	if scr == nil {
		return "", errors.New("script cannot be nil")
	}

	body, err := script.Export(scr, script.FormatJSON)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO scripts (id, name, body, events, millis, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			body = excluded.body,
			events = excluded.events,
			millis = excluded.millis,
			updated_at = excluded.updated_at
		RETURNING id`,
		id, name, body, scr.Len(), scr.TotalMillis(), s.now().UnixMilli(),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("save script %q: %w", name, err)
	}
	return id, nil
}

// Get loads the script stored under name. The stored body is validated
// again on the way out.
func (s *Store) Get(ctx context.Context, name string) (*script.Script, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM scripts WHERE name = ?`, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load script %q: %w", name, err)
	}

	scr, err := script.Import(body, script.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("stored script %q: %w", name, err)
	}
	return scr, nil
}

// List returns all entries ordered by name.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, events, millis, updated_at
		FROM scripts
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			updated int64
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Events, &e.Millis, &updated); err != nil {
			return nil, err
		}
		e.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes the script stored under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scripts WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete script %q: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}
