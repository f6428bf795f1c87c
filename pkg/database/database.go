// Package database provides SQLite persistence for session snapshots,
// one of the storage options `ted serve` can select (pkg/store's
// LocalBackend and S3Backend are the others).
package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// PersistedSession is a document snapshot stored in the database: the
// text a session had the last time it was saved, keyed by its uuid.
type PersistedSession struct {
	ID   string
	Text string
}

// Database wraps a SQLite connection.
type Database struct {
	db *sql.DB
}

// New creates a new database connection and runs migrations.
func New(uri string) (*Database, error) {
	db, err := sql.Open("sqlite3", uri)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Database{db: db}, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Load retrieves a session snapshot from the database. A nil result
// with no error means the id has never been persisted.
func (d *Database) Load(id string) (*PersistedSession, error) {
	var doc PersistedSession

	err := d.db.QueryRow(
		"SELECT id, text FROM session WHERE id = ?",
		id,
	).Scan(&doc.ID, &doc.Text)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	return &doc, nil
}

// Store saves a session snapshot to the database (insert or update).
func (d *Database) Store(doc *PersistedSession) error {
	query := `
	INSERT INTO session (id, text)
	VALUES (?, ?)
	ON CONFLICT(id) DO UPDATE SET
		text = excluded.text
	`

	result, err := d.db.Exec(query, doc.ID, doc.Text)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows != 1 {
		return fmt.Errorf("expected 1 row affected, got %d", rows)
	}

	return nil
}

// Count returns the total number of sessions in the database.
func (d *Database) Count() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM session").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return count, nil
}

// Delete removes a session snapshot from the database.
func (d *Database) Delete(id string) error {
	_, err := d.db.Exec("DELETE FROM session WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// SessionStore adapts a Database to internal/session.Manager's Store
// interface, so a SQLite-backed deployment can pass a *Database directly
// where the manager wants a ctx-shaped Save/Load pair.
type SessionStore struct {
	db *Database
}

// NewSessionStore wraps db for use as a Manager Store.
func NewSessionStore(db *Database) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Save(ctx context.Context, id string, text string) error {
	return s.db.Store(&PersistedSession{ID: id, Text: text})
}

func (s *SessionStore) Load(ctx context.Context, id string) (string, bool, error) {
	doc, err := s.db.Load(id)
	if err != nil {
		return "", false, err
	}
	if doc == nil {
		return "", false, nil
	}
	return doc.Text, true, nil
}
