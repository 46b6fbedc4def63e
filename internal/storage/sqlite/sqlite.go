package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/basicrecords/moodjournal/internal/domain"
)

const timeLayout = time.RFC3339Nano

// Store persists users and entries in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. ":memory:" keeps
// everything in process memory.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and avoids
	// SQLITE_BUSY between writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			firebase_id TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL DEFAULT '',
			display_name TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS entries (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			mood TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_user_created ON entries(user_id, created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateUser stores u, rejecting a duplicate id or firebase uid.
func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, firebase_id, email, display_name, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.FirebaseID, u.Email, u.DisplayName, u.CreatedAt.UTC().Format(timeLayout), u.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		if isConstraint(err) {
			return fmt.Errorf("user %s: %w", u.ID, domain.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser returns the user with id.
func (s *Store) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, firebase_id, email, display_name, created_at, updated_at FROM users WHERE id = ?`, id)
	return scanUser(row, "user "+id)
}

// FindUserByFirebaseID looks a user up by auth provider uid.
func (s *Store) FindUserByFirebaseID(ctx context.Context, firebaseID string) (domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, firebase_id, email, display_name, created_at, updated_at FROM users WHERE firebase_id = ?`, firebaseID)
	return scanUser(row, fmt.Sprintf("firebase id %q", firebaseID))
}

// DeleteUser relies on ON DELETE CASCADE to drop the user's entries.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectRow(res, "user "+id)
}

// CreateEntry stores e, rejecting a duplicate id.
func (s *Store) CreateEntry(ctx context.Context, e domain.Entry) error {
	mood, err := encodeMood(e.Mood)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entries (id, user_id, title, body, mood, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Title, e.Body, mood, formatTimestamp(e.CreatedAt), formatTimestamp(e.UpdatedAt))
	if err != nil {
		if isConstraint(err) {
			return fmt.Errorf("entry %s: %w", e.ID, domain.ErrConflict)
		}
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// GetEntry returns the entry with id.
func (s *Store) GetEntry(ctx context.Context, id string) (domain.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, body, mood, created_at, updated_at FROM entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Entry{}, fmt.Errorf("entry %s: %w", id, domain.ErrNotFound)
	}
	return e, err
}

// ListEntries returns entries newest first. Timestamps are stored as
// fixed-width UTC RFC3339 strings so lexical order matches time order.
func (s *Store) ListEntries(ctx context.Context, q domain.EntryQuery) ([]domain.Entry, error) {
	query := `SELECT id, user_id, title, body, mood, created_at, updated_at FROM entries`
	var args []any
	if q.UserID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, q.UserID)
	}
	query += ` ORDER BY created_at DESC, id ASC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	out := []domain.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateEntry replaces an existing entry.
func (s *Store) UpdateEntry(ctx context.Context, e domain.Entry) error {
	mood, err := encodeMood(e.Mood)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE entries SET title = ?, body = ?, mood = ?, updated_at = ? WHERE id = ?`,
		e.Title, e.Body, mood, formatTimestamp(e.UpdatedAt), e.ID)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	return expectRow(res, "entry "+e.ID)
}

// DeleteEntry removes the entry with id.
func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return expectRow(res, "entry "+id)
}

// Stats counts stored users and entries.
func (s *Store) Stats(ctx context.Context) (users, entries int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM users), (SELECT COUNT(*) FROM entries)`).Scan(&users, &entries)
	if err != nil {
		return 0, 0, fmt.Errorf("count records: %w", err)
	}
	return users, entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner, what string) (domain.User, error) {
	var u domain.User
	var created, updated string
	err := row.Scan(&u.ID, &u.FirebaseID, &u.Email, &u.DisplayName, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt, _ = time.Parse(timeLayout, created)
	u.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return u, nil
}

func scanEntry(row scanner) (domain.Entry, error) {
	var e domain.Entry
	var mood, created, updated string
	if err := row.Scan(&e.ID, &e.UserID, &e.Title, &e.Body, &mood, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Entry{}, err
		}
		return domain.Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	if err := json.Unmarshal([]byte(mood), &e.Mood); err != nil {
		return domain.Entry{}, fmt.Errorf("decode mood of entry %s: %w", e.ID, err)
	}
	if len(e.Mood) == 0 {
		e.Mood = nil
	}
	e.CreatedAt, _ = domain.ParseTimestamp(created)
	e.UpdatedAt, _ = domain.ParseTimestamp(updated)
	return e, nil
}

func encodeMood(m domain.Mood) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode mood: %w", err)
	}
	return string(data), nil
}

// formatTimestamp writes a fixed-width UTC form so ORDER BY sorts correctly.
func formatTimestamp(ts domain.Timestamp) string {
	if !ts.Valid() {
		return ""
	}
	return ts.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

func expectRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return nil
}

func isConstraint(err error) bool {
	return strings.Contains(err.Error(), "constraint failed")
}
