// Package storage persists sessions, messages, and anniversaries in sqlite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/joss/aiko/internal/domain"
)

type Storage struct {
	db   *sql.DB
	path string
}

// Verify Storage implements domain.Store
var _ domain.Store = (*Storage)(nil)

func New(dataDir string) (*Storage, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "aiko.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Storage{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Storage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		archived INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at DESC);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		raw TEXT,
		image_ref TEXT,
		video_ref TEXT,
		timestamp DATETIME NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, timestamp);

	CREATE TABLE IF NOT EXISTS anniversaries (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		month_day TEXT NOT NULL,
		year INTEGER,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// Session operations

func (s *Storage) CreateSession(ctx context.Context, sess *domain.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, title, archived, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, sess.ID, sess.Title, boolToInt(sess.Archived), sess.CreatedAt, sess.UpdatedAt)
	return err
}

func (s *Storage) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	return s.scanSession(s.db.QueryRowContext(ctx, `
		SELECT id, title, archived, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id))
}

func (s *Storage) ActiveSession(ctx context.Context) (*domain.Session, error) {
	sess, err := s.scanSession(s.db.QueryRowContext(ctx, `
		SELECT id, title, archived, created_at, updated_at
		FROM sessions WHERE archived = 0 ORDER BY updated_at DESC LIMIT 1
	`))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sess, err
}

func (s *Storage) ListSessions(ctx context.Context, limit int) ([]*domain.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, archived, created_at, updated_at
		FROM sessions ORDER BY updated_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		sess, err := s.scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *Storage) ArchiveSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET archived = 1 WHERE id = ?`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Storage) scanSession(row rowScanner) (*domain.Session, error) {
	var sess domain.Session
	var archived int
	err := row.Scan(&sess.ID, &sess.Title, &archived, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sess.Archived = archived != 0
	return &sess, nil
}

// Message operations

func (s *Storage) AppendMessage(ctx context.Context, msg *domain.ChatMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, role, text, raw, image_ref, video_ref, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.SessionID, string(msg.Role), msg.Text,
		nullable(msg.Raw), nullable(msg.ImageRef), nullable(msg.VideoRef), msg.Timestamp)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, msg.Timestamp, msg.SessionID)
	return err
}

// RecentMessages returns the newest `limit` messages in chronological order.
func (s *Storage) RecentMessages(ctx context.Context, sessionID string, limit int) ([]*domain.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, text, raw, image_ref, video_ref, timestamp FROM (
			SELECT * FROM messages WHERE session_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?
		) ORDER BY timestamp ASC, id ASC
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		var role string
		var raw, imageRef, videoRef sql.NullString
		if err := rows.Scan(&msg.ID, &msg.SessionID, &role, &msg.Text, &raw, &imageRef, &videoRef, &msg.Timestamp); err != nil {
			return nil, err
		}
		msg.Role = domain.Role(role)
		msg.Raw = raw.String
		msg.ImageRef = imageRef.String
		msg.VideoRef = videoRef.String
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

func (s *Storage) MessageCount(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE session_id = ?`, sessionID).Scan(&count)
	return count, err
}

// Anniversary operations

func (s *Storage) RecordAnniversary(ctx context.Context, a *domain.Anniversary) error {
	if a.ID == "" {
		a.ID = ulid.Make().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO anniversaries (id, kind, name, month_day, year, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID, a.Kind, a.Name, a.MonthDay, nullableInt(a.Year), a.CreatedAt)
	return err
}

func (s *Storage) ListAnniversaries(ctx context.Context) ([]*domain.Anniversary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, name, month_day, year, created_at FROM anniversaries ORDER BY month_day
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Anniversary
	for rows.Next() {
		var a domain.Anniversary
		var year sql.NullInt64
		if err := rows.Scan(&a.ID, &a.Kind, &a.Name, &a.MonthDay, &year, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Year = int(year.Int64)
		out = append(out, &a)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
