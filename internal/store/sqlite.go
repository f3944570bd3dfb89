// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides local session, cache and transcript persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// messageTimeFormat is fixed width so that text ordering matches time ordering
const messageTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection keeps :memory: databases coherent and avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Debug("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS auth_session (
			id         INTEGER PRIMARY KEY CHECK (id = 1),
			token      TEXT NOT NULL,
			email      TEXT,
			expires_at TEXT,
			saved_at   TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS chat_sessions (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_chat_sessions_updated ON chat_sessions(updated_at DESC);

		CREATE TABLE IF NOT EXISTS chat_messages (
			id         TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
			role       TEXT NOT NULL,
			content    TEXT NOT NULL,
			tools_json TEXT,
			created_at TEXT NOT NULL,

			CHECK (role IN ('user', 'assistant'))
		);

		CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Debug("closing SQLite store")
	return s.db.Close()
}

// GetValue returns a cached value. Returns ErrNotFound if the key is absent.
func (s *SQLiteStore) GetValue(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying kv: %w", err)
	}
	return value, nil
}

// SetValue inserts or replaces a cached value.
func (s *SQLiteStore) SetValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting kv: %w", err)
	}
	return nil
}

// LoadToken returns the saved session. Returns ErrNotFound when logged out.
func (s *SQLiteStore) LoadToken(ctx context.Context) (*SavedSession, error) {
	var (
		sess      SavedSession
		email     sql.NullString
		expiresAt sql.NullString
		savedAt   string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT token, email, expires_at, saved_at FROM auth_session WHERE id = 1`,
	).Scan(&sess.Token, &email, &expiresAt, &savedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying auth session: %w", err)
	}

	sess.Email = email.String
	if expiresAt.Valid && expiresAt.String != "" {
		t, err := time.Parse(time.RFC3339, expiresAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing expires_at: %w", err)
		}
		sess.ExpiresAt = &t
	}
	sess.SavedAt, err = time.Parse(time.RFC3339, savedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing saved_at: %w", err)
	}

	return &sess, nil
}

// SaveToken replaces the saved session.
func (s *SQLiteStore) SaveToken(ctx context.Context, session *SavedSession) error {
	var expiresAt sql.NullString
	if session.ExpiresAt != nil {
		expiresAt = sql.NullString{String: session.ExpiresAt.UTC().Format(time.RFC3339), Valid: true}
	}
	savedAt := session.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_session (id, token, email, expires_at, saved_at) VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			email = excluded.email,
			expires_at = excluded.expires_at,
			saved_at = excluded.saved_at
	`, session.Token, nullString(session.Email), expiresAt, savedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving auth session: %w", err)
	}

	s.logger.Debug("saved auth session", "email", session.Email)
	return nil
}

// ClearToken removes the saved session. Clearing an empty store is not an error.
func (s *SQLiteStore) ClearToken(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM auth_session`); err != nil {
		return fmt.Errorf("clearing auth session: %w", err)
	}
	return nil
}

// UpsertChatSession creates or updates a chat session record.
func (s *SQLiteStore) UpsertChatSession(ctx context.Context, session *ChatSession) error {
	now := time.Now()
	created := session.CreatedAt
	if created.IsZero() {
		created = now
	}
	updated := session.UpdatedAt
	if updated.IsZero() {
		updated = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = CASE WHEN excluded.title != '' THEN excluded.title ELSE chat_sessions.title END,
			updated_at = excluded.updated_at
	`, session.ID, session.Title, created.UTC().Format(time.RFC3339), updated.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting chat session: %w", err)
	}
	return nil
}

// ListChatSessions returns sessions ordered by most recent activity.
func (s *SQLiteStore) ListChatSessions(ctx context.Context, limit int) ([]*ChatSession, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, created_at, updated_at
		FROM chat_sessions
		ORDER BY updated_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying chat sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*ChatSession
	for rows.Next() {
		var (
			cs                 ChatSession
			created, updatedAt string
		)
		if err := rows.Scan(&cs.ID, &cs.Title, &created, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning chat session: %w", err)
		}
		if cs.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if cs.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		sessions = append(sessions, &cs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chat sessions: %w", err)
	}
	return sessions, nil
}

// AppendChatMessage stores a message. The session must already exist.
func (s *SQLiteStore) AppendChatMessage(ctx context.Context, msg *ChatMessage) error {
	var toolsJSON sql.NullString
	if len(msg.ToolsUsed) > 0 {
		b, err := json.Marshal(msg.ToolsUsed)
		if err != nil {
			return fmt.Errorf("encoding tools: %w", err)
		}
		toolsJSON = sql.NullString{String: string(b), Valid: true}
	}
	created := msg.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, session_id, role, content, tools_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, msg.ID, msg.SessionID, msg.Role, msg.Content, toolsJSON, created.UTC().Format(messageTimeFormat))
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("session %s: %w", msg.SessionID, ErrNotFound)
		}
		return fmt.Errorf("inserting chat message: %w", err)
	}
	return nil
}

// GetChatMessages returns a session's messages in chronological order.
func (s *SQLiteStore) GetChatMessages(ctx context.Context, sessionID string) ([]*ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, tools_json, created_at
		FROM chat_messages
		WHERE session_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying chat messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []*ChatMessage
	for rows.Next() {
		var (
			m         ChatMessage
			toolsJSON sql.NullString
			created   string
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &toolsJSON, &created); err != nil {
			return nil, fmt.Errorf("scanning chat message: %w", err)
		}
		if toolsJSON.Valid && toolsJSON.String != "" {
			if err := json.Unmarshal([]byte(toolsJSON.String), &m.ToolsUsed); err != nil {
				return nil, fmt.Errorf("decoding tools: %w", err)
			}
		}
		if m.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		msgs = append(msgs, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chat messages: %w", err)
	}
	return msgs, nil
}

// DeleteChatSession removes a session and its messages.
// Returns ErrNotFound if the session doesn't exist.
func (s *SQLiteStore) DeleteChatSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting chat session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// isForeignKeyViolation checks if the error is a SQLite foreign key violation
func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
