package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/emberlake/attune/internal/domain"
	"github.com/emberlake/attune/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS conversations (
		conversation_id TEXT PRIMARY KEY,
		snapshot_path TEXT NOT NULL,
		turn_count INTEGER NOT NULL DEFAULT 0,
		last_emotion TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at);

	CREATE TABLE IF NOT EXISTS chat_sessions (
		session_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		conversation_id TEXT,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_sessions_last_seen ON chat_sessions(last_seen_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// execWithRetry runs a write statement, retrying once on a SQLite concurrency
// conflict. The busy_timeout pragma handles most contention; this covers the
// locked-database errors the driver surfaces anyway under WAL checkpointing.
func (s *SQLiteStore) execWithRetry(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	if err != nil && shared.IsSQLiteConflictError(err) {
		slog.Warn("sqlite write conflict, retrying", "error", err)
		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
		_, err = s.db.ExecContext(ctx, query, args...)
	}
	return err
}

// UpsertConversation creates or updates a conversation index entry.
func (s *SQLiteStore) UpsertConversation(ctx context.Context, meta *domain.ConversationMeta) error {
	query := `
	INSERT INTO conversations (conversation_id, snapshot_path, turn_count, last_emotion, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(conversation_id) DO UPDATE SET
		snapshot_path = excluded.snapshot_path,
		turn_count = excluded.turn_count,
		last_emotion = excluded.last_emotion,
		updated_at = excluded.updated_at`

	var lastEmotion interface{}
	if meta.LastEmotion != "" {
		lastEmotion = meta.LastEmotion
	}

	err := s.execWithRetry(ctx, query,
		meta.ConversationID, meta.SnapshotPath, meta.TurnCount, lastEmotion,
		meta.CreatedAt.Unix(), meta.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves one index entry, or nil when absent.
func (s *SQLiteStore) GetConversation(ctx context.Context, conversationID string) (*domain.ConversationMeta, error) {
	query := `
		SELECT conversation_id, snapshot_path, turn_count, last_emotion, created_at, updated_at
		FROM conversations WHERE conversation_id = ?`

	row := s.db.QueryRowContext(ctx, query, conversationID)

	meta, err := scanConversation(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation row: %w", err)
	}
	return meta, nil
}

// ListConversations returns index entries, most recently updated first.
func (s *SQLiteStore) ListConversations(ctx context.Context, limit int) ([]*domain.ConversationMeta, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT conversation_id, snapshot_path, turn_count, last_emotion, created_at, updated_at
		FROM conversations ORDER BY updated_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close conversation rows", "error", closeErr)
		}
	}()

	var metas []*domain.ConversationMeta
	for rows.Next() {
		meta, err := scanConversation(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		metas = append(metas, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return metas, nil
}

func scanConversation(scan func(...any) error) (*domain.ConversationMeta, error) {
	var meta domain.ConversationMeta
	var lastEmotion sql.NullString
	var createdAt, updatedAt int64

	if err := scan(
		&meta.ConversationID, &meta.SnapshotPath, &meta.TurnCount,
		&lastEmotion, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	meta.LastEmotion = lastEmotion.String
	meta.CreatedAt = time.Unix(createdAt, 0)
	meta.UpdatedAt = time.Unix(updatedAt, 0)
	return &meta, nil
}

// TouchSession creates or refreshes a session registry entry.
func (s *SQLiteStore) TouchSession(ctx context.Context, session *domain.ChatSession) error {
	query := `
	INSERT INTO chat_sessions (session_id, user_id, conversation_id, last_seen_at, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		conversation_id = excluded.conversation_id,
		last_seen_at = excluded.last_seen_at`

	var conversationID interface{}
	if session.ConversationID != "" {
		conversationID = session.ConversationID
	}

	err := s.execWithRetry(ctx, query,
		session.SessionID, session.UserID, conversationID,
		session.LastSeenAt.Unix(), session.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// GetExpiredSessions returns session IDs idle longer than ttl.
func (s *SQLiteStore) GetExpiredSessions(ctx context.Context, ttl time.Duration) ([]string, error) {
	threshold := time.Now().Add(-ttl).Unix()
	query := `SELECT session_id FROM chat_sessions WHERE last_seen_at < ?`

	rows, err := s.db.QueryContext(ctx, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("query expired sessions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close expired session rows", "error", closeErr)
		}
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired session row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired sessions: %w", err)
	}
	return ids, nil
}

// DeleteSession removes a session registry entry.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		slog.Debug("DeleteSession affected 0 rows", "session_id", sessionID)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
