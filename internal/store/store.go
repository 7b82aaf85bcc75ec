// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/emberlake/attune/internal/domain"
)

// Repository defines the interface for persisting the conversation index and
// session registry.
type Repository interface {
	// UpsertConversation creates or updates a conversation index entry.
	UpsertConversation(ctx context.Context, meta *domain.ConversationMeta) error

	// GetConversation retrieves one index entry, or nil when absent.
	GetConversation(ctx context.Context, conversationID string) (*domain.ConversationMeta, error)

	// ListConversations returns index entries, most recently updated first.
	ListConversations(ctx context.Context, limit int) ([]*domain.ConversationMeta, error)

	// TouchSession creates or refreshes a session registry entry.
	TouchSession(ctx context.Context, session *domain.ChatSession) error

	// GetExpiredSessions returns session IDs idle longer than ttl.
	GetExpiredSessions(ctx context.Context, ttl time.Duration) ([]string, error)

	// DeleteSession removes a session registry entry.
	DeleteSession(ctx context.Context, sessionID string) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
