// Package domain contains core domain types for the Attune application.
package domain

import (
	"time"
)

// ConversationMeta is the indexed metadata for one persisted conversation.
// The full message history lives in the JSON snapshot at SnapshotPath; the
// index only carries what the listing UI needs.
type ConversationMeta struct {
	ConversationID string    `json:"conversation_id"`
	SnapshotPath   string    `json:"snapshot_path"`
	TurnCount      int       `json:"turn_count"`
	LastEmotion    string    `json:"last_emotion,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
