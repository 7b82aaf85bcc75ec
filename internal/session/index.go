package session

import (
	"context"

	"github.com/emberlake/attune/internal/domain"
	"github.com/emberlake/attune/internal/engine"
	"github.com/emberlake/attune/internal/store"
)

// repoIndex adapts the store repository to the orchestrator's index port.
type repoIndex struct {
	repo store.Repository
}

// NewConversationIndex wraps a repository as an engine.ConversationIndex.
func NewConversationIndex(repo store.Repository) engine.ConversationIndex {
	return repoIndex{repo: repo}
}

func (i repoIndex) RecordConversation(ctx context.Context, entry engine.IndexEntry) error {
	return i.repo.UpsertConversation(ctx, &domain.ConversationMeta{
		ConversationID: entry.ConversationID,
		SnapshotPath:   entry.SnapshotPath,
		TurnCount:      entry.TurnCount,
		LastEmotion:    entry.LastEmotion,
		CreatedAt:      entry.UpdatedAt,
		UpdatedAt:      entry.UpdatedAt,
	})
}
