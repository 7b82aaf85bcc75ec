package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/emberlake/attune/internal/conversation"
	"github.com/emberlake/attune/internal/engine"
	"github.com/emberlake/attune/internal/store"
)

func newTestManager(t *testing.T, repo store.Repository) *Manager {
	t.Helper()
	historyDir := t.TempDir()
	factory := func(sessionID string) *engine.Orchestrator {
		// No collaborators configured: turns run on the lexicon and canned
		// responses, which is all these tests need.
		return engine.NewOrchestrator(engine.Options{
			Ledger: conversation.NewLedger(historyDir),
		})
	}
	return NewManager(factory, repo, nil)
}

func newTestRepo(t *testing.T) store.Repository {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	})
	return repo
}

func TestManager_AcquireCreatesOnce(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	s1 := m.Acquire(ctx, "user-1", "sess-1")
	s2 := m.Acquire(ctx, "user-1", "sess-1")

	if s1 != s2 {
		t.Error("Expected same session for same ID")
	}
	if m.Count() != 1 {
		t.Errorf("Expected 1 session, got %d", m.Count())
	}
}

func TestManager_SessionIDsScopedPerUser(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	s1 := m.Acquire(ctx, "user-1", "default")
	s2 := m.Acquire(ctx, "user-2", "default")

	if s1 == s2 {
		t.Error("Expected distinct sessions for distinct users sharing a session ID")
	}
	if m.Count() != 2 {
		t.Errorf("Expected 2 sessions, got %d", m.Count())
	}
}

func TestManager_AcquireGeneratesID(t *testing.T) {
	m := newTestManager(t, nil)

	s := m.Acquire(context.Background(), "user-1", "")
	if s.ID == "" {
		t.Error("Expected generated session ID")
	}
}

func TestManager_SessionsAreIsolated(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	s1 := m.Acquire(ctx, "user-1", "sess-1")
	s2 := m.Acquire(ctx, "user-2", "sess-2")

	if _, err := s1.ProcessTurn(ctx, "I am so happy today", 0.5); err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}

	var len1, len2 int
	s1.View(func(o *engine.Orchestrator) { len1 = o.Ledger().Len() })
	s2.View(func(o *engine.Orchestrator) { len2 = o.Ledger().Len() })

	if len1 != 2 {
		t.Errorf("Expected 2 messages in first session, got %d", len1)
	}
	if len2 != 0 {
		t.Errorf("Expected second session untouched, got %d messages", len2)
	}
}

func TestManager_Evict(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	s := m.Acquire(ctx, "user-1", "sess-1")
	m.Evict(ctx, s.ID)

	if m.Get(s.ID) != nil {
		t.Error("Expected evicted session gone")
	}
	if m.Count() != 0 {
		t.Errorf("Expected 0 sessions, got %d", m.Count())
	}
}

func TestManager_RegistryTouchAndEvict(t *testing.T) {
	repo := newTestRepo(t)
	m := newTestManager(t, repo)
	ctx := context.Background()

	s := m.Acquire(ctx, "user-1", "sess-1")

	expired, err := repo.GetExpiredSessions(ctx, -time.Second)
	if err != nil {
		t.Fatalf("GetExpiredSessions failed: %v", err)
	}
	if len(expired) != 1 || expired[0] != s.ID {
		t.Fatalf("Expected registry entry for acquired session, got %v", expired)
	}

	m.Evict(ctx, s.ID)
	expired, err = repo.GetExpiredSessions(ctx, -time.Second)
	if err != nil {
		t.Fatalf("GetExpiredSessions failed: %v", err)
	}
	if len(expired) != 0 {
		t.Errorf("Expected registry entry deleted on evict, got %d", len(expired))
	}
}

func TestSession_Reset(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	s := m.Acquire(ctx, "user-1", "sess-1")
	if _, err := s.ProcessTurn(ctx, "hello there", 0.5); err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}

	newID := s.Reset()
	if newID == "" {
		t.Error("Expected a conversation ID after reset")
	}

	var msgs int
	s.View(func(o *engine.Orchestrator) { msgs = o.Ledger().Len() })
	if msgs != 0 {
		t.Errorf("Expected empty ledger after reset, got %d messages", msgs)
	}
}

func TestSession_SaveRestore(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	s := m.Acquire(ctx, "user-1", "sess-1")
	if _, err := s.ProcessTurn(ctx, "I am so happy today", 0.5); err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}

	path, err := s.Save()
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	other := m.Acquire(ctx, "user-1", "sess-2")
	id, err := other.Restore(path)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if id == "" {
		t.Error("Expected restored conversation ID")
	}

	var msgs, hist int
	other.View(func(o *engine.Orchestrator) {
		msgs = o.Ledger().Len()
		hist = o.History().Len()
	})
	if msgs != 2 {
		t.Errorf("Expected 2 restored messages, got %d", msgs)
	}
	if hist != 1 {
		t.Errorf("Expected rebuilt emotion window with 1 record, got %d", hist)
	}
}
