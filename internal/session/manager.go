// Package session owns the per-session conversation state: each session gets
// its own ledger, emotion window, personality profile, and orchestrator,
// never shared across sessions.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emberlake/attune/internal/conversation"
	"github.com/emberlake/attune/internal/domain"
	"github.com/emberlake/attune/internal/engine"
	"github.com/emberlake/attune/internal/store"
)

// Factory builds a fresh orchestrator for a new session.
type Factory func(sessionID string) *engine.Orchestrator

// Session is the state container for one live conversation. Turns are
// strictly sequential within a session: history and profile mutation is not
// commutative with later trend and strategy computation, so the session
// mutex is held for the whole turn.
type Session struct {
	ID     string
	UserID string

	mu           sync.Mutex
	orchestrator *engine.Orchestrator
}

// ProcessTurn runs one turn, holding the session lock end to end.
func (s *Session) ProcessTurn(ctx context.Context, text string, engagement float64) (*engine.TurnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orchestrator.ProcessTurnWithEngagement(ctx, text, engagement)
}

// View runs fn with the session lock held, for read endpoints that need a
// consistent sight of ledger, history, and profile together.
func (s *Session) View(fn func(o *engine.Orchestrator)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.orchestrator)
}

// Reset starts a fresh conversation within the session.
func (s *Session) Reset() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orchestrator.Reset()
	return s.orchestrator.Ledger().ID()
}

// Save persists the current ledger snapshot and returns its location.
func (s *Session) Save() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orchestrator.Ledger().Save()
}

// Restore loads a persisted conversation into the session, replacing the
// current ledger and rebuilding the emotion window.
func (s *Session) Restore(path string) (string, error) {
	ledger, err := conversation.Load(path)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orchestrator.ReplaceLedger(ledger)
	return ledger.ID(), nil
}

// Manager tracks live sessions and their owners.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	factory  Factory
	repo     store.Repository
	logger   *slog.Logger
}

// NewManager creates a session manager. repo may be nil when no registry is
// configured.
func NewManager(factory Factory, repo store.Repository, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		factory:  factory,
		repo:     repo,
		logger:   logger,
	}
}

// Acquire returns the session for (userID, sessionID), creating it if
// needed. An empty sessionID gets a generated one. Sessions are scoped to the
// user: the same client-supplied session ID never collides across users. The
// registry entry is refreshed on every acquire so the TTL worker sees
// activity.
func (m *Manager) Acquire(ctx context.Context, userID, sessionID string) *Session {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	key := userID + "/" + sessionID

	m.mu.Lock()
	sess, ok := m.sessions[key]
	if !ok {
		sess = &Session{
			ID:           key,
			UserID:       userID,
			orchestrator: m.factory(key),
		}
		m.sessions[key] = sess
		m.logger.Info("chat session created", "user_id", userID, "session_id", key)
	}
	m.mu.Unlock()

	m.touchRegistry(ctx, sess)
	return sess
}

// Get returns an existing session or nil.
func (m *Manager) Get(sessionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[sessionID]
}

// Evict drops a session from memory and the registry.
func (m *Manager) Evict(ctx context.Context, sessionID string) {
	m.mu.Lock()
	_, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if ok {
		m.logger.Info("chat session evicted", "session_id", sessionID)
	}
	if m.repo != nil {
		if err := m.repo.DeleteSession(ctx, sessionID); err != nil {
			m.logger.Warn("failed to delete session registry entry", "session_id", sessionID, "error", err)
		}
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) touchRegistry(ctx context.Context, sess *Session) {
	if m.repo == nil {
		return
	}
	var conversationID string
	sess.View(func(o *engine.Orchestrator) {
		conversationID = o.Ledger().ID()
	})
	now := time.Now().UTC()
	entry := &domain.ChatSession{
		SessionID:      sess.ID,
		UserID:         sess.UserID,
		ConversationID: conversationID,
		LastSeenAt:     now,
		CreatedAt:      now,
	}
	if err := m.repo.TouchSession(ctx, entry); err != nil {
		m.logger.Warn("failed to touch session registry", "session_id", sess.ID, "error", err)
	}
}

// StartTTLWorker evicts sessions idle longer than ttl on a fixed interval,
// until ctx is done.
func (m *Manager) StartTTLWorker(ctx context.Context, ttl, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		m.logger.Info("session TTL worker started", "ttl", ttl, "interval", interval)

		for {
			select {
			case <-ticker.C:
				m.evictExpired(ctx, ttl)
			case <-ctx.Done():
				m.logger.Info("session TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func (m *Manager) evictExpired(ctx context.Context, ttl time.Duration) {
	if m.repo == nil {
		return
	}
	expired, err := m.repo.GetExpiredSessions(ctx, ttl)
	if err != nil {
		m.logger.Error("TTL worker failed to get expired sessions", "error", err)
		return
	}
	if len(expired) == 0 {
		return
	}
	m.logger.Info("TTL worker found expired sessions", "count", len(expired))
	for _, id := range expired {
		m.Evict(ctx, id)
	}
}
