// Package api provides HTTP handlers for the Attune conversation API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/emberlake/attune/internal/config"
	"github.com/emberlake/attune/internal/conversation"
	"github.com/emberlake/attune/internal/emotion"
	"github.com/emberlake/attune/internal/engine"
	"github.com/emberlake/attune/internal/identity"
	"github.com/emberlake/attune/internal/personality"
	"github.com/emberlake/attune/internal/session"
	"github.com/emberlake/attune/internal/store"
)

// conversationIDPattern guards snapshot lookups against path traversal.
var conversationIDPattern = regexp.MustCompile(`^conv_[0-9]{8}_[0-9]{6}$`)

// Handler handles conversation HTTP requests.
type Handler struct {
	sessions    *session.Manager
	repo        store.Repository
	metrics     *engine.Metrics
	rateLimiter *RateLimiter
	cfg         *config.Config
}

// NewHandler creates a Handler with common dependencies.
func NewHandler(sessions *session.Manager, repo store.Repository, metrics *engine.Metrics, cfg *config.Config) *Handler {
	return &Handler{
		sessions:    sessions,
		repo:        repo,
		metrics:     metrics,
		rateLimiter: NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration),
		cfg:         cfg,
	}
}

// RateLimiter exposes the handler's per-user limiter so other transports
// (the WebSocket endpoint) draw from the same request budget.
func (h *Handler) RateLimiter() *RateLimiter {
	return h.rateLimiter
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// RegisterRoutes mounts the conversation API.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", h.HandleChat)
		r.Get("/conversation", h.HandleConversation)
		r.Post("/conversation/new", h.HandleNewConversation)
		r.Post("/conversation/save", h.HandleSaveConversation)
		r.Post("/conversation/load", h.HandleLoadConversation)
		r.Get("/conversations", h.HandleListConversations)
		r.Get("/emotions/trend", h.HandleEmotionTrend)
		r.Get("/personality", h.HandlePersonality)
		r.Get("/stats", h.HandleStats)
	})
}

type chatRequest struct {
	Message    string   `json:"message"`
	Engagement *float64 `json:"engagement,omitempty"`
}

type chatResponse struct {
	*engine.TurnResult
	ConversationID string `json:"conversation_id"`
	PersistWarning string `json:"persist_warning,omitempty"`
}

// HandleChat handles POST /api/chat requests: one full conversation turn.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if !h.rateLimiter.Allow(userID) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxRequestBodySize)
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	engagement := personality.DefaultEngagement
	if req.Engagement != nil {
		engagement = clamp01(*req.Engagement)
	}

	sess := h.sessions.Acquire(r.Context(), userID, sessionID)

	slog.Info("chat turn",
		"user_id", userID,
		"session_id", sess.ID,
		"message_length", len(req.Message),
	)

	result, err := sess.ProcessTurn(r.Context(), req.Message, engagement)
	if err != nil {
		if errors.Is(err, engine.ErrEmptyInput) {
			Error(w, http.StatusBadRequest, "message is required")
			return
		}
		slog.Error("chat turn failed", "user_id", userID, "session_id", sess.ID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	resp := chatResponse{TurnResult: result}
	sess.View(func(o *engine.Orchestrator) {
		resp.ConversationID = o.Ledger().ID()
	})
	if result.PersistErr != nil {
		// The turn is valid in memory; durability failed. Surface as warning.
		resp.PersistWarning = result.PersistErr.Error()
	}
	JSON(w, http.StatusOK, resp)
}

type conversationResponse struct {
	ConversationID string                 `json:"conversation_id"`
	Messages       []conversation.Message `json:"messages"`
}

// HandleConversation handles GET /api/conversation requests, returning the
// session's message history. max_messages bounds the returned tail.
func (h *Handler) HandleConversation(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.acquireSession(w, r)
	if !ok {
		return
	}

	maxMessages := 0
	if raw := r.URL.Query().Get("max_messages"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			Error(w, http.StatusBadRequest, "max_messages must be a non-negative integer")
			return
		}
		maxMessages = n
	}

	var resp conversationResponse
	sess.View(func(o *engine.Orchestrator) {
		ledger := o.Ledger()
		resp.ConversationID = ledger.ID()
		resp.Messages = ledger.History(maxMessages)
	})
	JSON(w, http.StatusOK, resp)
}

// HandleNewConversation handles POST /api/conversation/new requests.
func (h *Handler) HandleNewConversation(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.acquireSession(w, r)
	if !ok {
		return
	}
	conversationID := sess.Reset()
	slog.Info("conversation reset", "session_id", sess.ID, "conversation_id", conversationID)
	JSON(w, http.StatusOK, map[string]string{"conversation_id": conversationID})
}

// HandleSaveConversation handles POST /api/conversation/save requests.
func (h *Handler) HandleSaveConversation(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.acquireSession(w, r)
	if !ok {
		return
	}

	location, err := sess.Save()
	if err != nil {
		if errors.Is(err, conversation.ErrEmptyConversation) {
			Error(w, http.StatusBadRequest, "conversation has no messages")
			return
		}
		slog.Error("failed to save conversation", "session_id", sess.ID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to save conversation")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"location": location})
}

type loadRequest struct {
	ConversationID string `json:"conversation_id"`
}

// HandleLoadConversation handles POST /api/conversation/load requests,
// restoring a persisted conversation into the current session.
func (h *Handler) HandleLoadConversation(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.acquireSession(w, r)
	if !ok {
		return
	}

	var req loadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !conversationIDPattern.MatchString(req.ConversationID) {
		Error(w, http.StatusBadRequest, "invalid conversation_id")
		return
	}

	path := filepath.Join(h.cfg.HistoryDir, req.ConversationID+".json")
	if h.repo != nil {
		meta, err := h.repo.GetConversation(r.Context(), req.ConversationID)
		if err != nil {
			slog.Warn("conversation index lookup failed, falling back to history dir",
				"conversation_id", req.ConversationID, "error", err)
		} else if meta != nil {
			path = meta.SnapshotPath
		}
	}

	conversationID, err := sess.Restore(path)
	if err != nil {
		switch {
		case errors.Is(err, conversation.ErrNotFound):
			Error(w, http.StatusNotFound, "conversation not found")
		case errors.Is(err, conversation.ErrCorruptData):
			Error(w, http.StatusUnprocessableEntity, "conversation snapshot is corrupt")
		default:
			slog.Error("failed to load conversation", "conversation_id", req.ConversationID, "error", err)
			Error(w, http.StatusInternalServerError, "failed to load conversation")
		}
		return
	}
	JSON(w, http.StatusOK, map[string]string{"conversation_id": conversationID})
}

// HandleListConversations handles GET /api/conversations requests.
func (h *Handler) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		Error(w, http.StatusServiceUnavailable, "conversation index not configured")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	metas, err := h.repo.ListConversations(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list conversations", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"conversations": metas})
}

type trendResponse struct {
	Trend            map[emotion.Label]float64 `json:"trend"`
	Top              []emotion.TrendEntry      `json:"top"`
	DominantSequence []emotion.Label           `json:"dominant_sequence"`
}

// HandleEmotionTrend handles GET /api/emotions/trend requests.
func (h *Handler) HandleEmotionTrend(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.acquireSession(w, r)
	if !ok {
		return
	}

	resp := trendResponse{DominantSequence: []emotion.Label{}}
	sess.View(func(o *engine.Orchestrator) {
		resp.Trend = o.History().Trend(h.cfg.Engine.TrendWindow)
		resp.Top = emotion.TopTrend(resp.Trend, 3)
		for label := range o.History().DominantSequence() {
			resp.DominantSequence = append(resp.DominantSequence, label)
		}
	})
	JSON(w, http.StatusOK, resp)
}

// HandlePersonality handles GET /api/personality requests.
func (h *Handler) HandlePersonality(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.acquireSession(w, r)
	if !ok {
		return
	}

	// Clone under the session lock: the live profile keeps mutating as
	// concurrent turns land, and the encoder runs after View returns.
	var profile *personality.Profile
	sess.View(func(o *engine.Orchestrator) {
		profile = o.Profile().Clone()
	})
	JSON(w, http.StatusOK, profile)
}

// HandleStats handles GET /api/stats requests.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"engine":        h.metrics.Snapshot(),
		"live_sessions": h.sessions.Count(),
	})
}

func (h *Handler) acquireSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	sessionID := identity.SessionIDFromContext(r.Context())
	return h.sessions.Acquire(r.Context(), userID, sessionID), true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
