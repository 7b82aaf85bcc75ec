package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/emberlake/attune/internal/engine"
	"github.com/emberlake/attune/internal/identity"
	"github.com/emberlake/attune/internal/personality"
	"github.com/emberlake/attune/internal/session"
)

// WebSocketHandler serves the live chat channel. Each connection is bound to
// one chat session; turns stream back as typed events.
type WebSocketHandler struct {
	sessions      *session.Manager
	rateLimiter   *RateLimiter
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a WebSocket chat handler.
func NewWebSocketHandler(sessions *session.Manager, rateLimiter *RateLimiter, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		sessions:      sessions,
		rateLimiter:   rateLimiter,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// wsInbound is a client-to-server chat message.
type wsInbound struct {
	Type       string   `json:"type"`
	Content    string   `json:"content,omitempty"`
	Engagement *float64 `json:"engagement,omitempty"`
}

// wsOutbound is a server-to-client chat event.
type wsOutbound struct {
	Type           string             `json:"type"`
	State          string             `json:"state,omitempty"`
	Error          string             `json:"error,omitempty"`
	ConversationID string             `json:"conversation_id,omitempty"`
	Turn           *engine.TurnResult `json:"turn,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	slog.Info("WebSocket chat connection", "user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := h.sessions.Acquire(ctx, userID, sessionID)
	h.chatLoop(ctx, ws, sess, userID)
	slog.Info("WebSocket chat session ended", "user_id", userID, "session_id", sess.ID)
}

func (h *WebSocketHandler) chatLoop(ctx context.Context, ws *websocket.Conn, sess *session.Session, userID string) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg wsInbound
		if err := json.Unmarshal(message, &msg); err != nil {
			h.writeEvent(ws, wsOutbound{Type: "error", Error: "invalid message"})
			continue
		}

		switch msg.Type {
		case "message":
			h.handleTurn(ctx, ws, sess, userID, msg)
		case "ping":
			h.writeEvent(ws, wsOutbound{Type: "pong"})
		case "reset":
			conversationID := sess.Reset()
			h.writeEvent(ws, wsOutbound{Type: "reset", ConversationID: conversationID})
		default:
			h.writeEvent(ws, wsOutbound{Type: "error", Error: "unknown message type"})
		}
	}
}

func (h *WebSocketHandler) handleTurn(ctx context.Context, ws *websocket.Conn, sess *session.Session, userID string, msg wsInbound) {
	if h.rateLimiter != nil && !h.rateLimiter.Allow(userID) {
		h.writeEvent(ws, wsOutbound{Type: "error", Error: "rate limit exceeded"})
		return
	}

	engagement := personality.DefaultEngagement
	if msg.Engagement != nil {
		engagement = clamp01(*msg.Engagement)
	}

	h.writeEvent(ws, wsOutbound{Type: "status", State: "analyzing"})

	result, err := sess.ProcessTurn(ctx, msg.Content, engagement)
	if err != nil {
		if errors.Is(err, engine.ErrEmptyInput) {
			h.writeEvent(ws, wsOutbound{Type: "error", Error: "message is required"})
			return
		}
		slog.Error("WebSocket turn failed", "user_id", userID, "session_id", sess.ID, "error", err)
		h.writeEvent(ws, wsOutbound{Type: "error", Error: "failed to process message"})
		return
	}

	event := wsOutbound{Type: "turn", Turn: result}
	sess.View(func(o *engine.Orchestrator) {
		event.ConversationID = o.Ledger().ID()
	})
	h.writeEvent(ws, event)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || h.allowedOrigin == "" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) writeEvent(ws *websocket.Conn, event wsOutbound) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Warn("failed to marshal websocket event", "error", err)
		return
	}
	if err := ws.Write(context.Background(), websocket.MessageText, data); err != nil {
		slog.Debug("WebSocket write error", "error", err)
	}
}
