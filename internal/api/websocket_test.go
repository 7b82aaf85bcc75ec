package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/emberlake/attune/internal/conversation"
	"github.com/emberlake/attune/internal/engine"
	"github.com/emberlake/attune/internal/identity"
	"github.com/emberlake/attune/internal/session"
)

func TestWebSocketHandler_CheckOrigin(t *testing.T) {
	tests := []struct {
		name          string
		allowedOrigin string
		isDev         bool
		origin        string
		want          bool
	}{
		{"dev allows anything", "https://attune.app", true, "https://evil.test", true},
		{"matching origin allowed", "https://attune.app", false, "https://attune.app", true},
		{"mismatched origin rejected", "https://attune.app", false, "https://evil.test", false},
		{"empty origin allowed", "https://attune.app", false, "", true},
		{"wildcard allows anything", "*", false, "https://anywhere.test", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewWebSocketHandler(nil, nil, tt.allowedOrigin, tt.isDev)
			r := httptest.NewRequest("GET", "/ws/chat", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := h.checkOrigin(r); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestWebSocketHandler_ChatRoundTrip(t *testing.T) {
	historyDir := t.TempDir()
	sessions := session.NewManager(func(sessionID string) *engine.Orchestrator {
		return engine.NewOrchestrator(engine.Options{
			Ledger: conversation.NewLedger(historyDir),
		})
	}, nil, nil)

	r := chi.NewRouter()
	r.Use(identity.Middleware(true))
	r.Get("/ws/chat", NewWebSocketHandler(sessions, nil, "", true).ServeHTTP)

	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer func() {
		_ = conn.Close(websocket.StatusNormalClosure, "done")
	}()

	send := func(v any) {
		data, _ := json.Marshal(v)
		if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	recv := func() wsOutbound {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		var event wsOutbound
		if err := json.Unmarshal(data, &event); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		return event
	}

	send(map[string]string{"type": "ping"})
	if event := recv(); event.Type != "pong" {
		t.Errorf("Expected pong, got %s", event.Type)
	}

	send(map[string]string{"type": "message", "content": "I am so happy today"})
	if event := recv(); event.Type != "status" || event.State != "analyzing" {
		t.Errorf("Expected analyzing status, got %+v", event)
	}
	turn := recv()
	if turn.Type != "turn" {
		t.Fatalf("Expected turn event, got %s", turn.Type)
	}
	if turn.Turn == nil || turn.Turn.Response == "" {
		t.Error("Expected a turn result with a response")
	}
	if !strings.HasPrefix(turn.ConversationID, "conv_") {
		t.Errorf("Expected conversation ID, got %q", turn.ConversationID)
	}

	send(map[string]string{"type": "message", "content": "   "})
	if event := recv(); event.Type != "status" {
		t.Errorf("Expected status before validation, got %s", event.Type)
	}
	if event := recv(); event.Type != "error" {
		t.Errorf("Expected error for blank message, got %s", event.Type)
	}

	send(map[string]string{"type": "reset"})
	if event := recv(); event.Type != "reset" || event.ConversationID == "" {
		t.Errorf("Expected reset event with conversation ID, got %+v", event)
	}

	send(map[string]string{"type": "mystery"})
	if event := recv(); event.Type != "error" {
		t.Errorf("Expected error for unknown type, got %s", event.Type)
	}
}

// A user gets one request budget across transports: turns over HTTP and over
// the WebSocket channel draw from the same limiter.
func TestWebSocketHandler_SharesRateBudgetWithHTTP(t *testing.T) {
	cfg := testConfig(t, 1)
	sessions := session.NewManager(func(sessionID string) *engine.Orchestrator {
		return engine.NewOrchestrator(engine.Options{
			Ledger: conversation.NewLedger(cfg.HistoryDir),
		})
	}, nil, nil)

	h := NewHandler(sessions, nil, engine.NewMetrics(), cfg)
	r := chi.NewRouter()
	r.Use(identity.Middleware(true))
	h.RegisterRoutes(r)
	r.Get("/ws/chat", NewWebSocketHandler(sessions, h.RateLimiter(), "", true).ServeHTTP)

	srv := httptest.NewServer(r)
	defer srv.Close()

	// Spend the whole budget over HTTP.
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/chat", strings.NewReader(`{"message": "hello"}`))
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var anon *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == identity.AnonCookieName {
			anon = c
		}
	}
	if anon == nil {
		t.Fatal("Expected identity cookie")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	header := http.Header{}
	header.Add("Cookie", anon.String())
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer func() {
		_ = conn.Close(websocket.StatusNormalClosure, "done")
	}()

	data, _ := json.Marshal(map[string]string{"type": "message", "content": "hello again"})
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	_, raw, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	var event wsOutbound
	if err := json.Unmarshal(raw, &event); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if event.Type != "error" || event.Error != "rate limit exceeded" {
		t.Errorf("Expected rate limit error over WebSocket, got %+v", event)
	}
}
