// Package conversation provides the append-only conversation ledger and its
// durable JSON snapshots.
package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/emberlake/attune/internal/emotion"
)

// Role identifies a message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one ledger entry.
type Message struct {
	Role      Role                      `json:"role"`
	Content   string                    `json:"content"`
	Timestamp time.Time                 `json:"timestamp"`
	Emotions  map[emotion.Label]float64 `json:"emotions,omitempty"`
}

// Turn is one complete user/assistant exchange with its analysis context.
type Turn struct {
	UserMessage     string         `json:"user_message"`
	BotResponse     string         `json:"bot_response"`
	EmotionRecord   emotion.Record `json:"emotion_record"`
	Timestamp       time.Time      `json:"timestamp"`
	StrategyUsed    string         `json:"strategy_used"`
	UsedFallback    bool           `json:"used_fallback,omitempty"`
	ContextSnapshot map[string]any `json:"context_snapshot,omitempty"`
}

// snapshot is the persisted file format: one JSON object per conversation.
type snapshot struct {
	ConversationID string    `json:"conversation_id"`
	CreatedAt      time.Time `json:"created_at"`
	Messages       []Message `json:"messages"`
}

// Ledger is the ordered, append-only record of one conversation. It keeps a
// parallel emotion side list for user messages carrying emotion scores, and
// the richer per-turn records used for analytics. Not safe for concurrent
// use; the session manager serializes access.
type Ledger struct {
	conversationID string
	historyDir     string
	messages       []Message
	turns          []Turn
	emotionHistory []map[emotion.Label]float64
}

// NewLedger creates an empty ledger with a fresh conversation ID, storing
// snapshots under historyDir.
func NewLedger(historyDir string) *Ledger {
	return &Ledger{
		conversationID: NewConversationID(time.Now()),
		historyDir:     historyDir,
	}
}

// NewConversationID derives a conversation ID from a creation instant.
func NewConversationID(at time.Time) string {
	return "conv_" + at.UTC().Format("20060102_150405")
}

// ID returns the conversation ID.
func (l *Ledger) ID() string {
	return l.conversationID
}

// AddMessage appends a timestamped message. User messages carrying emotion
// scores also extend the parallel emotion side list.
func (l *Ledger) AddMessage(role Role, content string, emotions map[emotion.Label]float64) error {
	if role != RoleUser && role != RoleAssistant {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	l.messages = append(l.messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Emotions:  emotions,
	})

	if role == RoleUser && len(emotions) > 0 {
		l.emotionHistory = append(l.emotionHistory, emotions)
	}
	return nil
}

// AppendTurn records a completed exchange: both messages plus the turn
// record. The caller guarantees the turn is fully assembled; a ledger never
// holds a half-recorded turn.
func (l *Ledger) AppendTurn(turn Turn) error {
	if err := l.AddMessage(RoleUser, turn.UserMessage, turn.EmotionRecord.Scores); err != nil {
		return err
	}
	if err := l.AddMessage(RoleAssistant, turn.BotResponse, nil); err != nil {
		return err
	}
	l.turns = append(l.turns, turn)
	return nil
}

// History returns all messages, or the most recent maxMessages when
// maxMessages > 0, preserving chronological order.
func (l *Ledger) History(maxMessages int) []Message {
	if maxMessages <= 0 || maxMessages >= len(l.messages) {
		return l.messages
	}
	return l.messages[len(l.messages)-maxMessages:]
}

// Turns returns the recorded exchanges in chronological order.
func (l *Ledger) Turns() []Turn {
	return l.turns
}

// EmotionHistory returns the emotion side list for user messages.
func (l *Ledger) EmotionHistory() []map[emotion.Label]float64 {
	return l.emotionHistory
}

// Len returns the number of messages.
func (l *Ledger) Len() int {
	return len(l.messages)
}

// SnapshotPath returns where Save will write this conversation.
func (l *Ledger) SnapshotPath() string {
	return filepath.Join(l.historyDir, l.conversationID+".json")
}

// Save writes the conversation snapshot atomically (temp file + rename) so
// a crash mid-write never corrupts the previous snapshot. It returns the
// snapshot location.
func (l *Ledger) Save() (string, error) {
	if len(l.messages) == 0 {
		return "", ErrEmptyConversation
	}

	if err := os.MkdirAll(l.historyDir, 0o755); err != nil {
		return "", fmt.Errorf("create history directory: %w", err)
	}

	data, err := json.MarshalIndent(snapshot{
		ConversationID: l.conversationID,
		CreatedAt:      l.messages[0].Timestamp,
		Messages:       l.messages,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	target := l.SnapshotPath()
	tmp, err := os.CreateTemp(l.historyDir, l.conversationID+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("replace snapshot: %w", err)
	}
	return target, nil
}

// Load reads a persisted snapshot and reconstructs the ledger, rebuilding
// the emotion side list from stored user messages.
func Load(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptData, err)
	}
	if snap.ConversationID == "" {
		return nil, fmt.Errorf("%w: missing conversation_id", ErrCorruptData)
	}

	ledger := &Ledger{
		conversationID: snap.ConversationID,
		historyDir:     filepath.Dir(path),
		messages:       snap.Messages,
	}
	for _, msg := range snap.Messages {
		if msg.Role == RoleUser && len(msg.Emotions) > 0 {
			ledger.emotionHistory = append(ledger.emotionHistory, msg.Emotions)
		}
	}
	return ledger, nil
}

// Clear resets the ledger to zero messages under a freshly generated
// conversation ID.
func (l *Ledger) Clear() {
	l.messages = nil
	l.turns = nil
	l.emotionHistory = nil
	l.conversationID = NewConversationID(time.Now())
}
