// Package engine coordinates one conversation turn: emotion analysis, trait
// update, strategy selection, prompt assembly, response generation, and
// ledger persistence.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/emberlake/attune/internal/classifier"
	"github.com/emberlake/attune/internal/conversation"
	"github.com/emberlake/attune/internal/emotion"
	"github.com/emberlake/attune/internal/generator"
	"github.com/emberlake/attune/internal/personality"
	"github.com/emberlake/attune/internal/strategy"
)

// ErrEmptyInput is returned when the submitted text is blank after trimming.
var ErrEmptyInput = errors.New("message text is empty")

// trendTopCount is how many trend emotions the prompt surfaces.
const trendTopCount = 3

// ConversationIndex records saved conversations for later listing. The
// SQLite store implements it.
type ConversationIndex interface {
	RecordConversation(ctx context.Context, meta IndexEntry) error
}

// IndexEntry is the per-conversation metadata kept in the index.
type IndexEntry struct {
	ConversationID string
	SnapshotPath   string
	TurnCount      int
	LastEmotion    string
	UpdatedAt      time.Time
}

// Options configures an Orchestrator.
type Options struct {
	Classifier  classifier.Classifier
	Generator   generator.Generator
	Selector    *strategy.Selector
	Ledger      *conversation.Ledger
	History     *emotion.History
	Profile     *personality.Profile
	Index       ConversationIndex
	Metrics     *Metrics
	Logger      *slog.Logger
	TrendWindow int
	PromptTurns int
	MaxTokens   int64
}

// Orchestrator runs the per-turn state machine for one conversation session.
// Turns within a session are strictly sequential; the session manager holds
// the lock.
type Orchestrator struct {
	classifier  classifier.Classifier
	generator   generator.Generator
	selector    *strategy.Selector
	ledger      *conversation.Ledger
	history     *emotion.History
	profile     *personality.Profile
	index       ConversationIndex
	metrics     *Metrics
	logger      *slog.Logger
	trendWindow int
	promptTurns int
	maxTokens   int64
}

// NewOrchestrator wires a turn coordinator from its collaborators.
func NewOrchestrator(opts Options) *Orchestrator {
	if opts.Selector == nil {
		opts.Selector = strategy.NewSelector(nil)
	}
	if opts.History == nil {
		opts.History = emotion.NewHistory(emotion.DefaultHistoryCapacity)
	}
	if opts.Profile == nil {
		opts.Profile = personality.NewProfile()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.TrendWindow <= 0 {
		opts.TrendWindow = emotion.DefaultTrendWindow
	}
	if opts.PromptTurns <= 0 {
		opts.PromptTurns = 6
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 200
	}
	return &Orchestrator{
		classifier:  opts.Classifier,
		generator:   opts.Generator,
		selector:    opts.Selector,
		ledger:      opts.Ledger,
		history:     opts.History,
		profile:     opts.Profile,
		index:       opts.Index,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		trendWindow: opts.TrendWindow,
		promptTurns: opts.PromptTurns,
		maxTokens:   opts.MaxTokens,
	}
}

// TurnResult is the outcome of one successfully completed turn.
type TurnResult struct {
	Response           string               `json:"response"`
	Record             emotion.Record       `json:"emotion"`
	Strategy           strategy.Tag         `json:"strategy"`
	Temperature        float64              `json:"temperature"`
	Trend              []emotion.TrendEntry `json:"trend"`
	ClassifierFallback bool                 `json:"classifier_fallback,omitempty"`
	GeneratorFallback  bool                 `json:"generator_fallback,omitempty"`
	SnapshotPath       string               `json:"-"`
	PersistErr         error                `json:"-"`
	Profile            *personality.Profile `json:"-"`
}

// ProcessTurn runs the full turn pipeline for one user message. Collaborator
// failures degrade to local fallbacks; only blank input fails the turn, and
// nothing is recorded until the complete turn is assembled. A persistence
// failure is reported through TurnResult.PersistErr while the in-memory turn
// stays valid.
func (o *Orchestrator) ProcessTurn(ctx context.Context, text string) (*TurnResult, error) {
	return o.ProcessTurnWithEngagement(ctx, text, personality.DefaultEngagement)
}

// ProcessTurnWithEngagement is ProcessTurn with an explicit [0,1] engagement
// signal for the personality estimator.
func (o *Orchestrator) ProcessTurnWithEngagement(ctx context.Context, text string, engagement float64) (*TurnResult, error) {
	started := time.Now()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		o.metrics.recordEmptyInput()
		return nil, ErrEmptyInput
	}

	record, classifierFell := o.analyzeEmotion(ctx, trimmed)

	o.history.Add(record)
	o.profile.UpdateFromEmotion(record, engagement)

	trend := o.history.Trend(o.trendWindow)
	tag, temperature := o.selector.Select(record)

	messages := o.assemblePrompt(tag, record, trend, trimmed)

	response, generatorFell := o.generateResponse(ctx, messages, temperature, record)

	turn := conversation.Turn{
		UserMessage:   trimmed,
		BotResponse:   response,
		EmotionRecord: record,
		Timestamp:     time.Now().UTC(),
		StrategyUsed:  string(tag),
		UsedFallback:  generatorFell,
		ContextSnapshot: map[string]any{
			"temperature":          temperature,
			"trend_top":            emotion.TopTrend(trend, trendTopCount),
			"classifier_fallback":  classifierFell,
			"prompt_message_count": len(messages),
		},
	}
	if err := o.ledger.AppendTurn(turn); err != nil {
		// Roles are fixed at this point, so this only fires on a programming
		// error; surface it rather than half-recording the turn.
		return nil, fmt.Errorf("append turn: %w", err)
	}

	snapshotPath, persistErr := o.persist(ctx, record)
	o.metrics.recordTurn(time.Since(started), classifierFell, generatorFell, persistErr != nil)

	return &TurnResult{
		Response:           response,
		Record:             record,
		Strategy:           tag,
		Temperature:        temperature,
		Trend:              emotion.TopTrend(trend, trendTopCount),
		ClassifierFallback: classifierFell,
		GeneratorFallback:  generatorFell,
		SnapshotPath:       snapshotPath,
		PersistErr:         persistErr,
		Profile:            o.profile,
	}, nil
}

// analyzeEmotion invokes the remote classifier, degrading to the keyword
// lexicon so the turn never aborts on classifier failure.
func (o *Orchestrator) analyzeEmotion(ctx context.Context, text string) (emotion.Record, bool) {
	if o.classifier != nil {
		record, err := o.classifier.Classify(ctx, text)
		if err == nil {
			return record, false
		}
		o.logger.Warn("emotion classifier unavailable, using lexicon fallback",
			"conversation_id", o.ledger.ID(), "error", err)
	}
	return emotion.ClassifyFallback(text, time.Now().UTC()), true
}

// generateResponse invokes the generation collaborator, degrading to the
// canned per-emotion line on failure.
func (o *Orchestrator) generateResponse(ctx context.Context, messages []generator.Message, temperature float64, record emotion.Record) (string, bool) {
	if o.generator != nil {
		text, err := o.generator.Generate(ctx, generator.Request{
			Messages:    messages,
			Temperature: temperature,
			MaxTokens:   o.maxTokens,
		})
		if err == nil && text != "" {
			return text, false
		}
		o.logger.Warn("response generator unavailable, using canned fallback",
			"conversation_id", o.ledger.ID(), "dominant_emotion", record.Dominant, "error", err)
	}
	return generator.FallbackResponse(record.Dominant), true
}

// assemblePrompt builds the ordered message list: system preamble with
// strategy instructions and emotion context, the most recent ledger turns as
// role-tagged pairs, then the new user message.
func (o *Orchestrator) assemblePrompt(tag strategy.Tag, record emotion.Record, trend map[emotion.Label]float64, userText string) []generator.Message {
	var system strings.Builder
	system.WriteString(strategy.SystemPreamble)
	system.WriteString("\n\n")
	system.WriteString(strategy.Instructions(tag))
	system.WriteString("\n\nCurrent emotion analysis:\n")
	fmt.Fprintf(&system, "- Dominant emotion: %s\n", record.Dominant)
	fmt.Fprintf(&system, "- Confidence: %.2f\n", record.Confidence)
	fmt.Fprintf(&system, "- Recent emotional trend: %s\n", formatTrend(trend))

	messages := []generator.Message{{Role: generator.RoleSystem, Content: system.String()}}

	turns := o.ledger.Turns()
	if len(turns) > o.promptTurns {
		turns = turns[len(turns)-o.promptTurns:]
	}
	for _, t := range turns {
		messages = append(messages,
			generator.Message{Role: generator.RoleUser, Content: t.UserMessage},
			generator.Message{Role: generator.RoleAssistant, Content: t.BotResponse},
		)
	}

	return append(messages, generator.Message{Role: generator.RoleUser, Content: userText})
}

// formatTrend renders the top trend emotions for the prompt.
func formatTrend(trend map[emotion.Label]float64) string {
	top := emotion.TopTrend(trend, trendTopCount)
	if len(top) == 0 {
		return "No previous emotional context"
	}
	parts := make([]string, 0, len(top))
	for _, entry := range top {
		parts = append(parts, fmt.Sprintf("%s: %.2f", entry.Label, entry.Score))
	}
	return strings.Join(parts, ", ")
}

// persist saves the ledger snapshot and updates the conversation index.
// Failures are logged and returned for the caller to surface as a warning.
func (o *Orchestrator) persist(ctx context.Context, record emotion.Record) (string, error) {
	path, err := o.ledger.Save()
	if err != nil {
		o.logger.Error("failed to persist conversation snapshot",
			"conversation_id", o.ledger.ID(), "error", err)
		return "", fmt.Errorf("persist conversation: %w", err)
	}

	if o.index != nil {
		entry := IndexEntry{
			ConversationID: o.ledger.ID(),
			SnapshotPath:   path,
			TurnCount:      len(o.ledger.Turns()),
			LastEmotion:    string(record.Dominant),
			UpdatedAt:      time.Now().UTC(),
		}
		if err := o.index.RecordConversation(ctx, entry); err != nil {
			o.logger.Error("failed to update conversation index",
				"conversation_id", o.ledger.ID(), "error", err)
			return path, fmt.Errorf("update conversation index: %w", err)
		}
	}
	return path, nil
}

// Ledger exposes the session ledger for read endpoints.
func (o *Orchestrator) Ledger() *conversation.Ledger {
	return o.ledger
}

// History exposes the emotion window for read endpoints.
func (o *Orchestrator) History() *emotion.History {
	return o.history
}

// Profile exposes the personality estimate for read endpoints.
func (o *Orchestrator) Profile() *personality.Profile {
	return o.profile
}

// ReplaceLedger swaps in a loaded ledger, rebuilding the emotion window from
// its side list. Used when restoring a saved conversation into a session.
func (o *Orchestrator) ReplaceLedger(ledger *conversation.Ledger) {
	o.ledger = ledger
	o.history = emotion.NewHistory(o.history.Capacity())
	for _, scores := range ledger.EmotionHistory() {
		// Side-list entries carry no source text; the record exists purely
		// for trend computation.
		o.history.Add(emotion.NewRecord("", scores, time.Now().UTC()))
	}
}

// Reset clears the ledger under a fresh conversation ID and discards the
// emotion window. Personality persists for the session.
func (o *Orchestrator) Reset() {
	o.ledger.Clear()
	o.history = emotion.NewHistory(o.history.Capacity())
}
