// Package generator provides the outbound client for the response-generation
// collaborator.
package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/emberlake/attune/internal/resilience"
)

// Message is one entry of the ordered prompt message list.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Prompt roles understood by the generation API.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request carries the assembled prompt and sampling parameters for one turn.
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int64
}

// Generator produces an assistant reply for an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// OpenAIClient generates responses through the OpenAI chat-completions API.
type OpenAIClient struct {
	client openai.Client
	model  openai.ChatModel
	retry  resilience.RetryPolicy
}

// NewOpenAIClient creates a generation client for the given model.
func NewOpenAIClient(apiKey, model string, timeout time.Duration, retry resilience.RetryPolicy) *OpenAIClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(timeout),
		// The injected policy owns retries; don't stack the SDK's on top.
		option.WithMaxRetries(0),
	)
	return &OpenAIClient{
		client: client,
		model:  openai.ChatModel(model),
		retry:  retry,
	}
}

// Generate runs one chat completion, retrying transient provider failures.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:            c.model,
		Messages:         toUnionMessages(req.Messages),
		MaxTokens:        openai.Int(req.MaxTokens),
		Temperature:      openai.Float(req.Temperature),
		PresencePenalty:  openai.Float(0.1),
		FrequencyPenalty: openai.Float(0.1),
	}

	var text string
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		completion, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return fmt.Errorf("chat completion: %w", err)
		}
		if len(completion.Choices) == 0 {
			return fmt.Errorf("chat completion returned no choices")
		}
		text = strings.TrimSpace(completion.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func toUnionMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
