// Package config provides application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emberlake/attune/internal/strategy"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	HistoryDir  string

	Hume      HumeConfig
	OpenAI    OpenAIConfig
	Engine    EngineConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Retry     RetryConfig

	SessionTTL         time.Duration
	SessionSweep       time.Duration
	MaxRequestBodySize int64

	// StrategyPath optionally points at a JSON file overriding the built-in
	// response-strategy table.
	StrategyPath string
}

// HumeConfig configures the emotion classifier collaborator.
type HumeConfig struct {
	BaseURL   string
	APIKey    string
	SecretKey string
	Timeout   time.Duration
}

// OpenAIConfig configures the response generator collaborator.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// EngineConfig tunes the conversation engine.
type EngineConfig struct {
	EmotionWindow int
	TrendWindow   int
	PromptTurns   int
	MaxTokens     int64
}

// RateLimitConfig throttles chat requests per user.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// CacheConfig tunes the classifier response cache.
type CacheConfig struct {
	MaxEntries int
	TTL        time.Duration
}

// RetryConfig tunes the collaborator retry policy.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/attune.db"),
		HistoryDir:  getEnv("HISTORY_DIR", "./data/conversation_history"),
		Hume: HumeConfig{
			BaseURL:   getEnv("HUME_BASE_URL", "https://api.hume.ai/v0"),
			APIKey:    getEnv("HUME_API_KEY", ""),
			SecretKey: getEnv("HUME_SECRET_KEY", ""),
			Timeout:   getEnvDuration("HUME_TIMEOUT", 30*time.Second),
		},
		OpenAI: OpenAIConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			Model:   getEnv("OPENAI_MODEL", "gpt-4"),
			Timeout: getEnvDuration("OPENAI_TIMEOUT", 30*time.Second),
		},
		Engine: EngineConfig{
			EmotionWindow: getEnvInt("EMOTION_WINDOW", 10),
			TrendWindow:   getEnvInt("TREND_WINDOW", 5),
			PromptTurns:   getEnvInt("PROMPT_TURNS", 6),
			MaxTokens:     int64(getEnvInt("MAX_RESPONSE_TOKENS", 200)),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 20),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Cache: CacheConfig{
			MaxEntries: getEnvInt("CLASSIFIER_CACHE_ENTRIES", 1000),
			TTL:        getEnvDuration("CLASSIFIER_CACHE_TTL", time.Hour),
		},
		Retry: RetryConfig{
			MaxAttempts:    getEnvInt("COLLABORATOR_RETRY_ATTEMPTS", 3),
			InitialBackoff: getEnvDuration("COLLABORATOR_RETRY_BACKOFF", 500*time.Millisecond),
		},
		SessionTTL:         getEnvDuration("SESSION_TTL", 60*time.Minute),
		SessionSweep:       getEnvDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
		StrategyPath:       getEnv("STRATEGY_CONFIG_PATH", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.HistoryDir == "" {
		return fmt.Errorf("HISTORY_DIR cannot be empty")
	}
	if c.Engine.EmotionWindow <= 0 {
		return fmt.Errorf("EMOTION_WINDOW must be > 0")
	}
	if c.Engine.TrendWindow <= 0 {
		return fmt.Errorf("TREND_WINDOW must be > 0")
	}
	if c.Engine.PromptTurns <= 0 {
		return fmt.Errorf("PROMPT_TURNS must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0")
	}
	return nil
}

// StrategyRules returns the response-strategy table: the override file when
// StrategyPath is set, otherwise the built-in table.
func (c *Config) StrategyRules() ([]strategy.Rule, error) {
	if c.StrategyPath == "" {
		return strategy.DefaultRules(), nil
	}
	data, err := os.ReadFile(c.StrategyPath)
	if err != nil {
		return nil, fmt.Errorf("read strategy config: %w", err)
	}
	var rules []strategy.Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse strategy config: %w", err)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("strategy config %s contains no rules", c.StrategyPath)
	}
	return rules, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
