// Package classifier provides the outbound client for the emotion-detection
// collaborator.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/emberlake/attune/internal/emotion"
	"github.com/emberlake/attune/internal/resilience"
)

// Classifier scores one utterance against the emotion vocabulary.
type Classifier interface {
	Classify(ctx context.Context, text string) (emotion.Record, error)
}

// HumeClient calls a Hume-style emotion API over HTTP. Retry and cache
// policies are injected explicitly rather than wrapped ambiently so failure
// and caching behavior stay visible.
type HumeClient struct {
	baseURL   string
	apiKey    string
	secretKey string
	http      *http.Client
	retry     resilience.RetryPolicy
	cache     *resilience.Cache[emotion.Record]
	logger    *slog.Logger
}

// Options configures a HumeClient.
type Options struct {
	BaseURL   string
	APIKey    string
	SecretKey string
	Timeout   time.Duration
	Retry     resilience.RetryPolicy
	Cache     *resilience.Cache[emotion.Record]
	Logger    *slog.Logger
}

// NewHumeClient creates a client for the emotion API.
func NewHumeClient(opts Options) *HumeClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &HumeClient{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		apiKey:    opts.APIKey,
		secretKey: opts.SecretKey,
		http:      &http.Client{Timeout: opts.Timeout},
		retry:     opts.Retry,
		cache:     opts.Cache,
		logger:    opts.Logger,
	}
}

// classifyRequest is the provider wire format for a language-model job.
type classifyRequest struct {
	Models struct {
		Language struct {
			Granularity string `json:"granularity"`
		} `json:"language"`
	} `json:"models"`
	Text []string `json:"text"`
}

// classifyResponse mirrors the slice of the provider response we consume.
type classifyResponse struct {
	Results struct {
		Predictions []struct {
			Models struct {
				Language struct {
					GroupedPredictions []struct {
						Predictions []struct {
							Name  string  `json:"name"`
							Score float64 `json:"score"`
						} `json:"predictions"`
					} `json:"grouped_predictions"`
				} `json:"language"`
			} `json:"models"`
		} `json:"predictions"`
	} `json:"results"`
}

// Classify scores text via the remote API. Identical inputs are served from
// the cache; transient failures are retried per the injected policy.
func (c *HumeClient) Classify(ctx context.Context, text string) (emotion.Record, error) {
	key := resilience.CacheKey("classify", text)
	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			// Re-stamp so the record reflects this turn, not the cached one.
			return emotion.NewRecord(text, cached.Scores, time.Now().UTC()), nil
		}
	}

	var scores map[emotion.Label]float64
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		var callErr error
		scores, callErr = c.call(ctx, text)
		return callErr
	})
	if err != nil {
		return emotion.Record{}, err
	}

	record := emotion.NewRecord(text, scores, time.Now().UTC())
	if c.cache != nil {
		c.cache.Set(key, record)
	}
	return record, nil
}

func (c *HumeClient) call(ctx context.Context, text string) (map[emotion.Label]float64, error) {
	var reqBody classifyRequest
	reqBody.Models.Language.Granularity = "sentence"
	reqBody.Text = []string{text}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("encode classify request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/batch/jobs", bytes.NewReader(payload))
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("build classify request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hume-Api-Key", c.apiKey)
	req.Header.Set("X-Hume-Secret-Key", c.secretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classify request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close classifier response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		err := fmt.Errorf("classifier returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, resilience.Permanent(err)
		}
		return nil, err
	}

	var parsed classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}
	return extractScores(parsed), nil
}

// extractScores flattens the provider response into vocabulary scores.
// Labels outside the vocabulary are dropped at this boundary.
func extractScores(parsed classifyResponse) map[emotion.Label]float64 {
	scores := make(map[emotion.Label]float64, len(emotion.Vocabulary))

	predictions := parsed.Results.Predictions
	if len(predictions) == 0 {
		return scores
	}
	grouped := predictions[0].Models.Language.GroupedPredictions
	if len(grouped) == 0 {
		return scores
	}
	for _, p := range grouped[0].Predictions {
		label := emotion.Label(strings.ToLower(p.Name))
		if emotion.IsKnownLabel(label) {
			scores[label] = p.Score
		}
	}
	return scores
}
