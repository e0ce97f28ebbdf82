// Package openai scores semantic similarity as the cosine similarity of
// embeddings from an OpenAI-compatible API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/spigell/grant-ranker/internal/metrics"
	"github.com/spigell/grant-ranker/internal/semantic"
)

// ErrProvider wraps every failure reported by the embedding API.
var ErrProvider = errors.New("embedding provider error")

// Scorer implements semantic.Scorer using embeddings.
type Scorer struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	user       string
	provider   string
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	User       string
	Provider   string
	Logger     *zap.Logger
}

var _ semantic.Scorer = (*Scorer)(nil)

// NewScorer creates an OpenAI-compatible embedding scorer.
func NewScorer(cfg *Config) *Scorer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	provider := cfg.Provider
	if provider == "" {
		provider = "openai"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scorer{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(model),
		dimensions: cfg.Dimensions,
		user:       cfg.User,
		provider:   provider,
		logger:     logger,
	}
}

// Similarity embeds both texts in one request and maps their cosine similarity to [0, 100].
// Negative cosine values clamp to 0.
func (s *Scorer) Similarity(ctx context.Context, profileText, opportunityText string) (float64, error) {
	if profileText == "" || opportunityText == "" {
		return 0, fmt.Errorf("embedding similarity: both texts are required")
	}

	req := openai.EmbeddingRequest{
		Input:          []string{profileText, opportunityText},
		Model:          s.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           s.user,
	}
	if s.dimensions > 0 {
		req.Dimensions = s.dimensions
	}

	model := string(s.model)
	start := time.Now()

	resp, err := s.client.CreateEmbeddings(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.SemanticRequestsTotal.WithLabelValues(s.provider, model, "error").Inc()
		return 0, parseAPIError(err)
	}

	vectors := make([][]float32, 2)
	for _, item := range resp.Data {
		if item.Index >= 0 && item.Index < len(vectors) {
			vectors[item.Index] = item.Embedding
		}
	}
	if len(vectors[0]) == 0 || len(vectors[1]) == 0 {
		metrics.SemanticRequestsTotal.WithLabelValues(s.provider, model, "error").Inc()
		return 0, fmt.Errorf("empty embedding response: %w", ErrProvider)
	}

	metrics.SemanticRequestsTotal.WithLabelValues(s.provider, model, "success").Inc()
	metrics.SemanticRequestDuration.WithLabelValues(s.provider, model).Observe(duration.Seconds())

	if resp.Usage.TotalTokens > 0 {
		metrics.SemanticTokensTotal.WithLabelValues(s.provider, model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.SemanticTokensTotal.WithLabelValues(s.provider, model, "total").Add(float64(resp.Usage.TotalTokens))
	}

	cos, err := cosine(vectors[0], vectors[1])
	if err != nil {
		return 0, err
	}

	s.logger.Debug("embedding similarity",
		zap.String("model", model),
		zap.Float64("cosine", cos),
		zap.Duration("duration", duration),
	)

	return semantic.Clamp(cos * 100), nil
}

func cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding dimensions differ: %d != %d: %w", len(a), len(b), ErrProvider)
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// parseAPIError extracts a human-readable error from the API response.
func parseAPIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("embedding API error %d: %s: %w", reqErr.HTTPStatusCode, detail, ErrProvider)
		}
		return fmt.Errorf("embedding API error %d: %s: %w", reqErr.HTTPStatusCode, string(reqErr.Body), ErrProvider)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, ErrProvider)
	}

	return fmt.Errorf("embedding request failed: %v: %w", err, ErrProvider)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
