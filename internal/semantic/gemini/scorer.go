// Package gemini scores semantic similarity by asking a Gemini model to rate the fit.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"github.com/spigell/grant-ranker/internal/logger"
	"github.com/spigell/grant-ranker/internal/metrics"
	"github.com/spigell/grant-ranker/internal/semantic"
	"go.uber.org/zap"
)

const provider = "gemini"

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, prompt string) (string, error)
	Model() string
}

// Scorer implements semantic.Scorer on top of a Gemini generator.
type Scorer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
	maxInput  int
}

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength = 200
	defaultMaxInput     = 4000
	systemInstruction   = "You are a grant research assistant. Answer with JSON only."
)

var _ semantic.Scorer = (*Scorer)(nil)

func NewScorer(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Scorer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scorer{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
		maxInput:  defaultMaxInput,
	}
}

func (s *Scorer) Similarity(ctx context.Context, profileText, opportunityText string) (float64, error) {
	if strings.TrimSpace(profileText) == "" || strings.TrimSpace(opportunityText) == "" {
		return 0, fmt.Errorf("gemini similarity: both texts are required")
	}

	model := s.generator.Model()
	prompt := buildPrompt(clip(profileText, s.maxInput), clip(opportunityText, s.maxInput))

	s.logger.Debug("gemini similarity request",
		zap.String(logger.FieldModel, model),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, s.maxLogLen)),
	)

	start := time.Now()
	raw, err := s.generator.GenerateContent(ctx, systemInstruction, prompt)
	if err != nil {
		metrics.SemanticRequestsTotal.WithLabelValues(provider, model, "error").Inc()
		return 0, err
	}
	metrics.SemanticRequestDuration.WithLabelValues(provider, model).Observe(time.Since(start).Seconds())

	s.logger.Debug("gemini similarity response",
		zap.String(logger.FieldModel, model),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, s.maxLogLen)),
	)

	score, err := parseResponse(raw)
	if err != nil {
		metrics.SemanticRequestsTotal.WithLabelValues(provider, model, "invalid_response").Inc()
		return 0, err
	}

	metrics.SemanticRequestsTotal.WithLabelValues(provider, model, "success").Inc()
	return score, nil
}

func buildPrompt(profileText, opportunityText string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Organization:\n{{PROFILE_TEXT}}\n\nOpportunity:\n{{OPPORTUNITY_TEXT}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{PROFILE_TEXT}}", profileText)
	prompt = strings.ReplaceAll(prompt, "{{OPPORTUNITY_TEXT}}", opportunityText)
	return prompt
}

func clip(s string, limit int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func parseResponse(raw string) (float64, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return 0, fmt.Errorf("parse gemini response: %w", err)
	}

	value, ok := data["similarity"]
	if !ok {
		value = data["score"]
	}

	score := coerceFloat(value)
	if math.IsNaN(score) {
		return 0, fmt.Errorf("parse gemini response: similarity is missing or not a number")
	}

	// Some models answer on a 0..1 scale despite the instructions.
	if score > 0 && score <= 1 && strings.Contains(fmt.Sprint(value), ".") {
		score *= 100
	}

	return semantic.Validate(score)
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSuffix(strings.TrimSpace(val), "%")
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}
