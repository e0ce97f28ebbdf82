// Package semantic defines the pluggable semantic-similarity collaborator.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrDisabled is returned by scorers that are intentionally switched off.
// Callers drop the semantic factor without treating it as a failure.
var ErrDisabled = errors.New("semantic similarity is disabled")

// Scorer returns a similarity in [0, 100] between a profile and an opportunity text.
type Scorer interface {
	Similarity(ctx context.Context, profileText, opportunityText string) (float64, error)
}

// Func adapts a function to Scorer.
type Func func(ctx context.Context, profileText, opportunityText string) (float64, error)

func (f Func) Similarity(ctx context.Context, profileText, opportunityText string) (float64, error) {
	return f(ctx, profileText, opportunityText)
}

// Nop is the scorer used when no backend is configured.
type Nop struct{}

func (Nop) Similarity(context.Context, string, string) (float64, error) {
	return 0, ErrDisabled
}

type timeoutScorer struct {
	inner   Scorer
	timeout time.Duration
}

// WithTimeout bounds every call of inner by timeout. Non-positive timeouts return inner unchanged.
func WithTimeout(inner Scorer, timeout time.Duration) Scorer {
	if timeout <= 0 {
		return inner
	}
	return &timeoutScorer{inner: inner, timeout: timeout}
}

func (s *timeoutScorer) Similarity(ctx context.Context, profileText, opportunityText string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		score float64
		err   error
	}
	done := make(chan result, 1)
	go func() {
		score, err := s.inner.Similarity(ctx, profileText, opportunityText)
		done <- result{score: score, err: err}
	}()

	select {
	case r := <-done:
		return r.score, r.err
	case <-ctx.Done():
		return 0, fmt.Errorf("semantic similarity: %w", ctx.Err())
	}
}

// Validate rejects scores outside [0, 100].
func Validate(score float64) (float64, error) {
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 || score > 100 {
		return 0, fmt.Errorf("semantic score %v is outside [0, 100]", score)
	}
	return score, nil
}

// Clamp forces score into [0, 100]. NaN becomes 0.
func Clamp(score float64) float64 {
	switch {
	case math.IsNaN(score) || score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
