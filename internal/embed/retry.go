package embed

import (
	"context"
	"time"

	rlmerr "github.com/rlmfs/rlm/internal/errors"
)

// RetryConfig configures exponential backoff retry around embedding calls.
type RetryConfig struct {
	MaxRetries   int           // attempts beyond the initial one
	InitialDelay time.Duration // delay before the first retry
	MaxDelay     time.Duration // backoff ceiling
	Multiplier   float64       // backoff growth factor
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2.0,
	}
}

// RetryEmbedder wraps an Embedder with exponential backoff around
// transient failures (a collaborator HTTP endpoint timing out or
// returning a 5xx, say). It never retries dimension-mismatch or
// closed-embedder errors, since those won't resolve themselves.
type RetryEmbedder struct {
	inner Embedder
	cfg   RetryConfig
}

// NewRetryEmbedder wraps inner with cfg's backoff schedule.
func NewRetryEmbedder(inner Embedder, cfg RetryConfig) *RetryEmbedder {
	return &RetryEmbedder{inner: inner, cfg: cfg}
}

func withRetry[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	delay := cfg.InitialDelay
	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt >= cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return zero, rlmerr.IndexError("embedding failed after retries", lastErr)
}

func isRetryable(err error) bool {
	rerr, ok := err.(*rlmerr.Error)
	if !ok {
		return true
	}
	switch rerr.Code {
	case rlmerr.CodeFeatureNotEnabled, rlmerr.CodeDimensionMismatch:
		return false
	default:
		return true
	}
}

// Embed implements Embedder.
func (r *RetryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return withRetry(ctx, r.cfg, func() ([]float32, error) {
		return r.inner.Embed(ctx, text)
	})
}

// EmbedBatch implements Embedder.
func (r *RetryEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return withRetry(ctx, r.cfg, func() ([][]float32, error) {
		return r.inner.EmbedBatch(ctx, texts)
	})
}

func (r *RetryEmbedder) Dimensions() int                     { return r.inner.Dimensions() }
func (r *RetryEmbedder) ModelName() string                   { return r.inner.ModelName() }
func (r *RetryEmbedder) Available(ctx context.Context) bool  { return r.inner.Available(ctx) }
func (r *RetryEmbedder) Close() error                        { return r.inner.Close() }

// Inner returns the wrapped embedder.
func (r *RetryEmbedder) Inner() Embedder { return r.inner }
