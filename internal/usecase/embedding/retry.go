package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docembed/internal/domain"
	"github.com/kailas-cloud/docembed/internal/metrics"
)

// Retry defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 200 * time.Millisecond
)

// RetryConfig controls RetryingEmbedder backoff.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryingEmbedder retries transient embedding failures with exponential backoff.
// Only errors wrapping domain.ErrTransient are retried.
type RetryingEmbedder struct {
	inner    domain.Embedder
	cfg      RetryConfig
	provider string
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewRetryingEmbedder creates the retry decorator. Zero config fields take defaults.
func NewRetryingEmbedder(inner domain.Embedder, cfg RetryConfig, provider string, logger *zap.Logger) *RetryingEmbedder {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	return &RetryingEmbedder{
		inner:    inner,
		cfg:      cfg,
		provider: provider,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// Embed calls the inner embedder up to MaxAttempts times.
func (r *RetryingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.EmbeddingResult{}, fmt.Errorf("embed cancelled: %w", err)
		}

		result, err := r.inner.Embed(ctx, text)
		if err == nil {
			if attempt > 1 {
				r.logger.Debug("Embedding succeeded after retry", zap.Int("attempt", attempt))
			}
			return result, nil
		}
		lastErr = err

		if !errors.Is(err, domain.ErrTransient) || attempt == r.cfg.MaxAttempts {
			break
		}

		delay := r.backoff(attempt)
		r.logger.Warn("Embedding failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.cfg.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		metrics.EmbeddingRetriesTotal.WithLabelValues(r.provider).Inc()

		if err := r.sleep(ctx, delay); err != nil {
			return domain.EmbeddingResult{}, fmt.Errorf("embed cancelled during backoff: %w", err)
		}
	}
	return domain.EmbeddingResult{}, lastErr
}

// HealthCheck delegates to the inner embedder when it supports health checks.
func (r *RetryingEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := r.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

// backoff returns BaseDelay * 2^(attempt-1), capped at MaxDelay when set.
func (r *RetryingEmbedder) backoff(attempt int) time.Duration {
	delay := r.cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if r.cfg.MaxDelay > 0 && delay >= r.cfg.MaxDelay {
			return r.cfg.MaxDelay
		}
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
