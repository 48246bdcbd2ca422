package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/photodex/internal/domain"
	"github.com/kailas-cloud/photodex/internal/metrics"
)

// Provider is the local interface for the multimodal embedding transport.
type Provider interface {
	domain.TextEmbedder
	domain.ImageEmbedder
}

// Client wraps a Provider with preconditions, rate limiting, dimension checks and logging.
// Transport metrics (requests, duration) are recorded in transport/openai.
type Client struct {
	inner   Provider
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient wraps a provider. A nil limiter means unlimited.
func NewClient(inner Provider, limiter *rate.Limiter, logger *zap.Logger) *Client {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Client{inner: inner, limiter: limiter, logger: logger}
}

// EmbedImage vectorizes the image at path. A missing file is domain.ErrNotFound
// and never reaches the provider.
func (c *Client) EmbedImage(ctx context.Context, path string) (domain.EmbeddingResult, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.EmbeddingResult{}, fmt.Errorf("image file %s: %w", path, domain.ErrNotFound)
		}
		return domain.EmbeddingResult{}, fmt.Errorf("stat image file: %w", err)
	}
	return c.call(ctx, "image", func(ctx context.Context) (domain.EmbeddingResult, error) {
		return c.inner.EmbedImage(ctx, path)
	})
}

// EmbedText vectorizes text. Blank text is a validation error.
func (c *Client) EmbedText(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if strings.TrimSpace(text) == "" {
		return domain.EmbeddingResult{}, domain.NewValidationError("text to embed is empty")
	}
	return c.call(ctx, "text", func(ctx context.Context) (domain.EmbeddingResult, error) {
		return c.inner.EmbedText(ctx, text)
	})
}

func (c *Client) call(
	ctx context.Context, input string,
	fn func(ctx context.Context) (domain.EmbeddingResult, error),
) (domain.EmbeddingResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embedding rate limit: %w", err)
	}

	start := time.Now()

	result, err := fn(ctx)

	duration := time.Since(start)

	if err != nil {
		c.logger.Error("Embedding request failed",
			zap.String("input", input),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed %s: %w", input, err)
	}

	if !result.Empty() && len(result.Embedding) != domain.VectorDim {
		metrics.EmbeddingErrorsTotal.WithLabelValues(result.Model, "dim_mismatch").Inc()
		c.logger.Error("Embedding has unexpected dimension",
			zap.String("input", input),
			zap.Int("dimensions", len(result.Embedding)),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed %s: %w: %w: got %d, want %d",
			input, domain.ErrEmbeddingProviderError, domain.ErrVectorDimMismatch,
			len(result.Embedding), domain.VectorDim)
	}

	c.logger.Debug("Embedding request completed",
		zap.String("input", input),
		zap.String("model", result.Model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
	)

	return result, nil
}

// HealthCheck delegates to the provider when it supports health checks.
func (c *Client) HealthCheck(ctx context.Context) error {
	hc, ok := c.inner.(domain.HealthChecker)
	if !ok {
		return nil
	}
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("embedding provider: %w", err)
	}
	return nil
}
