package querycache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/photodex/internal/db"
	"github.com/kailas-cloud/photodex/internal/domain"
	domimg "github.com/kailas-cloud/photodex/internal/domain/image"
)

// KeyPrefix namespaces fast-tier keys.
const KeyPrefix = "query_embedding:"

// Key returns the fast-tier key for a normalized query text.
func Key(text string) string { return KeyPrefix + text }

// fastStore is the consumer interface for the fast tier (ISP).
type fastStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
}

// durableStore is the consumer interface for the durable tier (ISP).
type durableStore interface {
	FindByText(ctx context.Context, text string) (domimg.SearchQuery, error)
	Save(ctx context.Context, q domimg.SearchQuery) error
}

// Cache resolves query text to an embedding through the fast tier, the durable
// tier and finally the provider. Clear only touches the fast tier.
type Cache struct {
	embedder   domain.TextEmbedder
	fast       fastStore
	durable    durableStore
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
	group      singleflight.Group
}

// New creates a two-tier query embedding cache.
// cacheTotal is a counter vec with labels "tier" and "result", passed explicitly.
func New(
	embedder domain.TextEmbedder,
	fast fastStore,
	durable durableStore,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *Cache {
	return &Cache{
		embedder:   embedder,
		fast:       fast,
		durable:    durable,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Get returns the embedding for text. Concurrent misses for the same text share one lookup.
// A provider failure populates neither tier.
func (c *Cache) Get(ctx context.Context, text string) ([]float32, error) {
	v, err, _ := c.group.Do(text, func() (any, error) {
		return c.resolve(ctx, text)
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // resolve wraps
	}
	return v.([]float32), nil
}

func (c *Cache) resolve(ctx context.Context, text string) ([]float32, error) {
	key := Key(text)

	if vec, ok := c.getFast(ctx, key); ok {
		c.inc("fast", "hit")
		return vec, nil
	}
	c.inc("fast", "miss")

	if vec, ok := c.getDurable(ctx, text); ok {
		c.inc("durable", "hit")
		c.putFast(ctx, key, vec)
		return vec, nil
	}
	c.inc("durable", "miss")

	res, err := c.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if res.Empty() {
		return nil, fmt.Errorf("embed query: %w: no embedding produced", domain.ErrEmbeddingProviderError)
	}

	if err := c.durable.Save(ctx, domimg.SearchQuery{
		Text:      text,
		Embedding: res.Embedding,
		Model:     res.Model,
	}); err != nil {
		c.logger.Error("Failed to persist query embedding", zap.String("query", text), zap.Error(err))
	}
	c.putFast(ctx, key, res.Embedding)
	return res.Embedding, nil
}

// Clear evicts the fast-tier entry for text. Durable rows are kept.
func (c *Cache) Clear(ctx context.Context, text string) error {
	if _, err := c.fast.Del(ctx, Key(text)); err != nil {
		return fmt.Errorf("clear query cache: %w", err)
	}
	return nil
}

func (c *Cache) inc(tier, result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(tier, result).Inc()
	}
}

func (c *Cache) getFast(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.fast.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.inc("fast", "error")
			c.logger.Warn("Failed to get cached query embedding", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	vec, err := bytesToVector(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached query embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

func (c *Cache) getDurable(ctx context.Context, text string) ([]float32, bool) {
	q, err := c.durable.FindByText(ctx, text)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			c.inc("durable", "error")
			c.logger.Warn("Failed to read stored query embedding", zap.String("query", text), zap.Error(err))
		}
		return nil, false
	}
	if len(q.Embedding) == 0 {
		return nil, false
	}
	return q.Embedding, true
}

func (c *Cache) putFast(ctx context.Context, key string, vec []float32) {
	if err := c.fast.SetWithTTL(ctx, key, vectorToCacheBytes(vec), c.ttl); err != nil {
		c.logger.Warn("Failed to cache query embedding", zap.String("key", key), zap.Error(err))
	}
}

func vectorToCacheBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid query cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
