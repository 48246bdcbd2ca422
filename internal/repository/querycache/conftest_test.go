package querycache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/photodex/internal/db"
	"github.com/kailas-cloud/photodex/internal/domain"
	domimg "github.com/kailas-cloud/photodex/internal/domain/image"
)

type mockEmbedder struct {
	result domain.EmbeddingResult
	err    error
	calls  atomic.Int32
	delay  time.Duration
}

func (m *mockEmbedder) EmbedText(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return m.result, m.err
}

// memKV is an in-memory fast tier.
type memKV struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memKV) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memKV) Del(_ context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func (m *memKV) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

// memDurable is an in-memory durable tier that keeps every write.
type memDurable struct {
	mu   sync.Mutex
	rows []domimg.SearchQuery
}

func (m *memDurable) FindByText(_ context.Context, text string) (domimg.SearchQuery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Text == text {
			return r, nil
		}
	}
	return domimg.SearchQuery{}, fmt.Errorf("search query %q: %w", text, domain.ErrNotFound)
}

func (m *memDurable) Save(_ context.Context, q domimg.SearchQuery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q.ID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, q)
	return nil
}

func (m *memDurable) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func testVector(x float32) []float32 {
	v := make([]float32, domain.VectorDim)
	v[0] = x
	return v
}

func newTestCache(t *testing.T, emb *mockEmbedder) (*Cache, *memKV, *memDurable) {
	t.Helper()
	fast := newMemKV()
	durable := &memDurable{}
	return New(emb, fast, durable, 24*time.Hour, nil, zap.NewNop()), fast, durable
}
