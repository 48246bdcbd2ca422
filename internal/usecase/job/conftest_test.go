package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/photodex/internal/domain"
	domimg "github.com/kailas-cloud/photodex/internal/domain/image"
	"github.com/kailas-cloud/photodex/internal/metrics"
	"github.com/kailas-cloud/photodex/internal/queue"
)

func TestMain(m *testing.M) {
	metrics.RegisterJobMetrics()
	os.Exit(m.Run())
}

// --- Mocks ---

// memRepo keeps records in memory and applies transitions like the SQL repository.
type memRepo struct {
	mu      sync.Mutex
	records map[int64]domimg.Record
	writes  int
	listErr error
}

func newMemRepo(recs ...domimg.Record) *memRepo {
	m := &memRepo{records: map[int64]domimg.Record{}}
	for _, r := range recs {
		m.records[r.ID()] = r
	}
	return m
}

func (m *memRepo) Transition(_ context.Context, id int64, fn func(*domimg.Record) error) (domimg.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return domimg.Record{}, fmt.Errorf("image %d: %w", id, domain.ErrImageNotFound)
	}
	if err := fn(&rec); err != nil {
		return domimg.Record{}, err
	}
	if err := rec.CheckInvariants(); err != nil {
		return domimg.Record{}, err
	}
	m.records[id] = rec
	m.writes++
	return rec, nil
}

func (m *memRepo) Get(_ context.Context, id int64) (domimg.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return domimg.Record{}, fmt.Errorf("image %d: %w", id, domain.ErrImageNotFound)
	}
	return rec, nil
}

func (m *memRepo) IDsByStatus(_ context.Context, state domimg.State) ([]int64, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id, r := range m.records {
		if r.Status().Is(state) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memRepo) StaleProcessingIDs(_ context.Context, cutoff time.Time) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id, r := range m.records {
		if r.Status().Is(domimg.StateProcessing) && r.ProcessingStartedAt() != nil &&
			r.ProcessingStartedAt().Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// get returns a snapshot of the stored record.
func (m *memRepo) get(id int64) *domimg.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.records[id]
	return &rec
}

type mockEmbedder struct {
	result domain.EmbeddingResult
	err    error
	calls  int
	paths  []string
	seen   []string
}

func (m *mockEmbedder) EmbedImage(_ context.Context, path string) (domain.EmbeddingResult, error) {
	m.calls++
	m.paths = append(m.paths, path)
	if data, err := os.ReadFile(path); err == nil {
		m.seen = append(m.seen, string(data))
	}
	return m.result, m.err
}

// diskFiles resolves keys to paths under a directory.
type diskFiles struct{ root string }

func (d diskFiles) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return os.Open(d.Path(key))
}

func (d diskFiles) Path(key string) string { return d.root + "/" + key }

// remoteFiles only supports streaming.
type remoteFiles struct {
	content string
	err     error
}

func (r remoteFiles) Open(_ context.Context, _ string) (io.ReadCloser, error) {
	if r.err != nil {
		return nil, r.err
	}
	return io.NopCloser(strings.NewReader(r.content)), nil
}

type recordingQueue struct {
	mu     sync.Mutex
	jobs   []queue.Job
	failID int64
}

func (q *recordingQueue) Enqueue(_ context.Context, job queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job.ImageID == q.failID {
		return errors.New("queue full")
	}
	q.jobs = append(q.jobs, job)
	return nil
}

// --- Helpers ---

func vector() []float32 {
	v := make([]float32, domain.VectorDim)
	v[0] = 1
	return v
}

func stored(t *testing.T, id int64, state domimg.State, mutate func(*domimg.Stored)) domimg.Record {
	t.Helper()
	s := domimg.Stored{ID: id, Locator: "images/a.jpg", State: state, CreatedAt: time.Now()}
	switch state {
	case domimg.StateDone:
		s.Embedding = vector()
		s.Model = domain.DefaultModelID
	case domimg.StateFailed:
		msg := "boom"
		s.Error = &msg
	}
	if mutate != nil {
		mutate(&s)
	}
	rec, err := domimg.Reconstruct(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return rec
}

type delayed struct {
	d time.Duration
	f func()
}

type fixture struct {
	runner   *Runner
	repo     *memRepo
	embedder *mockEmbedder
	queue    *recordingQueue
	delays   []delayed
}

func newTestRunner(t *testing.T, files Files, recs ...domimg.Record) *fixture {
	t.Helper()
	f := &fixture{
		repo:     newMemRepo(recs...),
		embedder: &mockEmbedder{result: domain.EmbeddingResult{Model: domain.DefaultModelID, Embedding: vector()}},
		queue:    &recordingQueue{},
	}
	f.runner = NewRunner(f.repo, files, f.embedder, f.queue, Options{
		MaxAttempts:       3,
		RetryBackoff:      time.Minute,
		ProcessingTimeout: 15 * time.Minute,
		TempDir:           t.TempDir(),
	}, zap.NewNop())
	f.runner.afterFunc = func(d time.Duration, fn func()) {
		f.delays = append(f.delays, delayed{d: d, f: fn})
	}
	return f
}

// fireRetries runs every scheduled retry.
func (f *fixture) fireRetries() {
	for _, d := range f.delays {
		d.f()
	}
	f.delays = nil
}
