package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/photodex/internal/domain"
	domimg "github.com/kailas-cloud/photodex/internal/domain/image"
)

// --- Mocks ---

type mockRepo struct {
	rec       domimg.Record
	getErr    error
	listLimit int
	listState *domimg.State
	deleted   []int64
	deleteErr error
	counts    map[domimg.State]int
	locators  []string
}

func (m *mockRepo) Get(_ context.Context, _ int64) (domimg.Record, error) { return m.rec, m.getErr }

func (m *mockRepo) List(_ context.Context, state *domimg.State, limit int) ([]domimg.Record, error) {
	m.listState = state
	m.listLimit = limit
	return []domimg.Record{m.rec}, nil
}

func (m *mockRepo) Delete(_ context.Context, id int64) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockRepo) CountByStatus(_ context.Context) (map[domimg.State]int, error) {
	return m.counts, nil
}

func (m *mockRepo) Locators(_ context.Context) ([]string, error) { return m.locators, nil }

type memStorage struct {
	mu      sync.Mutex
	sizes   map[string]int64
	deleted []string
	sizeErr error
}

func (m *memStorage) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sizes[key]
	return ok, nil
}

func (m *memStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	delete(m.sizes, key)
	return nil
}

func (m *memStorage) Size(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sizeErr != nil {
		return 0, m.sizeErr
	}
	size, ok := m.sizes[key]
	if !ok {
		return 0, fmt.Errorf("file %s: %w", key, domain.ErrNotFound)
	}
	return size, nil
}

func (m *memStorage) URL(key string) string { return "/media/" + key }

func record(t *testing.T, locator string) domimg.Record {
	t.Helper()
	rec, err := domimg.Reconstruct(domimg.Stored{ID: 5, Locator: locator, State: domimg.StatePending, CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return rec
}

// --- Tests ---

func TestGet(t *testing.T) {
	store := &memStorage{sizes: map[string]int64{"images/a.JPG": 2048}}
	svc := New(&mockRepo{rec: record(t, "images/a.JPG")}, store)

	info, err := svc.Get(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Size != 2048 || info.URL != "/media/images/a.JPG" || info.FileType != "jpg" {
		t.Errorf("unexpected info %+v", info)
	}
}

func TestGet_MissingFile(t *testing.T) {
	svc := New(&mockRepo{rec: record(t, "images/gone.png")}, &memStorage{sizes: map[string]int64{}})

	info, err := svc.Get(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Size != 0 {
		t.Errorf("expected size 0, got %d", info.Size)
	}
}

func TestGet_NotFound(t *testing.T) {
	svc := New(&mockRepo{getErr: fmt.Errorf("image 5: %w", domain.ErrImageNotFound)}, &memStorage{})

	if _, err := svc.Get(context.Background(), 5); !errors.Is(err, domain.ErrImageNotFound) {
		t.Fatalf("expected ErrImageNotFound, got %v", err)
	}
}

func TestList_Limits(t *testing.T) {
	repo := &mockRepo{rec: record(t, "images/a.jpg")}
	svc := New(repo, &memStorage{})

	tests := []struct {
		in, want int
	}{
		{0, 20},
		{-3, 20},
		{30, 30},
		{500, 100},
	}
	for _, tt := range tests {
		if _, err := svc.List(context.Background(), nil, tt.in); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if repo.listLimit != tt.want {
			t.Errorf("List(limit=%d) used %d, want %d", tt.in, repo.listLimit, tt.want)
		}
	}

	failed := domimg.StateFailed
	if _, err := svc.List(context.Background(), &failed, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.listState == nil || *repo.listState != domimg.StateFailed {
		t.Error("expected state filter to pass through")
	}
}

func TestDelete_RemovesFileThenRecord(t *testing.T) {
	repo := &mockRepo{rec: record(t, "images/a.jpg")}
	store := &memStorage{sizes: map[string]int64{"images/a.jpg": 10}}
	svc := New(repo, store)

	if err := svc.Delete(context.Background(), 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.deleted) != 1 || len(repo.deleted) != 1 {
		t.Errorf("expected file and record removed, got files=%v records=%v", store.deleted, repo.deleted)
	}
}

func TestDelete_MissingFileStillRemovesRecord(t *testing.T) {
	repo := &mockRepo{rec: record(t, "images/a.jpg")}
	store := &memStorage{sizes: map[string]int64{}}
	svc := New(repo, store)

	if err := svc.Delete(context.Background(), 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.deleted) != 0 || len(repo.deleted) != 1 {
		t.Errorf("unexpected deletes files=%v records=%v", store.deleted, repo.deleted)
	}
}

func TestUsage(t *testing.T) {
	repo := &mockRepo{
		locators: []string{"images/a.jpg", "images/b.jpg", "images/gone.jpg"},
		counts:   map[domimg.State]int{domimg.StateDone: 2, domimg.StatePending: 1},
	}
	store := &memStorage{sizes: map[string]int64{
		"images/a.jpg": 1024 * 1024,
		"images/b.jpg": 512 * 1024,
	}}
	svc := New(repo, store)

	u, err := svc.Usage(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.TotalFiles != 3 {
		t.Errorf("expected 3 files, got %d", u.TotalFiles)
	}
	if u.TotalBytes != 1024*1024+512*1024 {
		t.Errorf("unexpected bytes %d", u.TotalBytes)
	}
	if u.TotalMB != 1.5 {
		t.Errorf("expected 1.5 MB, got %v", u.TotalMB)
	}
	if u.ByStatus[domimg.StateDone] != 2 {
		t.Errorf("unexpected counts %v", u.ByStatus)
	}
}

func TestUsage_StorageError(t *testing.T) {
	repo := &mockRepo{locators: []string{"images/a.jpg"}}
	svc := New(repo, &memStorage{sizeErr: errors.New("bucket unreachable")})

	if _, err := svc.Usage(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
