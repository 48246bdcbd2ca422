package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	domimg "github.com/kailas-cloud/photodex/internal/domain/image"
	"github.com/kailas-cloud/photodex/internal/media/exif"
	"github.com/kailas-cloud/photodex/internal/queue"
)

// --- Mocks ---

type memRepo struct {
	mu        sync.Mutex
	records   []domimg.Record
	createErr error
	existsErr error
}

func (m *memRepo) Create(_ context.Context, rec domimg.Record) (domimg.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return domimg.Record{}, m.createErr
	}
	rec = rec.WithID(int64(len(m.records)+1), time.Now())
	m.records = append(m.records, rec)
	return rec, nil
}

func (m *memRepo) ExistsByFingerprint(_ context.Context, fp string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existsErr != nil {
		return false, m.existsErr
	}
	for i := range m.records {
		if f := m.records[i].Fingerprint(); f != nil && *f == fp {
			return true, nil
		}
	}
	return false, nil
}

type fakeExtractor struct {
	result exif.Result
	paths  []string
}

func (f *fakeExtractor) Extract(path string) exif.Result {
	f.paths = append(f.paths, path)
	return f.result
}

type fakeGeocoder struct {
	name  string
	calls int
	lang  string
}

func (f *fakeGeocoder) Locality(_ context.Context, _, _ float64, lang string) string {
	f.calls++
	f.lang = lang
	return f.name
}

type fakeZones struct{ zone string }

func (f *fakeZones) Zone(_, _ float64) string { return f.zone }

type memStorage struct {
	files   map[string][]byte
	saveErr error
	deleted []string
}

func newMemStorage() *memStorage { return &memStorage{files: map[string][]byte{}} }

func (m *memStorage) Save(_ context.Context, key string, r io.Reader) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if _, ok := m.files[key]; ok {
		key += ".1"
	}
	m.files[key] = data
	return key, nil
}

func (m *memStorage) Delete(_ context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	delete(m.files, key)
	return nil
}

type recordingQueue struct {
	jobs []queue.Job
	err  error
}

func (q *recordingQueue) Enqueue(_ context.Context, job queue.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

var errQueueDown = errors.New("queue down")

// Open lets the job runner read stored files back.
func (m *memStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.files[key]
	if !ok {
		return nil, errors.New("no such file: " + key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
