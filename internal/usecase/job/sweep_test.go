package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/photodex/internal/domain"
	domimg "github.com/kailas-cloud/photodex/internal/domain/image"
)

func TestRetry(t *testing.T) {
	f := newTestRunner(t, diskFiles{root: "/data"}, stored(t, 7, domimg.StateFailed, nil))

	if err := f.runner.Retry(context.Background(), 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.queue.jobs) != 1 || f.queue.jobs[0].ImageID != 7 || f.queue.jobs[0].Attempt != 1 {
		t.Errorf("unexpected jobs %+v", f.queue.jobs)
	}
}

func TestRetry_NotFailed(t *testing.T) {
	f := newTestRunner(t, diskFiles{root: "/data"}, stored(t, 7, domimg.StateDone, nil))

	err := f.runner.Retry(context.Background(), 7)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(f.queue.jobs) != 0 {
		t.Errorf("expected nothing enqueued, got %+v", f.queue.jobs)
	}
}

func TestRetry_Missing(t *testing.T) {
	f := newTestRunner(t, diskFiles{root: "/data"})

	if err := f.runner.Retry(context.Background(), 99); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRetry_EnqueueFails(t *testing.T) {
	f := newTestRunner(t, diskFiles{root: "/data"}, stored(t, 7, domimg.StateFailed, nil))
	f.queue.failID = 7

	if err := f.runner.Retry(context.Background(), 7); err == nil {
		t.Fatal("expected error")
	}
}

func TestRetryAllFailed(t *testing.T) {
	f := newTestRunner(t, diskFiles{root: "/data"},
		stored(t, 1, domimg.StateFailed, nil),
		stored(t, 2, domimg.StateFailed, nil),
		stored(t, 3, domimg.StateDone, nil),
	)
	f.queue.failID = 2

	n, err := f.runner.RetryAllFailed(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 enqueued, got %d", n)
	}
	if len(f.queue.jobs) != 1 || f.queue.jobs[0].ImageID != 1 || f.queue.jobs[0].Attempt != 1 {
		t.Errorf("unexpected jobs %+v", f.queue.jobs)
	}
}

func TestRetryAllFailed_ListError(t *testing.T) {
	f := newTestRunner(t, diskFiles{root: "/data"})
	f.repo.listErr = errors.New("db down")

	if _, err := f.runner.RetryAllFailed(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRequeuePending(t *testing.T) {
	f := newTestRunner(t, diskFiles{root: "/data"},
		stored(t, 1, domimg.StatePending, nil),
		stored(t, 2, domimg.StateFailed, nil),
	)

	n, err := f.runner.RequeuePending(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 || f.queue.jobs[0].ImageID != 1 {
		t.Errorf("expected only pending image enqueued, got %+v", f.queue.jobs)
	}
}

func TestReclaimStale(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-time.Hour)
	recent := now.Add(-time.Minute)

	f := newTestRunner(t, diskFiles{root: "/data"},
		stored(t, 1, domimg.StateProcessing, func(s *domimg.Stored) { s.ProcessingStartedAt = &old }),
		stored(t, 2, domimg.StateProcessing, func(s *domimg.Stored) { s.ProcessingStartedAt = &recent }),
	)
	f.runner.now = func() time.Time { return now }

	n, err := f.runner.ReclaimStale(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 reclaimed, got %d", n)
	}

	if got := f.repo.get(1).Status(); got.Message() != "processing lease expired" {
		t.Errorf("unexpected status for stale record: %s", got)
	}
	if !f.repo.get(2).Status().Is(domimg.StateProcessing) {
		t.Errorf("recent lease must stay processing, got %s", f.repo.get(2).Status())
	}
	if len(f.queue.jobs) != 1 || f.queue.jobs[0].ImageID != 1 {
		t.Errorf("unexpected jobs %+v", f.queue.jobs)
	}
}
