package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type mockSweeper struct {
	retried   atomic.Int32
	reclaimed atomic.Int32
	requeued  atomic.Int32
	err       error
}

func (m *mockSweeper) RetryAllFailed(_ context.Context) (int, error) {
	m.retried.Add(1)
	return 0, m.err
}

func (m *mockSweeper) ReclaimStale(_ context.Context) (int, error) {
	m.reclaimed.Add(1)
	return 0, m.err
}

func (m *mockSweeper) RequeuePending(_ context.Context) (int, error) {
	m.requeued.Add(1)
	return 2, m.err
}

func TestStart_RequeuesPendingOnStart(t *testing.T) {
	sw := &mockSweeper{}
	s := NewScheduler(sw, Config{RequeuePendingOnStart: true}, zap.NewNop())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Stop(time.Second)

	if sw.requeued.Load() != 1 {
		t.Errorf("expected 1 pending requeue, got %d", sw.requeued.Load())
	}
}

func TestStart_RunsCronSweeps(t *testing.T) {
	sw := &mockSweeper{}
	s := NewScheduler(sw, Config{RetryFailedCron: "* * * * * *", ReclaimCron: "* * * * * *"}, zap.NewNop())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for (sw.retried.Load() == 0 || sw.reclaimed.Load() == 0) && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	s.Stop(time.Second)

	if sw.retried.Load() == 0 || sw.reclaimed.Load() == 0 {
		t.Errorf("expected both sweeps to run, retried=%d reclaimed=%d", sw.retried.Load(), sw.reclaimed.Load())
	}
	if sw.requeued.Load() != 0 {
		t.Errorf("expected no pending requeue, got %d", sw.requeued.Load())
	}
}

func TestStart_InvalidSpec(t *testing.T) {
	s := NewScheduler(&mockSweeper{}, Config{ReclaimCron: "every five minutes"}, zap.NewNop())

	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestSweepFunc_ErrorIsLogged(t *testing.T) {
	sw := &mockSweeper{err: errors.New("db down")}
	s := NewScheduler(sw, Config{}, zap.NewNop())

	s.sweepFunc("retry_failed", sw.RetryAllFailed)()
	if sw.retried.Load() != 1 {
		t.Errorf("expected sweep to run once, got %d", sw.retried.Load())
	}
}
