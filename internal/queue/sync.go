package queue

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Sync runs each job inline inside Enqueue.
type Sync struct {
	mu      sync.Mutex
	handler Handler
	logger  *zap.Logger
}

// NewSync creates an inline executor. Bind a handler before enqueueing.
func NewSync(logger *zap.Logger) *Sync {
	return &Sync{logger: logger}
}

// Start binds the handler.
func (s *Sync) Start(_ context.Context, h Handler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

// Enqueue handles the job before returning. Handler errors are logged, not returned.
func (s *Sync) Enqueue(ctx context.Context, job Job) error {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()

	if h == nil {
		return nil
	}
	logOutcome(s.logger, job, h.Handle(ctx, job))
	return nil
}
