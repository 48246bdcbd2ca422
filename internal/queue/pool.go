package queue

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/photodex/internal/domain"
	"github.com/kailas-cloud/photodex/internal/metrics"
)

// Pool runs jobs on a fixed set of goroutines fed by a buffered channel.
type Pool struct {
	jobs    chan Job
	workers int
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	logger  *zap.Logger
}

// NewPool creates a pool. Call Start to launch the workers.
func NewPool(workers, buffer int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		jobs:    make(chan Job, buffer),
		workers: workers,
		logger:  logger,
	}
}

// Start launches the workers. Handlers get ctx without its cancellation, so jobs
// drained by Shutdown still run against a live context.
func (p *Pool) Start(ctx context.Context, h Handler) {
	ctx = context.WithoutCancel(ctx)
	for i := range p.workers {
		p.wg.Add(1)
		go p.worker(ctx, i, h)
	}
}

func (p *Pool) worker(ctx context.Context, id int, h Handler) {
	defer p.wg.Done()

	for job := range p.jobs {
		if err := h.Handle(ctx, job); err != nil {
			logOutcome(p.logger, job, err)
			continue
		}
		p.logger.Debug("Job handled", zap.Int("worker", id), zap.Int64("image_id", job.ImageID))
	}
}

// Enqueue never blocks. A full buffer or a stopped pool yields domain.ErrQueueFull.
func (p *Pool) Enqueue(_ context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		metrics.QueueEnqueueTotal.WithLabelValues("local", "closed").Inc()
		return domain.ErrQueueFull
	}

	select {
	case p.jobs <- job:
		metrics.QueueEnqueueTotal.WithLabelValues("local", "ok").Inc()
		return nil
	default:
		metrics.QueueEnqueueTotal.WithLabelValues("local", "full").Inc()
		p.logger.Warn("Job queue full", zap.Int64("image_id", job.ImageID))
		return domain.ErrQueueFull
	}
}

// Shutdown stops accepting jobs, drains the buffer and waits for the workers.
func (p *Pool) Shutdown() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
		p.wg.Wait()
	})
}
