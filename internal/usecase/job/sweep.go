package job

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/photodex/internal/domain"
	domimg "github.com/kailas-cloud/photodex/internal/domain/image"
	"github.com/kailas-cloud/photodex/internal/metrics"
	"github.com/kailas-cloud/photodex/internal/queue"
)

var errLeaseRenewed = errors.New("record no longer processing")

// RetryAllFailed re-enqueues every failed record and returns how many were enqueued.
// A per-record enqueue failure is logged and the sweep continues.
func (r *Runner) RetryAllFailed(ctx context.Context) (int, error) {
	return r.requeue(ctx, domimg.StateFailed, "retry_failed")
}

// RequeuePending re-enqueues records left pending, e.g. after a restart or a full queue.
func (r *Runner) RequeuePending(ctx context.Context) (int, error) {
	return r.requeue(ctx, domimg.StatePending, "requeue_pending")
}

// Retry re-enqueues a single failed record.
func (r *Runner) Retry(ctx context.Context, id int64) error {
	rec, err := r.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get image %d: %w", id, err)
	}
	if !rec.Status().Is(domimg.StateFailed) {
		return domain.NewValidationError("image %d is %s, only failed images can be retried", id, rec.Status().State())
	}
	if err := r.queue.Enqueue(ctx, queue.Job{ImageID: id, Attempt: 1}); err != nil {
		return fmt.Errorf("enqueue image %d: %w", id, err)
	}
	metrics.SweepImagesTotal.WithLabelValues("retry_one").Inc()
	return nil
}

func (r *Runner) requeue(ctx context.Context, state domimg.State, sweep string) (int, error) {
	ids, err := r.repo.IDsByStatus(ctx, state)
	if err != nil {
		return 0, fmt.Errorf("list %s images: %w", state, err)
	}
	return r.enqueueAll(ctx, ids, sweep), nil
}

// ReclaimStale fails processing records whose lease outlived the processing timeout
// and re-enqueues them.
func (r *Runner) ReclaimStale(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.opts.ProcessingTimeout)
	ids, err := r.repo.StaleProcessingIDs(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stale images: %w", err)
	}

	reclaimed := make([]int64, 0, len(ids))
	for _, id := range ids {
		_, err := r.repo.Transition(ctx, id, func(rec *domimg.Record) error {
			started := rec.ProcessingStartedAt()
			if !rec.Status().Is(domimg.StateProcessing) || started == nil || started.After(cutoff) {
				return errLeaseRenewed
			}
			rec.Fail(msgLeaseExpired)
			return nil
		})
		if err != nil {
			if !errors.Is(err, errLeaseRenewed) {
				r.logger.Error("Reclaim failed", zap.Int64("image_id", id), zap.Error(err))
			}
			continue
		}
		metrics.JobTransitionsTotal.WithLabelValues(string(domimg.StateFailed)).Inc()
		reclaimed = append(reclaimed, id)
	}

	return r.enqueueAll(ctx, reclaimed, "reclaim_stale"), nil
}

func (r *Runner) enqueueAll(ctx context.Context, ids []int64, sweep string) int {
	n := 0
	for _, id := range ids {
		if err := r.queue.Enqueue(ctx, queue.Job{ImageID: id, Attempt: 1}); err != nil {
			r.logger.Error("Sweep enqueue failed",
				zap.String("sweep", sweep), zap.Int64("image_id", id), zap.Error(err))
			continue
		}
		n++
	}
	metrics.SweepImagesTotal.WithLabelValues(sweep).Add(float64(n))
	if len(ids) > 0 {
		r.logger.Info("Sweep finished", zap.String("sweep", sweep), zap.Int("found", len(ids)), zap.Int("enqueued", n))
	}
	return n
}
