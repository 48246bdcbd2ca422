// Package job runs embedding jobs through the pending -> processing -> done|failed
// state machine.
package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/photodex/internal/domain"
	domimg "github.com/kailas-cloud/photodex/internal/domain/image"
	"github.com/kailas-cloud/photodex/internal/logger"
	"github.com/kailas-cloud/photodex/internal/metrics"
	"github.com/kailas-cloud/photodex/internal/queue"
)

const (
	msgNoEmbedding  = "no embedding produced"
	msgLeaseExpired = "processing lease expired"
)

// Options configures retries and the processing lease.
type Options struct {
	MaxAttempts       int
	RetryBackoff      time.Duration
	ProcessingTimeout time.Duration
	TempDir           string
}

// Runner executes embedding jobs and the maintenance sweeps.
type Runner struct {
	repo     Repository
	files    Files
	embedder Embedder
	queue    Enqueuer
	opts     Options
	logger   *zap.Logger

	now       func() time.Time
	afterFunc func(d time.Duration, f func())
}

// NewRunner creates a job runner.
func NewRunner(repo Repository, files Files, embedder Embedder, q Enqueuer, opts Options, logger *zap.Logger) *Runner {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	return &Runner{
		repo:     repo,
		files:    files,
		embedder: embedder,
		queue:    q,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// Handle runs one embedding attempt. Provider failures end up in the record state
// and return nil; a missing record returns a wrapped domain.ErrImageNotFound.
func (r *Runner) Handle(ctx context.Context, job queue.Job) error {
	log := r.logger.With(zap.Int64("image_id", job.ImageID), zap.Int("attempt", job.Attempt))
	ctx = logger.ContextWithLogger(ctx, log)
	start := r.now()

	rec, err := r.repo.Transition(ctx, job.ImageID, func(rec *domimg.Record) error {
		return rec.StartProcessing(start)
	})
	if errors.Is(err, domimg.ErrAlreadyHandled) {
		log.Debug("Job skipped, image already processing or done")
		metrics.JobDuration.WithLabelValues("skipped").Observe(time.Since(start).Seconds())
		return nil
	}
	if err != nil {
		return fmt.Errorf("start image %d: %w", job.ImageID, err)
	}
	metrics.JobTransitionsTotal.WithLabelValues(string(domimg.StateProcessing)).Inc()

	result, embedErr := r.embed(ctx, rec.Locator())

	failure := ""
	switch {
	case embedErr != nil:
		failure = embedErr.Error()
	case result.Empty():
		failure = msgNoEmbedding
	}

	final, err := r.repo.Transition(ctx, job.ImageID, func(rec *domimg.Record) error {
		if failure == "" {
			if err := rec.Complete(result.Model, result.Embedding); err != nil {
				failure = err.Error()
			}
		}
		if failure != "" {
			rec.Fail(failure)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("finish image %d: %w", job.ImageID, err)
	}

	state := final.Status().State()
	metrics.JobTransitionsTotal.WithLabelValues(string(state)).Inc()
	metrics.JobDuration.WithLabelValues(string(state)).Observe(time.Since(start).Seconds())

	if state == domimg.StateDone {
		log.Info("Image embedded", zap.String("model", final.Model()), zap.Duration("duration", time.Since(start)))
		return nil
	}

	log.Warn("Image embedding failed", zap.String("error", failure))
	r.scheduleRetry(ctx, job, embedErr)
	return nil
}

// embed materializes the stored file locally and sends it to the provider.
func (r *Runner) embed(ctx context.Context, locator string) (domain.EmbeddingResult, error) {
	if lf, ok := r.files.(localFiles); ok {
		return r.embedder.EmbedImage(ctx, lf.Path(locator))
	}

	src, err := r.files.Open(ctx, locator)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("open stored image: %w", err)
	}
	defer func() { _ = src.Close() }()

	tmp, err := os.CreateTemp(r.opts.TempDir, "photodex-job-*"+path.Ext(locator))
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	_, err = io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("copy stored image: %w", err)
	}

	return r.embedder.EmbedImage(ctx, tmp.Name())
}

func (r *Runner) scheduleRetry(ctx context.Context, job queue.Job, cause error) {
	log := logger.FromContext(ctx)
	if permanent(cause) {
		log.Info("Not retrying permanent failure")
		return
	}
	if job.Attempt >= r.opts.MaxAttempts {
		log.Warn("Retry budget exhausted", zap.Int("max_attempts", r.opts.MaxAttempts))
		return
	}

	next := queue.Job{ImageID: job.ImageID, Attempt: job.Attempt + 1}
	base := context.WithoutCancel(ctx)
	metrics.JobRetriesTotal.Inc()

	r.afterFunc(r.opts.RetryBackoff, func() {
		if err := r.queue.Enqueue(base, next); err != nil {
			log.Error("Retry enqueue failed", zap.Int("next_attempt", next.Attempt), zap.Error(err))
		}
	})
}

func permanent(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrConfiguration)
}
