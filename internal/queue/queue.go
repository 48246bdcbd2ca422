// Package queue delivers embedding jobs to a Handler.
//
// Three drivers share the Enqueue contract: Pool (in-process channel),
// Stream (Redis Streams consumer group, at-least-once) and Sync (inline, for tests).
package queue

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/kailas-cloud/photodex/internal/domain"
)

// Job asks for one embedding attempt of an image record.
type Job struct {
	ImageID int64
	Attempt int
}

// Handler processes a job. A returned domain.ErrNotFound drops the job.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job Job) error

func (f HandlerFunc) Handle(ctx context.Context, job Job) error { return f(ctx, job) }

// logOutcome reports a handler error. It returns true when the job should be acknowledged.
func logOutcome(logger *zap.Logger, job Job, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, domain.ErrNotFound):
		logger.Warn("Dropping job for missing image",
			zap.Int64("image_id", job.ImageID),
			zap.Int("attempt", job.Attempt),
		)
		return true
	default:
		logger.Error("Job handler failed",
			zap.Int64("image_id", job.ImageID),
			zap.Int("attempt", job.Attempt),
			zap.Error(err),
		)
		return false
	}
}
