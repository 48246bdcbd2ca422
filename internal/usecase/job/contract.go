package job

import (
	"context"
	"io"
	"time"

	"github.com/kailas-cloud/photodex/internal/domain"
	domimg "github.com/kailas-cloud/photodex/internal/domain/image"
	"github.com/kailas-cloud/photodex/internal/queue"
)

// Repository locks and updates image status.
type Repository interface {
	Get(ctx context.Context, id int64) (domimg.Record, error)
	Transition(ctx context.Context, id int64, fn func(rec *domimg.Record) error) (domimg.Record, error)
	IDsByStatus(ctx context.Context, state domimg.State) ([]int64, error)
	StaleProcessingIDs(ctx context.Context, cutoff time.Time) ([]int64, error)
}

// Files opens stored image files.
type Files interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// localFiles is implemented by backends that keep files on local disk.
type localFiles interface {
	Path(key string) string
}

// Embedder vectorizes a local image file.
type Embedder interface {
	EmbedImage(ctx context.Context, path string) (domain.EmbeddingResult, error)
}

// Enqueuer schedules embedding jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) error
}
