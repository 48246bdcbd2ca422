package ingest

import (
	"context"
	"io"

	domimg "github.com/kailas-cloud/photodex/internal/domain/image"
	"github.com/kailas-cloud/photodex/internal/media/exif"
	"github.com/kailas-cloud/photodex/internal/queue"
)

// Repository persists new image records.
type Repository interface {
	Create(ctx context.Context, rec domimg.Record) (domimg.Record, error)
	ExistsByFingerprint(ctx context.Context, fingerprint string) (bool, error)
}

// Extractor reads capture metadata from a local file.
type Extractor interface {
	Extract(path string) exif.Result
}

// Geocoder resolves a place name. Failures yield "".
type Geocoder interface {
	Locality(ctx context.Context, lat, lon float64, lang string) string
}

// ZoneFinder maps coordinates to an IANA zone name.
type ZoneFinder interface {
	Zone(lon, lat float64) string
}

// Storage saves image files.
type Storage interface {
	Save(ctx context.Context, key string, r io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}

// Enqueuer schedules embedding jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) error
}
