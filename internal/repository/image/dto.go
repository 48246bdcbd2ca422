package image

import (
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/kailas-cloud/photodex/internal/domain/geo"
	domimg "github.com/kailas-cloud/photodex/internal/domain/image"
)

const table = "images"

// columns is the canonical select list; row.dest scans in the same order.
var columns = []string{
	"id", "image", "embedding", "embedding_model", "gps_coordinates", "location_name",
	"date_taken_exif", "date_taken_user", "location_user", "exif_fingerprint", "exif_data",
	"tags", "status", "error_message", "processing_started_at", "created_at", "updated_at",
}

// row mirrors one images row.
type row struct {
	id                  int64
	locator             string
	embedding           *pgvector.Vector
	model               *string
	gps                 []float64
	locality            *string
	captureTime         *time.Time
	userDate            *time.Time
	userLocation        *string
	fingerprint         *string
	metadata            map[string]any
	tags                []string
	status              string
	errMsg              *string
	processingStartedAt *time.Time
	createdAt           time.Time
	updatedAt           time.Time
}

func (r *row) dest() []any {
	return []any{
		&r.id, &r.locator, &r.embedding, &r.model, &r.gps, &r.locality,
		&r.captureTime, &r.userDate, &r.userLocation, &r.fingerprint, &r.metadata,
		&r.tags, &r.status, &r.errMsg, &r.processingStartedAt, &r.createdAt, &r.updatedAt,
	}
}

func (r *row) toDomain() (domimg.Record, error) {
	state, err := domimg.ParseState(r.status)
	if err != nil {
		return domimg.Record{}, fmt.Errorf("image %d: %w", r.id, err)
	}

	var gps *geo.Point
	if len(r.gps) == 2 {
		p, err := geo.NewPoint(r.gps[0], r.gps[1])
		if err != nil {
			return domimg.Record{}, fmt.Errorf("image %d: %w", r.id, err)
		}
		gps = &p
	}

	var vec []float32
	if r.embedding != nil {
		vec = r.embedding.Slice()
	}

	return domimg.Reconstruct(domimg.Stored{
		ID:                  r.id,
		Locator:             r.locator,
		Embedding:           vec,
		Model:               deref(r.model),
		GPS:                 gps,
		Locality:            deref(r.locality),
		CaptureTime:         r.captureTime,
		UserDate:            r.userDate,
		UserLocation:        deref(r.userLocation),
		Fingerprint:         r.fingerprint,
		Metadata:            r.metadata,
		Tags:                r.tags,
		State:               state,
		Error:               r.errMsg,
		ProcessingStartedAt: r.processingStartedAt,
		CreatedAt:           r.createdAt,
		UpdatedAt:           r.updatedAt,
	})
}

// vectorArg returns a pgvector value, or nil for SQL NULL.
func vectorArg(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}

func gpsArg(p *geo.Point) any {
	if p == nil {
		return nil
	}
	return []float64{p.Lon, p.Lat}
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func errorArg(st domimg.Status) *string {
	if !st.Is(domimg.StateFailed) {
		return nil
	}
	msg := st.Message()
	return &msg
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
