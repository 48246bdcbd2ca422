package image

import (
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/photodex/internal/domain"
	"github.com/kailas-cloud/photodex/internal/domain/geo"
)

// ErrAlreadyHandled is returned when a job hits a record that is processing or done.
var ErrAlreadyHandled = errors.New("record already processing or done")

// Record is the image aggregate.
type Record struct {
	id                  int64
	locator             string
	embedding           []float32
	model               string
	gps                 *geo.Point
	locality            string
	captureTime         *time.Time
	userDate            *time.Time
	userLocation        string
	fingerprint         *string
	metadata            map[string]any
	tags                []string
	status              Status
	processingStartedAt *time.Time
	createdAt           time.Time
	updatedAt           time.Time
}

// NewParams holds the attributes assembled by ingestion.
type NewParams struct {
	Locator      string
	GPS          *geo.Point
	Locality     string
	CaptureTime  *time.Time
	UserDate     *time.Time
	UserLocation string
	Fingerprint  *string
	Metadata     map[string]any
	Tags         []string
}

// New creates a pending record without an embedding.
func New(p NewParams) (Record, error) {
	if p.Locator == "" {
		return Record{}, fmt.Errorf("storage locator is required")
	}
	meta := p.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return Record{
		locator:      p.Locator,
		gps:          p.GPS,
		locality:     p.Locality,
		captureTime:  p.CaptureTime,
		userDate:     p.UserDate,
		userLocation: p.UserLocation,
		fingerprint:  p.Fingerprint,
		metadata:     meta,
		tags:         append([]string(nil), p.Tags...),
		status:       Pending(),
	}, nil
}

// Stored holds persisted columns for hydration.
type Stored struct {
	ID                  int64
	Locator             string
	Embedding           []float32
	Model               string
	GPS                 *geo.Point
	Locality            string
	CaptureTime         *time.Time
	UserDate            *time.Time
	UserLocation        string
	Fingerprint         *string
	Metadata            map[string]any
	Tags                []string
	State               State
	Error               *string
	ProcessingStartedAt *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Reconstruct hydrates a record from storage and checks the status invariants.
func Reconstruct(s Stored) (Record, error) {
	status, err := statusFrom(s.State, s.Error)
	if err != nil {
		return Record{}, fmt.Errorf("record %d: %w", s.ID, err)
	}
	r := Record{
		id:                  s.ID,
		locator:             s.Locator,
		embedding:           s.Embedding,
		model:               s.Model,
		gps:                 s.GPS,
		locality:            s.Locality,
		captureTime:         s.CaptureTime,
		userDate:            s.UserDate,
		userLocation:        s.UserLocation,
		fingerprint:         s.Fingerprint,
		metadata:            s.Metadata,
		tags:                s.Tags,
		status:              status,
		processingStartedAt: s.ProcessingStartedAt,
		createdAt:           s.CreatedAt,
		updatedAt:           s.UpdatedAt,
	}
	if err := r.CheckInvariants(); err != nil {
		return Record{}, err
	}
	return r, nil
}

// CheckInvariants verifies that the embedding is present iff done and the error iff failed.
func (r *Record) CheckInvariants() error {
	done := r.status.Is(StateDone)
	if done != (len(r.embedding) > 0) {
		return fmt.Errorf("record %d: embedding presence does not match status %s", r.id, r.status.State())
	}
	failed := r.status.Is(StateFailed)
	if failed != (r.status.Message() != "") {
		return fmt.Errorf("record %d: error presence does not match status %s", r.id, r.status.State())
	}
	return nil
}

// StartProcessing moves a pending or failed record into processing and clears the error.
func (r *Record) StartProcessing(now time.Time) error {
	if r.status.Is(StateProcessing) || r.status.Is(StateDone) {
		return ErrAlreadyHandled
	}
	r.status = Processing()
	r.embedding = nil
	r.processingStartedAt = &now
	return nil
}

// Complete stores the vector and marks the record done.
func (r *Record) Complete(model string, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("complete record %d: empty embedding", r.id)
	}
	if len(vec) != domain.VectorDim {
		return fmt.Errorf("complete record %d: %w: got %d, want %d",
			r.id, domain.ErrVectorDimMismatch, len(vec), domain.VectorDim)
	}
	r.status = Done()
	r.embedding = vec
	r.model = model
	r.processingStartedAt = nil
	return nil
}

// Fail marks the record failed with a message and drops any vector.
func (r *Record) Fail(message string) {
	r.status = Failed(message)
	r.embedding = nil
	r.processingStartedAt = nil
}

// ID returns the store-assigned identifier.
func (r *Record) ID() int64 { return r.id }

// WithID returns a copy carrying the store-assigned identifier and timestamps.
func (r Record) WithID(id int64, createdAt time.Time) Record {
	r.id = id
	r.createdAt = createdAt
	r.updatedAt = createdAt
	return r
}

// Locator returns the storage locator of the image file.
func (r *Record) Locator() string { return r.locator }

// Embedding returns the vector, nil unless done.
func (r *Record) Embedding() []float32 { return r.embedding }

// Model returns the embedding model identifier.
func (r *Record) Model() string { return r.model }

// GPS returns the capture location.
func (r *Record) GPS() *geo.Point { return r.gps }

// Locality returns the place name resolved from GPS.
func (r *Record) Locality() string { return r.locality }

// CaptureTime returns the zone-aware EXIF capture time.
func (r *Record) CaptureTime() *time.Time { return r.captureTime }

// UserDate returns the user-supplied capture date.
func (r *Record) UserDate() *time.Time { return r.userDate }

// UserLocation returns the user-supplied location text.
func (r *Record) UserLocation() string { return r.userLocation }

// Fingerprint returns the EXIF unique image identifier.
func (r *Record) Fingerprint() *string { return r.fingerprint }

// Metadata returns the JSON-safe EXIF map.
func (r *Record) Metadata() map[string]any { return r.metadata }

// Tags returns the user tags.
func (r *Record) Tags() []string { return r.tags }

// Status returns the embedding status.
func (r *Record) Status() Status { return r.status }

// ProcessingStartedAt returns the processing lease start.
func (r *Record) ProcessingStartedAt() *time.Time { return r.processingStartedAt }

// CreatedAt returns the creation time.
func (r *Record) CreatedAt() time.Time { return r.createdAt }

// UpdatedAt returns the last update time.
func (r *Record) UpdatedAt() time.Time { return r.updatedAt }

// SearchQuery is a memoized text query embedding.
type SearchQuery struct {
	ID        int64
	Text      string
	Embedding []float32
	Model     string
	CreatedAt time.Time
}
