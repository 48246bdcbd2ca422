package result

import "github.com/kailas-cloud/photodex/internal/domain/image"

// Hit is a single search hit.
type Hit struct {
	record   image.Record
	distance *float64
}

// New creates a ranked hit.
func New(record image.Record, distance float64) Hit {
	return Hit{record: record, distance: &distance}
}

// Unranked creates a hit from a recent listing.
func Unranked(record image.Record) Hit {
	return Hit{record: record}
}

// Record returns the matched image.
func (h *Hit) Record() *image.Record { return &h.record }

// Distance returns the L2 distance to the query vector, nil when unranked.
func (h *Hit) Distance() *float64 { return h.distance }
