package request

import "github.com/kailas-cloud/photodex/internal/domain"

// Similar request limits.
const (
	DefaultSimilarLimit = 20
	MaxSimilarLimit     = 50
)

// SimilarRequest is a validated "find similar images" query.
type SimilarRequest struct {
	imageID int64
	limit   int
}

// NewSimilar validates and normalizes similar request parameters.
func NewSimilar(imageID int64, limit int) (SimilarRequest, error) {
	if imageID <= 0 {
		return SimilarRequest{}, domain.NewValidationError("image id must be positive")
	}
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}
	if limit > MaxSimilarLimit {
		limit = MaxSimilarLimit
	}
	return SimilarRequest{imageID: imageID, limit: limit}, nil
}

// ImageID returns the reference image.
func (r *SimilarRequest) ImageID() int64 { return r.imageID }

// Limit returns the maximum results to return.
func (r *SimilarRequest) Limit() int { return r.limit }
