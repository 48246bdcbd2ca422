package request

import (
	"regexp"
	"strings"

	"github.com/kailas-cloud/photodex/internal/domain"
	"github.com/kailas-cloud/photodex/internal/domain/search/filter"
	"github.com/kailas-cloud/photodex/internal/domain/search/mode"
)

// MaxQueryLength is the maximum allowed search query length.
const MaxQueryLength = 512

var queryRegex = regexp.MustCompile(`^[A-Za-z0-9 ,]+$`)

// Request is a validated search query.
type Request struct {
	query  string
	filter filter.Filter
	mode   mode.Mode
	limit  int
}

// New validates the query text and picks the mode.
// Query text is optional; when present it must be English letters, digits, spaces and commas.
func New(query string, f filter.Filter) (Request, error) {
	q := NormalizeQuery(query)
	if q == "" {
		return Request{filter: f, mode: mode.Recent, limit: mode.Recent.DefaultLimit()}, nil
	}
	if err := ValidateQuery(q); err != nil {
		return Request{}, err
	}
	return Request{query: q, filter: f, mode: mode.Ranked, limit: mode.Ranked.DefaultLimit()}, nil
}

// NormalizeQuery trims surrounding whitespace.
func NormalizeQuery(q string) string {
	return strings.TrimSpace(q)
}

// ValidateQuery checks a normalized query.
func ValidateQuery(q string) error {
	if q == "" {
		return domain.NewValidationError("search query is required")
	}
	if len(q) > MaxQueryLength {
		return domain.NewValidationError("search query too long (max %d chars)", MaxQueryLength)
	}
	if !queryRegex.MatchString(q) {
		return domain.NewValidationError(
			"search query must contain only English letters, digits, spaces and commas")
	}
	return nil
}

// Query returns the normalized query text, empty for a recent listing.
func (r *Request) Query() string { return r.query }

// Filter returns the structured predicates.
func (r *Request) Filter() filter.Filter { return r.filter }

// Mode returns the ordering strategy.
func (r *Request) Mode() mode.Mode { return r.mode }

// Limit returns the result cap.
func (r *Request) Limit() int { return r.limit }
