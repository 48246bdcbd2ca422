package filter

import (
	"time"

	"github.com/kailas-cloud/photodex/internal/domain"
	"github.com/kailas-cloud/photodex/internal/domain/image"
)

// MaxYearsBack bounds how far in the past a date filter may start.
const MaxYearsBack = 100

// Filter holds the structured search predicates. All set predicates are ANDed.
type Filter struct {
	tags     []string
	location string
	from     *time.Time
	to       *time.Time
}

// New validates and creates a Filter.
// tags is comma-separated; each tag must substring-match some record tag.
// from and to are inclusive calendar dates compared with the EXIF capture date.
func New(tags, location string, from, to *time.Time, now time.Time) (Filter, error) {
	parsed, err := image.ParseTags(tags)
	if err != nil {
		return Filter{}, err
	}
	if err := image.ValidateLocation(location); err != nil {
		return Filter{}, err
	}
	if err := validateDateRange(from, to, now); err != nil {
		return Filter{}, err
	}
	return Filter{
		tags:     parsed,
		location: location,
		from:     truncateDate(from),
		to:       truncateDate(to),
	}, nil
}

func validateDateRange(from, to *time.Time, now time.Time) error {
	if from != nil && to != nil && from.After(*to) {
		return domain.NewValidationError("date_from must not be after date_to")
	}
	if from != nil && from.Year() < now.Year()-MaxYearsBack {
		return domain.NewValidationError("date range is out of bounds")
	}
	if to != nil && to.Year() > now.Year() {
		return domain.NewValidationError("date range is out of bounds")
	}
	return nil
}

// truncateDate keeps only the calendar date. The result is a date value, not an
// instant: storage applies the zone whose days it matches.
func truncateDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

// Tags returns the tag substrings that must all match.
func (f Filter) Tags() []string { return f.tags }

// Location returns the user location substring.
func (f Filter) Location() string { return f.location }

// From returns the inclusive lower date bound.
func (f Filter) From() *time.Time { return f.from }

// To returns the inclusive upper date bound.
func (f Filter) To() *time.Time { return f.to }

// IsEmpty reports whether no predicate is set.
func (f Filter) IsEmpty() bool {
	return len(f.tags) == 0 && f.location == "" && f.from == nil && f.to == nil
}
